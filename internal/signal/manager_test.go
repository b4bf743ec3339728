package signal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grindloop/grind/internal/loop"
)

// Manager must satisfy the loop's signal source contract.
var _ loop.SignalSource = (*Manager)(nil)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestNewManager_CreatesDirectories(t *testing.T) {
	repo := t.TempDir()
	m, err := NewManager(repo)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	for _, dir := range []string{
		filepath.Join(repo, ".grind"),
		filepath.Join(repo, ".grind", "signals"),
		filepath.Join(repo, ".grind", "logs"),
	} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}

func TestStopSignal(t *testing.T) {
	m := newTestManager(t)

	if m.ShouldStop() {
		t.Fatal("fresh manager should not report stop")
	}

	if err := m.SendStop(); err != nil {
		t.Fatalf("SendStop() error = %v", err)
	}

	// Stat fallback catches the file even if the watcher hasn't fired.
	if !m.ShouldStop() {
		t.Error("ShouldStop() = false after SendStop")
	}
}

func TestStopIsSticky(t *testing.T) {
	m := newTestManager(t)

	m.SendStop()
	if !m.ShouldStop() {
		t.Fatal("stop not observed")
	}

	// Removing the file does not un-stop a run in flight.
	os.Remove(filepath.Join(m.Dir(), "signals", "stop"))
	if !m.ShouldStop() {
		t.Error("stop should remain set after the file is removed")
	}
}

func TestPauseFollowsFile(t *testing.T) {
	m := newTestManager(t)

	if m.ShouldPause() {
		t.Fatal("fresh manager should not report pause")
	}

	if err := m.SendPause(); err != nil {
		t.Fatalf("SendPause() error = %v", err)
	}
	if !m.ShouldPause() {
		t.Error("ShouldPause() = false after SendPause")
	}

	if err := m.ClearPause(); err != nil {
		t.Fatalf("ClearPause() error = %v", err)
	}
	if m.ShouldPause() {
		t.Error("ShouldPause() = true after ClearPause")
	}
}

func TestClearPause_NoFileIsFine(t *testing.T) {
	m := newTestManager(t)
	if err := m.ClearPause(); err != nil {
		t.Errorf("ClearPause() on missing file error = %v", err)
	}
}

func TestTakeSteer_ConsumesDirective(t *testing.T) {
	m := newTestManager(t)

	if _, ok := m.TakeSteer(); ok {
		t.Fatal("fresh manager should have no steer directive")
	}

	if err := m.SendSteer("model opus"); err != nil {
		t.Fatalf("SendSteer() error = %v", err)
	}

	directive, ok := m.TakeSteer()
	if !ok {
		t.Fatal("TakeSteer() found nothing after SendSteer")
	}
	if directive != "model opus" {
		t.Errorf("directive = %q, want %q", directive, "model opus")
	}

	if _, ok := m.TakeSteer(); ok {
		t.Error("TakeSteer() should consume the directive")
	}
}

func TestTakeSteer_EmptyFileIgnored(t *testing.T) {
	m := newTestManager(t)

	path := filepath.Join(m.Dir(), "signals", "steer")
	if err := os.WriteFile(path, []byte("   \n"), 0644); err != nil {
		t.Fatalf("write steer file: %v", err)
	}

	if _, ok := m.TakeSteer(); ok {
		t.Error("blank steer file should not produce a directive")
	}
}

func TestClearSignals(t *testing.T) {
	m := newTestManager(t)

	m.SendStop()
	m.SendPause()
	m.SendSteer("stop")
	if !m.ShouldStop() {
		t.Fatal("stop not observed")
	}

	m.ClearSignals()

	if m.ShouldStop() {
		t.Error("ShouldStop() = true after ClearSignals")
	}
	if m.ShouldPause() {
		t.Error("ShouldPause() = true after ClearSignals")
	}
	if _, ok := m.TakeSteer(); ok {
		t.Error("steer directive should be cleared")
	}
}
