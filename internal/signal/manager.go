// Package signal coordinates operator control of a running loop
// through files in the .grind/signals directory. Signals written
// from another terminal land in the running process between
// iterations.
package signal

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	stopFile  = "stop"
	pauseFile = "pause"
	steerFile = "steer"
)

// Manager watches and writes loop control signals for one repo.
type Manager struct {
	grindDir string

	mu          sync.RWMutex
	stopSignal  bool
	pauseSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewManager creates a signal manager rooted at repoPath/.grind.
func NewManager(repoPath string) (*Manager, error) {
	grindDir := filepath.Join(repoPath, ".grind")

	// Ensure directories exist
	dirs := []string{
		grindDir,
		filepath.Join(grindDir, "signals"),
		filepath.Join(grindDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		grindDir: grindDir,
		done:     make(chan struct{}),
	}

	// Start file watcher for immediate signals
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - will use polling fallback
		return m, nil
	}

	signalsDir := filepath.Join(grindDir, "signals")
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return m, nil
	}
	m.watcher = watcher

	go m.watchSignals()

	return m, nil
}

// watchSignals monitors the signals directory for stop/pause files.
func (m *Manager) watchSignals() {
	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			created := event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0
			m.mu.Lock()
			switch {
			case base == stopFile && created:
				m.stopSignal = true
			case base == pauseFile && created:
				m.pauseSignal = true
			case base == pauseFile && event.Op&fsnotify.Remove != 0:
				m.pauseSignal = false
			}
			m.mu.Unlock()
		case <-m.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// ShouldStop returns true if a stop signal has been received. Stop is
// sticky for the life of the manager.
func (m *Manager) ShouldStop() bool {
	// Also check file directly in case watcher missed it
	stopPath := filepath.Join(m.grindDir, "signals", stopFile)
	if _, err := os.Stat(stopPath); err == nil {
		m.mu.Lock()
		m.stopSignal = true
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopSignal
}

// ShouldPause returns true while the pause file exists.
func (m *Manager) ShouldPause() bool {
	pausePath := filepath.Join(m.grindDir, "signals", pauseFile)
	_, err := os.Stat(pausePath)

	m.mu.Lock()
	m.pauseSignal = err == nil
	paused := m.pauseSignal
	m.mu.Unlock()
	return paused
}

// TakeSteer returns a pending steer directive and consumes it. The
// directive is the trimmed content of the steer file.
func (m *Manager) TakeSteer() (string, bool) {
	path := filepath.Join(m.grindDir, "signals", steerFile)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	os.Remove(path)

	directive := strings.TrimSpace(string(content))
	if directive == "" {
		return "", false
	}
	return directive, true
}

// SendStop creates a stop signal file.
func (m *Manager) SendStop() error {
	path := filepath.Join(m.grindDir, "signals", stopFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendPause creates a pause signal file.
func (m *Manager) SendPause() error {
	path := filepath.Join(m.grindDir, "signals", pauseFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearPause removes the pause file so a paused loop resumes.
func (m *Manager) ClearPause() error {
	m.mu.Lock()
	m.pauseSignal = false
	m.mu.Unlock()

	err := os.Remove(filepath.Join(m.grindDir, "signals", pauseFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SendSteer writes a steer directive for the loop to pick up before
// its next iteration, e.g. "model opus" or "stop".
func (m *Manager) SendSteer(directive string) error {
	path := filepath.Join(m.grindDir, "signals", steerFile)
	return os.WriteFile(path, []byte(directive+"\n"), 0644)
}

// ClearSignals removes all signal files and resets signal state.
func (m *Manager) ClearSignals() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopSignal = false
	m.pauseSignal = false

	os.Remove(filepath.Join(m.grindDir, "signals", stopFile))
	os.Remove(filepath.Join(m.grindDir, "signals", pauseFile))
	os.Remove(filepath.Join(m.grindDir, "signals", steerFile))
}

// Dir returns the path to the .grind directory.
func (m *Manager) Dir() string {
	return m.grindDir
}

// Close shuts down the signal manager.
func (m *Manager) Close() {
	close(m.done)
	if m.watcher != nil {
		m.watcher.Close()
	}
}
