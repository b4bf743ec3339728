package loop

import "testing"

func TestGuardMode_Valid(t *testing.T) {
	tests := []struct {
		mode GuardMode
		want bool
	}{
		{GuardAnywhere, true},
		{GuardLine, true},
		{GuardFencedLine, true},
		{GuardMode(""), false},
		{GuardMode("exact"), false},
	}
	for _, tt := range tests {
		if got := tt.mode.Valid(); got != tt.want {
			t.Errorf("GuardMode(%q).Valid() = %t, want %t", tt.mode, got, tt.want)
		}
	}
}

func TestDetector_Anywhere(t *testing.T) {
	d := Detector{Marker: "TASK_COMPLETE"}

	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"marker alone", "TASK_COMPLETE", true},
		{"marker mid-sentence", "and with that, TASK_COMPLETE, we are done", true},
		{"marker embedded in code fence", "```\nTASK_COMPLETE\n```", true},
		{"missing", "still working on it", false},
		{"lowercase does not match", "task_complete", false},
		{"mixed case does not match", "Task_Complete", false},
		{"partial marker", "TASK_COMPLET", false},
		{"empty response", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.response); got != tt.want {
				t.Errorf("Detect(%q) = %t, want %t", tt.response, got, tt.want)
			}
		})
	}
}

func TestDetector_Line(t *testing.T) {
	d := Detector{Marker: "TASK_COMPLETE", Guard: GuardLine}

	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"own line", "all done\nTASK_COMPLETE\n", true},
		{"own line with whitespace", "done\n   TASK_COMPLETE\t\n", true},
		{"only line", "TASK_COMPLETE", true},
		{"mid-sentence rejected", "I will print TASK_COMPLETE when done", false},
		{"prefixed rejected", "> TASK_COMPLETE", false},
		{"inside fence still matches", "```\nTASK_COMPLETE\n```", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.response); got != tt.want {
				t.Errorf("Detect(%q) = %t, want %t", tt.response, got, tt.want)
			}
		})
	}
}

func TestDetector_FencedLine(t *testing.T) {
	d := Detector{Marker: "TASK_COMPLETE", Guard: GuardFencedLine}

	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"own line outside fences", "everything passes\nTASK_COMPLETE", true},
		{
			"quoted in backtick fence ignored",
			"the script prints:\n```\nTASK_COMPLETE\n```\nstill not done though",
			false,
		},
		{
			"quoted in tilde fence ignored",
			"~~~\nTASK_COMPLETE\n~~~",
			false,
		},
		{
			"real marker after a fenced mention",
			"```\necho TASK_COMPLETE\nTASK_COMPLETE\n```\nverified it works\nTASK_COMPLETE",
			true,
		},
		{
			"fence with language tag",
			"```bash\nTASK_COMPLETE\n```",
			false,
		},
		{"mid-sentence rejected", "I promise TASK_COMPLETE soon", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Detect(tt.response); got != tt.want {
				t.Errorf("Detect(%q) = %t, want %t", tt.response, got, tt.want)
			}
		})
	}
}

func TestDetector_EmptyMarkerNeverMatches(t *testing.T) {
	d := Detector{Marker: ""}
	if d.Detect("anything at all") {
		t.Error("empty marker must never match")
	}
}
