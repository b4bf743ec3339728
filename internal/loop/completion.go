package loop

import "strings"

// GuardMode controls how strictly the completion promise is matched
// against a response.
type GuardMode string

const (
	// GuardAnywhere accepts the promise anywhere in the response.
	GuardAnywhere GuardMode = "anywhere"
	// GuardLine requires the promise to be a whole line on its own.
	GuardLine GuardMode = "line"
	// GuardFencedLine is GuardLine but ignores lines inside markdown
	// code fences, so an agent quoting its own instructions does not
	// end the run.
	GuardFencedLine GuardMode = "fenced-line"
)

// Valid reports whether the mode is a known guard mode.
func (m GuardMode) Valid() bool {
	switch m {
	case GuardAnywhere, GuardLine, GuardFencedLine:
		return true
	}
	return false
}

// Detector decides whether a response declares the task done. The
// match is always exact and case-sensitive: "done" never satisfies a
// promise of "DONE".
type Detector struct {
	// Marker is the completion promise string.
	Marker string
	// Guard selects the match mode. Zero value means GuardAnywhere.
	Guard GuardMode
}

// Detect reports whether response satisfies the promise.
func (d Detector) Detect(response string) bool {
	if d.Marker == "" {
		return false
	}
	switch d.Guard {
	case GuardLine:
		return markerOnOwnLine(response, d.Marker, false)
	case GuardFencedLine:
		return markerOnOwnLine(response, d.Marker, true)
	default:
		return strings.Contains(response, d.Marker)
	}
}

// markerOnOwnLine scans the response line by line looking for a line
// that is exactly the marker after trimming whitespace. When
// skipFenced is set, lines inside ``` or ~~~ fences are ignored and
// the fence delimiters themselves never match.
func markerOnOwnLine(response, marker string, skipFenced bool) bool {
	inFence := false
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if skipFenced && inFence {
			continue
		}
		if trimmed == marker {
			return true
		}
	}
	return false
}
