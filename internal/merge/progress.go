package merge

import "fmt"

// Stage identifies a step of a merge run.
type Stage int

const (
	StageLoad Stage = iota
	StageOverlap
	StageUnify
	StageAssemble
)

func (s Stage) String() string {
	names := [...]string{"load", "overlap", "unify", "assemble"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// ProgressStatus is the state of a section within a stage.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent is emitted while a run executes. Section is a source path
// during StageLoad and the stage name otherwise.
type ProgressEvent struct {
	Stage   Stage
	Section string
	Status  ProgressStatus
	Message string
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  \u25cb %s (pending)", event.Section)
	case ProgressWorking:
		return fmt.Sprintf("  \u25cf %s...", event.Section)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  \u2713 %s complete: %s", event.Section, event.Message)
		}
		return fmt.Sprintf("  \u2713 %s complete", event.Section)
	case ProgressFailed:
		return fmt.Sprintf("  \u2717 %s failed: %s", event.Section, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Section)
	}
}
