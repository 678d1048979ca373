package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ScanFiles Phase = iota
	UploadFile
	RefreshLibrary
)

func (p Phase) String() string {
	switch p {
	case ScanFiles:
		return "scan_files"
	case UploadFile:
		return "upload_file"
	case RefreshLibrary:
		return "refresh_library"
	default:
		return ""
	}
}

func scanCompletedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanFiles,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Found %d files to upload", total),
	}
}

func uploadCompletedUpdate(step, total int, path, trackID string) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, path)
	if trackID != "" {
		msg = fmt.Sprintf("[%d/%d] ✓ %s (track %s)", step, total, path, trackID)
	}
	return ProgressUpdate{
		Phase:   UploadFile,
		Step:    step,
		Total:   total,
		Message: msg,
	}
}

func uploadSkippedUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadFile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] - %s already uploaded", step, total, path),
	}
}

func uploadFailedUpdate(step, total int, path string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadFile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, path, err),
	}
}
