package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadLibrary Phase = iota
	MatchAlbums
	ImportFiles
)

func (p Phase) String() string {
	switch p {
	case LoadLibrary:
		return "load_library"
	case MatchAlbums:
		return "match_albums"
	case ImportFiles:
		return "import_files"
	default:
		return ""
	}
}

func loadLibraryUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadLibrary,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Matching %d albums...", total),
	}
}

func matchedAlbumUpdate(step, total int, res AlbumMatchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, res.Title, res.TrackCount),
		Data:    res,
	}
}

func unmatchedAlbumUpdate(step, total int, res AlbumMatchResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Title, res.Error),
		Data:    res,
	}
}

func importedUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Imported: %s", step, total, name),
	}
}

func importFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
