package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ibx/internal/ibroadcast"
)

// Uploader is the slice of the streaming client the engine needs. Satisfied
// by [ibroadcast.Client].
type Uploader interface {
	Upload(ctx context.Context, path string, opts ibroadcast.UploadOptions) (ibroadcast.UploadResult, error)
}

// UploadHistory persists completed uploads. Satisfied by
// repositories.UploadRepository.
type UploadHistory interface {
	Record(path, md5, trackID string) error
}

// UploadEngine runs bulk uploads against the streaming service.
type UploadEngine struct {
	client  Uploader
	history UploadHistory
	logger  *log.Logger
}

// NewUploadEngine creates an UploadEngine. history may be nil when upload
// tracking is disabled.
func NewUploadEngine(client Uploader, history UploadHistory, logger *log.Logger) *UploadEngine {
	return &UploadEngine{
		client:  client,
		history: history,
		logger:  logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *UploadEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
