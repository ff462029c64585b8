package importer

import (
	"context"
	"errors"

	"github.com/cleared-dev/ledgerfeed/internal/store"
)

// Failure classes. Every failed file carries exactly one of these.
var (
	// ErrInvalidConfig means the feed names a table or column that does not exist.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrRemoteCall means a file or table store call failed.
	ErrRemoteCall = errors.New("remote call failed")
	// ErrTransform means the file content could not be parsed, filtered or written.
	ErrTransform = errors.New("transform failed")
)

// Classify returns the failure class name of err for logs and the run log.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrTransform):
		return "transform"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrRemoteCall):
		return "remote_call"
	default:
		return "unknown"
	}
}

// permanent reports whether retrying err cannot help.
func permanent(err error) bool {
	return errors.Is(err, store.ErrTableNotFound) ||
		errors.Is(err, store.ErrColumnMissing) ||
		errors.Is(err, store.ErrRowRejected) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
