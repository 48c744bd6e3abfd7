package services

import (
	"context"

	"github.com/diewo77/conventions/internal/models"
	"github.com/rs/zerolog"
)

// Notifier is told about committed status changes. Its errors are logged and
// never undo the change.
type Notifier interface {
	StatusChanged(ctx context.Context, c *models.Convention, from models.ConventionStatus) error
}

// LogNotifier writes status changes to the log.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) StatusChanged(_ context.Context, c *models.Convention, from models.ConventionStatus) error {
	n.Log.Info().
		Uint("convention_id", c.ID).
		Str("reference", c.Reference).
		Str("from", string(from)).
		Str("to", string(c.Status)).
		Msg("convention status changed")
	return nil
}
