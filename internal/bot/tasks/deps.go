// Package tasks implements the periodic maintenance jobs run by the scheduler.
package tasks

import (
	"log/slog"

	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/database"
)

// TaskDeps contains the dependencies shared by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
