package handlers

import (
	"log/slog"

	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/database"
	"github.com/edgard/skillbot/internal/skill"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Store  database.Store
	Skills *skill.Registry
}
