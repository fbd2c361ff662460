package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewDirectoryHandler returns the default handler. It records the sender's
// current display name so group mentions stay accurate.
func NewDirectoryHandler(deps HandlerDeps) bot.HandlerFunc {
	return directoryHandler{deps}.Handle
}

type directoryHandler struct {
	deps HandlerDeps
}

func (h directoryHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.From.IsBot {
		return
	}

	if err := ensureSender(ctx, h.deps, update.Message.From); err != nil {
		h.deps.Logger.With("handler", "directory").ErrorContext(ctx, "Failed to record sender", "error", err, "user_id", update.Message.From.ID)
	}
}
