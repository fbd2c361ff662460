package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewBalanceHandler returns a handler for the /balance command.
func NewBalanceHandler(deps HandlerDeps) bot.HandlerFunc {
	return balanceHandler{deps}.Handle
}

// balanceHandler reports the sender's own balance.
type balanceHandler struct {
	deps HandlerDeps
}

func (h balanceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "balance")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Balance handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	if err := ensureSender(ctx, h.deps, update.Message.From); err != nil {
		log.ErrorContext(ctx, "Failed to ensure account", "error", err, "user_id", userID)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	text := h.deps.Config.Messages.GeneralError
	balance, err := h.deps.Store.Balance(dbCtx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to read balance", "error", err, "user_id", userID)
	} else {
		text = fmt.Sprintf(h.deps.Config.Messages.Balance, balance)
	}

	if err := sendText(ctx, b, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send balance", "error", err, "chat_id", chatID)
	}
}
