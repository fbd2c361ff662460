package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/skillbot/internal/database"
)

// NewGrantHandler returns a handler for the admin /grant command.
func NewGrantHandler(deps HandlerDeps) bot.HandlerFunc {
	return grantHandler{deps}.Handle
}

// grantHandler adds (or with a negative amount removes) credits.
type grantHandler struct {
	deps HandlerDeps
}

func (h grantHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "grant")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Grant handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	userID, amount, err := parseGrantArgs(commandArgs(update.Message.Text))
	if err != nil {
		log.InfoContext(ctx, "Invalid /grant arguments", "error", err)
		if err := sendText(ctx, b, chatID, msgs.GrantUsage); err != nil {
			log.ErrorContext(ctx, "Failed to send usage", "error", err, "chat_id", chatID)
		}
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	reference := "admin:" + strconv.FormatInt(update.Message.From.ID, 10)
	balance, err := h.deps.Store.Adjust(dbCtx, userID, amount, database.ReasonAdminGrant, reference)

	var text string
	switch {
	case errors.Is(err, database.ErrInsufficientBalance):
		text = fmt.Sprintf(msgs.InsufficientCredit, -amount)
	case err != nil:
		log.ErrorContext(ctx, "Grant failed", "error", err, "user_id", userID, "amount", amount)
		text = msgs.GeneralError
	default:
		log.InfoContext(ctx, "Credits granted", "admin_id", update.Message.From.ID, "user_id", userID, "amount", amount, "balance", balance)
		text = fmt.Sprintf(msgs.GrantDone, amount, userID, balance)
	}

	if err := sendText(ctx, b, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send grant result", "error", err, "chat_id", chatID)
	}
}
