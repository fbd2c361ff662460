package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewWhitelistHandler returns a handler for the admin /whitelist command.
func NewWhitelistHandler(deps HandlerDeps) bot.HandlerFunc {
	return whitelistHandler{deps}.Handle
}

type whitelistHandler struct {
	deps HandlerDeps
}

func (h whitelistHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "whitelist")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Whitelist handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	userID, on, err := parseWhitelistArgs(commandArgs(update.Message.Text))
	if err != nil {
		log.InfoContext(ctx, "Invalid /whitelist arguments", "error", err)
		if err := sendText(ctx, b, chatID, msgs.WhitelistUsage); err != nil {
			log.ErrorContext(ctx, "Failed to send usage", "error", err, "chat_id", chatID)
		}
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	text := msgs.GeneralError
	if err := h.deps.Store.SetWhitelisted(dbCtx, userID, on); err != nil {
		log.ErrorContext(ctx, "Failed to update whitelist", "error", err, "user_id", userID)
	} else {
		state := "off"
		if on {
			state = "on"
		}
		log.InfoContext(ctx, "Whitelist updated", "admin_id", update.Message.From.ID, "user_id", userID, "whitelisted", on)
		text = fmt.Sprintf(msgs.WhitelistDone, userID, state)
	}

	if err := sendText(ctx, b, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send whitelist result", "error", err, "chat_id", chatID)
	}
}
