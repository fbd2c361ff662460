package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/skill"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

// helpHandler lists the configured skills with their prices.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Help handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /help command", "chat_id", chatID, "user_id", update.Message.From.ID)

	text := helpText(h.deps.Config.Messages, h.deps.Skills)
	if err := sendText(ctx, b, chatID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send help message", "error", err, "chat_id", chatID)
	}
}

// helpText renders the header followed by one line per skill.
func helpText(msgs config.MessagesConfig, skills *skill.Registry) string {
	var sb strings.Builder
	sb.WriteString(msgs.HelpHeader)
	for _, e := range skills.All() {
		cfg := e.Config()
		desc := cfg.Description
		if desc == "" {
			desc = cfg.DisplayLabel()
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, msgs.HelpLine, cfg.Command, cfg.Price, desc)
	}
	return sb.String()
}
