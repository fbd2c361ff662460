package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/skillbot/internal/skill"
)

// NewSkillHandler returns the handler for one paid skill command.
func NewSkillHandler(deps HandlerDeps, exec *skill.Executor) bot.HandlerFunc {
	return skillHandler{deps: deps, exec: exec}.Handle
}

type skillHandler struct {
	deps HandlerDeps
	exec *skill.Executor
}

func (h skillHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "skill", "skill", h.exec.Config().Name)

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Skill handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	msg := update.Message
	if err := ensureSender(ctx, h.deps, msg.From); err != nil {
		log.ErrorContext(ctx, "Failed to ensure account", "error", err, "user_id", msg.From.ID)
	}

	inv := skill.NewInvocation(
		skill.Principal{
			ID:    msg.From.ID,
			Name:  displayName(msg.From),
			Admin: h.deps.Config.IsAdmin(msg.From.ID),
		},
		skill.Origin{ChatID: msg.Chat.ID, Group: isGroupChat(msg.Chat)},
		msg.Text,
	)

	out := h.exec.Execute(ctx, inv)
	log.InfoContext(ctx, "Skill invocation finished",
		"invocation_id", inv.ID,
		"user_id", inv.Principal.ID,
		"state", out.State.String(),
		"settled", out.Settled,
		"charged", out.Charged,
		"waived", out.Waived,
		"error", out.Err)
}
