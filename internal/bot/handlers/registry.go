package handlers

import (
	"sort"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	Pattern     string
	Match       tgbot.MatchFunc
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	Description string
	AdminOnly   bool
}

// RegisterAllCommands returns the built-in commands plus one command per
// configured skill, keyed by "/command".
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	username := botUsername(deps)
	command := func(pattern, description string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) {
		handlers["/"+pattern] = RegisteredHandler{
			Pattern:     pattern,
			Match:       commandMatcher(pattern, username),
			Handler:     h,
			Middleware:  mw,
			Description: description,
			AdminOnly:   len(mw) > 0,
		}
	}

	command("start", "Start the bot", NewStartHandler(deps))
	command("help", "List skills and prices", NewHelpHandler(deps))
	command("balance", "Show your credit balance", NewBalanceHandler(deps))

	adminOnly := AdminOnly(deps)
	command("grant", "Grant credits (admin)", NewGrantHandler(deps), adminOnly)
	command("whitelist", "Toggle whitelist (admin)", NewWhitelistHandler(deps), adminOnly)

	for _, exec := range deps.Skills.All() {
		cfg := exec.Config()
		desc := cfg.Description
		if desc == "" {
			desc = cfg.DisplayLabel()
		}
		command(cfg.Command, desc, NewSkillHandler(deps, exec))
	}

	return handlers
}

// BotCommands returns the public commands for the client command menu.
// Admin commands are left out.
func BotCommands(registered map[string]RegisteredHandler) []models.BotCommand {
	var cmds []models.BotCommand
	for _, h := range registered {
		if h.AdminOnly {
			continue
		}
		cmds = append(cmds, models.BotCommand{Command: h.Pattern, Description: h.Description})
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Command < cmds[j].Command })
	return cmds
}
