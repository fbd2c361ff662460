package handlers

import (
	"strings"
	"unicode"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/skillbot/internal/command"
)

// commandMatcher matches messages whose first word is /<name>, bare or
// addressed as /<name>@<bot username> the way clients send commands in
// groups. A command addressed to another bot does not match. The username is
// looked up per update since it is only known after getMe; while it is
// unknown any qualifier is accepted.
func commandMatcher(name string, username func() string) tgbot.MatchFunc {
	return func(update *models.Update) bool {
		if update.Message == nil {
			return false
		}

		cmd := command.Command{Verb: firstWord(update.Message.Text)}
		if !cmd.IsSlash() || !strings.EqualFold(cmd.Name(), name) {
			return false
		}

		target := cmd.Target()
		if target == "" {
			return true
		}
		own := username()
		return own == "" || strings.EqualFold(target, own)
	}
}

// firstWord returns text up to the first whitespace rune.
func firstWord(text string) string {
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		return text[:i]
	}
	return text
}

// botUsername reads the username filled in from getMe.
func botUsername(deps HandlerDeps) func() string {
	return func() string {
		if deps.Config == nil || deps.Config.Telegram.BotInfo == nil {
			return ""
		}
		return deps.Config.Telegram.BotInfo.Username
	}
}
