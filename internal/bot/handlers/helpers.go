package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	sendMessageTimeout = 10 * time.Second
	dbTimeout          = 5 * time.Second
)

// displayName builds the name shown in group mentions.
func displayName(u *models.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// isGroupChat reports whether replies in chat should mention the sender.
func isGroupChat(chat models.Chat) bool {
	return chat.Type == models.ChatTypeGroup || chat.Type == models.ChatTypeSupergroup
}

// ensureSender creates or refreshes the sender's account.
func ensureSender(ctx context.Context, deps HandlerDeps, u *models.User) error {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := deps.Store.EnsureAccount(dbCtx, u.ID, displayName(u), deps.Config.Credits.InitialBalance)
	return err
}

// sendText sends a plain reply to chatID.
func sendText(ctx context.Context, b *tgbot.Bot, chatID int64, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	_, err := b.SendMessage(sendCtx, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
	return err
}

// commandArgs returns the whitespace-separated arguments after the command.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// parseGrantArgs parses "<user_id> <amount>". Amount may be negative to
// take credits back, but never zero.
func parseGrantArgs(args []string) (int64, int64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, fmt.Errorf("invalid user id %q", args[0])
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount == 0 {
		return 0, 0, fmt.Errorf("invalid amount %q", args[1])
	}
	return userID, amount, nil
}

// parseWhitelistArgs parses "<user_id> on|off".
func parseWhitelistArgs(args []string) (int64, bool, error) {
	if len(args) != 2 {
		return 0, false, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id %q", args[0])
	}
	switch strings.ToLower(args[1]) {
	case "on", "true", "yes", "1":
		return userID, true, nil
	case "off", "false", "no", "0":
		return userID, false, nil
	}
	return 0, false, fmt.Errorf("invalid state %q", args[1])
}
