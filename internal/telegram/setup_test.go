package telegram

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/skillbot/internal/bot/handlers"
)

func TestRegisterHandlersRoutesByMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		wantCalls []string
	}{
		{name: "addressed command", text: "/glm@skillbot hello", wantCalls: []string{"outer", "inner", "glm"}},
		{name: "bare command", text: "/glm hello", wantCalls: []string{"outer", "inner", "glm"}},
		{name: "unmatched text", text: "hello there", wantCalls: []string{"default"}},
		{name: "handler without match", text: "/nomatch", wantCalls: []string{"default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls []string
			record := func(name string) bot.HandlerFunc {
				return func(context.Context, *bot.Bot, *models.Update) { calls = append(calls, name) }
			}
			mark := func(name string) bot.Middleware {
				return func(next bot.HandlerFunc) bot.HandlerFunc {
					return func(ctx context.Context, b *bot.Bot, u *models.Update) {
						calls = append(calls, name)
						next(ctx, b, u)
					}
				}
			}

			b, err := NewTelegramBot("123456:test-token", slog.New(slog.NewTextHandler(io.Discard, nil)),
				bot.WithSkipGetMe(),
				bot.WithNotAsyncHandlers(),
				bot.WithDefaultHandler(record("default")),
			)
			require.NoError(t, err)

			err = RegisterHandlers(b, nil, map[string]handlers.RegisteredHandler{
				"/glm": {
					Pattern: "glm",
					Match: func(u *models.Update) bool {
						return u.Message != nil && strings.HasPrefix(u.Message.Text, "/glm")
					},
					Handler:    record("glm"),
					Middleware: []bot.Middleware{mark("outer"), mark("inner")},
				},
				"/nomatch": {Pattern: "nomatch", Handler: record("nomatch")},
			})
			require.NoError(t, err)

			b.ProcessUpdate(context.Background(), &models.Update{
				ID: 1,
				Message: &models.Message{
					Text: tt.text,
					Chat: models.Chat{ID: 1, Type: models.ChatTypePrivate},
					From: &models.User{ID: 1},
				},
			})
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRegisterHandlersRejectsNilBot(t *testing.T) {
	t.Parallel()

	assert.Error(t, RegisterHandlers(nil, nil, nil))
}
