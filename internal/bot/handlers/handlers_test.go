package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/database"
	"github.com/edgard/skillbot/internal/provider"
	"github.com/edgard/skillbot/internal/reply"
	"github.com/edgard/skillbot/internal/skill"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopAdapter struct{}

func (nopAdapter) Name() string { return "nop" }

func (nopAdapter) Invoke(context.Context, string, provider.Params) provider.Result {
	return provider.Text("ok")
}

func testRegistry(t *testing.T) *skill.Registry {
	t.Helper()

	skills := []config.SkillConfig{
		{Name: "glm", Command: "glm", Label: "GLM", Description: "Ask GLM", Price: 3, Provider: "zhipu", Help: "h"},
		{Name: "flux", Command: "flux", Price: 8, Provider: "flux", Help: "h"},
	}
	r, err := skill.NewRegistry(skills, map[string]provider.Adapter{"zhipu": nopAdapter{}, "flux": nopAdapter{}}, skill.Deps{Logger: testLogger()})
	require.NoError(t, err)
	return r
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user *models.User
		want string
	}{
		{name: "nil", user: nil, want: ""},
		{name: "first and last", user: &models.User{FirstName: "Alice", LastName: "Liddell"}, want: "Alice Liddell"},
		{name: "first only", user: &models.User{FirstName: "Alice"}, want: "Alice"},
		{name: "username fallback", user: &models.User{Username: "alice"}, want: "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, displayName(tt.user))
		})
	}
}

func TestIsGroupChat(t *testing.T) {
	t.Parallel()

	assert.True(t, isGroupChat(models.Chat{Type: models.ChatTypeGroup}))
	assert.True(t, isGroupChat(models.Chat{Type: models.ChatTypeSupergroup}))
	assert.False(t, isGroupChat(models.Chat{Type: models.ChatTypePrivate}))
	assert.False(t, isGroupChat(models.Chat{Type: models.ChatTypeChannel}))
}

func TestParseGrantArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		text       string
		wantUser   int64
		wantAmount int64
		wantErr    bool
	}{
		{name: "grant", text: "/grant 42 10", wantUser: 42, wantAmount: 10},
		{name: "take back", text: "/grant 42 -3", wantUser: 42, wantAmount: -3},
		{name: "missing amount", text: "/grant 42", wantErr: true},
		{name: "zero amount", text: "/grant 42 0", wantErr: true},
		{name: "bad user", text: "/grant bob 5", wantErr: true},
		{name: "no args", text: "/grant", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			user, amount, err := parseGrantArgs(commandArgs(tt.text))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, user)
			assert.Equal(t, tt.wantAmount, amount)
		})
	}
}

func TestParseWhitelistArgs(t *testing.T) {
	t.Parallel()

	user, on, err := parseWhitelistArgs(commandArgs("/whitelist 9 on"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), user)
	assert.True(t, on)

	_, on, err = parseWhitelistArgs(commandArgs("/whitelist 9 OFF"))
	require.NoError(t, err)
	assert.False(t, on)

	_, _, err = parseWhitelistArgs(commandArgs("/whitelist 9 maybe"))
	assert.Error(t, err)
}

func TestHelpText(t *testing.T) {
	t.Parallel()

	got := helpText(config.DefaultMessages, testRegistry(t))
	assert.Equal(t, "Available skills:\n/glm (3 credits) Ask GLM\n/flux (8 credits) flux", got)
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Telegram.BotInfo = &models.User{Username: "skillbot"}
	deps := HandlerDeps{Logger: testLogger(), Config: cfg, Skills: testRegistry(t)}
	registered := RegisterAllCommands(deps)

	for _, cmd := range []string{"/start", "/help", "/balance", "/grant", "/whitelist", "/glm", "/flux"} {
		assert.Contains(t, registered, cmd)
	}
	assert.Len(t, registered["/grant"].Middleware, 1)
	assert.Empty(t, registered["/glm"].Middleware)
	assert.True(t, registered["/glm"].Match(textUpdate("/glm@skillbot hello")))
	assert.False(t, registered["/glm"].Match(textUpdate("/flux@skillbot hello")))

	var public []string
	for _, c := range BotCommands(registered) {
		public = append(public, c.Command)
	}
	assert.Equal(t, []string{"balance", "flux", "glm", "help", "start"}, public)
}

type recordingTransport struct {
	mu    sync.Mutex
	chats []int64
	texts []string
	err   error
}

func (r *recordingTransport) SendText(_ context.Context, chatID int64, text string, _ *reply.Mention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatID)
	r.texts = append(r.texts, text)
	return r.err
}

func (r *recordingTransport) SendImage(context.Context, int64, string) error { return nil }

func TestRefundAlerter(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, testLogger())

	cfg := &config.Config{Messages: config.DefaultMessages}
	cfg.Telegram.AdminIDs = []int64{100, 200}

	tr := &recordingTransport{err: errors.New("blocked by user")}
	a := NewRefundAlerter(store, tr, cfg, testLogger())

	a.RefundFailed(context.Background(), skill.RefundFailure{
		InvocationID: "inv-1",
		Skill:        "glm",
		UserID:       7,
		Amount:       5,
		Cause:        errors.New("database is locked"),
	})

	assert.Equal(t, []int64{100, 200}, tr.chats, "every admin is tried even if one fails")
	assert.Contains(t, tr.texts[0], "user 7, amount 5, invocation inv-1: database is locked")

	open, err := store.ListReconciliations(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(7), open[0].UserID)
	assert.Equal(t, int64(5), open[0].Amount)
	assert.Equal(t, "inv-1", open[0].Reference)
}
