// Package reply renders bot answers for their audience and hands them to the
// chat transport. Group answers address the invoking user with a mention;
// direct answers are sent as-is.
package reply

import (
	"context"
	"log/slog"
	"strconv"
)

// Transport is the chat send primitive.
type Transport interface {
	// SendText sends text to chatID. A non-nil mention asks the transport to
	// render the leading "@name" as a real mention of the user.
	SendText(ctx context.Context, chatID int64, text string, mention *Mention) error
	// SendImage uploads the file at path to chatID.
	SendImage(ctx context.Context, chatID int64, path string) error
}

// Directory resolves a user's display name.
type Directory interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// Recipient identifies who an answer is for and where it goes.
type Recipient struct {
	ChatID int64
	Group  bool
	UserID int64
	// Name is the name seen on the inbound message, used when the directory
	// has none.
	Name string
}

// Mention is a leading "@Name" that should resolve to UserID.
type Mention struct {
	UserID int64
	Name   string
}

// Token returns the mention text as it appears at the start of the message.
func (m Mention) Token() string {
	return "@" + m.Name
}

// Rendered is a message ready for the transport.
type Rendered struct {
	ChatID  int64
	Text    string
	Mention *Mention
}

// Formatter renders and sends answers.
type Formatter struct {
	transport Transport
	directory Directory
	logger    *slog.Logger
}

// NewFormatter creates a Formatter. directory may be nil.
func NewFormatter(transport Transport, directory Directory, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{
		transport: transport,
		directory: directory,
		logger:    logger.With("component", "reply"),
	}
}

// Format renders text for r. Group messages start with a mention of the user
// followed by a newline.
func (f *Formatter) Format(ctx context.Context, r Recipient, text string) Rendered {
	if !r.Group {
		return Rendered{ChatID: r.ChatID, Text: text}
	}

	m := &Mention{UserID: r.UserID, Name: f.displayName(ctx, r)}
	return Rendered{
		ChatID:  r.ChatID,
		Text:    m.Token() + "\n" + text,
		Mention: m,
	}
}

// Send formats text for r and delivers it.
func (f *Formatter) Send(ctx context.Context, r Recipient, text string) error {
	msg := f.Format(ctx, r, text)
	if err := f.transport.SendText(ctx, msg.ChatID, msg.Text, msg.Mention); err != nil {
		f.logger.ErrorContext(ctx, "Failed to send reply", "chat_id", r.ChatID, "user_id", r.UserID, "error", err)
		return err
	}
	return nil
}

// SendImage delivers the file at path to r's chat.
func (f *Formatter) SendImage(ctx context.Context, r Recipient, path string) error {
	if err := f.transport.SendImage(ctx, r.ChatID, path); err != nil {
		f.logger.ErrorContext(ctx, "Failed to send image", "chat_id", r.ChatID, "user_id", r.UserID, "path", path, "error", err)
		return err
	}
	return nil
}

// displayName prefers the directory, then the inbound name, then the id.
func (f *Formatter) displayName(ctx context.Context, r Recipient) string {
	if f.directory != nil {
		name, err := f.directory.DisplayName(ctx, r.UserID)
		if err != nil {
			f.logger.WarnContext(ctx, "Display name lookup failed", "user_id", r.UserID, "error", err)
		} else if name != "" {
			return name
		}
	}
	if r.Name != "" {
		return r.Name
	}
	return strconv.FormatInt(r.UserID, 10)
}
