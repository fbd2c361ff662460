package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/skillbot/internal/reply"
)

const (
	// maxMessageLength is Telegram's limit in UTF-16 code units.
	maxMessageLength = 4096
	sendTimeout      = 30 * time.Second
)

// messageAPI is the subset of *bot.Bot used for sending.
type messageAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

// Transport sends replies through the Telegram Bot API.
type Transport struct {
	api    messageAPI
	logger *slog.Logger
}

// NewTransport wraps a bot client.
func NewTransport(api messageAPI, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{api: api, logger: logger.With("component", "telegram_transport")}
}

// SendText sends text, split into several messages when it exceeds the API
// limit. A mention becomes a text_mention entity over the leading "@name" of
// the first message, so it notifies the user even without a username.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, mention *reply.Mention) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	for i, chunk := range splitMessage(text, maxMessageLength) {
		params := &bot.SendMessageParams{ChatID: chatID, Text: chunk}
		if i == 0 && mention != nil && strings.HasPrefix(chunk, mention.Token()) {
			params.Entities = []models.MessageEntity{{
				Type:   models.MessageEntityTypeTextMention,
				Offset: 0,
				Length: utf16Len(mention.Token()),
				User:   &models.User{ID: mention.UserID, FirstName: mention.Name},
			}}
		}

		if _, err := t.api.SendMessage(sendCtx, params); err != nil {
			return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
		}
	}

	t.logger.DebugContext(ctx, "Sent message", "chat_id", chatID, "length", len(text), "mention", mention != nil)
	return nil
}

// SendImage uploads the file as a photo, falling back to a document when
// Telegram rejects it as a photo (size or dimensions).
func (t *Transport) SendImage(ctx context.Context, chatID int64, path string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := t.upload(path, func(upload *models.InputFileUpload) error {
		_, err := t.api.SendPhoto(sendCtx, &bot.SendPhotoParams{ChatID: chatID, Photo: upload})
		return err
	})
	if err == nil {
		t.logger.DebugContext(ctx, "Sent photo", "chat_id", chatID, "path", path)
		return nil
	}
	t.logger.WarnContext(ctx, "Photo upload rejected, sending as document", "chat_id", chatID, "path", path, "error", err)

	err = t.upload(path, func(upload *models.InputFileUpload) error {
		_, err := t.api.SendDocument(sendCtx, &bot.SendDocumentParams{ChatID: chatID, Document: upload})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send image to chat %d: %w", chatID, err)
	}
	return nil
}

func (t *Transport) upload(path string, send func(*models.InputFileUpload) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return send(&models.InputFileUpload{Filename: filepath.Base(path), Data: f})
}

// splitMessage cuts text into chunks of at most limit UTF-16 code units,
// preferring to cut after a newline in the second half of a chunk.
func splitMessage(text string, limit int) []string {
	if utf16Len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		end, units, lastNewline := 0, 0, -1
		for end < len(runes) {
			n := utf16.RuneLen(runes[end])
			if n < 0 {
				n = 1
			}
			if units+n > limit {
				break
			}
			units += n
			if runes[end] == '\n' {
				lastNewline = end
			}
			end++
		}
		if end < len(runes) && lastNewline > end/2 {
			end = lastNewline + 1
		}
		chunks = append(chunks, string(runes[:end]))
		runes = runes[end:]
	}
	return chunks
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
