// Package telegram adapts the Telegram Bot API to the transport port.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cierrelabs/cierrebot/internal/transport"
)

// Transport is a long-polling Telegram bot.
type Transport struct {
	bot  *tgbotapi.BotAPI
	http *http.Client
}

// New authenticates against the Bot API with the given token.
func New(token string) (*Transport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Transport{bot: bot, http: http.DefaultClient}, nil
}

// BotName returns the authenticated bot's username.
func (t *Transport) BotName() string {
	return t.bot.Self.UserName
}

// Send delivers a plain-text reply to the conversation.
func (t *Transport) Send(conversationID, text string) error {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad conversation id %q: %w", conversationID, err)
	}
	_, err = t.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Run long-polls for updates and hands each message to handle. Photos are
// fetched eagerly so downstream components see self-contained attachments.
func (t *Transport) Run(ctx context.Context, handle func(transport.Event)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil {
				continue
			}
			ev := transport.Event{
				ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
				Text:           msg.Text,
			}
			if ev.Text == "" {
				ev.Text = msg.Caption
			}
			if len(msg.Photo) > 0 {
				if att, err := t.fetchPhoto(msg.Photo); err == nil {
					ev.Attachments = append(ev.Attachments, att)
				}
				// A failed fetch still delivers the text fragment; the
				// operator is told nothing was extracted later.
			}
			handle(ev)
		}
	}
}

// fetchPhoto downloads the largest rendition of a photo message.
func (t *Transport) fetchPhoto(sizes []tgbotapi.PhotoSize) (transport.Attachment, error) {
	best := sizes[len(sizes)-1] // Telegram orders renditions small to large
	url, err := t.bot.GetFileDirectURL(best.FileID)
	if err != nil {
		return transport.Attachment{}, fmt.Errorf("resolve file url: %w", err)
	}
	resp, err := t.http.Get(url)
	if err != nil {
		return transport.Attachment{}, fmt.Errorf("fetch photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return transport.Attachment{}, fmt.Errorf("fetch photo: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transport.Attachment{}, fmt.Errorf("read photo: %w", err)
	}
	return transport.Attachment{
		ID:        best.FileID,
		MediaType: "image/jpeg",
		Data:      data,
	}, nil
}
