package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/config"
	"ladder-bot/internal/handler"
	"ladder-bot/internal/msgcat"
	"ladder-bot/internal/notify"
)

// messenger is the part of *tele.Bot used to deliver messages.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramSink delivers notifications through the Telegram API.
type TelegramSink struct {
	api   messenger
	chats map[notify.Channel]int64
}

// NewTelegramSink maps each notification channel onto its configured chat.
func NewTelegramSink(api messenger, channels config.ChannelsConfig) *TelegramSink {
	return &TelegramSink{
		api: api,
		chats: map[notify.Channel]int64{
			notify.ChannelAnnouncements: channels.Announcements,
			notify.ChannelMatchups:      channels.Matchups,
			notify.ChannelDrafts:        channels.Drafts,
			notify.ChannelLogging:       channels.Logging,
		},
	}
}

// Post sends text to the chat configured for ch.
func (s *TelegramSink) Post(_ context.Context, ch notify.Channel, text string) error {
	chatID := s.chats[ch]
	if chatID == 0 {
		return fmt.Errorf("no chat configured for channel %s", ch)
	}
	for _, chunk := range msgcat.Split(text, msgcat.MaxMessageLen) {
		if _, err := s.api.Send(tele.ChatID(chatID), chunk); err != nil {
			return fmt.Errorf("failed to post to %s: %w", ch, err)
		}
	}
	return nil
}

// Direct sends text to a user's private chat.
func (s *TelegramSink) Direct(_ context.Context, userID int64, text string) error {
	if _, err := s.api.Send(&tele.User{ID: userID}, text); err != nil {
		return fmt.Errorf("failed to message user %d: %w", userID, err)
	}
	return nil
}

// SignupPoster publishes the signup message with its buttons.
type SignupPoster struct {
	api    messenger
	chatID int64
	msgs   *msgcat.Catalog
}

// NewSignupPoster creates a poster for the given signup chat.
func NewSignupPoster(api messenger, chatID int64, msgs *msgcat.Catalog) *SignupPoster {
	return &SignupPoster{api: api, chatID: chatID, msgs: msgs}
}

// PostSignupWindow sends an empty roster with the signup buttons.
func (p *SignupPoster) PostSignupWindow(_ context.Context, closeAt time.Time) (int64, int64, error) {
	if p.chatID == 0 {
		return 0, 0, fmt.Errorf("no signup chat configured")
	}
	text, err := handler.WindowText(p.msgs, closeAt, nil)
	if err != nil {
		return 0, 0, err
	}
	m, err := p.api.Send(tele.ChatID(p.chatID), text, handler.SignupMarkup())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to send signup message: %w", err)
	}
	return m.Chat.ID, int64(m.ID), nil
}

// CloseSignupWindow replaces the signup message, removing its buttons.
func (p *SignupPoster) CloseSignupWindow(_ context.Context, chatID, messageID int64) error {
	text, err := p.msgs.Render("signup.closed", nil)
	if err != nil {
		return err
	}
	stored := tele.StoredMessage{MessageID: strconv.FormatInt(messageID, 10), ChatID: chatID}
	if _, err := p.api.Edit(stored, text); err != nil {
		return fmt.Errorf("failed to close signup message: %w", err)
	}
	return nil
}
