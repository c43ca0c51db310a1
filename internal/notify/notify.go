// Package notify defines where human-readable announcements go.
// Delivery is fire-and-forget: Post and Direct log failures and never
// propagate them into the transition that triggered the message.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Channel names a configured announcement destination.
type Channel string

const (
	ChannelAnnouncements Channel = "announcements"
	ChannelMatchups      Channel = "matchups"
	ChannelDrafts        Channel = "drafts"
	ChannelLogging       Channel = "logging"
)

// Sink delivers messages.
type Sink interface {
	Post(ctx context.Context, ch Channel, text string) error
	Direct(ctx context.Context, userID int64, text string) error
}

// Post sends text to a channel and logs any delivery failure.
func Post(ctx context.Context, s Sink, ch Channel, text string) {
	if s == nil || text == "" {
		return
	}
	if err := s.Post(ctx, ch, text); err != nil {
		log.Warn().Err(err).Str("channel", string(ch)).Msg("Failed to post notification")
	}
}

// Direct sends text to a user and logs any delivery failure.
func Direct(ctx context.Context, s Sink, userID int64, text string) {
	if s == nil || text == "" {
		return
	}
	if err := s.Direct(ctx, userID, text); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to send direct message")
	}
}

// Nop discards every message.
type Nop struct{}

func (Nop) Post(context.Context, Channel, string) error  { return nil }
func (Nop) Direct(context.Context, int64, string) error { return nil }

// Message is one delivery captured by Recorder.
type Message struct {
	Channel Channel
	UserID  int64
	Text    string
}

// Recorder keeps every message in memory. Setting Err makes every delivery
// fail after it has been recorded.
type Recorder struct {
	mu      sync.Mutex
	posts   []Message
	directs []Message
	Err     error
}

func (r *Recorder) Post(_ context.Context, ch Channel, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, Message{Channel: ch, Text: text})
	return r.Err
}

func (r *Recorder) Direct(_ context.Context, userID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directs = append(r.directs, Message{UserID: userID, Text: text})
	return r.Err
}

// Posts returns channel messages in delivery order.
func (r *Recorder) Posts() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.posts...)
}

// PostsTo returns messages sent to one channel.
func (r *Recorder) PostsTo(ch Channel) []Message {
	var out []Message
	for _, m := range r.Posts() {
		if m.Channel == ch {
			out = append(out, m)
		}
	}
	return out
}

// Directs returns direct messages in delivery order.
func (r *Recorder) Directs() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.directs...)
}
