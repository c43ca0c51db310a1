package bot

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
	tele "gopkg.in/telebot.v3"

	"ladder-bot/internal/config"
)

// newTestBot returns an offline bot whose API calls hit a stub server.
func newTestBot(t *testing.T) *tele.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{Token: "test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	return b
}

func groupMessage(b *tele.Bot, chatID, userID int64) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		ID:     1,
		Text:   "/top",
		Chat:   &tele.Chat{ID: chatID, Type: tele.ChatGroup},
		Sender: &tele.User{ID: userID},
	}})
}

func privateMessage(b *tele.Bot, userID int64) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		ID:     1,
		Text:   "/top",
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Sender: &tele.User{ID: userID},
	}})
}

// passes reports whether mw lets c through to the next handler.
func passes(t require.TestingT, mw tele.MiddlewareFunc, c tele.Context) bool {
	called := false
	err := mw(func(tele.Context) error {
		called = true
		return nil
	})(c)
	require.NoError(t, err)
	return called
}

// TestWhitelistMiddlewareProperty checks group filtering.
// *For any* whitelist and chat, the handler SHALL run iff the chat is listed.
func TestWhitelistMiddlewareProperty(t *testing.T) {
	b := newTestBot(t)
	rapid.Check(t, func(t *rapid.T) {
		chats := rapid.SliceOfNDistinct(rapid.Int64Range(-1000, -1), 1, 10, rapid.ID[int64]).Draw(t, "chats")
		chatID := rapid.Int64Range(-1000, -1).Draw(t, "chatID")
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: chats}}

		mw := WhitelistMiddleware(cfg, newPrivateUsers())
		got := passes(t, mw, groupMessage(b, chatID, 42))

		want := false
		for _, id := range chats {
			if id == chatID {
				want = true
			}
		}
		if got != want {
			t.Fatalf("chat %d with whitelist %v: passed=%v", chatID, chats, got)
		}
	})
}

// TestPrivateChatAfterGroupProperty checks private access.
// *For any* user, private chat SHALL be allowed only after the user was
// seen in an allowed group, unless they moderate.
func TestPrivateChatAfterGroupProperty(t *testing.T) {
	b := newTestBot(t)
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1_000_000).Draw(t, "userID")
		moderator := rapid.Bool().Draw(t, "moderator")
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{-100}}}
		if moderator {
			cfg.Admin.ModeratorIDs = []int64{userID}
		}

		users := newPrivateUsers()
		mw := WhitelistMiddleware(cfg, users)
		if got := passes(t, mw, privateMessage(b, userID)); got != moderator {
			t.Fatalf("first private message passed=%v for moderator=%v", got, moderator)
		}

		passes(t, mw, groupMessage(b, -100, userID))
		if !passes(t, mw, privateMessage(b, userID)) {
			t.Fatalf("user %d seen in group was refused in private chat", userID)
		}
	})
}

func TestEmptyWhitelistAllowsAll(t *testing.T) {
	b := newTestBot(t)
	mw := WhitelistMiddleware(&config.Config{}, newPrivateUsers())
	assert.True(t, passes(t, mw, groupMessage(b, -5, 1)))
	assert.True(t, passes(t, mw, privateMessage(b, 1)))
}

// TestRoleMiddlewareProperty checks command privileges.
// *For any* configured owners and moderators, a moderator command SHALL run
// for both and an owner command SHALL run only for owners.
func TestRoleMiddlewareProperty(t *testing.T) {
	b := newTestBot(t)
	rapid.Check(t, func(t *rapid.T) {
		owners := rapid.SliceOfN(rapid.Int64Range(1, 50), 0, 5).Draw(t, "owners")
		mods := rapid.SliceOfN(rapid.Int64Range(1, 50), 0, 5).Draw(t, "mods")
		userID := rapid.Int64Range(1, 50).Draw(t, "userID")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: owners, ModeratorIDs: mods}}

		c := groupMessage(b, -1, userID)
		isOwner := contains(owners, userID)
		isMod := isOwner || contains(mods, userID)

		if got := passes(t, ModeratorMiddleware(cfg), c); got != isMod {
			t.Fatalf("moderator check for %d: got %v want %v", userID, got, isMod)
		}
		if got := passes(t, OwnerMiddleware(cfg), c); got != isOwner {
			t.Fatalf("owner check for %d: got %v want %v", userID, got, isOwner)
		}
	})
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestRecoveryMiddleware(t *testing.T) {
	b := newTestBot(t)
	h := RecoveryMiddleware()(func(tele.Context) error {
		panic("boom")
	})
	assert.NotPanics(t, func() {
		_ = h(groupMessage(b, -1, 1))
	})
}
