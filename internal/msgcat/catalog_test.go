package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmbeddedDefaults(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	assert.True(t, c.Has("game.confirmed"))
	assert.True(t, c.Has("matchup.announcement"))
	assert.False(t, c.Has("game"))
	assert.NotEmpty(t, c.Keys())
}

func TestRender(t *testing.T) {
	c := MustDefault()

	out, err := c.Render("player.left", map[string]any{"Name": "alice", "Incomplete": 2})
	require.NoError(t, err)
	assert.Equal(t, "alice left the group with 2 incomplete game(s).", out)
}

func TestRender_MissingKeyFails(t *testing.T) {
	c := MustDefault()

	_, err := c.Render("player.left", map[string]any{"Name": "alice"})
	assert.Error(t, err)

	_, err = c.Render("no.such.key", nil)
	assert.Error(t, err)
}

func TestRender_Announcement(t *testing.T) {
	c := MustDefault()

	out, err := c.Render("matchup.announcement", map[string]any{
		"Count":      1,
		"TribeLevel": 2,
		"Pools": []map[string]any{{
			"Platform": "mobile",
			"Tiers": []map[string]any{{
				"Number": 3,
				"Games":  []map[string]any{{"ID": 7, "HostName": "alice", "AwayName": "bob"}},
			}},
			"Unpaired": []string(nil),
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "== MOBILE ==")
	assert.Contains(t, out, "#7: alice (host) vs bob")
	assert.Contains(t, out, "tribe level: 2")
}

func TestRender_RemovedDM(t *testing.T) {
	c := MustDefault()

	out, err := c.Render("matchup.removed_dm", map[string]any{
		"Platforms": []string{"mobile", "steam"},
		"Reason":    "odd",
		"Kept":      []string(nil),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "this week's mobile and steam matchups")
	assert.Contains(t, out, "odd number of players")
	assert.NotContains(t, out, "still stands")

	out, err = c.Render("matchup.removed_dm", map[string]any{
		"Platforms": []string{"steam"},
		"Reason":    "inactive",
		"Kept":      []string{"mobile"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "inactive")
	assert.Contains(t, out, "Your game on mobile still stands.")
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("player:\n  left: \"{{.Name}} is gone\"\n"), 0o600))

	c, err := New(dir)
	require.NoError(t, err)

	out, err := c.Render("player.left", map[string]any{"Name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice is gone", out)
}

func TestOverrides_DuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("player:\n  left: a\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("player:\n  left: b\n"), 0o600))

	_, err := New(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate override key")
}

func TestOverrides_NonStringLeaf(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("player:\n  left: 3\n"), 0o600))

	_, err := New(dir)
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split("", 10))
	assert.Equal(t, []string{"short"}, Split("short", 10))

	text := "aaaa\nbbbb\ncccc\n"
	chunks := Split(text, 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, chunks)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplit_LongLine(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := Split(text, 10)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplit_RuneBoundary(t *testing.T) {
	text := strings.Repeat("é", 8) // 16 bytes
	chunks := Split(text, 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 5)
		assert.True(t, strings.ToValidUTF8(c, "?") == c, "chunk %q splits a rune", c)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}
