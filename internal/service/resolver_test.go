package service

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-bot/internal/model"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func TestResolve(t *testing.T) {
	players := []*model.Player{
		{ID: 101, Name: "Alice", MobileName: ptr("QueenA")},
		{ID: 102, Name: "alice", SteamName: ptr("al1ce")},
		{ID: 103, Name: "Bob", MobileName: ptr("bobcat")},
		{ID: 104, Name: "Bobby"},
	}

	tests := []struct {
		name  string
		query string
		kind  ResolveKind
		id    int64
		count int
	}{
		{"numeric id", "103", Resolved, 103, 0},
		{"mention", "@bobcat", Resolved, 103, 0},
		{"exact name beats fold", "alice", Resolved, 102, 0},
		{"case-insensitive handle", "QUEENA", Resolved, 101, 0},
		{"folded exact is ambiguous", "ALICE", Ambiguous, 0, 2},
		{"unique substring", "al1", Resolved, 102, 0},
		{"folded exact before substring", "bob", Resolved, 103, 0},
		{"ambiguous partial", "bo", Ambiguous, 0, 2},
		{"unknown", "carol", NotFound, 0, 0},
		{"blank", "  ", NotFound, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.query, players)
			require.Equal(t, tt.kind, res.Kind)
			if tt.kind == Resolved {
				assert.Equal(t, tt.id, res.Player.ID)
			}
			assert.Len(t, res.Candidates, tt.count)
		})
	}
}

func TestResolutionErr(t *testing.T) {
	assert.NoError(t, Resolution{Kind: Resolved}.Err("x"))
	assert.ErrorIs(t, Resolution{Kind: NotFound}.Err("x"), ErrNotFound)
	assert.ErrorIs(t, Resolution{Kind: Ambiguous, Candidates: []*model.Player{{Name: "a"}, {Name: "b"}}}.Err("x"), ErrAmbiguousTarget)
}

func TestLooksLikeGameName(t *testing.T) {
	assert.True(t, LooksLikeGameName("Rise of the Dragons"))
	assert.True(t, LooksLikeGameName("swamp of wonder"))
	assert.False(t, LooksLikeGameName("xyz"))
}

func TestCleanName(t *testing.T) {
	n, err := cleanName("  a   b ")
	require.NoError(t, err)
	assert.Equal(t, "a b", n)

	_, err = cleanName("")
	assert.ErrorIs(t, err, ErrEmptyName)

	long := make([]byte, maxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = cleanName(string(long))
	assert.ErrorIs(t, err, ErrNameTooLong)
}
