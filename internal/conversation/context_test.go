package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOverwritesSetFields(t *testing.T) {
	old := Context{LastTaskID: "t-1", LastTaskName: "Deck", LastEventID: "ev-9"}

	got := Merge(old, Delta{LastTaskID: "t-2", LastTaskName: "Budget"})

	assert.Equal(t, "t-2", got.LastTaskID)
	assert.Equal(t, "Budget", got.LastTaskName)
	assert.Equal(t, "ev-9", got.LastEventID)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, "t-1", old.LastTaskID, "input must not change")
}

func TestMergeEmptyDeltaKeepsContext(t *testing.T) {
	old := Context{Version: Version, LastTaskID: "t-1", LastTaskName: "Deck"}
	assert.Equal(t, old, Merge(old, Delta{}))
}

func TestThenLaterWins(t *testing.T) {
	d := Delta{LastTaskID: "a", LastTaskName: "A"}.
		Then(Delta{LastEventID: "e"}).
		Then(Delta{LastTaskID: "b"})

	assert.Equal(t, Delta{LastTaskID: "b", LastEventID: "e"}, d)
	assert.True(t, Delta{}.IsEmpty())
	assert.False(t, d.IsEmpty())
}

func user(s string) Turn { return Turn{Role: RoleUser, Content: s} }
func assistant(s string) Turn { return Turn{Role: RoleAssistant, Content: s} }

func TestAppendTurnsWindow(t *testing.T) {
	c := Context{ThreadHistory: []Turn{user("1"), assistant("2")}}

	got := AppendTurns(c, 3, user("3"), assistant(""), assistant("4"))

	assert.Equal(t, []Turn{assistant("2"), user("3"), assistant("4")}, got.ThreadHistory)
	assert.Len(t, c.ThreadHistory, 2)
}

func TestNormalize(t *testing.T) {
	history := []Turn{
		assistant("welcome"),
		user("first"),
		user("second"),
		assistant(" "),
		assistant("answer"),
		user("thanks"),
	}

	assert.Equal(t, []Turn{
		user("first\nsecond"),
		assistant("answer"),
		user("thanks"),
	}, Normalize(history))
	assert.Empty(t, Normalize(nil))
}

func TestNormalizeMergedSpeakers(t *testing.T) {
	got := Normalize([]Turn{
		{Role: RoleUser, Speaker: "지민", Content: "a"},
		{Role: RoleUser, Speaker: "지민", Content: "b"},
		{Role: RoleAssistant, Content: "c"},
		{Role: RoleUser, Speaker: "지민", Content: "d"},
		{Role: RoleUser, Speaker: "Alex", Content: "e"},
	})

	assert.Equal(t, "지민", got[0].Speaker)
	assert.Equal(t, "", got[2].Speaker, "merged turns from different speakers lose attribution")
	assert.Equal(t, "d\ne", got[2].Content)
}
