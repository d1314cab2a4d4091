package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paimy-ai/paimy/internal/conversation"
	"github.com/paimy-ai/paimy/internal/resolver"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

type projectsFunc func(ctx context.Context) ([]protocol.Project, error)

func (f projectsFunc) Active(ctx context.Context) ([]protocol.Project, error) { return f(ctx) }

type rosterFunc func(ctx context.Context) ([]protocol.Person, error)

func (f rosterFunc) ListActive(ctx context.Context) ([]protocol.Person, error) { return f(ctx) }

var kst = time.FixedZone("KST", 9*60*60)

func newBuilder() *Builder {
	// Wednesday
	now := time.Date(2026, 3, 4, 9, 30, 0, 0, kst)
	b := NewBuilder("Paimy", resolver.New(resolver.Config{Location: kst, Now: func() time.Time { return now }}))
	b.Projects = projectsFunc(func(ctx context.Context) ([]protocol.Project, error) {
		return []protocol.Project{{ID: "p1", Name: "Website Renewal", Owner: "박지민", Deadline: "2026-04-30"}}, nil
	})
	b.Roster = rosterFunc(func(ctx context.Context) ([]protocol.Person, error) {
		return []protocol.Person{
			{StoreID: "u-jimin", StoreName: "박지민", DisplayName: "Jimin", Aliases: []string{"jm"}, Team: "Product"},
			{StoreID: "u-kim", StoreName: "김철수"},
		}, nil
	})
	return b
}

func TestComposeSections(t *testing.T) {
	b := newBuilder()
	out := b.Compose(context.Background(), Input{
		Requester: protocol.Requester{ChatID: "U1", DisplayName: "Jimin", StoreID: "u-jimin"},
		Context:   conversation.Context{LastTaskID: "t1", LastTaskName: "Budget sheet", LastEventID: "ev9"},
	})

	assert.True(t, strings.HasPrefix(out, "Identity:\nYou are Paimy"))
	assert.Contains(t, out, "Current Date:\n2026-03-04 (수요일, Wednesday), timezone KST")
	assert.Contains(t, out, "- 월요일 (Monday): 2026-03-09")
	assert.Contains(t, out, "- 일요일 (Sunday): 2026-03-15")
	assert.Contains(t, out, "- Chat: Jimin (U1)")
	assert.Contains(t, out, "- Task store: 박지민 (u-jimin)")
	assert.Contains(t, out, `- Last task: "Budget sheet" (id t1)`)
	assert.Contains(t, out, "- Last event id: ev9")
	assert.Contains(t, out, "- Website Renewal (PM 박지민, deadline 2026-04-30)")
	assert.Contains(t, out, "- 박지민 / Jimin aka jm [Product]")
	assert.True(t, strings.HasSuffix(out, "- 김철수"))
}

func TestComposeDegradesWithoutSnapshots(t *testing.T) {
	b := newBuilder()
	b.Projects = projectsFunc(func(ctx context.Context) ([]protocol.Project, error) {
		return nil, errors.New("notion down")
	})
	b.Roster = rosterFunc(func(ctx context.Context) ([]protocol.Person, error) {
		return nil, errors.New("db locked")
	})

	out := b.Compose(context.Background(), Input{Requester: protocol.Requester{ChatID: "U2", DisplayName: "Guest"}})

	assert.NotContains(t, out, "Active Projects:")
	assert.NotContains(t, out, "Team:")
	assert.NotContains(t, out, "Conversation:")
	assert.Contains(t, out, "- Task store: not linked")
	assert.Contains(t, out, "Next Week:")
}

func TestComposeTruncatesLongSnapshots(t *testing.T) {
	b := newBuilder()
	b.MaxProjects = 2
	b.Projects = projectsFunc(func(ctx context.Context) ([]protocol.Project, error) {
		return []protocol.Project{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}, nil
	})

	out := b.Compose(context.Background(), Input{})
	assert.Contains(t, out, "Active Projects:\n- A\n- B\n- ... 2 more")
}

func TestNextWeekTableHasSevenDays(t *testing.T) {
	table := newBuilder().nextWeekTable()
	lines := strings.Split(table, "\n")
	assert.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "- 월요일"))
}
