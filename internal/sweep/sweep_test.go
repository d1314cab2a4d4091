package sweep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/tools/executor"
	"github.com/paimy-ai/paimy/internal/tools/schemas"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticPeople []protocol.Person

func (p staticPeople) ListActive(ctx context.Context) ([]protocol.Person, error) {
	return p, nil
}

// briefings answers get_daily_briefing per store id.
type briefings struct {
	mu       sync.Mutex
	byID     map[string]*executor.Briefing
	errs     map[string]error
	seen     []protocol.Requester
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (b *briefings) Execute(ctx context.Context, name string, input map[string]any) (*executor.Result, error) {
	if name != schemas.GetDailyBriefing {
		return nil, &executor.ToolNotFoundError{Name: name}
	}
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	r := executor.RequesterFrom(ctx)
	b.mu.Lock()
	b.seen = append(b.seen, r)
	b.mu.Unlock()

	if err := b.errs[r.StoreID]; err != nil {
		return nil, err
	}
	brief, ok := b.byID[r.StoreID]
	if !ok {
		brief = &executor.Briefing{Date: "2026-03-04"}
	}
	return executor.NewSuccessResult(brief), nil
}

type reminderLog struct {
	mu   sync.Mutex
	sent map[string]bool
}

func newReminderLog(keys ...string) *reminderLog {
	l := &reminderLog{sent: map[string]bool{}}
	for _, k := range keys {
		l.sent[k] = true
	}
	return l
}

func (l *reminderLog) WasReminded(ctx context.Context, kind, person, ref, day string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent[kind+"/"+person+"/"+day], nil
}

func (l *reminderLog) MarkReminded(ctx context.Context, kind, person, ref, day string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := kind + "/" + person + "/" + day
	if l.sent[key] {
		return false, nil
	}
	l.sent[key] = true
	return true, nil
}

type inbox struct {
	mu   sync.Mutex
	msgs map[string]string
	fail string
}

func (i *inbox) Notify(ctx context.Context, to protocol.Person, text string) error {
	if to.ChatID == i.fail {
		return errors.New("chat unavailable")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs[to.ChatID] = text
	return nil
}

var (
	fixedNow = func() time.Time { return time.Date(2026, 3, 4, 0, 30, 0, 0, time.UTC) }
	kst      = time.FixedZone("KST", 9*3600)
)

func busy() *executor.Briefing {
	return &executor.Briefing{
		Date:    "2026-03-04",
		Today:   []executor.TaskView{{Name: "Landing page copy", URL: "https://notion.so/t-1"}},
		Overdue: []executor.TaskView{{Name: "Invoice", DueDate: "2026-03-01", Project: "Ops"}},
		Summary: executor.BriefingSummary{TodayCount: 1, OverdueCount: 1},
	}
}

func person(chat, store, name string) protocol.Person {
	return protocol.Person{ChatID: chat, StoreID: store, DisplayName: name, StoreName: name, Active: true}
}

func TestRunDeliversAndRecords(t *testing.T) {
	people := staticPeople{
		person("U1", "u-1", "박지민"),
		person("U2", "u-2", "김철수"),
		person("U3", "", "Guest"),
		person("U4", "u-4", "이영희"),
	}
	tools := &briefings{byID: map[string]*executor.Briefing{"u-1": busy(), "u-4": busy()}}
	log := newReminderLog("morning_briefing/U4/2026-03-04")
	box := &inbox{msgs: map[string]string{}}

	s := New(Config{People: people, Tools: tools, Reminders: log, Notifier: box, Location: kst, Now: fixedNow, BatchDelay: 0})
	report, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "2026-03-04", report.Day)
	statuses := make([]Status, len(report.Deliveries))
	for i, d := range report.Deliveries {
		statuses[i] = d.Status
	}
	assert.Equal(t, []Status{StatusSent, StatusEmpty, StatusUnlinked, StatusDuplicate}, statuses)

	require.Len(t, box.msgs, 1)
	assert.Contains(t, box.msgs["U1"], "박지민님")
	assert.True(t, log.sent["morning_briefing/U1/2026-03-04"])
	assert.False(t, log.sent["morning_briefing/U2/2026-03-04"])

	// the tool runs on behalf of the person being briefed
	require.Len(t, tools.seen, 2)
	for _, r := range tools.seen {
		assert.NotEmpty(t, r.StoreID)
	}
}

func TestRunIsIdempotentPerDay(t *testing.T) {
	people := staticPeople{person("U1", "u-1", "박지민")}
	tools := &briefings{byID: map[string]*executor.Briefing{"u-1": busy()}}
	log := newReminderLog()
	box := &inbox{msgs: map[string]string{}}
	s := New(Config{People: people, Tools: tools, Reminders: log, Notifier: box, Now: fixedNow})

	first, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)
	second, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Count(StatusSent))
	assert.Equal(t, 1, second.Count(StatusDuplicate))
}

func TestDryRunNeitherSendsNorRecords(t *testing.T) {
	people := staticPeople{person("U1", "u-1", "박지민")}
	tools := &briefings{byID: map[string]*executor.Briefing{"u-1": busy()}}
	log := newReminderLog()

	s := New(Config{People: people, Tools: tools, Reminders: log, Now: fixedNow})
	report, err := s.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	require.Len(t, report.Deliveries, 1)
	assert.Equal(t, StatusPreviewed, report.Deliveries[0].Status)
	assert.Contains(t, report.Deliveries[0].Text, "Landing page copy")
	assert.Empty(t, log.sent)
}

func TestFailuresAreCollected(t *testing.T) {
	people := staticPeople{
		person("U1", "u-1", "박지민"),
		person("U2", "u-2", "김철수"),
		person("U3", "u-3", "이영희"),
	}
	tools := &briefings{
		byID: map[string]*executor.Briefing{"u-2": busy(), "u-3": busy()},
		errs: map[string]error{"u-1": apperrors.Temporary(apperrors.CodeStoreUnavailable, "notion down")},
	}
	box := &inbox{msgs: map[string]string{}, fail: "U3"}
	log := newReminderLog()

	s := New(Config{People: people, Tools: tools, Reminders: log, Notifier: box, Now: fixedNow})
	report, err := s.Run(context.Background(), Options{})
	require.NoError(t, err)

	failures := report.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "U1", failures[0].Person.ChatID)
	assert.True(t, apperrors.HasCode(failures[0].Err, apperrors.CodeStoreUnavailable))
	assert.Equal(t, "U3", failures[1].Person.ChatID)
	assert.Equal(t, 1, report.Count(StatusSent))
	assert.False(t, log.sent["morning_briefing/U3/2026-03-04"])
}

func TestBatchesBoundConcurrency(t *testing.T) {
	var people staticPeople
	for i := 0; i < 7; i++ {
		people = append(people, person(fmt.Sprintf("U%d", i), fmt.Sprintf("u-%d", i), "p"))
	}
	tools := &briefings{}

	s := New(Config{People: people, Tools: tools, Reminders: newReminderLog(), BatchSize: 3, BatchDelay: time.Millisecond, Now: fixedNow})
	report, err := s.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 7, report.Count(StatusEmpty))
	assert.LessOrEqual(t, tools.peak.Load(), int32(3))
}

func TestCanceledBetweenBatches(t *testing.T) {
	people := staticPeople{person("U1", "u-1", "a"), person("U2", "u-2", "b")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{People: people, Tools: &briefings{}, Reminders: newReminderLog(), BatchSize: 1, BatchDelay: time.Hour, Now: fixedNow})
	_, err := s.Run(ctx, Options{DryRun: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotifierRequiredForRealRuns(t *testing.T) {
	s := New(Config{People: staticPeople{}, Tools: &briefings{}, Reminders: newReminderLog()})
	_, err := s.Run(context.Background(), Options{})
	assert.Equal(t, apperrors.CodeConfigInvalid, apperrors.GetCode(err))
}

func TestRender(t *testing.T) {
	text := Render("박지민", busy())
	assert.Equal(t, "좋은 아침입니다, 박지민님! 2026-03-04 업무 브리핑입니다.\n"+
		"\n*오늘 마감* (1)\n"+
		"• Landing page copy <https://notion.so/t-1>\n"+
		"\n*지연된 업무* (1)\n"+
		"• Invoice (마감 2026-03-01) [Ops]", text)
}

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriterNotifier(&buf)
	require.NoError(t, n.Notify(context.Background(), person("U1", "u-1", "박지민"), "hello"))
	assert.Equal(t, "── to 박지민 (U1)\nhello\n\n", buf.String())
}
