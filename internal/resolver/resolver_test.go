package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

type fakeTasks struct {
	byKeyword map[string][]protocol.Task
	queries   []protocol.TaskFilter
	err       error
}

func (f *fakeTasks) QueryTasks(ctx context.Context, filter protocol.TaskFilter) ([]protocol.Task, error) {
	f.queries = append(f.queries, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.byKeyword[filter.Keyword], nil
}

type fakePeople []protocol.Person

func (f fakePeople) SearchByName(ctx context.Context, name string) ([]protocol.Person, error) {
	var out []protocol.Person
	needle := strings.ToLower(name)
	for _, p := range f {
		hay := []string{p.DisplayName, p.StoreName}
		hay = append(hay, p.Aliases...)
		for _, h := range hay {
			if strings.Contains(strings.ToLower(h), needle) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

type fakeProjects []protocol.Project

func (f fakeProjects) List(ctx context.Context) ([]protocol.Project, error) { return f, nil }

var requester = protocol.Requester{ChatID: "U1", DisplayName: "지민", StoreID: "notion-jimin"}

func newResolver(tasks *fakeTasks, people fakePeople, projects fakeProjects) *Resolver {
	return New(Config{Tasks: tasks, People: people, Projects: projects})
}

func TestResolveOwner(t *testing.T) {
	people := fakePeople{
		{DisplayName: "Kim Cheolsu", StoreName: "김철수", StoreID: "notion-kim", Aliases: []string{"철수"}},
		{DisplayName: "Kim Younghee", StoreName: "김영희", StoreID: "notion-younghee"},
		{DisplayName: "Unlinked", StoreName: "미연동"},
	}
	r := newResolver(&fakeTasks{}, people, nil)
	ctx := context.Background()

	for _, self := range []string{"me", "ME", "나", "본인", " 내 "} {
		id, ok, err := r.ResolveOwner(ctx, self, requester)
		require.NoError(t, err)
		assert.True(t, ok, self)
		assert.Equal(t, "notion-jimin", id, self)
	}

	id, ok, err := r.ResolveOwner(ctx, "철수", requester)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "notion-kim", id)

	id, ok, err = r.ResolveOwner(ctx, "kim", requester)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "notion-kim", id, "first directory match wins")

	_, ok, err = r.ResolveOwner(ctx, "미연동", requester)
	require.NoError(t, err)
	assert.False(t, ok, "people without a store id cannot own tasks")

	_, ok, err = r.ResolveOwner(ctx, "nobody", requester)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = r.ResolveOwner(ctx, "me", protocol.Requester{ChatID: "U9"})
	assert.False(t, ok, "unlinked requester")
}

func TestResolveTaskExplicitIDSkipsLookup(t *testing.T) {
	tasks := &fakeTasks{}
	ref, err := newResolver(tasks, nil, nil).ResolveTask(context.Background(), "page-1", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "page-1", ref.ID)
	assert.Nil(t, ref.Task)
	assert.Empty(t, tasks.queries)
}

func TestResolveTaskRequiresReference(t *testing.T) {
	_, err := newResolver(&fakeTasks{}, nil, nil).ResolveTask(context.Background(), "", "  ")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolveTaskProgressiveNarrowing(t *testing.T) {
	tasks := &fakeTasks{byKeyword: map[string][]protocol.Task{
		"Quarterly report": {{ID: "t1", Title: "Quarterly report draft"}},
	}}
	ref, err := newResolver(tasks, nil, nil).ResolveTask(context.Background(), "", "Quarterly report 2")
	require.NoError(t, err)
	assert.Equal(t, "t1", ref.ID)
	assert.Equal(t, "Quarterly report draft", ref.Name)

	require.Len(t, tasks.queries, 2)
	assert.Equal(t, protocol.TaskFilter{Keyword: "Quarterly report 2", Limit: 5}, tasks.queries[0])
	assert.Equal(t, protocol.TaskFilter{Keyword: "Quarterly report", Limit: 10}, tasks.queries[1])
}

func TestResolveTaskFirstWordStep(t *testing.T) {
	tasks := &fakeTasks{byKeyword: map[string][]protocol.Task{
		"온보딩": {{ID: "t7", Title: "온보딩 문서 정리"}},
	}}
	ref, err := newResolver(tasks, nil, nil).ResolveTask(context.Background(), "", "온보딩 가이드")
	require.NoError(t, err)
	assert.Equal(t, "t7", ref.ID)
	require.Len(t, tasks.queries, 2, "no trailing number, so the strip step is skipped")
	assert.Equal(t, "온보딩", tasks.queries[1].Keyword)
	assert.Equal(t, 10, tasks.queries[1].Limit)
}

func TestResolveTaskExactMatchWins(t *testing.T) {
	tasks := &fakeTasks{byKeyword: map[string][]protocol.Task{
		"Deck": {{ID: "a", Title: "Deck review"}, {ID: "b", Title: " deck "}},
	}}
	ref, err := newResolver(tasks, nil, nil).ResolveTask(context.Background(), "", "Deck")
	require.NoError(t, err)
	assert.Equal(t, "b", ref.ID)
}

func TestResolveTaskAmbiguous(t *testing.T) {
	candidates := []protocol.Task{{ID: "a", Title: "Deck review"}, {ID: "b", Title: "Deck polish"}}
	tasks := &fakeTasks{byKeyword: map[string][]protocol.Task{"Deck": candidates}}

	_, err := newResolver(tasks, nil, nil).ResolveTask(context.Background(), "", "Deck")
	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, candidates, amb.Candidates)
	assert.NotEmpty(t, amb.Hint())
}

func TestResolveTaskIdenticalTitlesStayAmbiguous(t *testing.T) {
	tasks := &fakeTasks{byKeyword: map[string][]protocol.Task{
		"주간 보고": {
			{ID: "a", Title: "주간 보고"},
			{ID: "b", Title: "주간 보고"},
			{ID: "c", Title: "주간 보고 초안"},
		},
	}}

	ref, err := newResolver(tasks, nil, nil).ResolveTask(context.Background(), "", "주간 보고")
	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.Empty(t, ref.ID)
	assert.Equal(t, []protocol.Task{{ID: "a", Title: "주간 보고"}, {ID: "b", Title: "주간 보고"}}, amb.Candidates)
}

func TestResolveTaskNotFound(t *testing.T) {
	tasks := &fakeTasks{}
	_, err := newResolver(tasks, nil, nil).ResolveTask(context.Background(), "", "Ghost task 3")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Len(t, tasks.queries, 3)
}

func TestResolveTaskStoreFailurePropagates(t *testing.T) {
	storeErr := apperrors.Temporary(apperrors.CodeStoreUnavailable, "502")
	_, err := newResolver(&fakeTasks{err: storeErr}, nil, nil).ResolveTask(context.Background(), "", "Deck")
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, apperrors.IsNotFound(err))
}

func TestResolveProject(t *testing.T) {
	projects := fakeProjects{
		{ID: "p1", Name: "Paimy Beta"},
		{ID: "p2", Name: "Paimy"},
		{ID: "p3", Name: "Website Renewal"},
	}
	r := newResolver(&fakeTasks{}, nil, projects)
	ctx := context.Background()

	p, ok, err := r.ResolveProject(ctx, "paimy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p2", p.ID, "exact beats substring")

	p, ok, _ = r.ResolveProject(ctx, "renewal")
	assert.True(t, ok)
	assert.Equal(t, "p3", p.ID)

	_, ok, _ = r.ResolveProject(ctx, "unknown")
	assert.False(t, ok)
}

func TestResolveProjectPrefersLiveProjects(t *testing.T) {
	projects := fakeProjects{
		{ID: "old", Name: "Onboarding", Status: protocol.ProjectDone},
		{ID: "new", Name: "Onboarding", Status: protocol.ProjectActive},
		{ID: "paused", Name: "Onboarding v2", Status: protocol.ProjectOnHold},
		{ID: "archive", Name: "Archive 2023", Status: "Archived"},
	}
	r := newResolver(&fakeTasks{}, nil, projects)
	ctx := context.Background()

	p, ok, err := r.ResolveProject(ctx, "onboarding")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", p.ID)

	p, ok, _ = r.ResolveProject(ctx, "v2")
	require.True(t, ok)
	assert.Equal(t, "paused", p.ID)

	p, ok, _ = r.ResolveProject(ctx, "archive")
	require.True(t, ok)
	assert.Equal(t, "archive", p.ID, "finished projects still resolve when nothing live matches")
}

func clockAt(s string) *Resolver {
	seoul := time.FixedZone("KST", 9*3600)
	now, err := time.ParseInLocation("2006-01-02 15:04", s, seoul)
	if err != nil {
		panic(err)
	}
	return New(Config{Location: seoul, Now: func() time.Time { return now }})
}

func TestResolveDueDate(t *testing.T) {
	// 2026-03-04 is a Wednesday.
	r := clockAt("2026-03-04 23:30")

	cases := []struct{ in, want string }{
		{"2026-12-25", "2026-12-25"},
		{"today", "2026-03-04"},
		{"오늘", "2026-03-04"},
		{"Tomorrow", "2026-03-05"},
		{"내일", "2026-03-05"},
		{"모레", "2026-03-06"},
		{"next_monday", "2026-03-09"},
		{"next monday", "2026-03-09"},
		{"next wednesday", "2026-03-11"},
		{"this friday", "2026-03-06"},
		{"this monday", "2026-03-02"},
		{"다음주 월요일", "2026-03-09"},
		{"다음주 일요일", "2026-03-15"},
		{"다음 주 금요일", "2026-03-13"},
		{"이번주 월요일", "2026-03-02"},
		{"이번주 금요일까지", "2026-03-06"},
		{"3월 10일", "2026-03-10"},
		{"3월 4일", "2026-03-04"},
		{"2월 1일", "2027-02-01"},
		{"2월 30일", "2026-03-04"},
		{"someday", "2026-03-04"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.ResolveDueDate(tc.in), tc.in)
	}
}

func TestNextWeekdayIsNeverToday(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) // Sunday
	for i := 0; i < 7; i++ {
		today := start.AddDate(0, 0, i)
		got := NextWeekday(today, today.Weekday())
		assert.Equal(t, 7, int(got.Sub(today).Hours()/24), today.Weekday().String())
	}

	sunday := start
	assert.Equal(t, "2026-03-02", NextWeekday(sunday, time.Monday).Format(DateLayout))
	assert.Equal(t, "2026-02-23", ThisWeekday(sunday, time.Monday).Format(DateLayout))
}

func TestDateRange(t *testing.T) {
	r := clockAt("2026-03-04 09:00")

	from, to, ok := r.DateRange("today")
	assert.True(t, ok)
	assert.Equal(t, [2]string{"2026-03-04", "2026-03-04"}, [2]string{from, to})

	from, to, _ = r.DateRange("this_week")
	assert.Equal(t, [2]string{"2026-03-02", "2026-03-08"}, [2]string{from, to})

	from, to, _ = r.DateRange("next_week")
	assert.Equal(t, [2]string{"2026-03-09", "2026-03-15"}, [2]string{from, to})

	_, _, ok = r.DateRange("last_week")
	assert.False(t, ok)

	sunday := clockAt("2026-03-08 09:00")
	from, to, _ = sunday.DateRange("next_week")
	assert.Equal(t, [2]string{"2026-03-09", "2026-03-15"}, [2]string{from, to})
	assert.Equal(t, "2026-03-07", sunday.Yesterday())
}

func TestNextWeekDates(t *testing.T) {
	days := clockAt("2026-03-04 09:00").NextWeekDates()
	require.Len(t, days, 7)
	assert.Equal(t, DayDate{Weekday: time.Monday, Date: "2026-03-09"}, days[0])
	assert.Equal(t, DayDate{Weekday: time.Sunday, Date: "2026-03-15"}, days[6])
}
