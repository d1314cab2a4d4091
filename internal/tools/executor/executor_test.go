package executor

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paimy-ai/paimy/internal/conversation"
	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/resolver"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// memStore is an in-memory TaskStore.
type memStore struct {
	mu            sync.Mutex
	tasks         map[string]*protocol.Task
	filters       []protocol.TaskFilter
	created       []protocol.NewTask
	ignoreUpdates bool
	staleEcho     bool // apply writes but answer with the task as it was
	nilWrites     bool
	gets          int
	err           error
	nextID        int
}

func newMemStore(tasks ...protocol.Task) *memStore {
	s := &memStore{tasks: make(map[string]*protocol.Task)}
	for i := range tasks {
		t := tasks[i]
		s.tasks[t.ID] = &t
	}
	return s
}

func (s *memStore) QueryTasks(ctx context.Context, f protocol.TaskFilter) ([]protocol.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	if s.err != nil {
		return nil, s.err
	}

	var out []protocol.Task
	for _, t := range s.tasks {
		switch {
		case f.OwnerID != "" && t.OwnerID() != f.OwnerID,
			f.Status != "" && t.Status != f.Status,
			f.ExcludeStatus != "" && t.Status == f.ExcludeStatus,
			f.Priority != "" && t.Priority != f.Priority,
			f.Keyword != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Keyword)),
			f.DueFrom != "" && (t.DueDate == "" || t.DueDate < f.DueFrom),
			f.DueTo != "" && (t.DueDate == "" || t.DueDate > f.DueTo),
			f.Team != "" && t.Team != f.Team:
			continue
		}
		if f.ProjectID != "" && !contains(t.ProjectIDs, f.ProjectID) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) GetTask(ctx context.Context, id string) (*protocol.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.Permanent(apperrors.CodeTaskNotFound, "no page "+id)
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) UpdateTask(ctx context.Context, id string, u protocol.TaskUpdate) (*protocol.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.Permanent(apperrors.CodeTaskNotFound, "no page "+id)
	}
	before := *t
	if !s.ignoreUpdates {
		if u.Status != nil {
			t.Status = *u.Status
		}
		if u.OwnerID != nil {
			t.Owner = &protocol.PersonRef{ID: *u.OwnerID}
		}
		if u.DueDate != nil {
			t.DueDate = *u.DueDate
		}
	}
	switch {
	case s.nilWrites:
		return nil, nil
	case s.staleEcho:
		return &before, nil
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) CreateTask(ctx context.Context, nt protocol.NewTask) (*protocol.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, nt)
	s.nextID++
	t := &protocol.Task{
		ID:          "new-" + strconv.Itoa(s.nextID),
		Title:       nt.Title,
		Status:      nt.Status,
		DueDate:     nt.DueDate,
		Priority:    nt.Priority,
		Description: nt.Description,
		Source:      nt.Source,
		SourceURL:   nt.SourceURL,
		Team:        nt.Team,
	}
	if nt.OwnerID != "" {
		t.Owner = &protocol.PersonRef{ID: nt.OwnerID}
	}
	if nt.ProjectID != "" {
		t.ProjectIDs = []string{nt.ProjectID}
	}
	s.tasks[t.ID] = t
	if s.nilWrites {
		return nil, nil
	}
	cp := *t
	if s.staleEcho {
		cp.Status = protocol.StatusBlocked
	}
	return &cp, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type people []protocol.Person

func (p people) SearchByName(ctx context.Context, name string) ([]protocol.Person, error) {
	var out []protocol.Person
	for _, person := range p {
		if strings.Contains(strings.ToLower(person.DisplayName), strings.ToLower(name)) ||
			strings.Contains(person.StoreName, name) {
			out = append(out, person)
		}
	}
	return out, nil
}

func (p people) TeamOf(ctx context.Context, storeID string) (string, error) {
	for _, person := range p {
		if person.StoreID == storeID {
			return person.Team, nil
		}
	}
	return "", nil
}

type projectList []protocol.Project

func (p projectList) List(ctx context.Context) ([]protocol.Project, error) { return p, nil }

var (
	directory = people{
		{DisplayName: "Jimin", StoreName: "박지민", StoreID: "u-jimin", Team: "Product"},
		{DisplayName: "Cheolsu", StoreName: "김철수", StoreID: "u-kim", Team: "Growth"},
	}
	projects = projectList{
		{ID: "p-web", Name: "Website Renewal", Status: protocol.ProjectActive},
		{ID: "p-ai", Name: "AI Pilot", Status: protocol.ProjectOnHold},
		{ID: "p-old", Name: "Legacy", Status: protocol.ProjectDone},
	}
	jimin = protocol.Requester{ChatID: "U1", DisplayName: "Jimin", StoreID: "u-jimin", MessageURL: "https://chat.example/p1"}
)

func setup(store *memStore) (*Registry, context.Context) {
	// Wednesday 2026-03-04
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	env := &Env{
		Store:    store,
		Resolver: resolver.New(resolver.Config{Tasks: store, People: directory, Projects: projects, Now: func() time.Time { return now }}),
		Roster:   directory,
		Projects: projects,
	}
	reg := NewRegistry()
	for _, tool := range TaskTools(env) {
		reg.Register(tool)
	}
	return reg, WithRequester(context.Background(), jimin)
}

func TestRegistryUnknownTool(t *testing.T) {
	reg, ctx := setup(newMemStore())
	_, err := reg.Execute(ctx, "delete_everything", nil)

	var nf *ToolNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "delete_everything", nf.Name)
	assert.Equal(t, apperrors.CodeToolNotFound, nf.Code())
	assert.Len(t, reg.List(), 8)
}

func TestGetTasksFilters(t *testing.T) {
	store := newMemStore(
		protocol.Task{ID: "t1", Title: "Write launch copy", Status: protocol.StatusInProgress, Owner: &protocol.PersonRef{ID: "u-jimin", Name: "박지민"}, DueDate: "2026-03-05", Priority: protocol.PriorityHigh, ProjectIDs: []string{"p-web"}},
		protocol.Task{ID: "t2", Title: "Review copy", Status: protocol.StatusBacklog, Owner: &protocol.PersonRef{ID: "u-kim"}, DueDate: "2026-03-12"},
	)
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "get_tasks", map[string]any{
		"owner_name":      "me",
		"status":          "in progress",
		"due_date_period": "this_week",
		"priority":        "High",
		"project_name":    "website",
		"limit":           float64(3),
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	f := store.filters[0]
	assert.Equal(t, protocol.TaskFilter{
		OwnerID:   "u-jimin",
		Status:    protocol.StatusInProgress,
		DueFrom:   "2026-03-02",
		DueTo:     "2026-03-08",
		Priority:  protocol.PriorityHigh,
		ProjectID: "p-web",
		Limit:     3,
	}, f)

	data := res.Data.(map[string]any)
	assert.Equal(t, 1, data["count"])
	views := data["tasks"].([]TaskView)
	assert.Equal(t, "Website Renewal", views[0].Project)
	assert.Equal(t, "박지민", views[0].Owner)
	assert.True(t, res.Delta.IsEmpty(), "listing does not pin a task")
}

func TestGetTasksUnknownProjectFails(t *testing.T) {
	store := newMemStore(protocol.Task{ID: "t1", Title: "Write launch copy"})
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "get_tasks", map[string]any{"project_name": "Moonshot"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeProjectNotFound, res.Code)
	assert.Empty(t, store.filters, "no unfiltered query runs in place of the project")
}

func TestGetTasksDefaultsAndBadInput(t *testing.T) {
	store := newMemStore()
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "get_tasks", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 10, store.filters[0].Limit)

	res, err = reg.Execute(ctx, "get_tasks", map[string]any{"status": "Archived"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeInvalidInput, res.Code)

	res, err = reg.Execute(ctx, "get_tasks", map[string]any{"owner_name": "Nobody"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodePersonNotFound, res.Code)
}

func TestGetTaskDetailByName(t *testing.T) {
	store := newMemStore(protocol.Task{ID: "t1", Title: "Budget sheet", Status: protocol.StatusBlocked})
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "get_task_detail", map[string]any{"task_name": "budget"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, conversation.Delta{LastTaskID: "t1", LastTaskName: "Budget sheet"}, res.Delta)

	res, err = reg.Execute(ctx, "get_task_detail", map[string]any{"task_id": "missing"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeTaskNotFound, res.Code)
}

func TestAmbiguousNameReturnsCandidates(t *testing.T) {
	store := newMemStore(
		protocol.Task{ID: "t1", Title: "Deck review", Description: "long text"},
		protocol.Task{ID: "t2", Title: "Deck polish"},
	)
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "update_task_status", map[string]any{"task_name": "Deck", "status": "Done"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeTaskAmbiguous, res.Code)
	require.Len(t, res.Candidates, 2)
	assert.Empty(t, res.Candidates[0].Description)
	assert.NotEmpty(t, res.Hint)
	assert.Equal(t, protocol.Status(""), store.tasks["t1"].Status, "nothing was written")
	assert.Contains(t, res.Payload().Hint, "task_id")
}

func TestUpdateStatusVerified(t *testing.T) {
	store := newMemStore(protocol.Task{ID: "t1", Title: "Ship", Status: protocol.StatusBacklog})
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "update_task_status", map[string]any{"task_id": "t1", "status": "Done"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, protocol.StatusDone, store.tasks["t1"].Status)
	assert.Equal(t, "t1", res.Delta.LastTaskID)
	assert.Equal(t, "Ship", res.Delta.LastTaskName)
}

func TestUpdateStatusMismatch(t *testing.T) {
	store := newMemStore(protocol.Task{ID: "t1", Title: "Ship", Status: protocol.StatusBacklog})
	store.ignoreUpdates = true
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "update_task_status", map[string]any{"task_id": "t1", "status": "Done"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeVerificationMismatch, res.Code)
	assert.Equal(t, "Done", res.Requested)
	assert.Equal(t, "Backlog", res.Observed)
	assert.Equal(t, "t1", res.Delta.LastTaskID)
}

func TestUpdateStatusChecksWriteResponse(t *testing.T) {
	store := newMemStore(protocol.Task{ID: "t1", Title: "Ship", Status: protocol.StatusBacklog})
	store.staleEcho = true
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "update_task_status", map[string]any{"task_id": "t1", "status": "Done"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeVerificationMismatch, res.Code)
	assert.Equal(t, "Done", res.Requested)
	assert.Equal(t, "Backlog", res.Observed)
	assert.Zero(t, store.gets, "the write response is checked without another read")
}

func TestUpdateStatusReadsBackWhenWriteReturnsNothing(t *testing.T) {
	store := newMemStore(protocol.Task{ID: "t1", Title: "Ship", Status: protocol.StatusBacklog})
	store.nilWrites = true
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "update_task_status", map[string]any{"task_id": "t1", "status": "Done"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, store.gets)
}

func TestUpdateOwnerAndDueDate(t *testing.T) {
	store := newMemStore(protocol.Task{ID: "t1", Title: "Ship"})
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "update_task_owner", map[string]any{"task_id": "t1", "owner_name": "김철수"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "u-kim", store.tasks["t1"].OwnerID())

	res, err = reg.Execute(ctx, "update_task_due_date", map[string]any{"task_id": "t1", "due_date": "다음주 금요일"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "2026-03-13", store.tasks["t1"].DueDate)

	res, err = reg.Execute(ctx, "update_task_owner", map[string]any{"task_id": "t1", "owner_name": "Ghost"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "u-kim", store.tasks["t1"].OwnerID())
}

func TestUpdateStatusRequiresStatus(t *testing.T) {
	reg, ctx := setup(newMemStore())
	res, err := reg.Execute(ctx, "update_task_status", map[string]any{"task_id": "t1"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeInvalidInput, res.Code)
}

func TestCreateTaskDefaults(t *testing.T) {
	store := newMemStore()
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "create_task", map[string]any{
		"title":             "Draft FAQ",
		"due_date":          "tomorrow",
		"priority":          "medium",
		"project_name":      "website renewal",
		"participant_names": []any{"김철수", "Nobody"},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	require.Len(t, store.created, 1)
	nt := store.created[0]
	assert.Equal(t, protocol.StatusBacklog, nt.Status)
	assert.Equal(t, "u-jimin", nt.OwnerID, "owner defaults to the requester")
	assert.Equal(t, protocol.SourceChat, nt.Source)
	assert.Equal(t, "https://chat.example/p1", nt.SourceURL)
	assert.Equal(t, "2026-03-05", nt.DueDate)
	assert.Equal(t, protocol.PriorityMedium, nt.Priority)
	assert.Equal(t, "p-web", nt.ProjectID)
	assert.Equal(t, []string{"u-kim"}, nt.ParticipantIDs)
	assert.Equal(t, "Product", nt.Team, "team stamped from the owner's roster entry")

	data := res.Data.(map[string]any)
	assert.Equal(t, "Website Renewal", data["project"])
	assert.Len(t, data["warnings"], 1)
	assert.Equal(t, "Draft FAQ", res.Delta.LastTaskName)
}

func TestCreateTaskExplicitTeamAndOwner(t *testing.T) {
	store := newMemStore()
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "create_task", map[string]any{"title": "Ads", "owner_name": "Cheolsu", "team": "Ops"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "u-kim", store.created[0].OwnerID)
	assert.Equal(t, "Ops", store.created[0].Team)

	res, err = reg.Execute(ctx, "create_task", map[string]any{"description": "no title"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, store.created, 1)
}

func TestCreateTaskChecksCreateResponse(t *testing.T) {
	store := newMemStore()
	store.staleEcho = true
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "create_task", map[string]any{"title": "Draft FAQ"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.CodeVerificationMismatch, res.Code)
	assert.Equal(t, map[string]any{"status": "Backlog"}, res.Requested)
	assert.Equal(t, map[string]any{"status": "Blocked"}, res.Observed)
	assert.Zero(t, store.gets)

	store.staleEcho = false
	store.nilWrites = true
	_, err = reg.Execute(ctx, "create_task", map[string]any{"title": "Draft FAQ"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStoreBadResponse, apperrors.GetCode(err))
}

func TestDailyBriefing(t *testing.T) {
	store := newMemStore(
		protocol.Task{ID: "a", Title: "Due today", Owner: &protocol.PersonRef{ID: "u-jimin"}, DueDate: "2026-03-04", Status: protocol.StatusBacklog},
		protocol.Task{ID: "b", Title: "Week work", Owner: &protocol.PersonRef{ID: "u-jimin"}, DueDate: "2026-03-06", Status: protocol.StatusInProgress},
		protocol.Task{ID: "c", Title: "Late", Owner: &protocol.PersonRef{ID: "u-jimin"}, DueDate: "2026-02-27", Status: protocol.StatusBlocked},
		protocol.Task{ID: "d", Title: "Late but done", Owner: &protocol.PersonRef{ID: "u-jimin"}, DueDate: "2026-02-20", Status: protocol.StatusDone},
		protocol.Task{ID: "e", Title: "Someone else", Owner: &protocol.PersonRef{ID: "u-kim"}, DueDate: "2026-03-04"},
	)
	reg, ctx := setup(store)

	res, err := reg.Execute(ctx, "get_daily_briefing", map[string]any{"user_name": "me"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	b := res.Data.(*Briefing)
	assert.Equal(t, "2026-03-04", b.Date)
	assert.Equal(t, BriefingSummary{TodayCount: 1, WeekCount: 1, OverdueCount: 1}, b.Summary)
	assert.Equal(t, "Late", b.Overdue[0].Name)

	res, err = reg.Execute(ctx, "get_daily_briefing", map[string]any{"user_name": "김철수"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data.(*Briefing).Summary.TodayCount)
}

func TestDailyBriefingUnlinkedRequester(t *testing.T) {
	reg, _ := setup(newMemStore())
	ctx := WithRequester(context.Background(), protocol.Requester{ChatID: "U2"})

	res, err := reg.Execute(ctx, "get_daily_briefing", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestGetProjects(t *testing.T) {
	reg, ctx := setup(newMemStore())

	res, err := reg.Execute(ctx, "get_projects", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data.(map[string]any)["count"])

	res, err = reg.Execute(ctx, "get_projects", map[string]any{"include_on_hold": true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Data.(map[string]any)["count"])
}

func TestStoreFailureIsInfrastructureError(t *testing.T) {
	store := newMemStore()
	store.err = apperrors.Temporary(apperrors.CodeStoreUnavailable, "notion down")
	reg, ctx := setup(store)

	_, err := reg.Execute(ctx, "get_tasks", nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))

	_, err = reg.Execute(ctx, "get_task_detail", map[string]any{"task_name": "anything"})
	require.Error(t, err)
}

func TestArgs(t *testing.T) {
	in := map[string]any{
		"s":    "  text ",
		"n":    float64(7),
		"ns":   "12",
		"b":    "true",
		"list": []any{"a", " ", 3, "b"},
		"csv":  "x, y",
	}
	assert.Equal(t, "text", stringArg(in, "s"))
	assert.Equal(t, 7, intArg(in, "n", 1))
	assert.Equal(t, 12, intArg(in, "ns", 1))
	assert.Equal(t, 1, intArg(in, "missing", 1))
	assert.True(t, boolArg(in, "b"))
	assert.Equal(t, []string{"a", "b"}, stringSliceArg(in, "list"))
	assert.Equal(t, []string{"x", "y"}, stringSliceArg(in, "csv"))
}
