package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/resolver"
	"github.com/paimy-ai/paimy/internal/tools/schemas"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// Briefing is one person's daily summary.
type Briefing struct {
	Date     string          `json:"date"`
	Today    []TaskView      `json:"today"`
	ThisWeek []TaskView      `json:"this_week"`
	Overdue  []TaskView      `json:"overdue"`
	Summary  BriefingSummary `json:"summary"`
}

// BriefingSummary counts each briefing section.
type BriefingSummary struct {
	TodayCount   int `json:"today_count"`
	WeekCount    int `json:"week_count"`
	OverdueCount int `json:"overdue_count"`
}

// IsEmpty reports whether there is nothing to brief about.
func (b *Briefing) IsEmpty() bool {
	return b.Summary.TodayCount+b.Summary.WeekCount+b.Summary.OverdueCount == 0
}

// Briefing builds the daily summary for ownerID: tasks due today,
// in-progress tasks due this week, and unfinished tasks already overdue.
func (e *Env) Briefing(ctx context.Context, ownerID string) (*Briefing, error) {
	r := e.Resolver
	today := r.TodayString()
	weekFrom, weekTo, _ := r.DateRange(schemas.PeriodThisWeek)

	filters := []protocol.TaskFilter{
		{OwnerID: ownerID, DueFrom: today, DueTo: today, Limit: 20},
		{OwnerID: ownerID, Status: protocol.StatusInProgress, DueFrom: weekFrom, DueTo: weekTo, Limit: 20},
		{OwnerID: ownerID, DueTo: r.Yesterday(), ExcludeStatus: protocol.StatusDone, Limit: 10},
	}

	results := make([][]protocol.Task, len(filters))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range filters {
		g.Go(func() error {
			tasks, err := e.Store.QueryTasks(gctx, f)
			if err != nil {
				return err
			}
			results[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := e.projectNames(ctx)
	b := &Briefing{
		Date:     today,
		Today:    viewsOf(results[0], names),
		ThisWeek: viewsOf(results[1], names),
		Overdue:  viewsOf(results[2], names),
	}
	b.Summary = BriefingSummary{
		TodayCount:   len(b.Today),
		WeekCount:    len(b.ThisWeek),
		OverdueCount: len(b.Overdue),
	}
	return b, nil
}

// GetDailyBriefing summarizes the day for a person.
type GetDailyBriefing struct{ Env *Env }

func (t *GetDailyBriefing) Name() string { return schemas.GetDailyBriefing }

func (t *GetDailyBriefing) Description() string { return "Daily task briefing" }

func (t *GetDailyBriefing) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	requester := RequesterFrom(ctx)
	target := requester.StoreID

	if name := stringArg(input, "user_name"); name != "" && !resolver.IsSelf(name) {
		id, ok, err := t.Env.Resolver.ResolveOwner(ctx, name, requester)
		if err != nil {
			return nil, err
		}
		if !ok {
			return unknownPerson(name), nil
		}
		target = id
	}

	if target == "" {
		return NewFailure(apperrors.CodePersonNotFound, "the requester is not linked to a task-store account"), nil
	}

	b, err := t.Env.Briefing(ctx, target)
	if err != nil {
		return nil, err
	}
	return NewSuccessResult(b), nil
}

// GetProjects lists active projects, optionally with on-hold ones.
type GetProjects struct{ Env *Env }

func (t *GetProjects) Name() string { return schemas.GetProjects }

func (t *GetProjects) Description() string { return "List projects" }

func (t *GetProjects) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	projects, err := t.Env.Projects.List(ctx)
	if err != nil {
		return nil, err
	}

	includeOnHold := boolArg(input, "include_on_hold")
	out := make([]protocol.Project, 0, len(projects))
	for _, p := range projects {
		if p.Status == protocol.ProjectActive || includeOnHold && p.Status == protocol.ProjectOnHold {
			out = append(out, p)
		}
	}

	return NewSuccessResult(map[string]any{
		"projects": out,
		"count":    len(out),
	}), nil
}

// TaskTools returns every task tool bound to env.
func TaskTools(env *Env) []Tool {
	return []Tool{
		&GetTasks{Env: env},
		&GetTaskDetail{Env: env},
		&UpdateTaskStatus{Env: env},
		&UpdateTaskOwner{Env: env},
		&UpdateTaskDueDate{Env: env},
		&CreateTask{Env: env},
		&GetDailyBriefing{Env: env},
		&GetProjects{Env: env},
	}
}
