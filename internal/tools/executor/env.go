package executor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/internal/resolver"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// TaskStore is the system of record for tasks.
type TaskStore interface {
	QueryTasks(ctx context.Context, filter protocol.TaskFilter) ([]protocol.Task, error)
	GetTask(ctx context.Context, id string) (*protocol.Task, error)
	UpdateTask(ctx context.Context, id string, update protocol.TaskUpdate) (*protocol.Task, error)
	CreateTask(ctx context.Context, task protocol.NewTask) (*protocol.Task, error)
}

// Roster answers team membership questions.
type Roster interface {
	TeamOf(ctx context.Context, storeID string) (string, error)
}

// ProjectLister lists known projects.
type ProjectLister interface {
	List(ctx context.Context) ([]protocol.Project, error)
}

// Env holds what the task tools need. All fields except Logger are required.
type Env struct {
	Store    TaskStore
	Resolver *resolver.Resolver
	Roster   Roster
	Projects ProjectLister
	Logger   *zap.Logger
}

func (e *Env) log() *zap.Logger {
	return logging.OrNop(e.Logger)
}

// lookupTask resolves the task_id/task_name arguments. A non-nil Result is
// a request-level failure to hand back to the model.
func (e *Env) lookupTask(ctx context.Context, input map[string]any) (resolver.TaskRef, *Result, error) {
	ref, err := e.Resolver.ResolveTask(ctx, stringArg(input, "task_id"), stringArg(input, "task_name"))
	if err != nil {
		res, err := failureFor(err)
		return resolver.TaskRef{}, res, err
	}
	return ref, nil, nil
}

// fetchTask loads a task, mapping not-found onto a failed Result.
func (e *Env) fetchTask(ctx context.Context, id string) (*protocol.Task, *Result, error) {
	task, err := e.Store.GetTask(ctx, id)
	if err != nil {
		res, err := failureFor(err)
		return nil, res, err
	}
	return task, nil, nil
}

// failureFor splits resolution errors into model-facing failures and
// infrastructure errors.
func failureFor(err error) (*Result, error) {
	var amb *resolver.AmbiguousError
	if errors.As(err, &amb) {
		res := NewFailure(apperrors.CodeTaskAmbiguous, amb.Error())
		for _, c := range amb.Candidates {
			res.Candidates = append(res.Candidates, candidate(c))
		}
		res.Hint = amb.Hint()
		return res, nil
	}
	if apperrors.IsNotFound(err) || apperrors.GetCategory(err) == apperrors.CategoryUser {
		res := NewErrorResult(err)
		if res.Code == "" {
			res.Code = apperrors.CodeTaskNotFound
		}
		return res, nil
	}
	return nil, err
}

// candidate strips a task down to what a model needs to ask "which one?".
func candidate(t protocol.Task) protocol.Task {
	c := protocol.Task{ID: t.ID, Title: t.Title, Status: t.Status, DueDate: t.DueDate}
	if t.Owner != nil {
		c.Owner = &protocol.PersonRef{ID: t.Owner.ID, Name: t.Owner.Name}
	}
	return c
}

func unknownPerson(name string) *Result {
	res := NewFailure(apperrors.CodePersonNotFound, fmt.Sprintf("no person named %q in the directory", name))
	res.Hint = "check the spelling or ask who is meant"
	return res
}

func invalidInput(format string, args ...any) *Result {
	return NewFailure(apperrors.CodeInvalidInput, fmt.Sprintf(format, args...))
}

// projectNames maps project ids to names. Failures yield an empty map.
func (e *Env) projectNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	if e.Projects == nil {
		return names
	}
	projects, err := e.Projects.List(ctx)
	if err != nil {
		e.log().Debug("project names unavailable", zap.Error(err))
		return names
	}
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names
}
