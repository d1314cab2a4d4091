package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/conversation"
	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/tools/schemas"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

func taskDelta(t *protocol.Task) conversation.Delta {
	return conversation.Delta{LastTaskID: t.ID, LastTaskName: t.Title}
}

// GetTasks lists tasks matching optional filters.
type GetTasks struct{ Env *Env }

func (t *GetTasks) Name() string { return schemas.GetTasks }

func (t *GetTasks) Description() string { return "List tasks with filters" }

func (t *GetTasks) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	env := t.Env
	filter := protocol.TaskFilter{
		Keyword: stringArg(input, "keyword"),
		Team:    stringArg(input, "team"),
		Limit:   intArg(input, "limit", defaultListLimit),
	}
	if filter.Limit < 1 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	if name := stringArg(input, "owner_name"); name != "" {
		id, ok, err := env.Resolver.ResolveOwner(ctx, name, RequesterFrom(ctx))
		if err != nil {
			return nil, err
		}
		if !ok {
			return unknownPerson(name), nil
		}
		filter.OwnerID = id
	}

	if s := stringArg(input, "status"); s != "" {
		status, ok := protocol.ParseStatus(s)
		if !ok {
			return invalidInput("unknown status %q", s), nil
		}
		filter.Status = status
	}

	if period := stringArg(input, "due_date_period"); period != "" {
		from, to, ok := env.Resolver.DateRange(period)
		if !ok {
			return invalidInput("unknown due_date_period %q", period), nil
		}
		filter.DueFrom, filter.DueTo = from, to
	}

	if p := stringArg(input, "priority"); p != "" {
		priority, ok := protocol.ParsePriority(p)
		if !ok {
			return invalidInput("unknown priority %q", p), nil
		}
		filter.Priority = priority
	}

	if name := stringArg(input, "project_name"); name != "" {
		project, ok, err := env.Resolver.ResolveProject(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return NewFailure(apperrors.CodeProjectNotFound, fmt.Sprintf("no project named %q", name)), nil
		}
		filter.ProjectID = project.ID
	}

	tasks, err := env.Store.QueryTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	return NewSuccessResult(map[string]any{
		"tasks": viewsOf(tasks, env.projectNames(ctx)),
		"count": len(tasks),
	}), nil
}

// GetTaskDetail shows one task.
type GetTaskDetail struct{ Env *Env }

func (t *GetTaskDetail) Name() string { return schemas.GetTaskDetail }

func (t *GetTaskDetail) Description() string { return "Show one task" }

func (t *GetTaskDetail) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	ref, failed, err := t.Env.lookupTask(ctx, input)
	if failed != nil || err != nil {
		return failed, err
	}

	task := ref.Task
	if task == nil {
		if task, failed, err = t.Env.fetchTask(ctx, ref.ID); failed != nil || err != nil {
			return failed, err
		}
	}

	return NewSuccessResult(map[string]any{
		"task": viewOf(*task, t.Env.projectNames(ctx)),
	}).WithDelta(taskDelta(task)), nil
}

// UpdateTaskStatus changes a task's status.
type UpdateTaskStatus struct{ Env *Env }

func (t *UpdateTaskStatus) Name() string { return schemas.UpdateTaskStatus }

func (t *UpdateTaskStatus) Description() string { return "Change a task's status" }

func (t *UpdateTaskStatus) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	raw := stringArg(input, "status")
	if raw == "" {
		return invalidInput("status is required"), nil
	}
	status, ok := protocol.ParseStatus(raw)
	if !ok {
		return invalidInput("unknown status %q", raw), nil
	}

	return t.Env.applyUpdate(ctx, input, protocol.TaskUpdate{Status: &status}, func(observed *protocol.Task) (any, any, bool) {
		return string(status), string(observed.Status), observed.Status == status
	})
}

// UpdateTaskOwner reassigns a task.
type UpdateTaskOwner struct{ Env *Env }

func (t *UpdateTaskOwner) Name() string { return schemas.UpdateTaskOwner }

func (t *UpdateTaskOwner) Description() string { return "Change a task's owner" }

func (t *UpdateTaskOwner) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	name := stringArg(input, "owner_name")
	if name == "" {
		return invalidInput("owner_name is required"), nil
	}
	ownerID, ok, err := t.Env.Resolver.ResolveOwner(ctx, name, RequesterFrom(ctx))
	if err != nil {
		return nil, err
	}
	if !ok {
		return unknownPerson(name), nil
	}

	return t.Env.applyUpdate(ctx, input, protocol.TaskUpdate{OwnerID: &ownerID}, func(observed *protocol.Task) (any, any, bool) {
		return ownerID, observed.OwnerID(), observed.OwnerID() == ownerID
	})
}

// UpdateTaskDueDate moves a task's due date.
type UpdateTaskDueDate struct{ Env *Env }

func (t *UpdateTaskDueDate) Name() string { return schemas.UpdateTaskDueDate }

func (t *UpdateTaskDueDate) Description() string { return "Change a task's due date" }

func (t *UpdateTaskDueDate) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	raw := stringArg(input, "due_date")
	if raw == "" {
		return invalidInput("due_date is required"), nil
	}
	due := t.Env.Resolver.ResolveDueDate(raw)

	return t.Env.applyUpdate(ctx, input, protocol.TaskUpdate{DueDate: &due}, func(observed *protocol.Task) (any, any, bool) {
		return due, observed.DueDate, observed.DueDate == due
	})
}

// verifyFunc compares the requested change with a read-back task.
type verifyFunc func(observed *protocol.Task) (requested, got any, ok bool)

// applyUpdate resolves the task, writes the update and checks the task the
// store returned from the write. A store that returns nothing is read back
// with GetTask. A mismatch is reported as a failure.
func (e *Env) applyUpdate(ctx context.Context, input map[string]any, update protocol.TaskUpdate, verify verifyFunc) (*Result, error) {
	ref, failed, err := e.lookupTask(ctx, input)
	if failed != nil || err != nil {
		return failed, err
	}

	observed, err := e.Store.UpdateTask(ctx, ref.ID, update)
	if err != nil {
		return failureFor(err)
	}
	if observed == nil {
		if observed, failed, err = e.fetchTask(ctx, ref.ID); failed != nil || err != nil {
			return failed, err
		}
	}

	delta := taskDelta(observed)
	requested, got, ok := verify(observed)
	if !ok {
		e.log().Warn("task update did not stick",
			zap.String("task", ref.ID),
			zap.Any("requested", requested),
			zap.Any("observed", got))
		res := NewFailure(apperrors.CodeVerificationMismatch, "the task store did not apply the change")
		res.Requested = requested
		res.Observed = got
		return res.WithDelta(delta), nil
	}

	return NewSuccessResult(map[string]any{
		"task": viewOf(*observed, e.projectNames(ctx)),
	}).WithDelta(delta), nil
}
