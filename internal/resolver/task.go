package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

var trailingNumber = regexp.MustCompile(`\s*\d+$`)

// AmbiguousError reports a task name that matched several tasks.
type AmbiguousError struct {
	Name       string
	Candidates []protocol.Task
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d tasks match %q", len(e.Candidates), e.Name)
}

// Hint tells the caller how to disambiguate.
func (e *AmbiguousError) Hint() string {
	return "several tasks match; ask which one and retry with its task_id"
}

// TaskRef is a resolved task reference. Task is nil when the id was given
// explicitly and never looked up.
type TaskRef struct {
	ID   string
	Name string
	Task *protocol.Task
}

// ResolveTask resolves a task by explicit id, or by name with progressive
// narrowing: the full name, then the name without a trailing number, then
// its first word. It returns *AmbiguousError for several candidates and a
// TASK_NOT_FOUND AppError for none. Other errors come from the store.
func (r *Resolver) ResolveTask(ctx context.Context, id, name string) (TaskRef, error) {
	if id = strings.TrimSpace(id); id != "" {
		return TaskRef{ID: id}, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return TaskRef{}, errors.User(errors.CodeTaskNotFound, "task id or name required")
	}

	tasks, err := r.narrow(ctx, name)
	if err != nil {
		return TaskRef{}, err
	}

	switch len(tasks) {
	case 0:
		return TaskRef{}, errors.NewBuilder(errors.CodeTaskNotFound, fmt.Sprintf("no task matches %q", name)).
			User().
			WithSuggestion("search with get_tasks first").
			Build()
	case 1:
		return refOf(tasks[0]), nil
	}

	want := strings.ToLower(name)
	var exact []protocol.Task
	for _, t := range tasks {
		if strings.ToLower(strings.TrimSpace(t.Title)) == want {
			exact = append(exact, t)
		}
	}
	switch len(exact) {
	case 0:
	case 1:
		return refOf(exact[0]), nil
	default:
		// identical titles are still ambiguous; only the duplicates are offered
		tasks = exact
	}

	r.logger.Debug("task name is ambiguous", zap.String("name", name), zap.Int("candidates", len(tasks)))
	return TaskRef{}, &AmbiguousError{Name: name, Candidates: tasks}
}

// narrow runs the search steps until one returns something.
func (r *Resolver) narrow(ctx context.Context, name string) ([]protocol.Task, error) {
	type step struct {
		keyword string
		limit   int
	}

	steps := []step{{name, 5}}
	if stripped := strings.TrimSpace(trailingNumber.ReplaceAllString(name, "")); stripped != "" && stripped != name {
		steps = append(steps, step{stripped, 10})
	}
	if first := strings.Fields(name)[0]; first != name && first != steps[len(steps)-1].keyword {
		steps = append(steps, step{first, 10})
	}

	for _, s := range steps {
		tasks, err := r.tasks.QueryTasks(ctx, protocol.TaskFilter{Keyword: s.keyword, Limit: s.limit})
		if err != nil {
			return nil, err
		}
		if len(tasks) > 0 {
			return tasks, nil
		}
	}
	return nil, nil
}

func refOf(t protocol.Task) TaskRef {
	return TaskRef{ID: t.ID, Name: t.Title, Task: &t}
}
