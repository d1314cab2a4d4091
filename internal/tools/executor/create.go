package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/tools/schemas"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// CreateTask creates a task in Backlog on behalf of the requester.
type CreateTask struct{ Env *Env }

func (t *CreateTask) Name() string { return schemas.CreateTask }

func (t *CreateTask) Description() string { return "Create a task" }

func (t *CreateTask) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	env := t.Env
	requester := RequesterFrom(ctx)

	title := stringArg(input, "title")
	if title == "" {
		return invalidInput("title is required"), nil
	}

	nt := protocol.NewTask{
		Title:       title,
		Status:      protocol.StatusBacklog,
		OwnerID:     requester.StoreID,
		Description: stringArg(input, "description"),
		Source:      protocol.SourceChat,
		SourceURL:   requester.MessageURL,
		Team:        stringArg(input, "team"),
	}
	var warnings []string

	if name := stringArg(input, "owner_name"); name != "" {
		id, ok, err := env.Resolver.ResolveOwner(ctx, name, requester)
		if err != nil {
			return nil, err
		}
		if !ok {
			return unknownPerson(name), nil
		}
		nt.OwnerID = id
	}

	if raw := stringArg(input, "due_date"); raw != "" {
		nt.DueDate = env.Resolver.ResolveDueDate(raw)
	}

	if p := stringArg(input, "priority"); p != "" {
		priority, ok := protocol.ParsePriority(p)
		if !ok {
			return invalidInput("unknown priority %q", p), nil
		}
		nt.Priority = priority
	}

	var projectName string
	if name := stringArg(input, "project_name"); name != "" {
		project, ok, err := env.Resolver.ResolveProject(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			nt.ProjectID = project.ID
			projectName = project.Name
		} else {
			warnings = append(warnings, fmt.Sprintf("no project named %q; created without a project", name))
		}
	}

	for _, name := range stringSliceArg(input, "participant_names") {
		id, ok, err := env.Resolver.ResolveOwner(ctx, name, requester)
		if err != nil {
			return nil, err
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("participant %q not found", name))
			continue
		}
		nt.ParticipantIDs = append(nt.ParticipantIDs, id)
	}

	if nt.Team == "" && nt.OwnerID != "" && env.Roster != nil {
		team, err := env.Roster.TeamOf(ctx, nt.OwnerID)
		if err != nil {
			env.log().Warn("team lookup failed", zap.String("owner", nt.OwnerID), zap.Error(err))
		}
		nt.Team = team
	}

	observed, err := env.Store.CreateTask(ctx, nt)
	if err != nil {
		return nil, err
	}
	if observed == nil {
		return nil, apperrors.System(apperrors.CodeStoreBadResponse, "task store returned no task for the create")
	}

	delta := taskDelta(observed)
	if requested, got, ok := verifyCreated(nt, observed); !ok {
		env.log().Warn("created task does not match request", zap.String("task", observed.ID))
		res := NewFailure(apperrors.CodeVerificationMismatch, "the task was created but does not match the request")
		res.Requested = requested
		res.Observed = got
		return res.WithDelta(delta), nil
	}

	data := map[string]any{
		"task": viewOf(*observed, env.projectNames(ctx)),
	}
	if projectName != "" {
		data["project"] = projectName
	}
	if len(warnings) > 0 {
		data["warnings"] = warnings
	}
	return NewSuccessResult(data).WithDelta(delta), nil
}

// verifyCreated checks the fields the requester asked for.
func verifyCreated(want protocol.NewTask, got *protocol.Task) (map[string]any, map[string]any, bool) {
	requested := map[string]any{}
	observed := map[string]any{}

	check := func(field string, w, g any, set bool) {
		if set && w != g {
			requested[field] = w
			observed[field] = g
		}
	}
	check("title", want.Title, got.Title, true)
	check("status", string(want.Status), string(got.Status), true)
	check("owner", want.OwnerID, got.OwnerID(), want.OwnerID != "")
	check("due_date", want.DueDate, got.DueDate, want.DueDate != "")
	check("priority", string(want.Priority), string(got.Priority), want.Priority != "")

	return requested, observed, len(requested) == 0
}
