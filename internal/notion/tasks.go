package notion

import (
	"context"
	"net/http"
	"net/url"

	"github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

const maxPageSize = 100

type condition map[string]any

// buildFilter turns a task filter into a Notion compound filter, or nil
// when nothing is filtered.
func (c *Client) buildFilter(f protocol.TaskFilter) condition {
	props := c.cfg.TaskProperties
	var and []condition

	add := func(property, kind, op string, value any) {
		and = append(and, condition{"property": property, kind: condition{op: value}})
	}
	if f.OwnerID != "" {
		add(props.Owner, "people", "contains", f.OwnerID)
	}
	if f.Status != "" {
		add(props.Status, "select", "equals", string(f.Status))
	}
	if f.ExcludeStatus != "" {
		add(props.Status, "select", "does_not_equal", string(f.ExcludeStatus))
	}
	if f.DueFrom != "" {
		add(props.DueDate, "date", "on_or_after", f.DueFrom)
	}
	if f.DueTo != "" {
		add(props.DueDate, "date", "on_or_before", f.DueTo)
	}
	if f.Priority != "" {
		add(props.Priority, "select", "equals", string(f.Priority))
	}
	if f.Keyword != "" {
		add(props.Title, "title", "contains", f.Keyword)
	}
	if f.ProjectID != "" {
		add(props.Project, "relation", "contains", f.ProjectID)
	}
	if f.Team != "" {
		add(props.Team, "select", "equals", f.Team)
	}

	if len(and) == 0 {
		return nil
	}
	return condition{"and": and}
}

// QueryTasks returns tasks matching f, sorted by due date ascending.
func (c *Client) QueryTasks(ctx context.Context, f protocol.TaskFilter) ([]protocol.Task, error) {
	if c.cfg.TaskDatabaseID == "" {
		return nil, errors.System(errors.CodeConfigInvalid, "Notion task database id not configured")
	}

	limit := f.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	body := map[string]any{
		"sorts":     []condition{{"property": c.cfg.TaskProperties.DueDate, "direction": "ascending"}},
		"page_size": limit,
	}
	if filter := c.buildFilter(f); filter != nil {
		body["filter"] = filter
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(c.cfg.TaskDatabaseID)+"/query", body, &resp); err != nil {
		return nil, err
	}

	tasks := make([]protocol.Task, 0, len(resp.Results))
	for _, p := range resp.Results {
		tasks = append(tasks, c.parseTask(p))
	}
	return tasks, nil
}

// GetTask loads one task. A missing page is a TASK_NOT_FOUND error.
func (c *Client) GetTask(ctx context.Context, id string) (*protocol.Task, error) {
	var p page
	if err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	if p.Archived {
		return nil, errors.Permanent(errors.CodeTaskNotFound, "task "+id+" is archived")
	}
	t := c.parseTask(p)
	return &t, nil
}

// UpdateTask writes the set fields of u and returns the page Notion reports
// back.
func (c *Client) UpdateTask(ctx context.Context, id string, u protocol.TaskUpdate) (*protocol.Task, error) {
	props := c.cfg.TaskProperties
	properties := map[string]property{}
	if u.Status != nil {
		properties[props.Status] = selectValue(string(*u.Status))
	}
	if u.OwnerID != nil {
		properties[props.Owner] = peopleValue(*u.OwnerID)
	}
	if u.DueDate != nil {
		properties[props.DueDate] = dateValue(*u.DueDate)
	}
	if len(properties) == 0 {
		return nil, errors.User(errors.CodeInvalidInput, "nothing to update")
	}

	var p page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(id), map[string]any{"properties": properties}, &p); err != nil {
		return nil, err
	}
	t := c.parseTask(p)
	return &t, nil
}

// CreateTask adds a page to the task database.
func (c *Client) CreateTask(ctx context.Context, nt protocol.NewTask) (*protocol.Task, error) {
	if c.cfg.TaskDatabaseID == "" {
		return nil, errors.System(errors.CodeConfigInvalid, "Notion task database id not configured")
	}
	if nt.Title == "" {
		return nil, errors.User(errors.CodeInvalidInput, "task title required")
	}

	props := c.cfg.TaskProperties
	status := nt.Status
	if status == "" {
		status = protocol.StatusBacklog
	}
	properties := map[string]property{
		props.Title:  titleValue(nt.Title),
		props.Status: selectValue(string(status)),
	}
	if nt.OwnerID != "" {
		properties[props.Owner] = peopleValue(nt.OwnerID)
	}
	if len(nt.ParticipantIDs) > 0 {
		properties[props.Participants] = peopleValue(nt.ParticipantIDs...)
	}
	if nt.DueDate != "" {
		properties[props.DueDate] = dateValue(nt.DueDate)
	}
	if nt.Priority != "" {
		properties[props.Priority] = selectValue(string(nt.Priority))
	}
	if nt.Description != "" {
		properties[props.Description] = richTextValue(nt.Description)
	}
	if nt.Source != "" {
		properties[props.Source] = selectValue(string(nt.Source))
	}
	if nt.SourceURL != "" {
		properties[props.SourceURL] = urlValue(nt.SourceURL)
	}
	if nt.ProjectID != "" {
		properties[props.Project] = relationValue(nt.ProjectID)
	}
	if nt.Team != "" {
		properties[props.Team] = selectValue(nt.Team)
	}

	body := map[string]any{
		"parent":     map[string]string{"database_id": c.cfg.TaskDatabaseID},
		"properties": properties,
	}
	var p page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &p); err != nil {
		return nil, err
	}
	t := c.parseTask(p)
	return &t, nil
}

// parseTask maps a page onto a task using the configured property names.
func (c *Client) parseTask(p page) protocol.Task {
	props := c.cfg.TaskProperties
	get := func(name string) property { return p.Properties[name] }

	t := protocol.Task{
		ID:          p.ID,
		Title:       get(props.Title).text(),
		Status:      protocol.Status(get(props.Status).choice()),
		DueDate:     get(props.DueDate).day(),
		Priority:    protocol.Priority(get(props.Priority).choice()),
		Description: get(props.Description).text(),
		Source:      protocol.Source(get(props.Source).choice()),
		SourceURL:   get(props.SourceURL).link(),
		Team:        get(props.Team).choice(),
		URL:         p.URL,
	}
	if t.Title == "" {
		t.Title = "Untitled"
	}
	if people := get(props.Owner).People; len(people) > 0 {
		t.Owner = &protocol.PersonRef{ID: people[0].ID, Name: people[0].Name}
	}
	for _, u := range get(props.Participants).People {
		t.Participants = append(t.Participants, protocol.PersonRef{ID: u.ID, Name: u.Name})
	}
	for _, r := range get(props.Project).Relation {
		t.ProjectIDs = append(t.ProjectIDs, r.ID)
	}
	return t
}
