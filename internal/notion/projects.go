package notion

import (
	"context"
	"net/http"
	"net/url"

	"github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// ListProjects returns every project in the project database, following
// pagination.
func (c *Client) ListProjects(ctx context.Context) ([]protocol.Project, error) {
	if c.cfg.ProjectDatabaseID == "" {
		return nil, errors.System(errors.CodeConfigInvalid, "Notion project database id not configured")
	}

	path := "/databases/" + url.PathEscape(c.cfg.ProjectDatabaseID) + "/query"
	var (
		projects []protocol.Project
		cursor   string
	)
	for {
		body := map[string]any{
			"page_size": maxPageSize,
			"sorts":     []condition{{"property": c.cfg.ProjectProperties.Name, "direction": "ascending"}},
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Results {
			projects = append(projects, c.parseProject(p))
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return projects, nil
		}
		cursor = resp.NextCursor
	}
}

func (c *Client) parseProject(p page) protocol.Project {
	props := c.cfg.ProjectProperties
	get := func(name string) property { return p.Properties[name] }

	project := protocol.Project{
		ID:       p.ID,
		Name:     get(props.Name).text(),
		Status:   protocol.ProjectStatus(get(props.Status).choice()),
		Goal:     get(props.Goal).text(),
		Deadline: get(props.Deadline).day(),
	}
	if people := get(props.Owner).People; len(people) > 0 {
		project.Owner = people[0].Name
	}
	return project
}
