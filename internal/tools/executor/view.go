package executor

import "github.com/paimy-ai/paimy/pkg/protocol"

// TaskView is the compact task shape shown to the model.
type TaskView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status,omitempty"`
	DueDate      string   `json:"due_date,omitempty"`
	Priority     string   `json:"priority,omitempty"`
	Owner        string   `json:"owner,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Description  string   `json:"description,omitempty"`
	Project      string   `json:"project,omitempty"`
	Team         string   `json:"team,omitempty"`
	URL          string   `json:"url,omitempty"`
}

func viewOf(t protocol.Task, projects map[string]string) TaskView {
	v := TaskView{
		ID:          t.ID,
		Name:        t.Title,
		Status:      string(t.Status),
		DueDate:     t.DueDate,
		Priority:    string(t.Priority),
		Description: t.Description,
		Team:        t.Team,
		URL:         t.URL,
	}
	if t.Owner != nil {
		v.Owner = t.Owner.Name
	}
	for _, p := range t.Participants {
		v.Participants = append(v.Participants, p.Name)
	}
	for _, id := range t.ProjectIDs {
		if name, ok := projects[id]; ok {
			v.Project = name
			break
		}
	}
	return v
}

func viewsOf(tasks []protocol.Task, projects map[string]string) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, viewOf(t, projects))
	}
	return out
}
