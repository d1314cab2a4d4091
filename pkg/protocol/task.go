package protocol

import "strings"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusBacklog    Status = "Backlog"
	StatusInProgress Status = "In Progress"
	StatusBlocked    Status = "Blocked"
	StatusDone       Status = "Done"
)

// Statuses lists every task status in workflow order.
var Statuses = []Status{StatusBacklog, StatusInProgress, StatusBlocked, StatusDone}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists every priority from highest to lowest.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority matches s case-insensitively against the known priorities.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range Priorities {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, true
		}
	}
	return "", false
}

// Source records where a task came from.
type Source string

const (
	SourceManual   Source = "Manual"
	SourceChat     Source = "Chat"
	SourceEmail    Source = "Email"
	SourceCalendar Source = "Calendar"
)

// PersonRef is a task-store user as it appears on a task.
type PersonRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Task is a unit of work in the task store.
type Task struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Status       Status      `json:"status,omitempty"`
	Owner        *PersonRef  `json:"owner,omitempty"`
	Participants []PersonRef `json:"participants,omitempty"`
	DueDate      string      `json:"due_date,omitempty"` // YYYY-MM-DD
	Priority     Priority    `json:"priority,omitempty"`
	Description  string      `json:"description,omitempty"`
	Source       Source      `json:"source,omitempty"`
	SourceURL    string      `json:"source_url,omitempty"`
	ProjectIDs   []string    `json:"project_ids,omitempty"`
	Team         string      `json:"team,omitempty"`
	URL          string      `json:"url,omitempty"`
}

// OwnerID returns the owner's store id or "".
func (t Task) OwnerID() string {
	if t.Owner == nil {
		return ""
	}
	return t.Owner.ID
}

// TaskFilter selects tasks. Every set field narrows the result (AND).
type TaskFilter struct {
	OwnerID       string
	Status        Status
	ExcludeStatus Status
	DueFrom       string // inclusive, YYYY-MM-DD
	DueTo         string // inclusive, YYYY-MM-DD
	Priority      Priority
	Keyword       string // title contains
	ProjectID     string
	Team          string
	Limit         int
}

// TaskUpdate carries the fields to change. Nil fields are left alone.
type TaskUpdate struct {
	Status  *Status
	OwnerID *string
	DueDate *string
}

// NewTask is the input for creating a task.
type NewTask struct {
	Title          string
	Status         Status
	OwnerID        string
	ParticipantIDs []string
	DueDate        string
	Priority       Priority
	Description    string
	Source         Source
	SourceURL      string
	ProjectID      string
	Team           string
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive ProjectStatus = "Active"
	ProjectOnHold ProjectStatus = "On Hold"
	ProjectDone   ProjectStatus = "Done"
)

// Project groups tasks.
type Project struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   ProjectStatus `json:"status"`
	Owner    string        `json:"owner,omitempty"`
	Goal     string        `json:"goal,omitempty"`
	Deadline string        `json:"deadline,omitempty"`
}
