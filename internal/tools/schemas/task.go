package schemas

import "github.com/paimy-ai/paimy/pkg/protocol"

// Tool names.
const (
	GetTasks          = "get_tasks"
	GetTaskDetail     = "get_task_detail"
	UpdateTaskStatus  = "update_task_status"
	UpdateTaskOwner   = "update_task_owner"
	UpdateTaskDueDate = "update_task_due_date"
	CreateTask        = "create_task"
	GetDailyBriefing  = "get_daily_briefing"
	GetProjects       = "get_projects"
)

// Due-date periods accepted by get_tasks.
const (
	PeriodToday    = "today"
	PeriodThisWeek = "this_week"
	PeriodNextWeek = "next_week"
)

func statusEnum() []string {
	out := make([]string, 0, len(protocol.Statuses))
	for _, s := range protocol.Statuses {
		out = append(out, string(s))
	}
	return out
}

func priorityEnum() []string {
	out := make([]string, 0, len(protocol.Priorities))
	for _, p := range protocol.Priorities {
		out = append(out, string(p))
	}
	return out
}

// RegisterTaskTools registers the task-management catalog.
func RegisterTaskTools(registry *Registry) {
	for _, s := range TaskSchemas() {
		registry.Register(s)
	}
}

// TaskSchemas returns the schema of every task tool.
func TaskSchemas() []*Schema {
	taskRef := func(b *SchemaBuilder) *SchemaBuilder {
		return b.
			AddParam("task_id", "string", "Task id (store page id)", false).
			AddParam("task_name", "string", "Task name, used to search when no id is known", false)
	}

	return []*Schema{
		NewSchema(GetTasks, "List tasks from the task store. Filter by owner, status, due-date period, priority, title keyword, project or team.").
			AddParam("owner_name", "string", `Owner name (e.g. "김철수"); "me" means the requester`, false).
			AddParamWithEnum("status", "string", "Task status", statusEnum(), false).
			AddParamWithEnum("due_date_period", "string", "Due-date period", []string{PeriodToday, PeriodThisWeek, PeriodNextWeek}, false).
			AddParamWithEnum("priority", "string", "Priority", priorityEnum(), false).
			AddParam("keyword", "string", "Text the task title must contain", false).
			AddParam("project_name", "string", "Project name", false).
			AddParam("team", "string", "Team name", false).
			AddParam("limit", "number", "Maximum number of tasks (default 10)", false).
			Build(),

		taskRef(NewSchema(GetTaskDetail, "Show the details of one task.")).
			Build(),

		taskRef(NewSchema(UpdateTaskStatus, "Change the status of a task.")).
			AddParamWithEnum("status", "string", "New status", statusEnum(), true).
			Build(),

		taskRef(NewSchema(UpdateTaskOwner, "Change the owner of a task.")).
			AddParam("owner_name", "string", "Name of the new owner", true).
			Build(),

		taskRef(NewSchema(UpdateTaskDueDate, "Change the due date of a task.")).
			AddParam("due_date", "string", `New due date: YYYY-MM-DD or an expression such as "tomorrow", "next monday", "다음주 금요일", "3월 5일"`, true).
			Build(),

		NewSchema(CreateTask, "Create a new task. It starts in Backlog.").
			AddParam("title", "string", "Task title", true).
			AddParam("owner_name", "string", "Owner name (defaults to the requester)", false).
			AddParam("due_date", "string", "Due date: YYYY-MM-DD or a relative expression", false).
			AddParamWithEnum("priority", "string", "Priority", priorityEnum(), false).
			AddParam("description", "string", "Execution details", false).
			AddParam("project_name", "string", "Project the task belongs to", false).
			AddArrayParam("participant_names", "string", "Names of other participants", false).
			AddParam("team", "string", "Team (defaults to the owner's team)", false).
			Build(),

		NewSchema(GetDailyBriefing, "Summarize the day for a person: tasks due today, in-progress tasks this week and overdue tasks.").
			AddParam("user_name", "string", "Person to brief (defaults to the requester)", false).
			Build(),

		NewSchema(GetProjects, "List active projects.").
			AddParam("include_on_hold", "boolean", "Also include projects that are on hold", false).
			Build(),
	}
}
