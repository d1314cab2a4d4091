// Package prompt composes the system prompt sent with every model call.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/conversation"
	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/internal/resolver"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// ProjectSource lists active projects.
type ProjectSource interface {
	Active(ctx context.Context) ([]protocol.Project, error)
}

// RosterSource lists active people.
type RosterSource interface {
	ListActive(ctx context.Context) ([]protocol.Person, error)
}

// Builder assembles system prompts. Projects and Roster are optional.
type Builder struct {
	Name        string
	Resolver    *resolver.Resolver
	Projects    ProjectSource
	Roster      RosterSource
	Logger      *zap.Logger
	MaxProjects int
	MaxPeople   int
}

// Input is the per-turn material for a prompt.
type Input struct {
	Requester protocol.Requester
	Context   conversation.Context
}

// NewBuilder returns a builder with default snapshot limits.
func NewBuilder(name string, r *resolver.Resolver) *Builder {
	return &Builder{
		Name:        name,
		Resolver:    r,
		MaxProjects: 30,
		MaxPeople:   50,
	}
}

// Compose builds the system prompt for one turn. Snapshot failures drop
// the affected section.
func (b *Builder) Compose(ctx context.Context, in Input) string {
	var roster []protocol.Person
	if b.Roster != nil {
		people, err := b.Roster.ListActive(ctx)
		if err != nil {
			b.log().Warn("roster snapshot unavailable", zap.Error(err))
		} else {
			roster = people
		}
	}

	var sections []string
	sections = append(sections, "Identity:\n"+b.identity())
	sections = append(sections, "Rules:\n"+rules)
	sections = append(sections, "Current Date:\n"+b.dateLine())
	sections = append(sections, "Next Week:\n"+b.nextWeekTable())
	sections = append(sections, "Requester:\n"+requesterLines(in.Requester, roster))

	if s := contextLines(in.Context); s != "" {
		sections = append(sections, "Conversation:\n"+s)
	}
	if s := b.projectLines(ctx); s != "" {
		sections = append(sections, "Active Projects:\n"+s)
	}
	if s := b.rosterLines(roster); s != "" {
		sections = append(sections, "Team:\n"+s)
	}

	return strings.Join(sections, "\n\n")
}

func (b *Builder) log() *zap.Logger {
	return logging.OrNop(b.Logger)
}

func (b *Builder) identity() string {
	return fmt.Sprintf("You are %s, the team's project-management assistant in chat. "+
		"You look up, create and update tasks in the task store and brief people on their work. "+
		"Reply in the requester's language, keep it short, and lead with the key facts.",
		nonEmpty(b.Name, "Paimy"))
}

const rules = `- Use the tools for every fact about tasks and projects; never invent ids, owners or dates.
- "my tasks" means tasks owned by the requester; pass "me" as owner_name.
- Pass relative dates ("tomorrow", "다음주 금요일", "3월 5일") to due_date unchanged. Do not compute dates yourself.
- "that one" or "그거" refers to the last task in the conversation; use its id.
- When a tool reports several candidates, list them and ask which one. Never pick one yourself.
- When a tool reports a verification mismatch, say the change did not apply and show both values.
- If the requester's instruction is clear, act without asking for confirmation.
- Show due date and status for each task. Use a numbered list for four or more tasks.`

func (b *Builder) dateLine() string {
	today := b.Resolver.Today()
	return fmt.Sprintf("%s (%s요일, %s), timezone %s",
		today.Format(resolver.DateLayout),
		resolver.KoreanWeekdayNames[today.Weekday()],
		today.Weekday(),
		today.Location())
}

func (b *Builder) nextWeekTable() string {
	var lines []string
	for _, d := range b.Resolver.NextWeekDates() {
		lines = append(lines, fmt.Sprintf("- %s요일 (%s): %s", resolver.KoreanWeekdayNames[d.Weekday], d.Weekday, d.Date))
	}
	return strings.Join(lines, "\n")
}

func requesterLines(r protocol.Requester, roster []protocol.Person) string {
	lines := []string{fmt.Sprintf("- Chat: %s (%s)", nonEmpty(r.DisplayName, "unknown"), nonEmpty(r.ChatID, "unknown"))}
	if r.StoreID == "" {
		lines = append(lines, "- Task store: not linked. Tools that default to the requester will fail; ask who is meant.")
		return strings.Join(lines, "\n")
	}

	name := ""
	for _, p := range roster {
		if p.StoreID == r.StoreID {
			name = p.StoreName
			break
		}
	}
	lines = append(lines, fmt.Sprintf("- Task store: %s (%s)", nonEmpty(name, "unnamed"), r.StoreID))
	return strings.Join(lines, "\n")
}

func contextLines(c conversation.Context) string {
	var lines []string
	if c.LastTaskID != "" {
		if c.LastTaskName != "" {
			lines = append(lines, fmt.Sprintf("- Last task: %q (id %s)", c.LastTaskName, c.LastTaskID))
		} else {
			lines = append(lines, fmt.Sprintf("- Last task id: %s", c.LastTaskID))
		}
	}
	if c.LastEventID != "" {
		lines = append(lines, "- Last event id: "+c.LastEventID)
	}
	if c.LastMessageID != "" {
		lines = append(lines, "- Last message id: "+c.LastMessageID)
	}
	return strings.Join(lines, "\n")
}

func (b *Builder) projectLines(ctx context.Context) string {
	if b.Projects == nil {
		return ""
	}
	projects, err := b.Projects.Active(ctx)
	if err != nil {
		b.log().Warn("project snapshot unavailable", zap.Error(err))
		return ""
	}

	var lines []string
	for i, p := range projects {
		if b.MaxProjects > 0 && i >= b.MaxProjects {
			lines = append(lines, fmt.Sprintf("- ... %d more", len(projects)-i))
			break
		}
		line := "- " + p.Name
		var extra []string
		if p.Owner != "" {
			extra = append(extra, "PM "+p.Owner)
		}
		if p.Deadline != "" {
			extra = append(extra, "deadline "+p.Deadline)
		}
		if len(extra) > 0 {
			line += " (" + strings.Join(extra, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (b *Builder) rosterLines(people []protocol.Person) string {
	var lines []string
	for i, p := range people {
		if b.MaxPeople > 0 && i >= b.MaxPeople {
			lines = append(lines, fmt.Sprintf("- ... %d more", len(people)-i))
			break
		}
		line := "- " + p.Name()
		if p.DisplayName != "" && p.DisplayName != p.Name() {
			line += " / " + p.DisplayName
		}
		if len(p.Aliases) > 0 {
			line += " aka " + strings.Join(p.Aliases, ", ")
		}
		if p.Team != "" {
			line += " [" + p.Team + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
