// Package resolver turns the loose references a requester types ("me",
// "the deck task", "다음주 금요일") into concrete task-store identifiers.
package resolver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// TaskSearcher queries the task store.
type TaskSearcher interface {
	QueryTasks(ctx context.Context, filter protocol.TaskFilter) ([]protocol.Task, error)
}

// People searches the people directory.
type People interface {
	// SearchByName returns active people whose display name, store name or
	// alias contains name (case-insensitive), in directory order.
	SearchByName(ctx context.Context, name string) ([]protocol.Person, error)
}

// Projects lists known projects.
type Projects interface {
	List(ctx context.Context) ([]protocol.Project, error)
}

// Config holds the resolver's collaborators.
type Config struct {
	Tasks    TaskSearcher
	People   People
	Projects Projects
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// Resolver resolves names and relative dates.
type Resolver struct {
	tasks    TaskSearcher
	people   People
	projects Projects
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	r := &Resolver{
		tasks:    cfg.Tasks,
		people:   cfg.People,
		projects: cfg.Projects,
		loc:      cfg.Location,
		now:      cfg.Now,
		logger:   logging.OrNop(cfg.Logger),
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// selfTokens refer to the requester.
var selfTokens = map[string]bool{"me": true, "myself": true, "나": true, "내": true, "본인": true, "저": true}

// IsSelf reports whether name refers to the requester.
func IsSelf(name string) bool {
	return selfTokens[strings.ToLower(strings.TrimSpace(name))]
}

// ResolveOwner maps a person reference to a task-store user id. The
// second return is false when nobody matches or the requester has no
// store identity.
func (r *Resolver) ResolveOwner(ctx context.Context, name string, requester protocol.Requester) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}
	if IsSelf(name) {
		return requester.StoreID, requester.StoreID != "", nil
	}

	people, err := r.people.SearchByName(ctx, name)
	if err != nil {
		return "", false, err
	}

	// First match wins among people with a store identity.
	var linked []protocol.Person
	for _, p := range people {
		if p.StoreID != "" {
			linked = append(linked, p)
		}
	}
	if len(linked) == 0 {
		return "", false, nil
	}
	if len(linked) > 1 {
		r.logger.Warn("owner name matched several people, using the first",
			zap.String("name", name),
			zap.Int("matches", len(linked)),
			zap.String("chosen", linked[0].Name()))
	}
	return linked[0].StoreID, true, nil
}

// ResolveProject finds a project by name. Active and on-hold projects are
// searched before finished ones; within each group an exact case-insensitive
// match beats a substring match.
func (r *Resolver) ResolveProject(ctx context.Context, name string) (protocol.Project, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || r.projects == nil {
		return protocol.Project{}, false, nil
	}

	projects, err := r.projects.List(ctx)
	if err != nil {
		return protocol.Project{}, false, err
	}

	var live, rest []protocol.Project
	for _, p := range projects {
		switch p.Status {
		case protocol.ProjectActive, protocol.ProjectOnHold:
			live = append(live, p)
		default:
			rest = append(rest, p)
		}
	}

	needle := strings.ToLower(name)
	for _, group := range [][]protocol.Project{live, rest} {
		for _, p := range group {
			if strings.ToLower(strings.TrimSpace(p.Name)) == needle {
				return p, true, nil
			}
		}
		for _, p := range group {
			if strings.Contains(strings.ToLower(p.Name), needle) {
				return p, true, nil
			}
		}
	}
	return protocol.Project{}, false, nil
}
