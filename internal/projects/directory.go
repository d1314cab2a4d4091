// Package projects caches the project list of the task store. Project names
// change rarely, so a list up to one TTL old is served without a call.
package projects

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// DefaultTTL is how long a loaded list is served from the cache.
const DefaultTTL = time.Hour

const cacheKey = "projects"

// Source loads the full project list.
type Source interface {
	ListProjects(ctx context.Context) ([]protocol.Project, error)
}

// Directory is a cached view of the project list. It is safe for
// concurrent use; concurrent misses share one load.
type Directory struct {
	source Source
	cache  *expirable.LRU[string, []protocol.Project]
	group  singleflight.Group
	logger *zap.Logger

	// last successful load, served when a reload fails
	stale []protocol.Project
}

// NewDirectory creates a directory over source. ttl <= 0 uses DefaultTTL.
func NewDirectory(source Source, ttl time.Duration, logger *zap.Logger) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{
		source: source,
		cache:  expirable.NewLRU[string, []protocol.Project](1, nil, ttl),
		logger: logging.OrNop(logger),
	}
}

// List returns every project, loading it when the cache is cold.
func (d *Directory) List(ctx context.Context) ([]protocol.Project, error) {
	if projects, ok := d.cache.Get(cacheKey); ok {
		return clone(projects), nil
	}
	return d.load(ctx)
}

// Active returns the projects with status Active.
func (d *Directory) Active(ctx context.Context) ([]protocol.Project, error) {
	projects, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	active := projects[:0]
	for _, p := range projects {
		if p.Status == protocol.ProjectActive {
			active = append(active, p)
		}
	}
	return active, nil
}

// Refresh drops the cached list and loads it again.
func (d *Directory) Refresh(ctx context.Context) ([]protocol.Project, error) {
	d.cache.Remove(cacheKey)
	return d.load(ctx)
}

func (d *Directory) load(ctx context.Context) ([]protocol.Project, error) {
	v, err, _ := d.group.Do(cacheKey, func() (any, error) {
		start := time.Now()
		projects, err := d.source.ListProjects(ctx)
		if err != nil {
			if d.stale != nil {
				d.logger.Warn("project reload failed, serving stale list",
					zap.Int("projects", len(d.stale)),
					zap.Error(err))
				return d.stale, nil
			}
			return nil, err
		}

		d.stale = projects
		d.cache.Add(cacheKey, projects)
		d.logger.Debug("projects loaded",
			zap.Int("projects", len(projects)),
			zap.Duration("duration", time.Since(start)))
		return projects, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]protocol.Project)), nil
}

func clone(projects []protocol.Project) []protocol.Project {
	return append([]protocol.Project(nil), projects...)
}
