// Package app wires paimy's components from a configuration.
package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/paimy-ai/paimy/internal/agent"
	"github.com/paimy-ai/paimy/internal/config"
	"github.com/paimy-ai/paimy/internal/conversation"
	"github.com/paimy-ai/paimy/internal/cost"
	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/internal/memory"
	"github.com/paimy-ai/paimy/internal/model"
	"github.com/paimy-ai/paimy/internal/notion"
	"github.com/paimy-ai/paimy/internal/projects"
	"github.com/paimy-ai/paimy/internal/prompt"
	"github.com/paimy-ai/paimy/internal/resolver"
	"github.com/paimy-ai/paimy/internal/stats"
	"github.com/paimy-ai/paimy/internal/sweep"
	"github.com/paimy-ai/paimy/internal/tools"
	"github.com/paimy-ai/paimy/internal/tools/executor"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

// App holds every long-lived component. Build it once per process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Memory   *memory.Store
	Notion   *notion.Client
	Projects *projects.Directory
	Resolver *resolver.Resolver
	Tools    *tools.Registry
	Prompt   *prompt.Builder
	Agent    *agent.Orchestrator
	Stats    *stats.Collector
	Usage    *cost.Tracker
}

// Option overrides a component New would build from the configuration.
type Option func(*options)

type options struct {
	model model.Model
}

// WithModel uses m instead of the configured providers.
func WithModel(m model.Model) Option {
	return func(o *options) { o.model = m }
}

// New builds the application. The memory database is opened (and created)
// here; Close releases it.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.OrNop(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.MemoryDB), 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMemoryUnavailable, "create data directory", apperrors.CategorySystem)
	}
	mem, err := memory.Open(cfg.Paths.MemoryDB, cfg.Assistant.ContextTTL)
	if err != nil {
		return nil, err
	}

	llm := o.model
	if llm == nil {
		router, err := model.FromConfig(cfg.Model, logger.Named("model"))
		if err != nil {
			mem.Close()
			return nil, err
		}
		llm = router
	}

	loc := cfg.Location()
	store := notion.New(cfg.Notion, logger.Named("notion"))
	dir := projects.NewDirectory(store, cfg.Projects.CacheTTL, logger.Named("projects"))
	res := resolver.New(resolver.Config{
		Tasks:    store,
		People:   mem,
		Projects: dir,
		Location: loc,
		Logger:   logger.Named("resolver"),
	})
	registry := tools.NewTaskRegistry(&executor.Env{
		Store:    store,
		Resolver: res,
		Roster:   mem,
		Projects: dir,
		Logger:   logger.Named("tools"),
	})

	builder := prompt.NewBuilder(cfg.Assistant.Name, res)
	builder.Projects = dir
	builder.Roster = mem
	builder.Logger = logger.Named("prompt")

	collector := stats.NewCollector()
	usage := cost.NewTracker(nil, loc)
	orchestrator := agent.New(agent.Config{
		Model:         llm,
		Tools:         registry,
		Prompt:        builder,
		Logger:        logger.Named("agent"),
		Stats:         collector,
		Cost:          usage,
		MaxIterations: cfg.Assistant.MaxIterations,
		MaxTokens:     cfg.Model.MaxTokens,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Memory:   mem,
		Notion:   store,
		Projects: dir,
		Resolver: res,
		Tools:    registry,
		Prompt:   builder,
		Agent:    orchestrator,
		Stats:    collector,
		Usage:    usage,
	}, nil
}

// Close releases the memory database.
func (a *App) Close() error {
	return a.Memory.Close()
}

// Requester identifies a chat user. People missing from the directory
// still get a requester, without a task-store id.
func (a *App) Requester(ctx context.Context, chatID, displayName string) (protocol.Requester, error) {
	p, ok, err := a.Memory.PersonByChatID(ctx, chatID)
	if err != nil {
		return protocol.Requester{}, err
	}
	if !ok {
		if displayName == "" {
			displayName = chatID
		}
		return protocol.Requester{ChatID: chatID, DisplayName: displayName}, nil
	}
	r := p.Requester()
	if displayName != "" {
		r.DisplayName = displayName
	}
	return r, nil
}

// AskInput is one inbound chat message.
type AskInput struct {
	Thread      memory.ThreadKey
	DisplayName string
	MessageURL  string
	Message     string
}

// Ask handles one message: it loads the thread's context, runs the turn,
// then stores the merged delta and the new turns.
func (a *App) Ask(ctx context.Context, in AskInput) (*agent.Output, error) {
	if strings.TrimSpace(in.Thread.Thread) == "" {
		return nil, apperrors.User(apperrors.CodeInvalidInput, "thread key required")
	}

	requester, err := a.Requester(ctx, in.Thread.User, in.DisplayName)
	if err != nil {
		return nil, err
	}
	requester.MessageURL = in.MessageURL

	convo, err := a.Memory.GetOrCreateContext(ctx, in.Thread)
	if err != nil {
		return nil, err
	}

	out, err := a.Agent.Process(ctx, agent.Input{
		ThreadID:  in.Thread.Thread,
		Message:   in.Message,
		Requester: requester,
		Context:   convo,
	})
	if err != nil {
		return nil, err
	}

	next := conversation.Merge(convo, out.Delta)
	next = conversation.AppendTurns(next, a.Config.Assistant.HistoryWindow,
		conversation.Turn{Role: conversation.RoleUser, Speaker: requester.DisplayName, Content: in.Message},
		conversation.Turn{Role: conversation.RoleAssistant, Content: out.Response},
	)
	if err := a.Memory.UpdateContext(ctx, in.Thread, next); err != nil {
		// the answer is still good; only follow-up references are lost
		a.Logger.Warn("conversation context not saved", zap.String("thread", in.Thread.Thread), zap.Error(err))
	}
	return out, nil
}

// Sweeper returns a briefing sweeper delivering through notifier.
func (a *App) Sweeper(notifier sweep.Notifier) *sweep.Sweeper {
	return sweep.New(sweep.Config{
		People:     a.Memory,
		Tools:      a.Tools,
		Reminders:  a.Memory,
		Notifier:   notifier,
		BatchSize:  a.Config.Sweep.BatchSize,
		BatchDelay: a.Config.Sweep.BatchDelay,
		Location:   a.Config.Location(),
		Logger:     a.Logger.Named("sweep"),
	})
}
