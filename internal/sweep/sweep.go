// Package sweep sends the morning briefing to everyone in the people
// directory. People are processed in small concurrent batches with a pause
// between batches so the task store is not flooded.
package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/paimy-ai/paimy/internal/errors"
	"github.com/paimy-ai/paimy/internal/logging"
	"github.com/paimy-ai/paimy/internal/memory"
	"github.com/paimy-ai/paimy/internal/tools/executor"
	"github.com/paimy-ai/paimy/internal/tools/schemas"
	"github.com/paimy-ai/paimy/pkg/protocol"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = time.Second
)

// People lists the directory.
type People interface {
	ListActive(ctx context.Context) ([]protocol.Person, error)
}

// Dispatcher runs tools by name.
type Dispatcher interface {
	Execute(ctx context.Context, name string, input map[string]any) (*executor.Result, error)
}

// Reminders records which briefings were already delivered.
type Reminders interface {
	WasReminded(ctx context.Context, kind, person, ref, day string) (bool, error)
	MarkReminded(ctx context.Context, kind, person, ref, day string) (bool, error)
}

// Notifier delivers a rendered briefing to a person.
type Notifier interface {
	Notify(ctx context.Context, to protocol.Person, text string) error
}

// Config configures a Sweeper. People, Tools and Reminders are required;
// Notifier may be nil only for dry runs.
type Config struct {
	People     People
	Tools      Dispatcher
	Reminders  Reminders
	Notifier   Notifier
	BatchSize  int
	BatchDelay time.Duration
	Location   *time.Location
	Now        func() time.Time
	Logger     *zap.Logger
}

// Sweeper runs briefing sweeps.
type Sweeper struct {
	people     People
	tools      Dispatcher
	reminders  Reminders
	notifier   Notifier
	batchSize  int
	batchDelay time.Duration
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// New creates a sweeper.
func New(cfg Config) *Sweeper {
	s := &Sweeper{
		people:     cfg.People,
		tools:      cfg.Tools,
		reminders:  cfg.Reminders,
		notifier:   cfg.Notifier,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		loc:        cfg.Location,
		now:        cfg.Now,
		logger:     logging.OrNop(cfg.Logger),
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.batchDelay < 0 {
		s.batchDelay = DefaultBatchDelay
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Status is what happened to one person in a sweep.
type Status string

const (
	StatusSent      Status = "sent"
	StatusPreviewed Status = "previewed"
	StatusDuplicate Status = "duplicate"
	StatusEmpty     Status = "empty"
	StatusUnlinked  Status = "unlinked"
	StatusFailed    Status = "failed"
)

// Delivery is the outcome for one person.
type Delivery struct {
	Person protocol.Person
	Status Status
	Text   string
	Err    error
}

// Report summarizes a sweep.
type Report struct {
	Day        string
	Deliveries []Delivery
}

// Count returns how many deliveries ended in status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Status == status {
			n++
		}
	}
	return n
}

// Failures returns the deliveries that failed.
func (r *Report) Failures() []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Status == StatusFailed {
			out = append(out, d)
		}
	}
	return out
}

// Options tune a single run.
type Options struct {
	// DryRun renders briefings without delivering or recording them.
	DryRun bool
}

// Run briefs every active person once for today. Per-person failures are
// recorded in the report; only a failure to list people is returned.
func (s *Sweeper) Run(ctx context.Context, opts Options) (*Report, error) {
	if !opts.DryRun && s.notifier == nil {
		return nil, apperrors.System(apperrors.CodeConfigInvalid, "sweep needs a notifier unless it is a dry run")
	}

	people, err := s.people.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Day:        s.now().In(s.loc).Format("2006-01-02"),
		Deliveries: make([]Delivery, len(people)),
	}
	log := s.logger.With(zap.String("day", report.Day), zap.Bool("dry_run", opts.DryRun))
	log.Info("briefing sweep started", zap.Int("people", len(people)), zap.Int("batch_size", s.batchSize))

	for start := 0; start < len(people); start += s.batchSize {
		if start > 0 && s.batchDelay > 0 {
			timer := time.NewTimer(s.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return report, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+s.batchSize, len(people))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				report.Deliveries[i] = s.brief(ctx, people[i], report.Day, opts)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, d := range report.Failures() {
		log.Warn("briefing failed", zap.String("chat_id", d.Person.ChatID), zap.Error(d.Err))
	}
	log.Info("briefing sweep finished",
		zap.Int("sent", report.Count(StatusSent)),
		zap.Int("previewed", report.Count(StatusPreviewed)),
		zap.Int("duplicate", report.Count(StatusDuplicate)),
		zap.Int("empty", report.Count(StatusEmpty)),
		zap.Int("unlinked", report.Count(StatusUnlinked)),
		zap.Int("failed", report.Count(StatusFailed)))
	return report, nil
}

func (s *Sweeper) brief(ctx context.Context, p protocol.Person, day string, opts Options) Delivery {
	d := Delivery{Person: p}
	fail := func(err error) Delivery {
		d.Status = StatusFailed
		d.Err = err
		return d
	}

	if p.StoreID == "" {
		d.Status = StatusUnlinked
		return d
	}

	if !opts.DryRun {
		done, err := s.reminders.WasReminded(ctx, memory.KindMorningBriefing, p.ChatID, "", day)
		if err != nil {
			return fail(err)
		}
		if done {
			d.Status = StatusDuplicate
			return d
		}
	}

	ctx = executor.WithRequester(ctx, protocol.Requester{
		ChatID:      p.ChatID,
		DisplayName: p.DisplayName,
		StoreID:     p.StoreID,
	})
	res, err := s.tools.Execute(ctx, schemas.GetDailyBriefing, map[string]any{})
	if err != nil {
		return fail(err)
	}
	if !res.Success {
		return fail(apperrors.Permanent(res.Code, res.Error))
	}
	b, ok := res.Data.(*executor.Briefing)
	if !ok {
		return fail(fmt.Errorf("unexpected briefing payload %T", res.Data))
	}
	if b.IsEmpty() {
		d.Status = StatusEmpty
		return d
	}

	d.Text = Render(p.Name(), b)
	if opts.DryRun {
		d.Status = StatusPreviewed
		return d
	}

	if err := s.notifier.Notify(ctx, p, d.Text); err != nil {
		return fail(err)
	}
	if _, err := s.reminders.MarkReminded(ctx, memory.KindMorningBriefing, p.ChatID, "", day); err != nil {
		// the message went out; a later run today may send it again
		s.logger.Warn("briefing sent but not recorded", zap.String("chat_id", p.ChatID), zap.Error(err))
	}
	d.Status = StatusSent
	return d
}
