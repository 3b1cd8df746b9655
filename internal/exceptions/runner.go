package exceptions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"exboard/internal/constants"
	"exboard/internal/fleet"
	"exboard/internal/logger"
	"exboard/pkg/metrics"
	"exboard/pkg/tracing"
)

// ErrSuperseded is returned when a newer run started before this one finished.
// Nothing is rendered for a superseded run.
var ErrSuperseded = errors.New("exception query superseded by a newer query")

type State int

const (
	StateIdle State = iota
	StateLoading
)

func (s State) String() string {
	if s == StateLoading {
		return "loading"
	}
	return "idle"
}

type EventSource interface {
	GetExceptionEvents(ctx context.Context, search fleet.ExceptionEventSearch) ([]fleet.ExceptionEvent, error)
}

type NameResolver interface {
	FindRuleName(id string) (string, bool)
	FindAssetName(id string) (string, bool)
}

// Generations hands out run numbers. Only the holder of the current number
// may render.
type Generations interface {
	Next(ctx context.Context) (int64, error)
	Current(ctx context.Context) (int64, error)
}

// LocalGenerations is an in-process Generations.
type LocalGenerations struct {
	n atomic.Int64
}

func (g *LocalGenerations) Next(ctx context.Context) (int64, error) {
	return g.n.Add(1), nil
}

func (g *LocalGenerations) Current(ctx context.Context) (int64, error) {
	return g.n.Load(), nil
}

type RunnerConfig struct {
	Location       *time.Location
	DateTimeLayout string
	Now            func() time.Time
}

// Runner executes the query/render cycle against one surface.
type Runner struct {
	events  EventSource
	names   NameResolver
	surface Surface
	gens    Generations
	logger  logger.Logger

	location *time.Location
	layout   string
	now      func() time.Time

	mu     sync.Mutex
	state  State
	gen    int64
	cancel context.CancelFunc
}

func NewRunner(events EventSource, names NameResolver, surface Surface, gens Generations, log logger.Logger, cfg RunnerConfig) *Runner {
	if gens == nil {
		gens = &LocalGenerations{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DateTimeLayout == "" {
		cfg.DateTimeLayout = constants.DefaultDateTimeLayout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		events:   events,
		names:    names,
		surface:  surface,
		gens:     gens,
		logger:   log,
		location: cfg.Location,
		layout:   cfg.DateTimeLayout,
		now:      cfg.Now,
	}
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run queries exception events for the previous local day and renders them.
// A failed query is rendered as an error row and its error returned; the
// runner never retries. ErrSuperseded means the result was discarded.
func (r *Runner) Run(ctx context.Context, sel Selection) (err error) {
	gen, err := r.gens.Next(ctx)
	if err != nil {
		r.surface.Clear()
		r.surface.HideLoading()
		return r.renderFailure(ctx, time.Now(), fmt.Errorf("failed to start query: %w", err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancel = cancel
	r.gen = gen
	r.state = StateLoading
	r.mu.Unlock()

	start := time.Now()
	r.surface.Clear()
	r.surface.ShowLoading()

	window := QueryWindow(r.now().In(r.location))
	search := window.Search(sel)

	runCtx, span := tracing.StartSpan(runCtx, "exceptions.run",
		attribute.Int64("exceptions.generation", gen),
		attribute.String("exceptions.from", search.FromDate),
		attribute.String("exceptions.to", search.ToDate),
		attribute.String("exceptions.rule_id", sel.RuleID),
		attribute.String("exceptions.device_id", sel.DeviceID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	events, queryErr := r.events.GetExceptionEvents(runCtx, search)

	if r.superseded(ctx, gen) {
		metrics.IncResultsDiscarded()
		r.logger.DebugwCtx(ctx, "Discarding superseded exception results", "generation", gen)
		return ErrSuperseded
	}

	r.mu.Lock()
	if r.gen == gen {
		r.state = StateIdle
		r.cancel = nil
	}
	r.mu.Unlock()

	if queryErr != nil {
		r.surface.HideLoading()
		return r.renderFailure(ctx, start, queryErr)
	}

	r.surface.HideLoading()
	if len(events) == 0 {
		r.surface.ShowNotice(Notice{Kind: NoticeInfo, Text: constants.NoExceptionsMessage})
	}
	for _, ev := range events {
		r.surface.AppendRow(r.buildRow(ev))
	}

	metrics.ObserveExceptionQuery(time.Since(start), "success")
	metrics.ObserveRowsRendered(len(events))
	r.logger.DebugwCtx(ctx, "Rendered exception events",
		"generation", gen,
		"rows", len(events),
		"rule_id", sel.RuleID,
		"device_id", sel.DeviceID,
	)
	return nil
}

func (r *Runner) superseded(ctx context.Context, gen int64) bool {
	current, err := r.gens.Current(ctx)
	if err != nil {
		r.logger.WarnwCtx(ctx, "Failed to read current generation", "generation", gen, "error", err)
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.gen != gen
	}
	return current != gen
}

func (r *Runner) renderFailure(ctx context.Context, start time.Time, err error) error {
	r.surface.ShowNotice(Notice{Kind: NoticeError, Text: constants.FetchErrorPrefix + err.Error()})
	metrics.ObserveExceptionQuery(time.Since(start), "error")
	r.logger.ErrorwCtx(ctx, "Error fetching exception events", "error", err)
	return err
}

func (r *Runner) buildRow(ev fleet.ExceptionEvent) Row {
	rule, ok := r.names.FindRuleName(ev.Rule.ID)
	if !ok {
		rule = constants.UnknownRule
	}
	asset, ok := r.names.FindAssetName(ev.Device.ID)
	if !ok {
		asset = constants.UnknownAsset
	}

	when := constants.NotAvailable
	if !ev.ActiveFrom.IsZero() {
		when = ev.ActiveFrom.In(r.location).Format(r.layout)
	}

	return Row{
		When:     when,
		Asset:    asset,
		Rule:     rule,
		Duration: FormatDuration(ev.Duration),
	}
}
