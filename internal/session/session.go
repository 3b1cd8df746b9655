package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"exboard/internal/exceptions"
	"exboard/internal/filters"
	"exboard/internal/logger"
	"exboard/internal/lookup"
)

type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Session is one dashboard page load: its lookup snapshot, the two filter
// controls and the runner that renders into the caller's surface.
type Session struct {
	ID           string
	Lookup       *lookup.Cache
	RuleControl  *filters.Control
	AssetControl *filters.Control
	Runner       *exceptions.Runner

	store     Store
	logger    logger.Logger
	createdAt time.Time

	mu    sync.RWMutex
	state State
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Selection reads both controls at query time.
func (s *Session) Selection() exceptions.Selection {
	var sel exceptions.Selection
	if id, ok := s.RuleControl.Selected(); ok {
		sel.RuleID = id
	}
	if id, ok := s.AssetControl.Selected(); ok {
		sel.DeviceID = id
	}
	return sel
}

// Refresh runs the query for the current selection.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Runner.Run(ctx, s.Selection())
}

// Apply selects sel on the controls; every changed control triggers its own
// run. When nothing changed the current selection is queried once so the
// surface is always rendered. The returned error belongs to the last run.
func (s *Session) Apply(ctx context.Context, sel exceptions.Selection) error {
	if s.State() != StateReady {
		return ErrNotReady
	}

	s.warnUnknownOption(ctx, s.RuleControl, sel.RuleID)
	s.warnUnknownOption(ctx, s.AssetControl, sel.DeviceID)

	var (
		err     error
		changed bool
	)
	if c, runErr := s.RuleControl.Select(ctx, sel.RuleID); c {
		changed, err = true, runErr
	}
	if c, runErr := s.AssetControl.Select(ctx, sel.DeviceID); c {
		changed, err = true, runErr
	}
	if !changed {
		err = s.Refresh(ctx)
	}

	if errors.Is(err, exceptions.ErrSuperseded) {
		return err
	}
	if saveErr := s.save(ctx); saveErr != nil {
		s.logger.WarnwCtx(ctx, "Failed to persist session selection", "error", saveErr)
	}
	return err
}

func (s *Session) warnUnknownOption(ctx context.Context, c *filters.Control, id string) {
	if id != "" && !c.HasOption(id) {
		s.logger.DebugwCtx(ctx, "Selected id is not among the filter options",
			"role", c.Role(),
			"id", id,
		)
	}
}

func (s *Session) subscribe() {
	run := func(ctx context.Context) error {
		return s.Refresh(ctx)
	}
	s.RuleControl.OnChange(run)
	s.AssetControl.OnChange(run)
}

func (s *Session) record() Record {
	return Record{
		Lookup:    s.Lookup.Snapshot(),
		Selection: s.Selection(),
		CreatedAt: s.createdAt,
	}
}

func (s *Session) save(ctx context.Context) error {
	return s.store.Save(ctx, s.ID, s.record())
}
