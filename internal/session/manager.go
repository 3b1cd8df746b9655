package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"exboard/internal/constants"
	"exboard/internal/exceptions"
	"exboard/internal/filters"
	"exboard/internal/fleet"
	"exboard/internal/logger"
	"exboard/internal/lookup"
	apperrors "exboard/pkg/errors"
	"exboard/pkg/logging"
	"exboard/pkg/metrics"
)

var ErrNotReady = apperrors.NewError("CONFLICT", "session is not ready", http.StatusConflict)

type ManagerConfig struct {
	Collation language.Tag
	Runner    exceptions.RunnerConfig
}

// Manager creates sessions on page load and rebuilds them for later requests.
type Manager struct {
	api    fleet.API
	store  Store
	logger logger.Logger
	cfg    ManagerConfig
}

func NewManager(api fleet.API, store Store, log logger.Logger, cfg ManagerConfig) *Manager {
	return &Manager{
		api:    api,
		store:  store,
		logger: log,
		cfg:    cfg,
	}
}

// Open loads the lookup data, populates both controls and runs the initial
// unfiltered query. A lookup failure leaves the session Failed with the init
// failure message on the surface and no query issued; that is not an error.
func (m *Manager) Open(ctx context.Context, surface exceptions.Surface) (*Session, error) {
	return m.OpenWith(ctx, surface, exceptions.Selection{})
}

// OpenWith is Open with sel restored on the controls before the initial run,
// so a preselected session issues a single query.
func (m *Manager) OpenWith(ctx context.Context, surface exceptions.Surface, sel exceptions.Selection) (*Session, error) {
	id := uuid.NewString()
	ctx = logging.WithSessionID(ctx, id)

	s := &Session{
		ID:        id,
		store:     m.store,
		logger:    m.logger,
		createdAt: time.Now().UTC(),
		state:     StateUninitialized,
	}
	s.RuleControl = filters.NewControl(filters.RoleRule, m.cfg.Collation)
	s.AssetControl = filters.NewControl(filters.RoleAsset, m.cfg.Collation)

	surface.SetLoadingText(constants.LoadingMessage)
	surface.ShowLoading()

	cache, err := lookup.Load(ctx, m.api)
	if err != nil {
		s.setState(StateFailed)
		surface.SetLoadingText(constants.InitFailureMessage)
		metrics.IncSessionsOpened("failed")
		m.logger.ErrorwCtx(ctx, "Failed to load initial data", "error", err)
		return s, nil
	}
	s.Lookup = cache
	s.setState(StateLoaded)

	if err := m.ready(s, surface); err != nil {
		return nil, err
	}
	s.warnUnknownOption(ctx, s.RuleControl, sel.RuleID)
	s.warnUnknownOption(ctx, s.AssetControl, sel.DeviceID)
	s.RuleControl.Restore(sel.RuleID)
	s.AssetControl.Restore(sel.DeviceID)

	if err := s.save(ctx); err != nil {
		metrics.IncSessionsOpened("error")
		m.logger.ErrorwCtx(ctx, "Failed to save session", "error", err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.setState(StateReady)
	metrics.IncSessionsOpened("success")
	m.logger.InfowCtx(ctx, "Session opened",
		"rules", len(cache.Rules()),
		"devices", len(cache.Assets()),
	)

	// rendered into the surface on failure; nothing else to do
	_ = s.Refresh(ctx)
	return s, nil
}

// Resume rebuilds a ready session from the store without refetching lookups.
func (m *Manager) Resume(ctx context.Context, id string, surface exceptions.Surface) (*Session, error) {
	ctx = logging.WithSessionID(ctx, id)

	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:           id,
		Lookup:       lookup.FromSnapshot(rec.Lookup),
		RuleControl:  filters.NewControl(filters.RoleRule, m.cfg.Collation),
		AssetControl: filters.NewControl(filters.RoleAsset, m.cfg.Collation),
		store:        m.store,
		logger:       m.logger,
		createdAt:    rec.CreatedAt,
		state:        StateLoaded,
	}
	if err := m.ready(s, surface); err != nil {
		return nil, err
	}
	s.RuleControl.Restore(rec.Selection.RuleID)
	s.AssetControl.Restore(rec.Selection.DeviceID)
	s.setState(StateReady)

	m.logger.DebugwCtx(ctx, "Session resumed")
	return s, nil
}

// Close forgets a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// ready populates the controls from the lookup and wires the runner to them.
func (m *Manager) ready(s *Session, surface exceptions.Surface) error {
	rules := s.Lookup.Rules()
	ruleItems := make([]filters.Item, 0, len(rules))
	for _, r := range rules {
		ruleItems = append(ruleItems, filters.Item{ID: r.ID, Name: r.Name})
	}
	devices := s.Lookup.Assets()
	assetItems := make([]filters.Item, 0, len(devices))
	for _, d := range devices {
		assetItems = append(assetItems, filters.Item{ID: d.ID, Name: d.Name})
	}

	if err := s.RuleControl.Populate(ruleItems); err != nil {
		return fmt.Errorf("failed to populate rule filter: %w", err)
	}
	if err := s.AssetControl.Populate(assetItems); err != nil {
		return fmt.Errorf("failed to populate asset filter: %w", err)
	}

	s.Runner = exceptions.NewRunner(m.api, s.Lookup, surface, storeGenerations{store: m.store, id: s.ID}, m.logger, m.cfg.Runner)
	s.subscribe()
	return nil
}
