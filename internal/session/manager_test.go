package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"exboard/internal/exceptions"
	"exboard/internal/fleet"
	"exboard/internal/logger"
)

type stubAPI struct {
	mu       sync.Mutex
	rules    []fleet.Rule
	devices  []fleet.Device
	events   []fleet.ExceptionEvent
	rulesErr error
	lookups  int
	searches []fleet.ExceptionEventSearch
}

func (a *stubAPI) GetRules(ctx context.Context) ([]fleet.Rule, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookups++
	return a.rules, a.rulesErr
}

func (a *stubAPI) GetDevices(ctx context.Context) ([]fleet.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookups++
	return a.devices, nil
}

func (a *stubAPI) GetExceptionEvents(ctx context.Context, search fleet.ExceptionEventSearch) ([]fleet.ExceptionEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches = append(a.searches, search)
	return a.events, nil
}

func (a *stubAPI) Searches() []fleet.ExceptionEventSearch {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]fleet.ExceptionEventSearch(nil), a.searches...)
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		rules:   []fleet.Rule{{ID: "r2", Name: "Speeding"}, {ID: "r1", Name: "Idling"}},
		devices: []fleet.Device{{ID: "d1", Name: "Truck 1"}},
		events: []fleet.ExceptionEvent{
			{Rule: fleet.Ref{ID: "r2"}, Device: fleet.Ref{ID: "d1"}, ActiveFrom: time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC), Duration: 36000000000},
		},
	}
}

func newManager(t *testing.T, api fleet.API) (*Manager, *MemoryStore) {
	store := newMemoryStore(t)
	m := NewManager(api, store, logger.NopLogger(), ManagerConfig{
		Collation: language.English,
		Runner: exceptions.RunnerConfig{
			Location: time.UTC,
			Now:      func() time.Time { return time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC) },
		},
	})
	return m, store
}

func TestManager_Open(t *testing.T) {
	api := newStubAPI()
	m, _ := newManager(t, api)
	results := exceptions.NewResults()

	s, err := m.Open(context.Background(), results)
	require.NoError(t, err)

	assert.Equal(t, StateReady, s.State())
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 2, api.lookups)

	opts := s.RuleControl.Options()
	require.Len(t, opts, 3)
	assert.Equal(t, "All Rules", opts[0].Label)
	assert.Equal(t, "Idling", opts[1].Label)
	assert.Equal(t, "Speeding", opts[2].Label)

	searches := api.Searches()
	require.Len(t, searches, 1)
	assert.Empty(t, searches[0].RuleID)
	assert.Empty(t, searches[0].DeviceID)

	view := results.View()
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "Speeding", view.Rows[0].Rule)
	assert.Equal(t, "Truck 1", view.Rows[0].Asset)
}

func TestManager_OpenWithSelectionRunsOnce(t *testing.T) {
	api := newStubAPI()
	m, store := newManager(t, api)
	results := exceptions.NewResults()

	s, err := m.OpenWith(context.Background(), results, exceptions.Selection{RuleID: "r2", DeviceID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, exceptions.Selection{RuleID: "r2", DeviceID: "d1"}, s.Selection())

	searches := api.Searches()
	require.Len(t, searches, 1)
	assert.Equal(t, "r2", searches[0].RuleID)
	assert.Equal(t, "d1", searches[0].DeviceID)
	assert.Len(t, results.View().Rows, 1)

	rec, err := store.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, exceptions.Selection{RuleID: "r2", DeviceID: "d1"}, rec.Selection)
}

func TestManager_OpenLookupFailure(t *testing.T) {
	api := newStubAPI()
	api.rulesErr = errors.New("unauthorized")
	m, store := newManager(t, api)
	results := exceptions.NewResults()

	s, err := m.Open(context.Background(), results)
	require.NoError(t, err)

	assert.Equal(t, StateFailed, s.State())
	assert.Empty(t, api.Searches())

	view := results.View()
	assert.Equal(t, "Could not load initial data. Please refresh.", view.LoadingText)
	assert.Empty(t, view.Rows)
	assert.Nil(t, view.Notice)
	assert.Len(t, s.RuleControl.Options(), 1)

	_, err = store.Load(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Apply(context.Background(), exceptions.Selection{}), ErrNotReady)
}

func TestManager_ResumeDoesNotRefetchLookups(t *testing.T) {
	api := newStubAPI()
	m, _ := newManager(t, api)

	opened, err := m.Open(context.Background(), exceptions.NewResults())
	require.NoError(t, err)

	results := exceptions.NewResults()
	s, err := m.Resume(context.Background(), opened.ID, results)
	require.NoError(t, err)

	assert.Equal(t, 2, api.lookups)
	assert.Equal(t, StateReady, s.State())

	require.NoError(t, s.Apply(context.Background(), exceptions.Selection{RuleID: "r2"}))

	searches := api.Searches()
	require.Len(t, searches, 2)
	assert.Equal(t, "r2", searches[1].RuleID)
	assert.Empty(t, searches[1].DeviceID)
	assert.Len(t, results.View().Rows, 1)
}

func TestSession_ApplyRunsOncePerChangedControl(t *testing.T) {
	api := newStubAPI()
	m, _ := newManager(t, api)

	s, err := m.Open(context.Background(), exceptions.NewResults())
	require.NoError(t, err)

	require.NoError(t, s.Apply(context.Background(), exceptions.Selection{RuleID: "r1", DeviceID: "d1"}))

	searches := api.Searches()
	require.Len(t, searches, 3)
	assert.Equal(t, fleet.ExceptionEventSearch{FromDate: searches[1].FromDate, ToDate: searches[1].ToDate, RuleID: "r1"}, searches[1])
	assert.Equal(t, "r1", searches[2].RuleID)
	assert.Equal(t, "d1", searches[2].DeviceID)
}

func TestSession_ApplyUnchangedStillRenders(t *testing.T) {
	api := newStubAPI()
	m, _ := newManager(t, api)

	opened, err := m.Open(context.Background(), exceptions.NewResults())
	require.NoError(t, err)
	require.NoError(t, opened.Apply(context.Background(), exceptions.Selection{DeviceID: "d1"}))

	results := exceptions.NewResults()
	s, err := m.Resume(context.Background(), opened.ID, results)
	require.NoError(t, err)
	assert.Equal(t, exceptions.Selection{DeviceID: "d1"}, s.Selection())

	require.NoError(t, s.Apply(context.Background(), exceptions.Selection{DeviceID: "d1"}))

	searches := api.Searches()
	require.Len(t, searches, 3)
	assert.Equal(t, "d1", searches[2].DeviceID)
	assert.Len(t, results.View().Rows, 1)
}

func TestManager_ResumeUnknown(t *testing.T) {
	m, _ := newManager(t, newStubAPI())

	_, err := m.Resume(context.Background(), "nope", exceptions.NewResults())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Close(t *testing.T) {
	m, _ := newManager(t, newStubAPI())

	s, err := m.Open(context.Background(), exceptions.NewResults())
	require.NoError(t, err)
	require.NoError(t, m.Close(context.Background(), s.ID))

	_, err = m.Resume(context.Background(), s.ID, exceptions.NewResults())
	assert.ErrorIs(t, err, ErrNotFound)
}
