package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"exboard/internal/exceptions"
	"exboard/internal/fleet"
	"exboard/internal/logger"
	"exboard/internal/session"
)

type fakeAPI struct {
	mu        sync.Mutex
	lookupErr error
	eventsErr error
	searches  []fleet.ExceptionEventSearch
}

func (a *fakeAPI) GetRules(ctx context.Context) ([]fleet.Rule, error) {
	return []fleet.Rule{{ID: "r2", Name: "Speeding"}, {ID: "r1", Name: "Harsh Braking"}}, a.lookupErr
}

func (a *fakeAPI) GetDevices(ctx context.Context) ([]fleet.Device, error) {
	return []fleet.Device{{ID: "d1", Name: "Truck <1>"}}, nil
}

func (a *fakeAPI) GetExceptionEvents(ctx context.Context, search fleet.ExceptionEventSearch) ([]fleet.ExceptionEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches = append(a.searches, search)
	if a.eventsErr != nil {
		return nil, a.eventsErr
	}
	if search.RuleID == "r1" {
		return nil, nil
	}
	return []fleet.ExceptionEvent{
		{Rule: fleet.Ref{ID: "r2"}, Device: fleet.Ref{ID: "d1"}, ActiveFrom: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC), Duration: 36610000000},
	}, nil
}

func setupRouter(t *testing.T, api fleet.API) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := session.NewMemoryStore(session.MemoryStoreConfig{MaxSessions: 100, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	manager := session.NewManager(api, store, logger.NopLogger(), session.ManagerConfig{
		Collation: language.English,
		Runner: exceptions.RunnerConfig{
			Location: time.UTC,
			Now:      func() time.Time { return time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC) },
		},
	})

	router := gin.New()
	NewHandler(manager, logger.NopLogger()).RegisterRoutes(router)
	return router
}

var sessionAttr = regexp.MustCompile(`data-session="([^"]*)"`)

func openSession(t *testing.T, router *gin.Engine) (string, string) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	m := sessionAttr.FindStringSubmatch(w.Body.String())
	require.Len(t, m, 2)
	return m[1], w.Body.String()
}

func TestIndex_RendersPage(t *testing.T) {
	router := setupRouter(t, &fakeAPI{})

	id, body := openSession(t, router)
	assert.NotEmpty(t, id)

	assert.Contains(t, body, `<option value="" selected>All Rules</option>`)
	assert.Contains(t, body, `<option value="" selected>All Assets</option>`)
	assert.Regexp(t, `(?s)Harsh Braking.*Speeding`, body)
	assert.Contains(t, body, "Truck &lt;1&gt;")
	assert.Contains(t, body, "<td>3/14/2024, 9:00:00 AM</td>")
	assert.Contains(t, body, "<td>01:01:01</td>")
	assert.Contains(t, body, `id="loading" class="hidden"`)
}

func TestIndex_InitFailure(t *testing.T) {
	api := &fakeAPI{lookupErr: errors.New("unauthorized")}
	router := setupRouter(t, api)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Could not load initial data. Please refresh.")
	assert.Contains(t, body, `data-session=""`)
	assert.Empty(t, api.searches)
}

func TestResultsFragment(t *testing.T) {
	api := &fakeAPI{}
	router := setupRouter(t, api)
	id, _ := openSession(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/exceptions?ruleId=r1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<tr class="notice info"><td colspan="4">No exceptions found for the selected criteria.</td></tr>`, w.Body.String())

	require.Len(t, api.searches, 2)
	assert.Equal(t, "r1", api.searches[1].RuleID)
	assert.Empty(t, api.searches[1].DeviceID)
}

func TestResultsFragment_QueryError(t *testing.T) {
	api := &fakeAPI{}
	router := setupRouter(t, api)
	id, _ := openSession(t, router)
	api.eventsErr = errors.New("timeout")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/exceptions?deviceId=d1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="notice error"`)
	assert.Contains(t, w.Body.String(), "Error fetching data: timeout")
}

func TestResultsFragment_UnknownSession(t *testing.T) {
	router := setupRouter(t, &fakeAPI{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/nope/exceptions", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `<tr class="notice error"><td colspan="4">Error fetching data: session not found</td></tr>`, w.Body.String())
}

func TestResultsFragment_ExpiredSession(t *testing.T) {
	router := setupRouter(t, &fakeAPI{})
	id, _ := openSession(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/exceptions?ruleId=r2", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `class="notice error"`)
	assert.Contains(t, w.Body.String(), "Error fetching data: session not found")
}

func TestIndex_ScriptRendersFailures(t *testing.T) {
	router := setupRouter(t, &fakeAPI{})
	_, body := openSession(t, router)

	assert.Contains(t, body, "function showError(detail)")
	assert.Contains(t, body, `"Error fetching data: " + detail`)
	assert.Contains(t, body, "JSON.parse(res.text).error")
	assert.Contains(t, body, ".catch(function(err){")
}

func TestResults_UnknownSessionJSON(t *testing.T) {
	router := setupRouter(t, &fakeAPI{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope/exceptions", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestResults_JSON(t *testing.T) {
	router := setupRouter(t, &fakeAPI{})
	id, _ := openSession(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/exceptions?ruleId=r2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, "r2", resp.Selection.RuleID)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, exceptions.Row{When: "3/14/2024, 9:00:00 AM", Asset: "Truck <1>", Rule: "Speeding", Duration: "01:01:01"}, resp.Rows[0])
	assert.Nil(t, resp.Notice)
}

func TestCloseSession(t *testing.T) {
	router := setupRouter(t, &fakeAPI{})
	id, _ := openSession(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/exceptions", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
