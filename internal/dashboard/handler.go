package dashboard

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"exboard/internal/constants"
	"exboard/internal/exceptions"
	"exboard/internal/filters"
	"exboard/internal/logger"
	"exboard/internal/session"
	apperrors "exboard/pkg/errors"
	"exboard/pkg/logging"
)

type pageData struct {
	SessionID        string
	Failed           bool
	RuleOptions      []filters.Option
	AssetOptions     []filters.Option
	SelectedRule     string
	SelectedAsset    string
	View             exceptions.View
	LoadingMessage   string
	FetchErrorPrefix string
}

// ResultsResponse is the JSON form of a rendered query.
type ResultsResponse struct {
	SessionID string               `json:"sessionId"`
	Selection exceptions.Selection `json:"selection"`
	exceptions.View
}

type Handler struct {
	Manager *session.Manager
	Logger  logger.Logger
}

func NewHandler(manager *session.Manager, log logger.Logger) *Handler {
	return &Handler{
		Manager: manager,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Index)
	router.GET("/sessions/:id/exceptions", h.ResultsFragment)

	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:id/exceptions", h.Results)
			sessions.DELETE("/:id", h.CloseSession)
		}
	}
}

// Index godoc
// @Summary      Dashboard page
// @Description  Opens a session, loads lookups and renders the unfiltered previous-day exceptions
// @Tags         dashboard
// @Produce      html
// @Success      200
// @Failure      500  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       / [get]
func (h *Handler) Index(c *gin.Context) {
	results := exceptions.NewResults()

	s, err := h.Manager.Open(c.Request.Context(), results)
	if err != nil {
		if !errors.Is(err, session.ErrCapacity) {
			err = apperrors.Wrap(err, apperrors.ErrInternal)
		}
		h.HandleError(c, err)
		return
	}

	data := pageData{
		Failed:           s.State() == session.StateFailed,
		RuleOptions:      s.RuleControl.Options(),
		AssetOptions:     s.AssetControl.Options(),
		View:             results.View(),
		LoadingMessage:   constants.LoadingMessage,
		FetchErrorPrefix: constants.FetchErrorPrefix,
	}
	if !data.Failed {
		data.SessionID = s.ID
		sel := s.Selection()
		data.SelectedRule = sel.RuleID
		data.SelectedAsset = sel.DeviceID
	}

	h.renderHTML(c, "page", data)
}

// ResultsFragment godoc
// @Summary      Results table body
// @Description  Applies the filter selection and renders the table rows; 204 when a newer query superseded this one.
// @Description  Failures are rendered as a single error row with the matching status.
// @Tags         dashboard
// @Produce      html
// @Param        id        path   string  true   "Session ID"
// @Param        ruleId    query  string  false  "Rule ID"
// @Param        deviceId  query  string  false  "Device ID"
// @Success      200
// @Success      204
// @Failure      404
// @Router       /sessions/{id}/exceptions [get]
func (h *Handler) ResultsFragment(c *gin.Context) {
	view, _, ok := h.apply(c, h.handleFragmentError)
	if !ok {
		return
	}
	h.renderHTML(c, "rows", view)
}

// Results godoc
// @Summary      Query results as JSON
// @Description  Applies the filter selection and returns the rendered rows; 204 when superseded
// @Tags         sessions
// @Produce      json
// @Param        id        path   string  true   "Session ID"
// @Param        ruleId    query  string  false  "Rule ID"
// @Param        deviceId  query  string  false  "Device ID"
// @Success      200  {object}  ResultsResponse
// @Success      204
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/v1/sessions/{id}/exceptions [get]
func (h *Handler) Results(c *gin.Context) {
	view, sel, ok := h.apply(c, h.HandleError)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ResultsResponse{
		SessionID: c.Param("id"),
		Selection: sel,
		View:      view,
	})
}

// CloseSession godoc
// @Summary      Close a session
// @Tags         sessions
// @Param        id   path  string  true  "Session ID"
// @Success      204
// @Failure      500  {object}  map[string]interface{}
// @Router       /api/v1/sessions/{id} [delete]
func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.Manager.Close(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleFragmentError answers a fragment request with an error row the page
// can insert as is.
func (h *Handler) handleFragmentError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	detail, _ := apperrors.ToErrorResponse(err)["error"].(string)
	view := exceptions.View{
		Notice: &exceptions.Notice{Kind: exceptions.NoticeError, Text: constants.FetchErrorPrefix + detail},
	}
	h.renderHTMLStatus(c, apperrors.ToHTTPStatus(err), "rows", view)
}

// apply resumes the session and runs the selection from the query string. It
// writes the response itself, through fail on errors, unless ok is true.
func (h *Handler) apply(c *gin.Context, fail func(*gin.Context, error)) (exceptions.View, exceptions.Selection, bool) {
	id := c.Param("id")
	ctx := logging.WithSessionID(c.Request.Context(), id)
	sel := exceptions.Selection{
		RuleID:   c.Query("ruleId"),
		DeviceID: c.Query("deviceId"),
	}

	results := exceptions.NewResults()
	s, err := h.Manager.Resume(ctx, id, results)
	if err != nil {
		fail(c, err)
		return exceptions.View{}, sel, false
	}

	if err := s.Apply(ctx, sel); err != nil {
		if errors.Is(err, exceptions.ErrSuperseded) {
			c.Status(http.StatusNoContent)
			return exceptions.View{}, sel, false
		}
		if errors.Is(err, session.ErrNotReady) {
			fail(c, err)
			return exceptions.View{}, sel, false
		}
		// query failures are already rendered as an error row
	}
	return results.View(), sel, true
}

func (h *Handler) renderHTML(c *gin.Context, name string, data interface{}) {
	h.renderHTMLStatus(c, http.StatusOK, name, data)
}

func (h *Handler) renderHTMLStatus(c *gin.Context, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, name, data); err != nil {
		h.HandleError(c, apperrors.Wrap(err, apperrors.ErrInternal))
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
