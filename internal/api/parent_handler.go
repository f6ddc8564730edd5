package api

import (
	"net/http"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
)

// ParentHandler serves the read-only parent portal.
type ParentHandler struct {
	parentService service.ParentService
}

func NewParentHandler(parentService service.ParentService) *ParentHandler {
	return &ParentHandler{parentService: parentService}
}

// ParentClientView hides the therapist's clinical notes and other parents' ids.
type ParentClientView struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	DateOfBirth *time.Time    `json:"dateOfBirth,omitempty"`
	Status      string        `json:"status"`
	Goals       []domain.Goal `json:"goals"`
}

// ParentSessionView omits the therapist's private notes.
type ParentSessionView struct {
	ID              string                `json:"id"`
	Date            time.Time             `json:"date"`
	DurationMinutes int                   `json:"durationMinutes"`
	Activities      []domain.Activity     `json:"activities"`
	Observations    string                `json:"observations,omitempty"`
	GoalProgress    []domain.GoalProgress `json:"goalProgress,omitempty"`
	MediaIDs        []string              `json:"mediaIds"`
}

type parentPage[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func mapParentClient(client *domain.Client) ParentClientView {
	goals := client.Goals
	if goals == nil {
		goals = []domain.Goal{}
	}
	return ParentClientView{
		ID:          client.ID.Hex(),
		FirstName:   client.FirstName,
		LastName:    client.LastName,
		DateOfBirth: client.DateOfBirth,
		Status:      string(client.Status),
		Goals:       goals,
	}
}

func mapParentSession(session *domain.Session) ParentSessionView {
	mediaIDs := make([]string, len(session.MediaIDs))
	for i, id := range session.MediaIDs {
		mediaIDs[i] = id.Hex()
	}
	return ParentSessionView{
		ID:              session.ID.Hex(),
		Date:            session.Date,
		DurationMinutes: session.DurationMinutes,
		Activities:      session.Activities,
		Observations:    session.Observations,
		GoalProgress:    session.GoalProgress,
		MediaIDs:        mediaIDs,
	}
}

// GET /api/parent/clients
func (h *ParentHandler) ListClients(c *gin.Context) {
	parentID, ok := mustUserID(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	result, err := h.parentService.ListClients(c.Request.Context(), parentID, page)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := parentPage[ParentClientView]{Items: make([]ParentClientView, len(result.Items)), Total: result.Total, Page: result.Page, Limit: result.Limit}
	for i := range result.Items {
		resp.Items[i] = mapParentClient(&result.Items[i])
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/parent/clients/:clientId
func (h *ParentHandler) GetClient(c *gin.Context) {
	parentID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}

	client, err := h.parentService.GetClient(c.Request.Context(), parentID, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapParentClient(client))
}

// ListSessions returns only the sessions the therapist shared with parents.
// GET /api/parent/clients/:clientId/sessions
func (h *ParentHandler) ListSessions(c *gin.Context) {
	parentID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	result, err := h.parentService.ListSharedSessions(c.Request.Context(), parentID, clientID, page)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := parentPage[ParentSessionView]{Items: make([]ParentSessionView, len(result.Items)), Total: result.Total, Page: result.Page, Limit: result.Limit}
	for i := range result.Items {
		resp.Items[i] = mapParentSession(&result.Items[i])
	}
	c.JSON(http.StatusOK, resp)
}
