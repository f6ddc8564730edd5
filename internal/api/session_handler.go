package api

import (
	"net/http"
	"strings"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionHandler struct {
	sessionService service.SessionService
	mediaService   service.MediaService
}

func NewSessionHandler(sessionService service.SessionService, mediaService service.MediaService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, mediaService: mediaService}
}

// --- DTOs ---

type SessionRequest struct {
	ClientID          string                `json:"clientId" binding:"required"`
	Date              time.Time             `json:"date" binding:"required"`
	DurationMinutes   int                   `json:"durationMinutes"`
	Activities        []domain.Activity     `json:"activities"`
	Observations      string                `json:"observations"`
	Notes             string                `json:"notes"`
	GoalProgress      []domain.GoalProgress `json:"goalProgress"`
	SharedWithParents bool                  `json:"sharedWithParents"`
}

type FromTemplateRequest struct {
	TemplateID string    `json:"templateId" binding:"required"`
	ClientID   string    `json:"clientId" binding:"required"`
	Date       time.Time `json:"date" binding:"required"`
}

func (r SessionRequest) input(c *gin.Context) (service.SessionInput, bool) {
	clientID, err := primitive.ObjectIDFromHex(r.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format")
		return service.SessionInput{}, false
	}
	return service.SessionInput{
		ClientID:          clientID,
		Date:              r.Date,
		DurationMinutes:   r.DurationMinutes,
		Activities:        r.Activities,
		Observations:      r.Observations,
		Notes:             r.Notes,
		GoalProgress:      r.GoalProgress,
		SharedWithParents: r.SharedWithParents,
	}, true
}

// --- Handler Methods ---

// ListSessions returns the therapist's sessions, newest first.
// GET /api/sessions?clientId=&from=&to=&activity=&page=&limit=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := optionalObjectID(c, "clientId", c.Query("clientId"))
	if !ok {
		return
	}
	from, ok := timeQuery(c, "from", false)
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to", true)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}

	filter := repository.SessionFilter{
		TherapistID: therapistID,
		ClientID:    clientID,
		From:        from,
		To:          to,
		Activity:    strings.TrimSpace(c.Query("activity")),
		Page:        page,
	}
	result, err := h.sessionService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateSession records a session, subject to the monthly session limit.
// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	input, ok := req.input(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Create(c.Request.Context(), therapistID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// CreateFromTemplate starts a session pre-filled with a template's activities.
// POST /api/sessions/from-template
func (h *SessionHandler) CreateFromTemplate(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req FromTemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	templateID, err := primitive.ObjectIDFromHex(req.TemplateID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid templateId format")
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format")
		return
	}

	session, err := h.sessionService.CreateFromTemplate(c.Request.Context(), therapistID, templateID, clientID, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GET /api/sessions/:sessionId
func (h *SessionHandler) GetSession(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}

	session, err := h.sessionService.Get(c.Request.Context(), therapistID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// PUT /api/sessions/:sessionId
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	var req SessionRequest
	if !bindJSON(c, &req) {
		return
	}
	input, ok := req.input(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Update(c.Request.Context(), therapistID, sessionID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// DeleteSession removes the session and its media.
// DELETE /api/sessions/:sessionId
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}

	if err := h.sessionService.Delete(c.Request.Context(), therapistID, sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/sessions/:sessionId/media
func (h *SessionHandler) ListSessionMedia(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}

	media, err := h.mediaService.ListForSession(c.Request.Context(), therapistID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, media)
}
