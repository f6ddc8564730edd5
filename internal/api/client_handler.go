package api

import (
	"net/http"
	"strings"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	clientService service.ClientService
}

func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// --- DTOs ---

type ClientRequest struct {
	FirstName   string              `json:"firstName" binding:"required"`
	LastName    string              `json:"lastName"`
	DateOfBirth *time.Time          `json:"dateOfBirth"`
	Diagnosis   string              `json:"diagnosis"`
	Notes       string              `json:"notes"`
	Status      domain.ClientStatus `json:"status" binding:"omitempty,oneof=active archived"`
}

func (r ClientRequest) input() service.ClientInput {
	return service.ClientInput{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
		Diagnosis:   r.Diagnosis,
		Notes:       r.Notes,
		Status:      r.Status,
	}
}

type GoalRequest struct {
	Description string            `json:"description" binding:"required"`
	Category    string            `json:"category"`
	TargetDate  *time.Time        `json:"targetDate"`
	Status      domain.GoalStatus `json:"status"`
	Progress    *int              `json:"progress"`
}

func (r GoalRequest) input() service.GoalInput {
	return service.GoalInput{
		Description: r.Description,
		Category:    r.Category,
		TargetDate:  r.TargetDate,
		Status:      r.Status,
		Progress:    r.Progress,
	}
}

// ParentResponse is the therapist's view of a linked parent account.
type ParentResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// --- Handler Methods ---

// ListClients returns the therapist's clients.
// GET /api/clients?search=&status=&goalStatus=&hasParent=&page=&limit=
func (h *ClientHandler) ListClients(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	hasParent, ok := boolQuery(c, "hasParent")
	if !ok {
		return
	}

	filter := repository.ClientFilter{
		TherapistID: therapistID,
		Search:      strings.TrimSpace(c.Query("search")),
		Status:      domain.ClientStatus(c.Query("status")),
		GoalStatus:  domain.GoalStatus(c.Query("goalStatus")),
		HasParent:   hasParent,
		Page:        page,
	}
	result, err := h.clientService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateClient adds a client, subject to the tier's client limit.
// POST /api/clients
func (h *ClientHandler) CreateClient(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req ClientRequest
	if !bindJSON(c, &req) {
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), therapistID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// GET /api/clients/:clientId
func (h *ClientHandler) GetClient(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}

	client, err := h.clientService.Get(c.Request.Context(), therapistID, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// PUT /api/clients/:clientId
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	var req ClientRequest
	if !bindJSON(c, &req) {
		return
	}

	client, err := h.clientService.Update(c.Request.Context(), therapistID, clientID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient removes the client with its sessions and media.
// DELETE /api/clients/:clientId
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}

	if err := h.clientService.Delete(c.Request.Context(), therapistID, clientID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/clients/:clientId/goals
func (h *ClientHandler) AddGoal(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	var req GoalRequest
	if !bindJSON(c, &req) {
		return
	}

	goal, err := h.clientService.AddGoal(c.Request.Context(), therapistID, clientID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, goal)
}

// PUT /api/clients/:clientId/goals/:goalId
func (h *ClientHandler) UpdateGoal(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	goalID, ok := pathID(c, "goalId")
	if !ok {
		return
	}
	var req GoalRequest
	if !bindJSON(c, &req) {
		return
	}

	goal, err := h.clientService.UpdateGoal(c.Request.Context(), therapistID, clientID, goalID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

// DELETE /api/clients/:clientId/goals/:goalId
func (h *ClientHandler) DeleteGoal(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	goalID, ok := pathID(c, "goalId")
	if !ok {
		return
	}

	if err := h.clientService.DeleteGoal(c.Request.Context(), therapistID, clientID, goalID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/clients/:clientId/parents
func (h *ClientHandler) ListParents(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}

	parents, err := h.clientService.ListParents(c.Request.Context(), therapistID, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]ParentResponse, len(parents))
	for i, p := range parents {
		resp[i] = ParentResponse{ID: p.ID.Hex(), Name: p.Name, Email: p.Email}
	}
	c.JSON(http.StatusOK, resp)
}

// DELETE /api/clients/:clientId/parents/:parentId
func (h *ClientHandler) UnlinkParent(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	parentID, ok := pathID(c, "parentId")
	if !ok {
		return
	}

	if err := h.clientService.UnlinkParent(c.Request.Context(), therapistID, clientID, parentID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
