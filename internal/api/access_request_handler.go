package api

import (
	"net/http"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AccessRequestHandler struct {
	requestService service.AccessRequestService
}

func NewAccessRequestHandler(requestService service.AccessRequestService) *AccessRequestHandler {
	return &AccessRequestHandler{requestService: requestService}
}

type CreateAccessRequestRequest struct {
	TherapistEmail string `json:"therapistEmail" binding:"required,email"`
	ChildName      string `json:"childName" binding:"required"`
	Message        string `json:"message" binding:"max=1000"`
}

type ApproveAccessRequestRequest struct {
	ClientID string `json:"clientId" binding:"required"`
}

// --- Parent side ---

// CreateRequest asks a therapist to link the parent to one of their clients.
// POST /api/accessrequests
func (h *AccessRequestHandler) CreateRequest(c *gin.Context) {
	parentID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req CreateAccessRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.requestService.Create(c.Request.Context(), parentID, req.TherapistEmail, req.ChildName, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GET /api/accessrequests/mine
func (h *AccessRequestHandler) ListMine(c *gin.Context) {
	parentID, ok := mustUserID(c)
	if !ok {
		return
	}

	requests, err := h.requestService.ListForParent(c.Request.Context(), parentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilRequests(requests))
}

// CancelRequest withdraws one of the parent's pending requests.
// DELETE /api/accessrequests/:requestId
func (h *AccessRequestHandler) CancelRequest(c *gin.Context) {
	parentID, ok := mustUserID(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}

	if err := h.requestService.Cancel(c.Request.Context(), parentID, requestID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Therapist side ---

// GET /api/accessrequests/incoming?status=pending
func (h *AccessRequestHandler) ListIncoming(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}

	status := domain.AccessRequestStatus(c.Query("status"))
	requests, err := h.requestService.ListForTherapist(c.Request.Context(), therapistID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilRequests(requests))
}

// ApproveRequest links the parent to the chosen client.
// POST /api/accessrequests/:requestId/approve
func (h *AccessRequestHandler) ApproveRequest(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}
	var req ApproveAccessRequestRequest
	if !bindJSON(c, &req) {
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format")
		return
	}

	approved, err := h.requestService.Approve(c.Request.Context(), therapistID, requestID, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approved)
}

// POST /api/accessrequests/:requestId/reject
func (h *AccessRequestHandler) RejectRequest(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}

	rejected, err := h.requestService.Reject(c.Request.Context(), therapistID, requestID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rejected)
}

func nonNilRequests(requests []domain.AccessRequest) []domain.AccessRequest {
	if requests == nil {
		return []domain.AccessRequest{}
	}
	return requests
}
