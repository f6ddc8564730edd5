package api

import (
	"net/http"
	"strconv"

	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ClientProgress streams a PDF progress report, counted against the monthly report limit.
// GET /api/reports/clients/:clientId?from=&to=
func (h *ReportHandler) ClientProgress(c *gin.Context) {
	therapistID, ok := mustUserID(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
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
	if from != nil && to != nil && to.Before(*from) {
		abortWithError(c, http.StatusBadRequest, "to must not be before from")
		return
	}

	report, err := h.reportService.ClientProgress(c.Request.Context(), therapistID, clientID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(report.FileName))
	c.Data(http.StatusOK, "application/pdf", report.Content)
}
