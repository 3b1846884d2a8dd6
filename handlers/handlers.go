package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"civiceye/engine"
	"civiceye/metrics"
	"civiceye/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// ComplaintCreator is the write path for new submissions.
type ComplaintCreator interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) (int64, error)
}

// Decider is the decision engine surface used by admin endpoints.
type Decider interface {
	Decide(ctx context.Context, req engine.DecideRequest) (*models.ComplaintDetail, error)
	UpdateStatus(ctx context.Context, adminID, complaintID int64, status models.Status) error
}

// Queries is the read-side projection surface.
type Queries interface {
	ListByReporter(ctx context.Context, reporterID int64) ([]models.ReviewItem, error)
	ListForReview(ctx context.Context, filter models.Status) ([]models.ReviewItem, error)
	GetDetail(ctx context.Context, id int64) (*models.ComplaintDetail, error)
}

// Dispatcher hands a submitted complaint to the classification pipeline.
type Dispatcher interface {
	Dispatch(complaintID int64, imagePath string)
}

// ClassifyPublisher publishes a submission for out-of-process scoring.
type ClassifyPublisher interface {
	Publish(message interface{}) error
}

// Handlers wires the HTTP surface to the core components.
type Handlers struct {
	creator    ComplaintCreator
	decider    Decider
	queries    Queries
	dispatcher Dispatcher
	publisher  ClassifyPublisher
}

// New creates the handlers. dispatcher and publisher may be nil, in which
// case submissions are stored without classification being triggered.
func New(creator ComplaintCreator, decider Decider, queries Queries, dispatcher Dispatcher, publisher ClassifyPublisher) *Handlers {
	return &Handlers{
		creator:    creator,
		decider:    decider,
		queries:    queries,
		dispatcher: dispatcher,
		publisher:  publisher,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "civiceye",
	})
}

// SubmitComplaint handles POST /complaint. Classification runs out of band;
// the citizen's request never waits for the scorer.
func (h *Handlers) SubmitComplaint(c *gin.Context) {
	var req models.SubmitComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if req.ComplaintType != "" && !models.ValidCategory(req.ComplaintType) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrInvalidCategory.Error()})
		return
	}

	complaint := &models.Complaint{
		ReporterID:    req.ReporterID,
		ComplaintType: req.ComplaintType,
		Description:   req.Description,
		Location:      req.Location,
		ImagePath:     req.ImagePath,
	}

	id, err := h.creator.CreateComplaint(c.Request.Context(), complaint)
	if err != nil {
		log.Errorf("Failed to save complaint: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save the complaint"})
		return
	}

	metrics.SubmittedTotal.Inc()
	h.triggerClassification(id, req.ImagePath)

	c.JSON(http.StatusOK, models.SubmitComplaintResponse{OK: true, ID: id})
}

// triggerClassification hands the new complaint to the scorer, preferring
// the broker when one is configured.
func (h *Handlers) triggerClassification(id int64, imagePath string) {
	if h.publisher != nil {
		err := h.publisher.Publish(struct {
			ComplaintID int64  `json:"complaint_id"`
			ImagePath   string `json:"image_path"`
		}{ComplaintID: id, ImagePath: imagePath})
		if err == nil {
			return
		}
		log.Errorf("Failed to publish complaint %d for classification: %v", id, err)
	}
	if h.dispatcher != nil {
		h.dispatcher.Dispatch(id, imagePath)
	}
}

// GetStatusByReporter handles GET /complaint/status/:reporter_id.
func (h *Handlers) GetStatusByReporter(c *gin.Context) {
	reporterID, err := strconv.ParseInt(c.Param("reporter_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid reporter id"})
		return
	}

	items, err := h.queries.ListByReporter(c.Request.Context(), reporterID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{OK: true, Complaints: items})
}

// AdminListComplaints handles GET /admin/complaints, oldest first. An
// optional ?status= query narrows by lifecycle state.
func (h *Handlers) AdminListComplaints(c *gin.Context) {
	items, err := h.queries.ListForReview(c.Request.Context(), models.Status(c.Query("status")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ReviewListResponse{OK: true, Items: items})
}

// AdminUpdateStatus handles POST /admin/update_status.
func (h *Handlers) AdminUpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.decider.UpdateStatus(c.Request.Context(), req.AdminID, req.ComplaintID, req.Status); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OKResponse{OK: true})
}

// AdminAIResult handles GET /admin/complaint/:id/ai-result.
func (h *Handlers) AdminAIResult(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid complaint id"})
		return
	}

	detail, err := h.queries.GetDetail(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DetailResponse{OK: true, Item: detail})
}

// AdminDecide handles POST /admin/complaint/:id/decision.
func (h *Handlers) AdminDecide(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid complaint id"})
		return
	}

	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	_, err = h.decider.Decide(c.Request.Context(), engine.DecideRequest{
		ComplaintID:  id,
		AdminID:      req.AdminID,
		Verdict:      req.AIStatus,
		OverrideType: req.OverrideType,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OKResponse{OK: true})
}

// writeError maps core errors to HTTP statuses with the shared envelope.
func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.ErrNotFound.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: models.ErrForbidden.Error()})
	case errors.Is(err, models.ErrInvalidCategory), errors.Is(err, models.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		log.Errorf("Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}
