package ingest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"notifyx/internal/constants"
	"notifyx/internal/logger"
	"notifyx/internal/messages"
	"notifyx/internal/status"
	"notifyx/pkg/errors"
	"notifyx/pkg/models"
)

// Handler is the api-service HTTP surface. The project id comes from the
// X-Project-ID header, set by the authenticating layer in front of this
// service; a request without it is rejected before any work happens.
type Handler struct {
	service *Service
	repo    *messages.Repository
	tracker *status.Tracker
	logger  logger.Logger
}

func NewHandler(service *Service, repo *messages.Repository, tracker *status.Tracker, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		repo:    repo,
		tracker: tracker,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		notifications := api.Group("/notifications")
		{
			notifications.POST("", h.CreateNotification)
			notifications.GET("/:id/status", h.GetNotificationStatus)
		}

		users := api.Group("/users/:recipient")
		{
			users.GET("/notifications", h.ListUserNotifications)
			users.GET("/messages", h.ListUserMessages)
			users.GET("/messages/unread-count", h.GetUnreadCount)
		}

		msgs := api.Group("/messages")
		{
			msgs.PUT("/:id/read", h.MarkMessageRead)
			msgs.DELETE("/:id", h.DeleteMessage)
		}

		api.GET("/projects/messages/stats", h.GetProjectStats)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) projectID(c *gin.Context) (string, bool) {
	projectID := c.GetHeader(constants.ProjectIDHeader)
	if projectID == "" {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithMessage("missing "+constants.ProjectIDHeader+" header")))
		return "", false
	}
	return projectID, true
}

func listLimit(c *gin.Context) int {
	limit := constants.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > constants.MaxListLimit {
		limit = constants.MaxListLimit
	}
	return limit
}

func (h *Handler) CreateNotification(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	var req models.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	notificationID, err := h.service.Ingest(c.Request.Context(), projectID, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"notificationId": notificationID,
		"status":         models.StatusPending,
	})
}

func (h *Handler) GetNotificationStatus(c *gin.Context) {
	record, found, err := h.tracker.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, errors.ToErrorResponse(
			errors.ErrNotFound.WithMessage("no status for notification "+c.Param("id"))))
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) ListUserNotifications(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	records, err := h.tracker.ListRecent(c.Request.Context(), projectID, c.Param("recipient"), listLimit(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": records, "count": len(records)})
}

func (h *Handler) ListUserMessages(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	msgs, err := h.repo.ListForUser(c.Request.Context(), projectID, c.Param("recipient"), listLimit(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

func (h *Handler) GetUnreadCount(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	count, err := h.repo.UnreadCount(c.Request.Context(), projectID, c.Param("recipient"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

func (h *Handler) MarkMessageRead(c *gin.Context) {
	msg, found, err := h.repo.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, errors.ToErrorResponse(
			errors.ErrNotFound.WithMessage("no message with id "+c.Param("id"))))
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetProjectStats(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	stats, err := h.repo.Stats(c.Request.Context(), projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
