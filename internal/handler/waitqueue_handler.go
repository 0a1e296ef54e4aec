package handler

import (
	"net/http"

	"retreat-booking-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type WaitQueueHandler struct {
	service service.WaitQueueService
}

func NewWaitQueueHandler(service service.WaitQueueService) *WaitQueueHandler {
	return &WaitQueueHandler{service: service}
}

func (h *WaitQueueHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.POST("waitqueue", h.Subscribe)
		router.DELETE("waitqueue/:eventId", h.Unsubscribe)
		router.GET("notifications", h.GetNotifications)
	}
}

type subscribeRequest struct {
	EventID int64 `json:"event_id" binding:"required"`
}

func (h *WaitQueueHandler) Subscribe(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	var req subscribeRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	entry, err := h.service.Subscribe(c, userID, req.EventID)
	if err != nil {
		handleError(c, err, "SubscribeWaitQueue")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *WaitQueueHandler) Unsubscribe(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	eventID, ok := IDParam(c, "eventId")
	if !ok {
		return
	}
	if err := h.service.Unsubscribe(c, userID, eventID); err != nil {
		handleError(c, err, "UnsubscribeWaitQueue")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetNotifications lists the caller's seat-freed notifications, newest
// first.
func (h *WaitQueueHandler) GetNotifications(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	notifications, err := h.service.ListNotifications(c, userID)
	if err != nil {
		handleError(c, err, "GetNotifications")
		return
	}
	c.JSON(http.StatusOK, notifications)
}
