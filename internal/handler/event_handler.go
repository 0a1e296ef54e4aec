package handler

import (
	"net/http"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	service   service.EventService
	waitQueue service.WaitQueueService
}

func NewEventHandler(service service.EventService, waitQueue service.WaitQueueService) *EventHandler {
	return &EventHandler{service: service, waitQueue: waitQueue}
}

func (h *EventHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("events", h.GetEvents)
		router.GET("events/:id", h.GetEvent)
		router.POST("events", h.CreateEvent)
		router.PATCH("events/:id", h.UpdateEvent)
		router.DELETE("events/:id", h.DeactivateEvent)
		router.POST("events/:id/notify", h.NotifyWaitQueue)
	}
}

func (h *EventHandler) GetEvents(c *gin.Context) {
	activeOnly := c.Query("all") != "true"
	events, err := h.service.ListEvents(c, activeOnly)
	if err != nil {
		handleError(c, err, "GetEvents")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	event, err := h.service.GetEventByID(c, id)
	if err != nil {
		handleError(c, err, "GetEvent")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req model.CreateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	event, err := h.service.CreateEvent(c, req)
	if err != nil {
		handleError(c, err, "CreateEvent")
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *EventHandler) UpdateEvent(c *gin.Context) {
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	event, err := h.service.UpdateEvent(c, id, req.Params())
	if err != nil {
		handleError(c, err, "UpdateEvent")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) DeactivateEvent(c *gin.Context) {
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeactivateEvent(c, id); err != nil {
		handleError(c, err, "DeactivateEvent")
		return
	}
	c.Status(http.StatusNoContent)
}

// NotifyWaitQueue triggers a wait-queue sweep for one event on demand,
// outside the periodic scheduler.
func (h *EventHandler) NotifyWaitQueue(c *gin.Context) {
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.waitQueue.Notify(c, id)
	if err != nil {
		handleError(c, err, "NotifyWaitQueue")
		return
	}
	c.JSON(http.StatusOK, result)
}
