package handler

import (
	"net/http"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	service service.ReservationService
}

func NewReservationHandler(service service.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

func (h *ReservationHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("reservations", h.GetReservations)
		router.GET("reservations/:id", h.GetReservation)
		router.PATCH("reservations/:id", h.ExchangeReservation)
		router.DELETE("reservations/:id", h.CancelReservation)
	}
}

func (h *ReservationHandler) GetReservations(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	reservations, err := h.service.ListReservations(c, userID)
	if err != nil {
		handleError(c, err, "GetReservations")
		return
	}
	c.JSON(http.StatusOK, reservations)
}

func (h *ReservationHandler) GetReservation(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	reservation, err := h.service.GetReservationByID(c, userID, id)
	if err != nil {
		handleError(c, err, "GetReservation")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// CancelReservation frees the seat and issues a refund when the event's
// refund window still allows one.
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	reservation, err := h.service.Cancel(c, userID, id)
	if err != nil {
		handleError(c, err, "CancelReservation")
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// ExchangeReservation moves a reservation to another event of the same
// kind, charging or refunding the price difference.
func (h *ReservationHandler) ExchangeReservation(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	var req model.ExchangeRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	req.UserID = userID

	reservation, err := h.service.Exchange(c, id, req)
	if err != nil {
		handleError(c, err, "ExchangeReservation")
		return
	}
	c.JSON(http.StatusOK, reservation)
}
