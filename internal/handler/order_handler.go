package handler

import (
	"net/http"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(service service.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

func (h *OrderHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("orders", h.GetOrders)
		router.GET("orders/:id", h.GetOrder)
		router.POST("orders", h.CreateOrder)
		router.POST("coupons/validate", h.ValidateCoupon)
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	var req model.CreateOrderRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	req.UserID = userID

	order, err := h.service.CreateOrder(c, req)
	if err != nil {
		handleError(c, err, "CreateOrder")
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	orders, err := h.service.ListOrders(c, userID)
	if err != nil {
		handleError(c, err, "GetOrders")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	id, ok := IDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.service.GetOrderByID(c, userID, id)
	if err != nil {
		handleError(c, err, "GetOrder")
		return
	}
	c.JSON(http.StatusOK, order)
}

type validateCouponRequest struct {
	Coupon string           `json:"coupon" binding:"required"`
	Lines  []model.CartLine `json:"order_lines" binding:"required,min=1,dive"`
}

// ValidateCoupon prices a cart against a coupon without creating anything,
// so the client can show the discount before checkout.
func (h *OrderHandler) ValidateCoupon(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	var req validateCouponRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	preview, err := h.service.ValidateCoupon(c, userID, req.Coupon, req.Lines)
	if err != nil {
		handleError(c, err, "ValidateCoupon")
		return
	}
	c.JSON(http.StatusOK, preview)
}
