package handler

import (
	"net/http"

	"retreat-booking-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	service service.ProductService
}

func NewProductHandler(service service.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

func (h *ProductHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.GET("products", h.GetProducts)
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	availableOnly := c.Query("all") != "true"
	catalog, err := h.service.ListProducts(c, availableOnly)
	if err != nil {
		handleError(c, err, "GetProducts")
		return
	}
	c.JSON(http.StatusOK, catalog)
}
