package handler

import (
	"net/http"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1")
	{
		router.POST("users", h.CreateUser)
		router.GET("users/me", h.GetMe)
		router.PATCH("users/me", h.UpdateMe)
	}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	user, err := h.service.CreateUser(c, req)
	if err != nil {
		handleError(c, err, "CreateUser")
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	user, err := h.service.GetUserByID(c, userID)
	if err != nil {
		handleError(c, err, "GetMe")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		return
	}
	var params model.UpdateUserParams
	if err := BindJson(c, &params); err != nil {
		return
	}
	user, err := h.service.UpdateUser(c, userID, params)
	if err != nil {
		handleError(c, err, "UpdateMe")
		return
	}
	c.JSON(http.StatusOK, user)
}
