package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intec-ai/intec-backend/internal/services"
	"github.com/intec-ai/intec-backend/internal/types"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		CPF      string `json:"cpf"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user := types.User{
		Name:     req.Name,
		Email:    req.Email,
		CPF:      req.CPF,
		Password: req.Password,
	}
	created, err := ah.authService.RegisterUser(c.Request.Context(), &user)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": created})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	accessToken, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	accessTTL := ah.authService.GetAccessTTL()
	expiresIn := int(accessTTL.Seconds())

	c.JSON(http.StatusOK, gin.H{"access_token": accessToken, "expires_in": expiresIn})
}
