package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intec-ai/intec-backend/internal/services"
)

type MeHandler struct {
	meService services.MeService
}

func NewMeHandler(meService services.MeService) *MeHandler {
	return &MeHandler{meService: meService}
}

func (mh *MeHandler) GetMe(c *gin.Context) {
	me, err := mh.meService.GetMe(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"me": me})
}
