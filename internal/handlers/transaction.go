package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intec-ai/intec-backend/internal/services"
)

type TransactionHandler struct {
	importService services.ImportService
}

func NewTransactionHandler(importService services.ImportService) *TransactionHandler {
	return &TransactionHandler{importService: importService}
}

// Import receives the pump management system's xlsx export as a
// multipart upload under the "file" field.
func (th *TransactionHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	result, err := th.importService.ImportWorkbook(c.Request.Context(), file)
	if err != nil {
		if result != nil && len(result.Errors) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "errors": result.Errors})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
