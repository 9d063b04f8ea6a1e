package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/harentsoaR/doctors-portal/internal/models"
)

func (h *Handler) AddDoctor(c *gin.Context) {
	var d models.Doctor
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
		return
	}
	receipt, err := h.Doctors.InsertOne(c.Request.Context(), d)
	if err != nil {
		h.fail(c, "Failed to add doctor", err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) GetDoctors(c *gin.Context) {
	list := []models.Doctor{}
	if err := h.Doctors.Find(c.Request.Context(), bson.M{}, &list); err != nil {
		h.fail(c, "Failed to retrieve doctors", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DeleteDoctor removes the first doctor registered under :email.
func (h *Handler) DeleteDoctor(c *gin.Context) {
	receipt, err := h.Doctors.DeleteOne(c.Request.Context(), bson.M{"email": c.Param("email")})
	if err != nil {
		h.fail(c, "Failed to delete doctor", err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
