package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/doctors-portal/internal/availability"
	"github.com/harentsoaR/doctors-portal/internal/booking"
	"github.com/harentsoaR/doctors-portal/internal/logger"
	"github.com/harentsoaR/doctors-portal/internal/middleware"
	"github.com/harentsoaR/doctors-portal/internal/models"
)

// CreateBooking records a booking unless the patient already has one for the
// same treatment and date, in which case the existing one is returned.
func (h *Handler) CreateBooking(c *gin.Context) {
	var b models.Booking
	if err := c.ShouldBindJSON(&b); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "treatment, patient, date and slot are required"})
		return
	}

	out, err := h.Bookings.Create(c.Request.Context(), b)
	if err != nil {
		h.fail(c, "Failed to create booking", err)
		return
	}

	log := logger.FromContext(c.Request.Context())
	if !out.Accepted {
		h.Metrics.BookingDuplicate()
		log.Info("duplicate booking rejected", "treatment", b.Treatment, "date", b.Date)
		c.JSON(http.StatusOK, gin.H{"success": false, "booking": out.Existing})
		return
	}
	h.Metrics.BookingAccepted()
	log.Info("booking created", "treatment", b.Treatment, "date", b.Date, "slot", b.Slot)
	c.JSON(http.StatusOK, gin.H{"success": true, "result": out.Stored})
}

// GetBookings returns the bookings of ?patient=, which must be the caller.
func (h *Handler) GetBookings(c *gin.Context) {
	list, err := h.Bookings.ListByPatient(c.Request.Context(), c.Query("patient"), middleware.CallerEmail(c))
	if errors.Is(err, booking.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"authorization": false, "message": "Forbidden access"})
		return
	}
	if err != nil {
		h.fail(c, "Failed to retrieve bookings", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetAvailable returns every service with the slots still free on ?date=.
func (h *Handler) GetAvailable(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	ctx := c.Request.Context()
	svcs, err := h.Catalog.List(ctx)
	if err != nil {
		h.fail(c, "Failed to retrieve services", err)
		return
	}
	booked, err := h.Bookings.ForDate(ctx, date)
	if err != nil {
		h.fail(c, "Failed to retrieve bookings", err)
		return
	}
	c.JSON(http.StatusOK, availability.Compute(svcs, booked))
}
