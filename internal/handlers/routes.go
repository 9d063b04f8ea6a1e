package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/doctors-portal/internal/middleware"
)

// Register mounts the API on r. limiter guards the two unauthenticated
// writes: token issuing and booking creation.
//
// GET /admin/:email and PUT /user/:email are open to anyone, as clients
// depend on them.
func (h *Handler) Register(r gin.IRouter, gate *middleware.Gate, limiter *middleware.RateLimiter) {
	authed := gate.Authenticated()
	admin := gate.Admin()

	r.GET("/", h.Home)
	r.GET("/healthz", h.Health)
	r.GET("/services", h.GetServices)
	r.GET("/available", h.GetAvailable)

	r.GET("/allUsers", authed, h.GetAllUsers)
	r.GET("/admin/:email", h.IsAdmin)
	r.PUT("/user/admin/:email", authed, admin, h.MakeAdmin)
	r.PUT("/user/:email", limiter.Limit(), h.UpsertUser)

	r.POST("/booking", limiter.Limit(), h.CreateBooking)
	r.GET("/booking", authed, h.GetBookings)

	r.POST("/doctor", authed, admin, h.AddDoctor)
	r.GET("/doctors", authed, admin, h.GetDoctors)
	r.DELETE("/doctor/:email", authed, admin, h.DeleteDoctor)

	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
}
