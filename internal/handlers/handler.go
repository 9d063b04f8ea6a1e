package handlers

import (
	"github.com/harentsoaR/doctors-portal/internal/auth"
	"github.com/harentsoaR/doctors-portal/internal/booking"
	"github.com/harentsoaR/doctors-portal/internal/metrics"
	"github.com/harentsoaR/doctors-portal/internal/services"
	"github.com/harentsoaR/doctors-portal/internal/store"
	"github.com/harentsoaR/doctors-portal/internal/users"
)

// Handler holds the collaborators every route handler needs.
type Handler struct {
	Store    store.Store
	Doctors  store.Collection
	Users    *users.Directory
	Bookings *booking.Registry
	Catalog  *services.Catalog
	Tokens   *auth.TokenService
	Metrics  *metrics.Metrics
}

func NewHandler(st store.Store, tokens *auth.TokenService, dir *users.Directory, reg *booking.Registry, catalog *services.Catalog, m *metrics.Metrics) *Handler {
	return &Handler{
		Store:    st,
		Doctors:  st.Collection(store.Doctors),
		Users:    dir,
		Bookings: reg,
		Catalog:  catalog,
		Tokens:   tokens,
		Metrics:  m,
	}
}
