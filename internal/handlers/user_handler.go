package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/doctors-portal/internal/logger"
	"github.com/harentsoaR/doctors-portal/internal/models"
)

// GetAllUsers lists every user. Password hashes never leave the server.
func (h *Handler) GetAllUsers(c *gin.Context) {
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to retrieve users", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// IsAdmin answers whether :email holds the admin role. Unknown users are not
// admins.
func (h *Handler) IsAdmin(c *gin.Context) {
	ok, err := h.Users.IsAdmin(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.fail(c, "Failed to retrieve user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": ok})
}

// MakeAdmin promotes :email. The caller has already passed the admin gate.
func (h *Handler) MakeAdmin(c *gin.Context) {
	email := c.Param("email")
	receipt, err := h.Users.PromoteToAdmin(c.Request.Context(), email)
	if err != nil {
		h.fail(c, "Failed to update user", err)
		return
	}
	logger.FromContext(c.Request.Context()).Info("user promoted", "email", email, "matched", receipt.MatchedCount)
	c.JSON(http.StatusOK, receipt)
}

// UpsertUser creates or updates the profile of :email and returns a fresh
// token for it.
func (h *Handler) UpsertUser(c *gin.Context) {
	email := c.Param("email")

	// An empty body is an empty profile.
	var profile models.User
	if err := c.ShouldBindJSON(&profile); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	receipt, err := h.Users.Upsert(c.Request.Context(), email, profile)
	if err != nil {
		h.fail(c, "Failed to save user", err)
		return
	}

	token, err := h.Tokens.Issue(email)
	if err != nil {
		h.fail(c, "Failed to issue token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": receipt, "token": token})
}
