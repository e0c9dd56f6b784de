package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/netconsole/internal/api/middleware"
	"github.com/bhandras/netconsole/internal/store"
)

// Profiles is the profile storage used by ProfilesHandler.
type Profiles interface {
	Put(ctx context.Context, owner, name string, p store.Profile) error
	Get(ctx context.Context, owner, name string) (store.Profile, error)
	List(ctx context.Context, owner string) ([]store.Profile, error)
	Delete(ctx context.Context, owner, name string) error
}

type ProfilesHandler struct {
	profiles Profiles
}

func NewProfilesHandler(profiles Profiles) *ProfilesHandler {
	return &ProfilesHandler{profiles: profiles}
}

// ListProfiles handles GET /netconf/profiles
func (h *ProfilesHandler) ListProfiles(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	profiles, err := h.profiles.List(c.Request.Context(), userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to list profiles.")
		return
	}
	ok(c, gin.H{"profiles": profiles})
}

// GetProfile handles GET /netconf/profiles/:name
func (h *ProfilesHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	p, err := h.profiles.Get(c.Request.Context(), userID, c.Param("name"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Profile not found.")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load profile.")
		return
	}
	ok(c, gin.H{"profile": p})
}

// PutProfile handles PUT /netconf/profiles/:name
func (h *ProfilesHandler) PutProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	name := c.Param("name")

	var p store.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	p.Name = name

	if err := h.profiles.Put(c.Request.Context(), userID, name, p); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to store profile.")
		return
	}
	ok(c, gin.H{"profile": p})
}

// DeleteProfile handles DELETE /netconf/profiles/:name
func (h *ProfilesHandler) DeleteProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	err := h.profiles.Delete(c.Request.Context(), userID, c.Param("name"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Profile not found.")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete profile.")
		return
	}
	ok(c, nil)
}
