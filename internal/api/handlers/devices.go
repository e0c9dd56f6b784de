package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/netconsole/internal/api/middleware"
	"github.com/bhandras/netconsole/internal/store"
)

// Devices is the device storage used by DevicesHandler.
type Devices interface {
	Create(ctx context.Context, owner string, d store.Device) (store.Device, error)
	Get(ctx context.Context, owner, id string) (store.Device, error)
	List(ctx context.Context, owner string) ([]store.Device, error)
	Delete(ctx context.Context, owner, id string) error
}

type DevicesHandler struct {
	devices Devices
}

func NewDevicesHandler(devices Devices) *DevicesHandler {
	return &DevicesHandler{devices: devices}
}

// ListDevices handles GET /netconf/devices
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	devices, err := h.devices.List(c.Request.Context(), userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to list devices.")
		return
	}
	for i := range devices {
		devices[i].Password = ""
	}
	ok(c, gin.H{"devices": devices})
}

// GetDevice handles GET /netconf/devices/:id
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	d, err := h.devices.Get(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Device not found.")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load device.")
		return
	}
	d.Password = ""
	ok(c, gin.H{"device": d})
}

// CreateDevice handles POST /netconf/devices
func (h *DevicesHandler) CreateDevice(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var d store.Device
	if err := c.ShouldBindJSON(&d); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	// Fingerprints are learned on connect only.
	d.Fingerprint = ""
	if err := d.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.devices.Create(c.Request.Context(), userID, d)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to store device.")
		return
	}
	created.Password = ""
	ok(c, gin.H{"device": created})
}

// DeleteDevice handles DELETE /netconf/devices/:id
func (h *DevicesHandler) DeleteDevice(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	err := h.devices.Delete(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Device not found.")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete device.")
		return
	}
	ok(c, nil)
}
