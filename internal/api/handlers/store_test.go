package handlers

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/bhandras/netconsole/internal/database"
	"github.com/bhandras/netconsole/internal/store"
)

func storeRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	devices := NewDevicesHandler(store.NewDeviceStore(db.DB))
	profiles := NewProfilesHandler(store.NewProfileStore(db.DB))

	r := newTestRouter()
	r.GET("/devices", devices.ListDevices)
	r.POST("/devices", devices.CreateDevice)
	r.GET("/devices/:id", devices.GetDevice)
	r.DELETE("/devices/:id", devices.DeleteDevice)
	r.GET("/profiles", profiles.ListProfiles)
	r.GET("/profiles/:name", profiles.GetProfile)
	r.PUT("/profiles/:name", profiles.PutProfile)
	r.DELETE("/profiles/:name", profiles.DeleteProfile)
	return r
}

func TestDeviceRoutes(t *testing.T) {
	r := storeRouter(t)

	code, body := do(t, r, http.MethodPost, "/devices", `{"name": "edge", "hostname": "r1"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, false, body["success"])

	code, body = do(t, r, http.MethodPost, "/devices",
		`{"name": "edge", "hostname": "r1", "username": "admin", "password": "pw", "fingerprint": "aa"}`)
	require.Equal(t, http.StatusOK, code)
	created := body["device"].(map[string]any)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, float64(830), created["port"])
	require.NotContains(t, created, "password")
	require.NotContains(t, created, "fingerprint")

	code, body = do(t, r, http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["devices"], 1)

	code, body = do(t, r, http.MethodGet, "/devices/"+id, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "edge", body["device"].(map[string]any)["name"])

	code, _ = do(t, r, http.MethodDelete, "/devices/"+id, "")
	require.Equal(t, http.StatusOK, code)

	code, body = do(t, r, http.MethodGet, "/devices/"+id, "")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Device not found.", body["message"])

	code, _ = do(t, r, http.MethodDelete, "/devices/"+id, "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestProfileRoutes(t *testing.T) {
	r := storeRouter(t)

	code, _ := do(t, r, http.MethodPut, "/profiles/lab", `{"connectOnLogin": true, "devices": ["d1", "d2"]}`)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, r, http.MethodGet, "/profiles/lab", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]any{
		"name":           "lab",
		"connectOnLogin": true,
		"devices":        []any{"d1", "d2"},
	}, body["profile"])

	code, body = do(t, r, http.MethodGet, "/profiles", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["profiles"], 1)

	code, _ = do(t, r, http.MethodDelete, "/profiles/lab", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, r, http.MethodGet, "/profiles/lab", "")
	require.Equal(t, http.StatusNotFound, code)
}
