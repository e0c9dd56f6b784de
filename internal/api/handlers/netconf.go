package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bhandras/netconsole/internal/api/middleware"
	"github.com/bhandras/netconsole/internal/edit"
	"github.com/bhandras/netconsole/internal/session"
	"github.com/bhandras/netconsole/internal/store"
)

// Sessions is the part of session.Manager the HTTP API uses.
type Sessions interface {
	Connect(ctx context.Context, userID, loginSessionID string, req session.ConnectRequest) (string, error)
	Capabilities(userID, key string) ([]string, error)
	Alive(userID, key string) error
	List(ctx context.Context, userID string) []session.Listed
	Close(userID, key string) error
	CloseAll(userID string)
	Fetch(ctx context.Context, userID string, q session.DataQuery) (any, error)
	Commit(ctx context.Context, userID, key string, mods edit.Modifications) error
}

type NetconfHandler struct {
	sessions Sessions
}

func NewNetconfHandler(sessions Sessions) *NetconfHandler {
	return &NetconfHandler{sessions: sessions}
}

// ConnectRequest selects a stored device by id or carries a one-time device.
// A body with a hostname is always treated as a one-time device.
type ConnectRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r ConnectRequest) toSession() session.ConnectRequest {
	if r.Hostname == "" {
		return session.ConnectRequest{DeviceID: r.ID}
	}
	port := r.Port
	if port == 0 {
		port = store.DefaultPort
	}
	return session.ConnectRequest{Device: &store.Device{
		Name:     r.Name,
		Hostname: r.Hostname,
		Port:     port,
		Username: r.Username,
		Password: r.Password,
	}}
}

// Connect handles POST /netconf/connect
func (h *NetconfHandler) Connect(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	loginID, _ := middleware.GetSessionID(c)

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, session.StatusRequest, "Invalid request body.")
		return
	}

	key, err := h.sessions.Connect(c.Request.Context(), userID, loginID, req.toSession())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"session-key": key})
}

// ListSessions handles GET /netconf/sessions
func (h *NetconfHandler) ListSessions(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	ok(c, gin.H{"sessions": h.sessions.List(c.Request.Context(), userID)})
}

// CloseAll handles DELETE /netconf/sessions
func (h *NetconfHandler) CloseAll(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	h.sessions.CloseAll(userID)
	ok(c, nil)
}

// Close handles DELETE /netconf/session?key=
func (h *NetconfHandler) Close(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	if err := h.sessions.Close(userID, c.Query("key")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, nil)
}

// Alive handles GET /netconf/session/alive?key=
func (h *NetconfHandler) Alive(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	if err := h.sessions.Alive(userID, c.Query("key")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, nil)
}

// Capabilities handles GET /netconf/session/capabilities?key=
func (h *NetconfHandler) Capabilities(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	caps, err := h.sessions.Capabilities(userID, c.Query("key"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"capabilities": caps})
}

// Data handles GET /netconf/session/data?key=&recursive=&path=
func (h *NetconfHandler) Data(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	key := c.Query("key")
	if key == "" {
		fail(c, session.StatusRequest, "Missing session key.")
		return
	}
	raw, present := c.GetQuery("recursive")
	if !present {
		fail(c, session.StatusRequest, "Missing recursive flag.")
		return
	}
	recursive, err := strconv.ParseBool(raw)
	if err != nil {
		fail(c, session.StatusRequest, "Invalid recursive flag.")
		return
	}

	data, err := h.sessions.Fetch(c.Request.Context(), userID, session.DataQuery{
		Key:       key,
		Path:      c.Query("path"),
		Recursive: recursive,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"data": data})
}

// CommitRequest is the body of POST /netconf/session/commit.
type CommitRequest struct {
	Key           string             `json:"key"`
	Modifications edit.Modifications `json:"modifications"`
}

// Commit handles POST /netconf/session/commit
func (h *NetconfHandler) Commit(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, session.StatusRequest, "Invalid request body.")
		return
	}
	if req.Key == "" {
		fail(c, session.StatusRequest, "Missing session key.")
		return
	}

	if err := h.sessions.Commit(c.Request.Context(), userID, req.Key, req.Modifications); err != nil {
		failErr(c, err)
		return
	}
	ok(c, nil)
}
