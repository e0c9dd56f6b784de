// Package websocket is the socket.io channel between the server and the
// browsers. It carries the interactive prompts raised while connecting to
// devices and routes the browsers' answers back to the waiting prompts.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socket "github.com/zishang520/socket.io/servers/socket/v3"
	sockettypes "github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/bhandras/netconsole/internal/bridge"
	"github.com/bhandras/netconsole/internal/crypto"
	"github.com/bhandras/netconsole/internal/rendezvous"
	"github.com/bhandras/netconsole/pkg/logger"
	"github.com/bhandras/netconsole/pkg/wire"
)

// Path is where the socket.io endpoint is mounted.
const Path = "/socket.io"

// answerEvents are the browser -> server events routed to prompts.
var answerEvents = []string{
	wire.EventHostCheckResult,
	wire.EventDeviceAuthPassword,
	wire.EventGetSchemaResult,
}

// SocketIOServer wraps the socket.io server.
type SocketIOServer struct {
	jwtManager *crypto.JWTManager
	server     *socket.Server
	socketData sync.Map // socket id -> *SocketData
	answers    *rendezvous.Channel[bridge.Answer]
	origins    []string
}

// NewSocketIOServer creates the socket.io server. Answers received from
// browsers are delivered to answers.
func NewSocketIOServer(jwtManager *crypto.JWTManager, answers *rendezvous.Channel[bridge.Answer], origins []string) *SocketIOServer {
	opts := socket.DefaultServerOptions()

	opts.SetCors(&sockettypes.Cors{
		Origin:      corsOrigin(origins),
		Credentials: false,
	})

	// Prompts can wait up to several minutes for an answer, so a dead
	// browser should be noticed well before that.
	const (
		pingInterval = 10 * time.Second
		pingTimeout  = 20 * time.Second
	)
	opts.SetPingInterval(pingInterval)
	opts.SetPingTimeout(pingTimeout)
	opts.SetPath(Path)

	s := &SocketIOServer{
		jwtManager: jwtManager,
		server:     socket.NewServer(nil, opts),
		answers:    answers,
		origins:    origins,
	}
	s.server.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		s.handleConnection(client)
	})
	return s
}

// corsOrigin builds the socket.io CORS origin option. A list makes the server
// echo the request's Origin when it is one of origins.
func corsOrigin(origins []string) any {
	if len(origins) == 0 {
		return "*"
	}
	allowed := make([]any, len(origins))
	for i, o := range origins {
		allowed[i] = o
	}
	return allowed
}

// SocketData stores connection metadata for each socket
type SocketData struct {
	UserID    string
	SessionID string         // login session id from the token
	Socket    *socket.Socket // Reference to the socket for emitting
}

func (s *SocketIOServer) handleConnection(client *socket.Socket) {
	socketID := string(client.Id())

	authMap := client.Handshake().Auth
	if len(authMap) == 0 {
		logger.Warnf("Socket.IO missing auth data (socket %s)", socketID)
		client.Emit("error", map[string]string{"message": "Missing authentication data"})
		client.Disconnect(true)
		return
	}

	var auth wire.SocketAuthPayload
	if err := decodeAny(authMap, &auth); err != nil || auth.Token == "" {
		logger.Warnf("Socket.IO invalid auth data (socket %s): %v", socketID, err)
		client.Emit("error", map[string]string{"message": "Invalid authentication data"})
		client.Disconnect(true)
		return
	}

	// The token itself is never logged.
	claims, err := s.jwtManager.VerifyToken(auth.Token)
	if err != nil {
		logger.Warnf("Socket.IO invalid token (socket %s): %v", socketID, err)
		client.Emit("error", map[string]string{"message": "Invalid authentication token"})
		client.Disconnect(true)
		return
	}

	sd := &SocketData{
		UserID:    claims.UserID(),
		SessionID: claims.SessionID(),
		Socket:    client,
	}
	s.socketData.Store(socketID, sd)
	logger.Infof("Socket.IO client ready (user: %s, socket: %s)", sd.UserID, socketID)

	for _, event := range answerEvents {
		client.On(event, func(data ...any) {
			payload, ack := getFirstAnyWithAck(data)
			accepted := s.routeAnswer(s.getSocketData(socketID), event, payload)
			if ack != nil {
				ack(map[string]any{"accepted": accepted})
			}
		})
	}

	client.On("disconnect", func(data ...any) {
		reason := ""
		if len(data) > 0 {
			if r, ok := data[0].(string); ok {
				reason = r
			}
		}
		logger.Infof("User disconnected: %s (socket %s, reason: %s)", sd.UserID, socketID, reason)
		s.socketData.Delete(socketID)
	})
}

// routeAnswer hands an answer to the prompt waiting under its id. Answers
// whose id is not the login session of the socket are dropped, so a browser
// cannot answer prompts of other logins.
func (s *SocketIOServer) routeAnswer(sd *SocketData, event string, payload any) bool {
	env, err := wire.Decode[wire.Envelope](payload)
	if err != nil {
		logger.Debugf("Socket.IO dropping %s without id: %v", event, err)
		return false
	}
	if sd == nil || sd.SessionID == "" || env.ID != sd.SessionID {
		logger.Warnf("Socket.IO dropping %s for foreign session %s", event, env.ID)
		return false
	}
	accepted := s.answers.Answer(env.ID, bridge.Answer{Event: event, Payload: payload})
	if !accepted {
		logger.Debugf("Socket.IO no prompt waiting for %s (%s)", env.ID, event)
	}
	return accepted
}

// Emit sends event to every socket of the login session. It never waits for
// the browser.
func (s *SocketIOServer) Emit(userID, sessionID, event string, payload any) {
	sent := 0
	s.socketData.Range(func(key, value any) bool {
		sd, ok := value.(*SocketData)
		if !ok || !sd.matches(userID, sessionID) || sd.Socket == nil {
			return true
		}
		logger.Tracef("Emitting %s to socket %v", event, key)
		sd.Socket.Emit(event, payload)
		sent++
		return true
	})
	if sent == 0 {
		logger.Warnf("Socket.IO no socket for user %s session %s, %s not delivered", userID, sessionID, event)
	}
}

func (sd *SocketData) matches(userID, sessionID string) bool {
	return sd.UserID == userID && sd.SessionID == sessionID
}

// getSocketData retrieves socket metadata by socket ID
func (s *SocketIOServer) getSocketData(socketID string) *SocketData {
	if data, ok := s.socketData.Load(socketID); ok {
		if sd, ok := data.(*SocketData); ok {
			return sd
		}
	}
	return nil
}

func decodeAny(input any, out any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func getFirstAnyWithAck(data []any) (any, func(...any)) {
	var ack func(...any)
	if len(data) == 0 {
		return nil, nil
	}
	if cb, ok := data[len(data)-1].(func(...any)); ok {
		ack = cb
		data = data[:len(data)-1]
	} else if cb, ok := data[len(data)-1].(socket.Ack); ok {
		ack = func(args ...any) {
			cb(args, nil)
		}
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil, ack
	}
	return data[0], ack
}

// HandleSocketIO creates a Gin handler for Socket.IO
func (s *SocketIOServer) HandleSocketIO() gin.HandlerFunc {
	httpHandler := s.server.ServeHandler(nil)

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusOK)
			return
		}
		logger.Tracef("Socket.IO request: %s %s", c.Request.Method, c.Request.URL.Path)
		httpHandler.ServeHTTP(c.Writer, c.Request)
	}
}

// Close shuts down the Socket.IO server
func (s *SocketIOServer) Close() error {
	s.server.Close(nil)
	return nil
}
