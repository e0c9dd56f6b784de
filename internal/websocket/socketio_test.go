package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	socket "github.com/zishang520/socket.io/servers/socket/v3"

	"github.com/bhandras/netconsole/internal/bridge"
	"github.com/bhandras/netconsole/internal/rendezvous"
	"github.com/bhandras/netconsole/pkg/wire"
)

func TestGetFirstAnyWithAck_FuncAck(t *testing.T) {
	var got []any
	payload, ack := getFirstAnyWithAck([]any{
		map[string]any{"k": "v"},
		func(args ...any) { got = args },
	})

	require.Equal(t, map[string]any{"k": "v"}, payload)
	require.NotNil(t, ack)

	ack("a", 1)
	require.Equal(t, []any{"a", 1}, got)
}

func TestGetFirstAnyWithAck_SocketAck(t *testing.T) {
	var gotArgs []any
	payload, ack := getFirstAnyWithAck([]any{
		"payload",
		socket.Ack(func(args []any, err error) {
			gotArgs = args
		}),
	})

	require.Equal(t, "payload", payload)
	require.NotNil(t, ack)
	ack("x")
	require.Equal(t, []any{"x"}, gotArgs)
}

func TestGetFirstAnyWithAck_Empty(t *testing.T) {
	payload, ack := getFirstAnyWithAck(nil)
	require.Nil(t, payload)
	require.Nil(t, ack)
}

func TestRouteAnswerToWaitingPrompt(t *testing.T) {
	answers := rendezvous.New[bridge.Answer]()
	s := &SocketIOServer{answers: answers}
	sd := &SocketData{UserID: "alice", SessionID: "login-1"}

	require.NoError(t, answers.Open("login-1"))
	defer answers.Close("login-1")

	payload := map[string]any{"id": "login-1", "result": true}
	require.True(t, s.routeAnswer(sd, wire.EventHostCheckResult, payload))

	got, err := answers.Wait(context.Background(), "login-1", time.Second)
	require.NoError(t, err)
	require.Equal(t, bridge.Answer{Event: wire.EventHostCheckResult, Payload: payload}, got)
}

func TestRouteAnswerDropsForeignAndUnknownIDs(t *testing.T) {
	answers := rendezvous.New[bridge.Answer]()
	s := &SocketIOServer{answers: answers}
	sd := &SocketData{UserID: "alice", SessionID: "login-1"}

	require.NoError(t, answers.Open("login-2"))
	defer answers.Close("login-2")

	// Another login's prompt cannot be answered from this socket.
	require.False(t, s.routeAnswer(sd, wire.EventHostCheckResult, map[string]any{"id": "login-2", "result": true}))

	// No prompt open for this login.
	require.False(t, s.routeAnswer(sd, wire.EventHostCheckResult, map[string]any{"id": "login-1", "result": true}))

	require.False(t, s.routeAnswer(sd, wire.EventHostCheckResult, map[string]any{"result": true}))
	require.False(t, s.routeAnswer(nil, wire.EventHostCheckResult, map[string]any{"id": "login-2"}))
}

func TestSocketDataMatches(t *testing.T) {
	sd := &SocketData{UserID: "alice", SessionID: "login-1"}
	require.True(t, sd.matches("alice", "login-1"))
	require.False(t, sd.matches("alice", "login-2"))
	require.False(t, sd.matches("bob", "login-1"))
}

func TestEmitWithoutSocketsDoesNotBlock(t *testing.T) {
	s := &SocketIOServer{}
	s.socketData.Store("sock1", &SocketData{UserID: "alice", SessionID: "login-1"})
	s.Emit("alice", "login-1", wire.EventHostCheck, wire.HostCheckRequest{ID: "login-1"})
}

func TestCorsOrigin(t *testing.T) {
	require.Equal(t, "*", corsOrigin(nil))

	allowed, ok := corsOrigin([]string{"https://a.example", "https://b.example"}).([]any)
	require.True(t, ok, "a list lets socket.io echo the matching request origin")
	require.Equal(t, []any{"https://a.example", "https://b.example"}, allowed)

	single, ok := corsOrigin([]string{"https://a.example"}).([]any)
	require.True(t, ok)
	require.Len(t, single, 1)
}
