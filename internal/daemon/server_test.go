package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-launcher/lumen/internal/entry"
	"github.com/lumen-launcher/lumen/internal/session"
)

// serverTestSocketPath creates a unique socket path for server tests.
func serverTestSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("lumen-server-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(socketPath) })
	return socketPath
}

// fakeHandler is a scriptable RequestHandler for server tests.
type fakeHandler struct {
	view    session.View
	openErr error

	lastQuery QueryParams
	lastOpen  OpenParams
}

func (f *fakeHandler) HandleQuery(_ context.Context, params QueryParams) (session.View, error) {
	f.lastQuery = params
	return f.view, nil
}

func (f *fakeHandler) HandleOpen(_ context.Context, params OpenParams) error {
	f.lastOpen = params
	return f.openErr
}

func (f *fakeHandler) Status() StatusResult {
	return StatusResult{Entries: 42, Generation: 7, Sessions: 2}
}

// startServer runs a server with the given handler and waits for the
// socket to appear.
func startServer(t *testing.T, h RequestHandler) (string, context.CancelFunc) {
	t.Helper()
	socketPath := serverTestSocketPath(t)

	srv := NewServer(socketPath, nil)
	srv.SetHandler(h)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = srv.ListenAndServe(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "socket did not appear")

	t.Cleanup(cancel)
	return socketPath, cancel
}

// roundTrip sends one request on a fresh connection and decodes the
// response.
func roundTrip(t *testing.T, socketPath string, req Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, json.NewEncoder(conn).Encode(req))

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestServer_Ping(t *testing.T) {
	socketPath, _ := startServer(t, &fakeHandler{})

	resp := roundTrip(t, socketPath, Request{JSONRPC: "2.0", Method: MethodPing, ID: "t-1"})

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "t-1", resp.ID)
	require.Nil(t, resp.Error)

	var pong PingResult
	require.NoError(t, decodeResult(resp.Result, &pong))
	assert.True(t, pong.Pong)
}

func TestServer_Status(t *testing.T) {
	socketPath, _ := startServer(t, &fakeHandler{})

	resp := roundTrip(t, socketPath, Request{JSONRPC: "2.0", Method: MethodStatus, ID: "t-2"})
	require.Nil(t, resp.Error)

	var status StatusResult
	require.NoError(t, decodeResult(resp.Result, &status))
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, 42, status.Entries)
	assert.Equal(t, uint64(7), status.Generation)
	assert.Equal(t, 2, status.Sessions)
}

func TestServer_QueryDispatch(t *testing.T) {
	h := &fakeHandler{
		view: session.View{
			Query:   "fire",
			Token:   3,
			Status:  session.StatusCompleted,
			Results: []session.Result{{App: "applications", Entry: &entry.Entry{ID: "e1", Name: "Firefox"}, Score: 1000}},
		},
	}
	socketPath, _ := startServer(t, h)

	resp := roundTrip(t, socketPath, Request{
		JSONRPC: "2.0",
		Method:  MethodQuery,
		Params:  QueryParams{SessionID: "win-1", Query: "fire"},
		ID:      "t-3",
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "win-1", h.lastQuery.SessionID)

	var view session.View
	require.NoError(t, decodeResult(resp.Result, &view))
	assert.Equal(t, "fire", view.Query)
	assert.Equal(t, session.StatusCompleted, view.Status)
	require.Len(t, view.Results, 1)
	assert.Equal(t, "Firefox", view.Results[0].Entry.Name)
}

func TestServer_QueryMissingSession(t *testing.T) {
	socketPath, _ := startServer(t, &fakeHandler{})

	resp := roundTrip(t, socketPath, Request{
		JSONRPC: "2.0",
		Method:  MethodQuery,
		Params:  QueryParams{Query: "fire"},
		ID:      "t-4",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestServer_OpenReportsLaunchFailureInBand(t *testing.T) {
	h := &fakeHandler{openErr: fmt.Errorf("exec: not found")}
	socketPath, _ := startServer(t, h)

	resp := roundTrip(t, socketPath, Request{
		JSONRPC: "2.0",
		Method:  MethodOpen,
		Params:  OpenParams{SessionID: "win-1", EntryID: "e1"},
		ID:      "t-5",
	})

	// The RPC itself succeeds; the launch failure travels in the result.
	require.Nil(t, resp.Error)
	var result OpenResult
	require.NoError(t, decodeResult(resp.Result, &result))
	assert.False(t, result.Launched)
	assert.Contains(t, result.Error, "not found")
	assert.Equal(t, "e1", h.lastOpen.EntryID)
}

func TestServer_OpenSuccess(t *testing.T) {
	socketPath, _ := startServer(t, &fakeHandler{})

	resp := roundTrip(t, socketPath, Request{
		JSONRPC: "2.0",
		Method:  MethodOpen,
		Params:  OpenParams{SessionID: "win-1"},
		ID:      "t-6",
	})
	require.Nil(t, resp.Error)

	var result OpenResult
	require.NoError(t, decodeResult(resp.Result, &result))
	assert.True(t, result.Launched)
	assert.Empty(t, result.Error)
}

func TestServer_UnknownMethod(t *testing.T) {
	socketPath, _ := startServer(t, &fakeHandler{})

	resp := roundTrip(t, socketPath, Request{JSONRPC: "2.0", Method: "frobnicate", ID: "t-7"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestServer_MalformedRequest(t *testing.T) {
	socketPath, _ := startServer(t, &fakeHandler{})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestServer_ShutdownRemovesSocket(t *testing.T) {
	socketPath, cancel := startServer(t, &fakeHandler{})

	cancel()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "socket was not removed")
}

func TestServer_BindFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	// A directory at the socket path makes the bind fail even after
	// the stale-socket removal.
	socketPath := filepath.Join(dir, "blocked.sock")
	require.NoError(t, os.Mkdir(socketPath, 0o755))

	srv := NewServer(socketPath, nil)
	err := srv.ListenAndServe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_601_SOCKET_BIND")
}
