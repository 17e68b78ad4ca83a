package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/lumen-launcher/lumen/internal/errors"
	"github.com/lumen-launcher/lumen/internal/session"
)

// connDeadline bounds how long a single client request may take.
const connDeadline = 30 * time.Second

// RequestHandler handles incoming RPC requests.
type RequestHandler interface {
	HandleQuery(ctx context.Context, params QueryParams) (session.View, error)
	HandleOpen(ctx context.Context, params OpenParams) error
	Status() StatusResult
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	logger     *slog.Logger
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server that will listen on the given socket path.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		logger:     logger,
	}
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until the context is
// cancelled. A bind failure is the one startup error the daemon does
// not recover from.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A stale socket from a crashed daemon would block the bind. The
	// instance lock already guarantees no live daemon owns it.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.BindError(fmt.Sprintf("failed to bind %s", s.socketPath), err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()

	return ctx.Err()
}

// handleConnection processes a single client connection. One request
// per connection keeps the protocol trivially stateless.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(connDeadline)); err != nil {
		s.logger.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}

	resp := s.handleRequest(ctx, req)
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())

	case MethodQuery:
		return s.handleQuery(ctx, req)

	case MethodOpen:
		return s.handleOpen(ctx, req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleQuery processes a query request.
func (s *Server) handleQuery(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	var params QueryParams
	if resp, ok := decodeParams(req, &params); !ok {
		return resp
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	view, err := s.handler.HandleQuery(ctx, params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeSessionLimit, err.Error())
	}

	return NewSuccessResponse(req.ID, view)
}

// handleOpen processes an open request.
func (s *Server) handleOpen(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	var params OpenParams
	if resp, ok := decodeParams(req, &params); !ok {
		return resp
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	if err := s.handler.HandleOpen(ctx, params); err != nil {
		// Launch failures are per-round state, not daemon failures.
		// Report them in-band so the client can show the message.
		return NewSuccessResponse(req.ID, OpenResult{Launched: false, Error: err.Error()})
	}

	return NewSuccessResponse(req.ID, OpenResult{Launched: true})
}

// decodeParams re-marshals the loosely typed params into the concrete
// parameter struct. Returns an error response and false on failure.
func decodeParams(req Request, out any) (Response, bool) {
	data, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
	}
	return Response{}, true
}

// getStatus returns the current server status.
func (s *Server) getStatus() StatusResult {
	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}

	if s.handler != nil {
		hs := s.handler.Status()
		status.Entries = hs.Entries
		status.Generation = hs.Generation
		status.Sessions = hs.Sessions
	}

	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
