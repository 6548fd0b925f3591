package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"github.com/LukeVan/frame-io-max-activation/internal/logging"
)

// Backend is the daemon surface the IPC service exposes to clients.
type Backend interface {
	Ping() PingResponse
	Status(ctx context.Context) (StatusResponse, error)
	StateList(ctx context.Context) (StateListResponse, error)
	RateLimit(ctx context.Context, requestsPerMinute int) (RateLimitResponse, error)
	TestNotification(ctx context.Context) error
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc server requires a backend")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{backend: backend, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Fiomax", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"))
	}
}

// service implements the RPC method set. net/rpc requires the
// (request, *response) error shape.
type service struct {
	backend Backend
	logger  *slog.Logger
	ctx     context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	*resp = s.backend.Ping()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status, err := s.backend.Status(s.ctx)
	if err != nil {
		return err
	}
	*resp = status
	return nil
}

func (s *service) StateList(_ StateListRequest, resp *StateListResponse) error {
	list, err := s.backend.StateList(s.ctx)
	if err != nil {
		return err
	}
	*resp = list
	return nil
}

func (s *service) RateLimit(req RateLimitRequest, resp *RateLimitResponse) error {
	limit, err := s.backend.RateLimit(s.ctx, req.RequestsPerMinute)
	if err != nil {
		return err
	}
	*resp = limit
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.backend.TestNotification(s.ctx); err != nil {
		*resp = TestNotificationResponse{Sent: false, Message: err.Error()}
		return nil
	}
	*resp = TestNotificationResponse{Sent: true, Message: "notification sent"}
	return nil
}
