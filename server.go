package wire

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler receives each accepted TCP connection and owns its lifecycle,
// typically by wrapping it in a Conn and calling Run.
type Handler interface {
	Handle(conn *net.TCPConn)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(conn *net.TCPConn)

func (f HandlerFunc) Handle(conn *net.TCPConn) { f(conn) }

// Server accepts TCP connections and dispatches them to a Handler.
type Server struct {
	listener     *net.TCPListener
	logger       Logger
	drainTimeout time.Duration

	mu       sync.Mutex
	stopping bool

	closeOnce sync.Once
	closeNow  chan struct{} // closed by Close to skip any remaining drain wait
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDrainTimeout makes Serve wait up to d after its context is canceled
// before closing the listener, giving in-flight handlers time to finish.
// Call Close to skip the remaining wait. The default is no wait.
func WithDrainTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.drainTimeout = d
	}
}

// NewServer binds a TCP listener on addr.
func NewServer(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, errors.Wrap(err, "wire: binding listener")
	}

	s := &Server{
		listener: listener,
		logger:   slog.Default(),
		closeNow: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts connections until the context is canceled or the listener
// fails, running each handler in its own goroutine. After cancellation it
// honors the drain timeout, then stops accepting and returns ctx.Err().
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("listening", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()

		if s.drainTimeout > 0 {
			s.logger.Info("draining before shutdown", "timeout", s.drainTimeout)
			select {
			case <-time.After(s.drainTimeout):
			case <-s.closeNow:
				s.logger.Debug("drain wait skipped by Close")
			}
		}

		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		// Unblock the pending Accept.
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()

			if stopping {
				s.logger.Info("listener stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept failed", "error", err)
			return errors.Wrap(err, "wire: accepting connection")
		}

		s.logger.Debug("accepted", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)
		go handler.Handle(conn)
	}
}

// Close stops the server immediately, skipping any remaining drain wait.
// Safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	var err error
	s.closeOnce.Do(func() {
		close(s.closeNow)
		err = s.listener.Close()
	})
	return err
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
