package wire

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Errors returned when building or using a connection.
var (
	// ErrNoCodec is returned when no codec is configured.
	ErrNoCodec = errors.New("wire: no codec configured")
	// ErrNoMessageHandler is returned when no message handler is configured.
	ErrNoMessageHandler = errors.New("wire: no message handler configured")
	// ErrConnClosed is returned when writing to a closed connection.
	ErrConnClosed = errors.New("wire: connection closed")
	// ErrSendQueueFull is returned by Write when the outbound queue is full.
	// It signals backpressure: the peer is not draining frames fast enough.
	ErrSendQueueFull = errors.New("wire: send queue full")
)

// errPeerClosed marks an orderly end of stream between frames. It travels
// through the errgroup to stop the sibling loop and is translated back to a
// nil result by Run.
var errPeerClosed = errors.New("wire: peer closed stream")

// Default configuration values.
const (
	defaultBufferSize  = 1
	defaultIdleTimeout = 30 * time.Second
	// readBufferSize is the size of the buffered reader in front of the
	// socket. Frames larger than this are still read whole; the buffer only
	// smooths small reads.
	readBufferSize = 64 * 1024
)

// Conn exchanges framed application values over one TCP connection. Encoded
// values go out through a send queue drained by a write loop; inbound frames
// are read, decoded, and handed to the message handler by a read loop. Each
// Conn owns its own state, so serving many connections needs no shared locks.
type Conn struct {
	rawConn *net.TCPConn
	reader  *bufio.Reader
	logger  Logger

	opts options

	sendq  chan []byte
	closed atomic.Bool
	cancel context.CancelFunc
}

// NewConn wraps an accepted TCP connection. A codec and a message handler
// are required; everything else has defaults.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return &Conn{
		rawConn: conn,
		reader:  bufio.NewReaderSize(conn, readBufferSize),
		logger:  opts.logger,
		opts:    opts,
		sendq:   make(chan []byte, opts.bufferSize),
	}, nil
}

// checkOptions validates required options and fills in defaults.
func checkOptions(opts *options) error {
	if opts.codec == nil {
		return ErrNoCodec
	}
	if opts.onMessage == nil {
		return ErrNoMessageHandler
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}
	if opts.idleTimeout <= 0 {
		opts.idleTimeout = defaultIdleTimeout
	}
	if opts.maxFrameBytes <= 0 || opts.maxFrameBytes > MaxFrameBytes {
		opts.maxFrameBytes = MaxFrameBytes
	}
	if opts.onError == nil {
		opts.onError = func(error) ErrorAction { return Disconnect }
	}
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// Run drives the connection: a read loop and a write loop under one
// errgroup. It blocks until the peer closes the stream, the context is
// canceled, or a loop fails, and closes the underlying connection before
// returning. An orderly shutdown (clean end of stream, context cancel)
// returns nil.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection up", "addr", c.Addr())
	c.logger.Debug("connection settings", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"max_frame_bytes", c.opts.maxFrameBytes,
		"idle_timeout", c.opts.idleTimeout)

	ctx, c.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})
	group.Go(func() error {
		return c.writeLoop(child)
	})
	group.Go(func() error {
		// A blocked socket read does not notice cancellation; closing the
		// connection is what unblocks it.
		<-child.Done()
		c.closeConn()
		return child.Err()
	})

	err := group.Wait()

	switch {
	case err == nil, errors.Is(err, errPeerClosed), errors.Is(err, context.Canceled):
		c.logger.Info("connection closed", "addr", c.Addr())
		return nil
	default:
		c.logger.Info("connection failed", "addr", c.Addr(), "error", err)
		return err
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.rawConn.Close()
}

// IsClosed reports whether the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Addr returns the peer's address.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// Write encodes v and queues it for sending without blocking. It returns
// ErrSendQueueFull when the queue cannot take another frame; use
// WriteBlocking or WriteTimeout when delivery matters more than latency.
func (c *Conn) Write(v any) error {
	payload, err := c.encode(v)
	if err != nil {
		return err
	}

	select {
	case c.sendq <- payload:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// WriteBlocking encodes v and queues it, waiting for queue space until the
// context is canceled.
func (c *Conn) WriteBlocking(ctx context.Context, v any) error {
	payload, err := c.encode(v)
	if err != nil {
		return err
	}

	select {
	case c.sendq <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout encodes v and queues it, waiting up to timeout for queue
// space before giving up with ErrSendQueueFull.
func (c *Conn) WriteTimeout(v any, timeout time.Duration) error {
	payload, err := c.encode(v)
	if err != nil {
		return err
	}

	select {
	case c.sendq <- payload:
		return nil
	case <-time.After(timeout):
		return ErrSendQueueFull
	}
}

// encode serializes v and enforces the frame bound up front, so an
// oversized payload fails at the call site instead of inside the write loop.
func (c *Conn) encode(v any) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	payload, err := c.opts.codec.Encode(v)
	if err != nil {
		return nil, err
	}
	if len(payload) > c.opts.maxFrameBytes {
		return nil, errors.Wrapf(ErrFrameTooLarge, "payload is %d bytes, bound is %d", len(payload), c.opts.maxFrameBytes)
	}
	return payload, nil
}

// readLoop reads frames, decodes them, and hands the values to the message
// handler. Framing violations and transport errors end the connection; a
// decode failure respects the frame boundary, so the error handler decides.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.idleTimeout * 2))

			payload, err := readFrame(c.reader, c.opts.maxFrameBytes)
			if err != nil {
				if ctx.Err() != nil {
					// The watchdog closed the socket under us; report the
					// cancellation, not the resulting read error.
					return ctx.Err()
				}
				if errors.Is(err, io.EOF) {
					c.logger.Debug("peer closed stream", "addr", c.Addr())
					return errPeerClosed
				}
				return err
			}

			value, err := c.opts.codec.Decode(payload)
			if err != nil {
				c.logger.Debug("decode error", "addr", c.Addr(), "error", err)
				if c.opts.onError(err) == Disconnect {
					return err
				}
				continue
			}

			if err = c.opts.onMessage(value); err != nil {
				return err
			}
		}
	}
}

// writeLoop drains the send queue onto the wire.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-c.sendq:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.idleTimeout * 2))

			if err := writeFrame(c.rawConn, payload, c.opts.maxFrameBytes); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug("write error", "addr", c.Addr(), "error", err)
				return err
			}
		}
	}
}

func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.rawConn.Close()
}
