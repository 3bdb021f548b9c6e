package wire

import (
	"time"
)

// ErrorAction tells the connection what to do after a recoverable error.
type ErrorAction int

const (
	// Disconnect terminates the connection.
	Disconnect ErrorAction = iota
	// Continue keeps the connection open and moves on to the next frame.
	Continue
)

// options holds per-connection configuration.
type options struct {
	codec  Codec
	logger Logger

	// onMessage receives each decoded application value.
	onMessage func(v any) error
	// onError decides whether a decode failure drops the connection.
	// Framing and transport failures always drop it.
	onError func(error) ErrorAction

	bufferSize    int           // capacity of the send queue
	maxFrameBytes int           // per-connection payload bound, at most MaxFrameBytes
	idleTimeout   time.Duration // basis for per-frame read/write deadlines
}

// Option configures a connection.
type Option func(*options)

// WithCodec sets the codec that converts application values to and from
// payload bytes. A codec is required.
func WithCodec(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithBufferSize sets the capacity of the outbound message queue.
func WithBufferSize(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// WithIdleTimeout sets the idle timeout. Each frame read or write gets a
// deadline of twice this value; expiry is a transport failure and the
// connection shuts down.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// WithMaxFrameBytes lowers the payload size bound for this connection.
// Values above MaxFrameBytes are clamped to it.
func WithMaxFrameBytes(n int) Option {
	return func(o *options) {
		o.maxFrameBytes = n
	}
}

// WithErrorHandler sets the callback consulted when a payload fails to
// decode. The frame boundary was still respected, so the connection is
// usable; return Continue to keep it or Disconnect to drop it. Without a
// handler every decode failure disconnects.
func WithErrorHandler(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// WithMessageHandler sets the callback invoked for each decoded value.
// A message handler is required.
func WithMessageHandler(cb func(v any) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
