// Demo world server: accepts framed world snapshots, logs what arrived, and
// echoes each snapshot back to the sender.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hollowmud/wire"
	"github.com/hollowmud/wire/world"
)

// zlogAdapter exposes a zerolog.Logger through the wire.Logger interface.
type zlogAdapter struct {
	log zerolog.Logger
}

func (a zlogAdapter) Debug(msg string, args ...any) { a.emit(a.log.Debug(), msg, args) }
func (a zlogAdapter) Info(msg string, args ...any)  { a.emit(a.log.Info(), msg, args) }
func (a zlogAdapter) Warn(msg string, args ...any)  { a.emit(a.log.Warn(), msg, args) }
func (a zlogAdapter) Error(msg string, args ...any) { a.emit(a.log.Error(), msg, args) }

func (zlogAdapter) emit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}

func newLogger(level string) zlogAdapter {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "worldd").Logger()
	return zlogAdapter{log: log}
}

// sessionHandler wraps each accepted connection in a wire.Conn that decodes
// world snapshots and echoes them back.
type sessionHandler struct {
	cfg    serverConfig
	logger zlogAdapter
}

func (h *sessionHandler) Handle(conn *net.TCPConn) {
	sessionID := uuid.NewString()
	log := zlogAdapter{log: h.logger.log.With().Str("session", sessionID).Logger()}

	var session *wire.Conn
	session, err := wire.NewConn(conn,
		wire.WithCodec(world.Codec{}),
		wire.WithLogger(log),
		wire.WithBufferSize(h.cfg.SendBuffer),
		wire.WithIdleTimeout(h.cfg.IdleTimeout),
		wire.WithMaxFrameBytes(h.cfg.MaxFrameBytes),
		wire.WithMessageHandler(func(v any) error {
			snap := v.(*world.Snapshot)
			log.Info("snapshot received", "rooms", len(snap.Rooms))
			return session.WriteBlocking(context.Background(), snap)
		}),
		wire.WithErrorHandler(func(err error) wire.ErrorAction {
			// A payload that fails to decode is bad content, not bad
			// transport; drop the frame and keep the session.
			log.Warn("undecodable snapshot dropped", "error", err)
			return wire.Continue
		}),
	)
	if err != nil {
		log.Error("session setup failed", "error", err)
		conn.Close()
		return
	}

	if err := session.Run(context.Background()); err != nil {
		log.Error("session ended", "error", err)
	}
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the server config file")
	flag.Parse()

	cfg := defaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			newLogger("info").Error("bad config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := newLogger(cfg.LogLevel)

	addr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		logger.Error("bad listen address", "listen", cfg.Listen, "error", err)
		os.Exit(1)
	}

	server, err := wire.NewServer(addr,
		wire.WithServerLogger(logger),
		wire.WithDrainTimeout(cfg.DrainTimeout),
	)
	if err != nil {
		logger.Error("failed to bind", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if err := server.Serve(ctx, &sessionHandler{cfg: cfg, logger: logger}); err != nil && err != context.Canceled {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
