// Command mgus-server starts the multiplayer lobby server.
//
// Clients connect over WebSocket at /ws, authenticate with a metadata
// handshake, then create or join rooms to coordinate chart selection and a
// synchronized game start. A read-only operator API is served under /api.
//
// Configuration lives in a JSON file (generated with defaults on first run)
// with environment-variable and flag overrides layered on top.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/phi-mgus/mgus-server/api"
	"github.com/phi-mgus/mgus-server/config"
	"github.com/phi-mgus/mgus-server/lobby"
	"github.com/phi-mgus/mgus-server/protocol"
	"github.com/phi-mgus/mgus-server/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "MGUS Lobby Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cmd := &cli.Command{
		Name:    "mgus-server",
		Usage:   "multiplayer lobby server for synchronized chart play",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.json",
				Usage:   "path to the configuration file",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "override the listen host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "override the listen port",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, created, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.Bool("debug") {
		cfg.Debug = true
	}

	setupLogger(cfg.Debug)
	slog.Info("starting", "app", AppName, "version", Version, "addr", cfg.Addr())

	if created {
		slog.Warn("generated a default configuration file; edit it and restart if the defaults do not fit",
			"path", cmd.String("config"))
	}
	if cfg.Private && cfg.Password == "" {
		slog.Warn("the server is private, but the password is empty")
	}

	rooms := lobby.NewRoomRegistry(slog.Default())
	sessions := lobby.NewSessionRegistry(rooms, slog.Default())
	dispatcher := protocol.NewDispatcher(protocol.Options{
		Private:  cfg.Private,
		Password: cfg.Password,
		RoomChat: cfg.RoomChat,
	}, sessions, rooms, slog.Default())

	wsServer := websocket.NewServer(dispatcher, slog.Default())
	apiServer := api.NewServer(sessions, rooms)
	apiServer.Router().HandleFunc("/ws", wsServer.ServeWS)

	httpServer := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     apiServer,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled() {
			if fileMissing(cfg.CertFile) || fileMissing(cfg.KeyFile) {
				slog.Warn("certificate pair not readable, falling back to plain ws")
				err = httpServer.ListenAndServe()
			} else {
				slog.Info("serving wss", "cert", cfg.CertFile)
				err = httpServer.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
			}
		} else {
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("shutting down", "reason", "context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func fileMissing(path string) bool {
	_, err := os.Stat(path)
	return err != nil
}
