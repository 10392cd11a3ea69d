package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-direct/internal/config"
	"github.com/rocketscienceinc/tictactoe-direct/internal/discovery"
	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
	"github.com/rocketscienceinc/tictactoe-direct/internal/repository"
	"github.com/rocketscienceinc/tictactoe-direct/internal/repository/storage"
	redistransport "github.com/rocketscienceinc/tictactoe-direct/internal/transport/redis"
	"github.com/rocketscienceinc/tictactoe-direct/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-direct/transport/console"
	"github.com/rocketscienceinc/tictactoe-direct/transport/rest"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	device := entity.Peer{ID: conf.Device.ID, Name: conf.Device.Name, Address: conf.Device.Address}

	peerRepo := repository.NewPeerRepository(redisStorage)
	groupRepo := repository.NewGroupRepository(redisStorage)
	transport := redistransport.New(logger, redisStorage, peerRepo, groupRepo, device, conf.Discovery.PeerTTL)

	ui := console.New(logger, os.Stdin, os.Stdout)
	match := usecase.NewMatch(logger, transport, discovery.Config{
		DiscoverAttempts: conf.Discovery.Attempts,
		DiscoverBackoff:  conf.Discovery.Backoff,
	}, ui.Notify)

	if err = match.Activate(ctx); err != nil {
		return fmt.Errorf("could not activate discovery: %w", err)
	}

	defer func() {
		if err = match.Deactivate(); err != nil {
			log.Error("could not deactivate discovery", "error", err)
		}
	}()

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		router := rest.NewRouter(rest.NewHandlers(logger, match))
		if httpErr := rest.Start(ctx, conf.HTTPPort, router); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run console UI
	uiErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting console", "device", device.ID)
		uiErrCh <- ui.Run(ctx, match)
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-uiErrCh:
		if err != nil {
			return fmt.Errorf("console error: %w", err)
		}
		log.Info("Console closed, shutting down")
		return nil
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
