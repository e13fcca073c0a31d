package gateway

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func Run(args []string) error {
	options := &Options{}
	_, err := flags.ParseArgs(options, args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	config, err := options.Config(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(config.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	service, err := New(ctx, config, WithLogger(logger.Sugar()))
	if err != nil {
		return err
	}
	return service.Serve(ctx)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Serve provisions (on startup policy) and serves HTTP until ctx is done,
// then shuts the gateway down. A failed provisioning does not stop serving.
func (s *Service) Serve(ctx context.Context) error {
	srv, err := s.Server()
	if err != nil {
		return err
	}
	httpServer := srv.HTTP(ctx, s.config.Addr)
	if s.config.Provisioning == ProvisionOnStartup {
		// a failure stays latched and is reported by /healthz and every connection
		if err = s.Provision(ctx); errors.Is(err, context.Canceled) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return errors.Join(err, s.Shutdown(shutdownCtx))
		}
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Infow("listening", "addr", s.config.Addr, "sse", s.config.SSEURI, "messages", s.config.MessageURI, "websocket", s.config.WebSocketURI)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		return errors.Join(err, httpServer.Shutdown(shutdownCtx))
	})
	return group.Wait()
}
