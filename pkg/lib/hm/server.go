// Package hm carries the teacher's own ambient-infrastructure helpers
// (graceful HTTP serving) forward into the napix port, adapted to the
// logging contract this module actually uses instead of the teacher's
// generator-only model/response helpers.
package hm

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/napix/napixd/internal/logging"
)

// ServerOpts holds server-related options.
type ServerOpts struct {
	Addr string
}

// Serve starts an HTTP server on the given router and blocks until SIGINT or
// SIGTERM, then drains in-flight requests before returning (spec §5: a
// cancelled request must not leave a Store mid-write; draining gives
// in-flight handlers a chance to reach their Save() commit point).
func Serve(router *chi.Mux, opts ServerOpts, log logging.Logger) error {
	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return err
	}
	log.Info("server exited gracefully")
	return nil
}
