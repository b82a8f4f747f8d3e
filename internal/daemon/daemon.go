package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"ratingsync/internal/batch"
	"ratingsync/internal/config"
	"ratingsync/internal/logging"
	"ratingsync/internal/notifications"
	"ratingsync/internal/stageexec"
)

// Daemon schedules batches on a fixed interval.
type Daemon struct {
	session  *Session
	interval time.Duration
	runFirst bool
	bind     string
	token    string
	logger   *slog.Logger

	running atomic.Bool
	metrics atomic.Pointer[metricsServer]
}

// New constructs a daemon around an open session.
func New(cfg *config.Config, session *Session, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || session == nil {
		return nil, errors.New("daemon requires config and session")
	}
	if cfg.Batch.ScheduleHours < 1 {
		return nil, fmt.Errorf("schedule must be at least one hour, got %d", cfg.Batch.ScheduleHours)
	}
	return &Daemon{
		session:  session,
		interval: time.Duration(cfg.Batch.ScheduleHours) * time.Hour,
		runFirst: cfg.Batch.RunOnStart,
		bind:     strings.TrimSpace(cfg.Metrics.Bind),
		token:    strings.TrimSpace(cfg.Metrics.Token),
		logger:   logging.NewComponentLogger(logger, "daemon"),
	}, nil
}

// Run schedules batches until ctx is cancelled or a batch fails fatally.
// Cancellation returns nil; a fatal batch error is returned as is.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if d.bind != "" {
		srv, err := startMetricsServer(ctx, d.bind, d.token, d.session.Metrics(), d.logger)
		if err != nil {
			return err
		}
		d.metrics.Store(srv)
		defer srv.stop()
	}

	d.logger.Info("ratingsync daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.Duration("interval", d.interval),
		logging.Bool("run_on_start", d.runFirst))

	if d.runFirst {
		if err := d.tick(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("ratingsync daemon stopping", logging.String(logging.FieldEventType, "daemon_stop"))
			return nil
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Running reports whether Run is active.
func (d *Daemon) Running() bool { return d.running.Load() }

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (d *Daemon) MetricsAddr() string {
	srv := d.metrics.Load()
	if srv == nil {
		return ""
	}
	return srv.listener.Addr().String()
}

func (d *Daemon) tick(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	start := time.Now()
	outcome, err := d.session.RunBatch(ctx)
	if err != nil {
		d.notify(func(n notifications.Service) error {
			return n.NotifyError(context.WithoutCancel(ctx), err, "batch")
		})
		return err
	}
	elapsed := time.Since(start)
	d.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.String("outcome", outcome.String()),
		logging.Duration("elapsed", elapsed),
		logging.String("next_run", time.Now().Add(d.interval).Format(time.RFC3339)))

	switch outcome {
	case batch.OutcomeCompleted:
		d.notify(func(n notifications.Service) error { return n.NotifyBatchCompleted(ctx, elapsed) })
	case batch.OutcomeDeferred:
		if deferral, ok := d.session.LastDeferral(); ok && deferral.Reason != stageexec.ReasonInterrupted {
			d.notify(func(n notifications.Service) error {
				return n.NotifyBatchDeferred(ctx, deferral.Library, deferral.Reason, deferral.Pending)
			})
		}
	}
	return nil
}

func (d *Daemon) notify(send func(notifications.Service) error) {
	if err := send(d.session.Notifier()); err != nil {
		d.logger.Warn("notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.Error(err))
	}
}

type metricsServer struct {
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
}

type handlerSource interface {
	Handler() http.Handler
}

func startMetricsServer(ctx context.Context, bind, token string, source handlerSource, logger *slog.Logger) (*metricsServer, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", authMiddleware(token, source.Handler()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	s := &metricsServer{
		logger:   logger,
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	logger.Info("metrics server listening", logging.String("address", listener.Addr().String()))
	return s, nil
}

func (s *metricsServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
