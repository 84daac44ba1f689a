package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-app-server/internal/jobs"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/routes"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := models.Migrate(a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if a.cfg.Jobs.Enabled {
		interval := time.Duration(a.cfg.Jobs.NoShowIntervalMinute) * time.Minute
		grace := time.Duration(a.cfg.Clinic.NoShowGraceMinutes) * time.Minute
		scheduler, err := jobs.NewScheduler(a.log, a.loc, a.appointments, interval, grace)
		if err != nil {
			return fmt.Errorf("schedule jobs: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := routes.NewRouter(routes.Deps{
		DB:           a.db,
		Cfg:          a.cfg,
		Log:          a.log,
		Loc:          a.loc,
		Avatars:      a.avatars,
		Pricing:      a.pricing,
		Schedules:    a.schedules,
		Slots:        a.slots,
		Appointments: a.appointments,
		Billing:      a.billing,
		Reports:      a.reports,
		Chatbot:      a.chatbot,
	})

	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", server.Addr), zap.String("env", a.cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-quit:
		a.log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}
