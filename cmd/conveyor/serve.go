package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/serviceops/conveyor"
	"github.com/serviceops/conveyor/internal/logging"
	"github.com/serviceops/conveyor/internal/metrics"
	httpadapter "github.com/serviceops/conveyor/pkg/adapters/http"
	redisadapter "github.com/serviceops/conveyor/pkg/adapters/redis"
	"github.com/serviceops/conveyor/pkg/advisory"
	"github.com/serviceops/conveyor/pkg/domains/commercial"
	"github.com/serviceops/conveyor/pkg/domains/fulfillment"
	"github.com/serviceops/conveyor/pkg/domains/operations"
	"github.com/serviceops/conveyor/pkg/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pipeline HTTP server",
	Long: `Starts the orchestrator with the built-in domain handlers and exposes
the pipeline JSON API over HTTP, plus Prometheus metrics on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		handlerTimeout, _ := cmd.Flags().GetDuration("handler-timeout")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")

		logger := logging.New(slog.LevelInfo)
		if jsonLogs {
			logger = logging.NewJSON(os.Stderr, slog.LevelInfo)
		}

		g, err := loadGraphFromFlags(cmd)
		if err != nil {
			fmt.Printf("Error loading graph: %v\n", err)
			os.Exit(1)
		}

		m, err := metrics.New(prometheus.DefaultRegisterer)
		if err != nil {
			fmt.Printf("Error registering metrics: %v\n", err)
			os.Exit(1)
		}

		advisor := advisory.NewHeuristic(24*time.Hour, 3)

		opts := []conveyor.Option{
			conveyor.WithLogger(logger),
			conveyor.WithLifecycleHooks(m.Hooks()),
			conveyor.WithAdvisor(advisor),
		}
		if handlerTimeout > 0 {
			opts = append(opts, conveyor.WithHandlerTimeout(handlerTimeout))
		}
		if redisAddr != "" {
			store := redisadapter.New(redisAddr, "", 0)
			defer store.Close()
			opts = append(opts, conveyor.WithStore(store))
		}

		eng, err := conveyor.New(g, opts...)
		if err != nil {
			fmt.Printf("Error initializing conveyor: %v\n", err)
			os.Exit(1)
		}
		defer eng.Close()

		for _, register := range []func(registry.Registrar) error{
			commercial.Register, operations.Register, fulfillment.Register,
		} {
			if err := register(eng); err != nil {
				fmt.Printf("Error registering domain handlers: %v\n", err)
				os.Exit(1)
			}
		}

		if err := eng.Start(); err != nil {
			fmt.Printf("Error starting engine: %v\n", err)
			os.Exit(1)
		}
		if err := metrics.RegisterAdvisoryDropped(prometheus.DefaultRegisterer, eng.AdvisoryDropped); err != nil {
			fmt.Printf("Error registering metrics: %v\n", err)
			os.Exit(1)
		}

		mux := chi.NewRouter()
		mux.Mount("/", httpadapter.NewHandler(eng))
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting conveyor server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "err", err)
				}
			}
			logger.Info("conveyor server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address for durable instances (empty: in-memory)")
	serveCmd.Flags().Duration("handler-timeout", 30*time.Second, "Bound on domain handler execution")
	serveCmd.Flags().Bool("json-logs", false, "Emit JSON logs")
}
