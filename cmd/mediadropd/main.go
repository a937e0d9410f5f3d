package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediadrop/internal/app"
	"mediadrop/internal/handlers"
	"mediadrop/internal/logging"
	"mediadrop/internal/memory"
	"mediadrop/internal/metrics"
	"mediadrop/internal/middleware"
	"mediadrop/internal/startup"

	"github.com/gorilla/mux"
)

const (
	readHeaderTimeout = 15 * time.Second
	readTimeout       = 5 * time.Minute
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
	collectInterval   = time.Minute
)

func main() {
	startTime := time.Now()

	// Memory limit first so GOMEMLIMIT applies to everything after it
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig(os.Getenv("MEDIADROP_CONFIG"))
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	buildStart := time.Now()
	stack, err := app.Build(ctx, config, app.Options{
		History: config.HistoryEnabled,
		Vips:    true,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize upload pipeline: %v", err)
	}
	if stack.History != nil {
		startup.LogDatabaseInit(time.Since(buildStart))
	}

	buildInfo := startup.GetBuildInfo()
	metrics.InitializeMetrics(stack.ServerHosts())
	metrics.AppInfo.WithLabelValues(buildInfo.Version, buildInfo.Commit, buildInfo.GoVersion).Set(1)

	startup.LogTranscoderInit(stack.Engine.Tiers())
	startup.LogUploadTargets(stack.Blossom.Servers(), stack.SignerNPub(), stack.FallbackName())

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	var collector *metrics.Collector
	if stack.History != nil {
		collector = metrics.NewCollector(stack.History, collectInterval)
		collector.Start()
	}

	h := newHandlers(stack, monitor, config)
	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := newServer(config, buildHandler(router, config))

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, collector, monitor, stack)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
}

func newHandlers(stack *app.App, monitor *memory.Monitor, config *startup.Config) *handlers.Handlers {
	opts := handlers.Options{
		Pipeline:        stack.Pipeline,
		Blossom:         stack.Blossom,
		Memory:          monitor,
		MaxRequestBytes: config.MaxRequestBytes(),
		Fallback:        stack.FallbackName(),
	}
	if stack.History != nil {
		opts.History = stack.History
	}
	return handlers.New(opts)
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.BearerAuth(config.UploadTokenHash))
	api.HandleFunc("/upload", h.Upload).Methods("POST")
	api.HandleFunc("/uploads", h.ListUploads).Methods("GET")
	api.HandleFunc("/uploads/{sha256}", h.GetUpload).Methods("GET")
	api.HandleFunc("/blobs/{sha256}", h.DeleteBlob).Methods("DELETE")
	api.HandleFunc("/servers", h.GetServers).Methods("GET")
	api.HandleFunc("/version", h.GetVersion).Methods("GET")

	return r
}

// buildHandler wraps the router in the middleware chain, outermost first:
// CORS, access log, request metrics, compression.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	compressed := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	measured := middleware.Metrics(middleware.DefaultMetricsConfig())(compressed)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	logged := middleware.Logger(loggingConfig)(measured)

	return middleware.CORS(config.CORSOrigins)(logged)
}

func newServer(config *startup.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		// Progress streams stay open for the whole upload
		WriteTimeout: 0,
		IdleTimeout:  idleTimeout,
	}
}

func newMetricsServer(config *startup.Config, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:         ":" + config.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, monitor *memory.Monitor, stack *app.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	startup.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping transcoder and closing history")
	stack.Close()
	startup.LogShutdownStepComplete("Upload stack closed")

	startup.LogShutdownComplete()
}
