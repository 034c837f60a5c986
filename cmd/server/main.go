// Autoheal - Server Entry Point
//
// This is the main entry point for the incident response pipeline.
// It initializes all dependencies and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ai-devops/autoheal/internal/audit"
	"github.com/ai-devops/autoheal/internal/config"
	"github.com/ai-devops/autoheal/internal/detector"
	"github.com/ai-devops/autoheal/internal/executor"
	"github.com/ai-devops/autoheal/internal/fixer"
	"github.com/ai-devops/autoheal/internal/handler"
	"github.com/ai-devops/autoheal/internal/logger"
	"github.com/ai-devops/autoheal/internal/metrics"
	"github.com/ai-devops/autoheal/internal/orchestrator"
	"github.com/ai-devops/autoheal/internal/policy"
	"github.com/ai-devops/autoheal/internal/rca"
	"github.com/ai-devops/autoheal/internal/rulebook"
	"github.com/ai-devops/autoheal/internal/service"
	"github.com/ai-devops/autoheal/internal/telemetry"
	"github.com/ai-devops/autoheal/internal/ws"
	"github.com/ai-devops/autoheal/pkg/sanitizer"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	// Determine if we're in development mode
	isDev := os.Getenv("GIN_MODE") != "release"

	// Initialize logger
	zapLogger, err := logger.New(isDev)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting autoheal", zap.Bool("development", isDev))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	// A missing or malformed rulebook is fatal.
	rb, err := rulebook.Load(cfg.Services.RulebookPath)
	if err != nil {
		zapLogger.Fatal("failed to load rulebook",
			zap.String("path", cfg.Services.RulebookPath),
			zap.Error(err),
		)
	}

	zapLogger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.String("rulebook", cfg.Services.RulebookPath),
		zap.Strings("issue_types", rb.IssueTypes()),
		zap.Bool("auto_remediation", cfg.Pipeline.EnableAutoRemediation),
		zap.Bool("async", cfg.Pipeline.Async),
	)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		zapLogger.Fatal("failed to register metrics", zap.Error(err))
	}

	// In-process service implementations
	logSanitizer := sanitizer.New(cfg.Pipeline.MaxLogSize)
	localDetector := detector.New(detector.Config(cfg.Detector), zapLogger)
	localClassifier := rca.NewAnalyzer(
		rca.NewRuleEngine(rca.DefaultRules(), cfg.Pipeline.RuleConfidenceThreshold, zapLogger),
		logSanitizer,
		cfg.Pipeline.ServiceDependencies,
		zapLogger,
	)
	localRemediator := fixer.NewEngine(rb, executor.New(cfg.Services.CommandTimeout, zapLogger), zapLogger)

	// Readiness checks; remote services are added as they are selected
	checks := map[string]handler.ReadinessCheck{
		"rulebook": func(context.Context) error {
			if len(rb.IssueTypes()) == 0 {
				return errors.New("rulebook declares no issues")
			}
			return nil
		},
	}

	// Downstream services: remote when a URL is configured
	var det service.Detector = localDetector
	if cfg.Services.DetectorURL != "" {
		client := detector.NewClient(cfg.Services.DetectorURL, cfg.Services.DetectorTimeout, zapLogger)
		det = client
		checks["detector"] = client.HealthCheck
	}
	var classifier orchestrator.Classifier = localClassifier
	if cfg.Services.RCAURL != "" {
		client := rca.NewClient(cfg.Services.RCAURL, cfg.Services.RCATimeout, rca.NewDefaultValidator(), zapLogger)
		classifier = client
		checks["rca"] = client.HealthCheck
	}
	var remediator orchestrator.Remediator = localRemediator
	if cfg.Services.FixerURL != "" {
		client := fixer.NewClient(cfg.Services.FixerURL, cfg.Services.FixerTimeout, zapLogger)
		remediator = client
		checks["fixer"] = client.HealthCheck
	}

	// Incident pipeline
	hub := ws.NewHub(cfg.Hub.BufferSize, zapLogger)
	recorder := audit.New(cfg.Pipeline.AuditCapacity, zapLogger)
	orch := orchestrator.New(
		orchestrator.Config{
			EnableAutoRemediation: cfg.Pipeline.EnableAutoRemediation,
			Retention:             cfg.Pipeline.IncidentRetention,
			RCATimeout:            cfg.Services.RCATimeout,
			FixerTimeout:          cfg.Services.FixerTimeout,
		},
		orchestrator.Deps{
			Classifier: classifier,
			Remediator: remediator,
			Policy: policy.New(policy.Config{
				MinConfidence:  cfg.Policy.MinConfidence,
				Environment:    cfg.Policy.Environment,
				BlockedActions: cfg.Policy.BlockedActions,
			}, rb),
			IncidentLogger: recorder,
			Emitter:        hub,
			Sanitizer:      logSanitizer,
		},
		zapLogger,
	)
	pipeline := service.NewPipeline(det, orch, service.PipelineConfig{Async: cfg.Pipeline.Async}, zapLogger)

	// Initialize handlers
	routes := handler.Routes{
		Health:    handler.NewHealthHandler(zapLogger),
		Ready:     handler.NewReadyHandler(checks, zapLogger),
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Stream:    ws.NewHandler(hub, cfg.Hub.ClientBuffer, zapLogger).Handle,
		Detect:    handler.NewDetectHandler(localDetector, zapLogger),
		Analyze:   handler.NewAnalyzeHandler(localClassifier, zapLogger),
		Execute:   handler.NewExecuteHandler(localRemediator, zapLogger),
		Anomaly:   handler.NewAnomalyHandler(pipeline, zapLogger),
		Status:    handler.NewStatusHandler(cfg.Public(), orch, hub),
		Event:     handler.NewEventHandler(hub, zapLogger),
		Incidents: handler.NewIncidentsHandler(orch, zapLogger),
		Audit:     handler.NewAuditHandler(recorder),
		Events:    handler.NewEventsHandler(hub),
	}

	// Setup Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(routes, handler.RouterConfig{
		IngressRateLimit: cfg.Server.IngressRateLimit,
		IngressBurst:     cfg.Server.IngressBurst,
	}, zapLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var bg errgroup.Group
	bg.Go(func() error {
		orch.RunJanitor(bgCtx, time.Minute)
		return nil
	})
	if cfg.Telemetry.Enabled() {
		source := telemetry.NewComposite(
			telemetry.NewHTTPConnector("http", telemetry.Endpoints{
				Metrics: cfg.Telemetry.MetricsURL,
				Logs:    cfg.Telemetry.LogsURL,
			}, cfg.Telemetry.Timeout),
		)
		if cfg.Telemetry.TracesURL != "" {
			source.Add(telemetry.NewHTTPConnector("traces", telemetry.Endpoints{
				Traces: cfg.Telemetry.TracesURL,
			}, cfg.Telemetry.Timeout))
		}
		poller := telemetry.NewPoller(source, pipeline,
			telemetry.Query{Services: cfg.Telemetry.Services},
			cfg.Telemetry.Host, cfg.Telemetry.Interval, zapLogger)
		bg.Go(func() error { return poller.Run(bgCtx) })
	}

	// Start server in goroutine
	go func() {
		zapLogger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down server...")

	// Give in-flight requests and incidents time to finish
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	stopBackground()
	if err := bg.Wait(); err != nil {
		zapLogger.Error("background worker failed", zap.Error(err))
	}

	if err := orch.Wait(ctx); err != nil {
		zapLogger.Warn("incidents still in flight at shutdown", zap.Error(err))
	}

	zapLogger.Info("server stopped")
}
