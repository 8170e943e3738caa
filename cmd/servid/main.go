package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	slotleads "github.com/phbpx/slotleads"
	"github.com/phbpx/slotleads/access"
	"github.com/phbpx/slotleads/handler"
	"github.com/phbpx/slotleads/memory"
	"github.com/phbpx/slotleads/postgres"
	"github.com/phbpx/slotleads/redis"
	"github.com/phbpx/slotleads/submission"
	"github.com/shopspring/decimal"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {

	log, err := newLog("slotleads-api")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run("slotleads-api", log); err != nil {
		log.Errorw("startup", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(serverName string, log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		Http struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			Host            string        `conf:"default:0.0.0.0:3000"`
		}
		Store struct {
			Backend string `conf:"default:postgres,help:memory or postgres"`
		}
		DB struct {
			User         string        `conf:"default:slotleads"`
			Password     string        `conf:"default:slotleads,mask"`
			Host         string        `conf:"default:localhost"`
			Name         string        `conf:"default:slotleads"`
			MaxIdleConns int           `conf:"default:2"`
			MaxOpenConns int           `conf:"default:0"`
			DisableTLS   bool          `conf:"default:true"`
			WaitTimeout  time.Duration `conf:"default:30s,help:how long startup waits for the database"`
		}
		Slots struct {
			Initial int    `conf:"default:3"`
			Backend string `conf:"default:store,help:store or redis"`
		}
		Redis struct {
			Addr     string `conf:"default:localhost:6379"`
			Password string `conf:"mask"`
			DB       int    `conf:"default:0"`
			Key      string `conf:"default:slotleads:urgency_slots"`
		}
		Auth struct {
			Secret      string `conf:"default:change-me,mask"`
			Bootstrap   string `conf:"help:identity allowed to grant the first admin"`
			DefaultRole string `conf:"default:guest,help:guest or user"`
		}
		Offer struct {
			Plan         string `conf:"default:1 Year Pro Subscription"`
			Description  string `conf:"default:One year of the Pro plan at the launch price"`
			Amount       string `conf:"default:299"`
			Currency     string `conf:"default:INR"`
			PaymentLink  string `conf:"default:upi://pay?pa=merchant@upi&pn=Pro&am=299&cu=INR"`
			Instructions string `conf:"default:Pay using the link or QR code then confirm your payment."`
		}
		Jaeger struct {
			ReporterURI string  `conf:"default:http://localhost:14268/api/traces"`
			ServiceName string  `conf:"default:slotleads-api"`
			Probability float64 `conf:"default:0.5"`
		}
	}{}

	help, err := conf.Parse("SLOTS", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	defaultRole, err := slotleads.ParseRole(cfg.Auth.DefaultRole)
	if err != nil {
		return fmt.Errorf("parsing default role: %w", err)
	}

	amount, err := decimal.NewFromString(cfg.Offer.Amount)
	if err != nil {
		return fmt.Errorf("parsing offer amount: %w", err)
	}

	offer := slotleads.Offer{
		Plan:         cfg.Offer.Plan,
		Description:  cfg.Offer.Description,
		Amount:       amount,
		Currency:     cfg.Offer.Currency,
		PaymentLink:  cfg.Offer.PaymentLink,
		Instructions: cfg.Offer.Instructions,
	}

	ctx := context.Background()

	// =========================================================================
	// Storage Support

	var (
		submissions slotleads.SubmissionStore
		roles       slotleads.RoleStore
		slots       slotleads.SlotCounter
		checks      []handler.StatusCheck
	)

	switch cfg.Store.Backend {
	case "memory":
		log.Infow("startup", "status", "initializing in-memory storage")

		submissions = memory.NewSubmissionStore()
		roles = memory.NewRoleStore()
		slots = memory.NewSlotCounter(cfg.Slots.Initial)

	case "postgres":
		log.Infow("startup", "status", "initializing database support", "host", cfg.DB.Host)

		db, err := postgres.Open(postgres.Config{
			User:         cfg.DB.User,
			Password:     cfg.DB.Password,
			Host:         cfg.DB.Host,
			Name:         cfg.DB.Name,
			MaxIdleConns: cfg.DB.MaxIdleConns,
			MaxOpenConns: cfg.DB.MaxOpenConns,
			DisableTLS:   cfg.DB.DisableTLS,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Infow("shutdown", "status", "stopping database support", "host", cfg.DB.Host)
			db.Close()
		}()

		log.Infow("startup", "status", "updating database schema", "database", cfg.DB.Name, "host", cfg.DB.Host)

		migrateCtx, cancel := context.WithTimeout(ctx, cfg.DB.WaitTimeout)
		version, err := postgres.Migrate(migrateCtx, db)
		cancel()
		if err != nil {
			return fmt.Errorf("updating database schema: %w", err)
		}
		log.Infow("startup", "status", "database schema ready", "version", version)

		counter := postgres.NewSlotCounter(db)
		if err := counter.Seed(ctx, cfg.Slots.Initial); err != nil {
			return fmt.Errorf("seeding urgency slots: %w", err)
		}

		submissions = postgres.NewSubmissionStore(db)
		roles = postgres.NewRoleStore(db)
		slots = counter
		checks = append(checks, func(ctx context.Context) error {
			return postgres.StatusCheck(ctx, db)
		})

	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	switch cfg.Slots.Backend {
	case "store":
		log.Infow("startup", "status", "urgency slots kept by the store backend", "backend", cfg.Store.Backend)

	case "redis":
		log.Infow("startup", "status", "initializing redis slot counter", "addr", cfg.Redis.Addr)

		counter, err := redis.Open(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() {
			log.Infow("shutdown", "status", "stopping redis support", "addr", cfg.Redis.Addr)
			counter.Close()
		}()

		if err := counter.Seed(ctx, cfg.Slots.Initial); err != nil {
			return fmt.Errorf("seeding urgency slots: %w", err)
		}

		slots = counter
		checks = append(checks, counter.StatusCheck)

	default:
		return fmt.Errorf("unknown slots backend %q", cfg.Slots.Backend)
	}

	// =========================================================================
	// Start Tracing Support

	log.Infow("startup", "status", "initializing OT/Jaeger tracing support")

	traceProvider, err := startTracing(
		cfg.Jaeger.ServiceName,
		cfg.Jaeger.ReporterURI,
		cfg.Jaeger.Probability,
	)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer traceProvider.Shutdown(context.Background())

	// =========================================================================
	// Create router

	log.Infow("startup", "status", "initializing router")

	otelLog := otelzap.New(log.Desugar(), otelzap.WithStackTrace(true)).Sugar()

	guard := access.NewGuard(roles, access.Config{
		DefaultRole: defaultRole,
		Bootstrap:   slotleads.Identity(cfg.Auth.Bootstrap),
	})
	service := submission.NewService(submissions, slots, guard, offer, otelLog)

	router := handler.NewRouter(
		serverName,
		handler.NewAuthenticator(cfg.Auth.Secret, otelLog),
		handler.NewSubmissionHandler(service, otelLog),
		handler.NewRoleHandler(guard, otelLog),
		statusCheck(checks),
		otelLog,
	)

	// =========================================================================
	// Start API Server

	log.Infow("startup", "status", "initializing http server", "host", cfg.Http.Host)

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         cfg.Http.Host,
		Handler:      router,
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
		IdleTimeout:  cfg.Http.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)

	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// statusCheck runs every storage check in order.
func statusCheck(checks []handler.StatusCheck) handler.StatusCheck {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func newLog(serviceName string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

func startTracing(serviceName, reporterURL string, probability float64) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(reporterURL)))
	if err != nil {
		return nil, fmt.Errorf("creating new exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(probability))),
		// Always be sure to batch in production.
		tracesdk.WithBatcher(exp,
			tracesdk.WithMaxExportBatchSize(tracesdk.DefaultMaxExportBatchSize),
			tracesdk.WithBatchTimeout(tracesdk.DefaultScheduleDelay*time.Millisecond),
		),
		// Record information about this application in a Resource.
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("exporter", "jaeger"),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}
