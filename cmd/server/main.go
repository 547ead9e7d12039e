package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vouch/internal/audit"
	auditkafka "vouch/internal/audit/kafka"
	"vouch/internal/document"
	"vouch/internal/identity"
	"vouch/internal/platform/config"
	"vouch/internal/platform/httpserver"
	"vouch/internal/platform/logger"
	platformmetrics "vouch/internal/platform/metrics"
	"vouch/internal/platform/middleware"
	"vouch/internal/platform/postgres"
	platformredis "vouch/internal/platform/redis"
	"vouch/internal/post"
	requesthandler "vouch/internal/request/handler"
	requestmetrics "vouch/internal/request/metrics"
	requestservice "vouch/internal/request/service"
	requeststore "vouch/internal/request/store/request"
	"vouch/internal/request/throttle"
	reviewhandler "vouch/internal/review/handler"
	reviewservice "vouch/internal/review/service"
	httptransport "vouch/internal/transport/http"
	verificationhandler "vouch/internal/verification/handler"
	verificationmetrics "vouch/internal/verification/metrics"
	verificationservice "vouch/internal/verification/service"
	verificationstore "vouch/internal/verification/store/verification"
	"vouch/pkg/platform/tx"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when DATABASE_URL is set, in-memory otherwise so the
	// service still runs in local development without infrastructure.
	var (
		requests      requestservice.RequestStore
		reviewStore   reviewservice.RequestStore
		verifications verificationservice.VerificationStore
		identities    identity.Store
		posts         post.Store
		runner        tx.Runner
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		requestStore := requeststore.NewPostgres(db)
		requests = requestStore
		reviewStore = requestStore
		verifications = verificationstore.NewPostgres(db)
		identities = identity.NewPostgres(db)
		posts = post.NewPostgres(db)
		runner = postgres.NewTxRunner(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		requestStore := requeststore.NewInMemory()
		verificationStore := verificationstore.NewInMemory()
		identityStore := identity.NewInMemory()
		requests = requestStore
		reviewStore = requestStore
		verifications = verificationStore
		identities = identityStore
		posts = post.NewInMemory()
		runner = tx.NewMemoryRunner(requestStore, verificationStore, identityStore)
	}

	var documents document.Store
	if cfg.MinIO.Endpoint != "" {
		minioStore, err := document.NewMinIO(ctx, document.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			log.Error("minio connection failed", "error", err)
			os.Exit(1)
		}
		documents = minioStore
	} else {
		log.Warn("MINIO_ENDPOINT not set, keeping documents in memory")
		documents = document.NewInMemory()
	}

	var limiter throttle.Limiter = throttle.Nop{}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil && cfg.SubmitLimit > 0 {
		defer redisClient.Close()
		limiter = throttle.NewRedis(redisClient.Client, cfg.SubmitLimit, cfg.SubmitWindow)
	}

	// Audit events flow through a channel to a worker so sink latency never
	// rides on request latency. Kafka when brokers are configured, an
	// in-process store otherwise.
	var auditSink audit.Store = audit.NewMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaStore.Close()
		auditSink = kafkaStore
	}
	inbox := make(chan audit.Event, 256)
	auditWorker := audit.NewWorker(auditSink, inbox)
	publisher := audit.NewPublisher(audit.NewChannelStore(inbox))

	// One metrics instance per module; promauto registers globally, so a
	// second New() would panic on duplicate registration.
	reqMetrics := requestmetrics.New()

	requestSvc := requestservice.New(requests, identities, documents,
		requestservice.WithLogger(log),
		requestservice.WithMetrics(reqMetrics),
		requestservice.WithAuditPublisher(publisher),
		requestservice.WithThrottle(limiter),
	)
	reviewSvc := reviewservice.New(reviewStore, identities, runner,
		reviewservice.WithLogger(log),
		reviewservice.WithMetrics(reqMetrics),
		reviewservice.WithAuditPublisher(publisher),
	)
	verificationSvc := verificationservice.New(verifications, identities, posts,
		verificationservice.WithLogger(log),
		verificationservice.WithMetrics(verificationmetrics.New()),
		verificationservice.WithAuditPublisher(publisher),
	)

	router := httptransport.NewRouter(httptransport.Handlers{
		Request:      requesthandler.New(requestSvc, log),
		Review:       reviewhandler.New(reviewSvc, log),
		Verification: verificationhandler.New(verificationSvc, log),
	}, middleware.NewJWTVerifier(cfg.JWTSigningKey), log, platformmetrics.NewHTTP())

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting vouch", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := auditWorker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
