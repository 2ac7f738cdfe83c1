package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/lecture-notes/backend/internal/auth"
	"github.com/ayush/lecture-notes/backend/internal/config"
	"github.com/ayush/lecture-notes/backend/internal/httpx"
	"github.com/ayush/lecture-notes/backend/internal/lectures"
	"github.com/ayush/lecture-notes/backend/internal/logging"
	"github.com/ayush/lecture-notes/backend/internal/mail"
	"github.com/ayush/lecture-notes/backend/internal/middleware"
	"github.com/ayush/lecture-notes/backend/internal/relay"
	"github.com/ayush/lecture-notes/backend/internal/resolver"
	"github.com/ayush/lecture-notes/backend/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Error("mongo connect", "err", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(ctx)
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		log.Warn("mongo indexes", "err", err)
	}

	// ── Users ────────────────────────────────────────────────
	var users auth.UserStore = mongoStore
	if cfg.UserStore == "postgres" {
		pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connect", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()
		pgStore := store.NewPostgresStore(pgPool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("postgres migrate", "err", err)
			os.Exit(1)
		}
		users = pgStore
	}

	// ── Client addresses ─────────────────────────────────────
	clientIP, err := middleware.NewClientIP(cfg.TrustedProxies)
	if err != nil {
		log.Error("invalid TRUSTED_PROXIES", "err", err)
		os.Exit(1)
	}
	ipKey := clientIP.Key
	emailKey := middleware.EmailKey(1 << 20)

	// ── Redis ────────────────────────────────────────────────
	var limiter func(scope string, key middleware.KeyFunc) func(http.Handler) http.Handler
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, auth routes are not rate limited", "err", err)
		} else {
			defer rdb.Close()
			counter := store.NewRedisCounter(rdb, "ratelimit")
			limiter = func(scope string, key middleware.KeyFunc) func(http.Handler) http.Handler {
				return middleware.RateLimit(counter, scope, cfg.RateLimit, cfg.RateWindow, key, log)
			}
		}
	}
	if limiter == nil {
		limiter = func(string, middleware.KeyFunc) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}

	// ── MinIO ────────────────────────────────────────────────
	var (
		objects lectures.ObjectStore
		signer  resolver.Signer
	)
	if cfg.StorageConfigured() {
		minioStore, err := store.NewMinioStore(
			ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, cfg.MinioPublicURL,
		)
		if err != nil {
			log.Error("minio connect", "err", err)
			os.Exit(1)
		}
		objects, signer = minioStore, minioStore
	} else {
		log.Warn("object storage not configured, publishing and private downloads are disabled")
	}

	// ── Mail ─────────────────────────────────────────────────
	var mailer mail.Sender
	if cfg.MailConfigured() {
		mailer = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom, log)
	} else {
		mailer = mail.NewLogSender(log)
	}

	// ── Handlers ─────────────────────────────────────────────
	authSvc := auth.NewService(users, mailer, log, auth.WithOTPTTL(cfg.OTPTTL))
	authHandler := auth.NewHandler(authSvc, log)

	res := resolver.New(mongoStore, signer, resolver.Options{
		Timeout:         cfg.FetchTimeout,
		Backoff:         cfg.FetchBackoff,
		SignedURLExpiry: cfg.SignedURLExpiry,
		MaxBytes:        cfg.MaxUploadBytes,
	}, log)
	relayHandler := relay.NewHandler(
		relay.NewClient(cfg.AIServiceURL, cfg.AITimeout), res,
		cfg.AIChatPath, cfg.AINotesPath, cfg.MaxUploadBytes, log,
	)
	lectureHandler := lectures.NewHandler(mongoStore, objects, res, cfg.StoragePrivate, cfg.MaxUploadBytes, log)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(clientIP.Middleware)
	r.Use(logging.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.With(limiter("signup", ipKey)).Post("/signup", authHandler.SignUp)
		r.With(limiter("verify-otp", ipKey), limiter("verify-otp:email", emailKey)).
			Post("/verify-otp", authHandler.VerifyOTP)
		r.With(limiter("resend-otp", ipKey), limiter("resend-otp:email", emailKey)).
			Post("/resend-otp", authHandler.ResendOTP)
		r.With(limiter("signin", ipKey), limiter("signin:email", emailKey)).
			Post("/signin", authHandler.SignIn)

		r.Post("/chat-with-notes", relayHandler.ChatWithNotes)
		r.Post("/lecture", relayHandler.GenerateNotes)

		r.Get("/lectures", lectureHandler.List)
		r.Post("/lectures", lectureHandler.Publish)
		r.Get("/lectures/download", lectureHandler.Download)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: cfg.AITimeout + time.Minute,
	}

	go func() {
		log.Info("backend listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
