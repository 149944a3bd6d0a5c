package router

import (
	"context"
	"net/http"
	"strings"

	"doclens/internal/api/v1/handler"
	"doclens/internal/auth"
	"doclens/internal/config"
	"doclens/internal/middleware"
	"doclens/internal/repository"
	"doclens/internal/service"
	"doclens/internal/task"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the full application: database pool, external clients,
// repositories, services, handlers and middleware. It returns the root
// handler, the pool (for shutdown) and the background status refresher
// (not yet started).
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, *task.Runner, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Open DB connection pool
	pool, err := openPool(context.Background(), cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	// 2. Initialize the archive client. Archival is optional; uploads still
	// flow to the analysis service without it.
	var archive service.ArchiveStore
	if cfg.ArchiveEnabled() {
		s3Client, err := newS3Client(context.Background(), cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize archive storage")
			pool.Close()
			return nil, nil, nil, err
		}
		archive = service.NewS3ArchiveStore(s3Client, cfg.S3Bucket)
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("Archive storage enabled")
	} else {
		logger.Warn().Msg("Archive storage not configured, uploads will not be archived")
	}

	// 3. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 4. Initialize external clients
	analysisClient := service.NewAnalysisClient(cfg.AnalysisAPIURL, logger)
	stripeClient := service.NewStripeClient(cfg.StripeSecretKey)

	// 5. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	roleRepo := repository.NewRoleRepo(pool)
	documentRepo := repository.NewDocumentRepo(pool, logger)

	userSvc := service.NewUserService(userRepo, roleRepo, logger)
	roleSvc := service.NewRoleService(roleRepo, logger)
	billingSvc := service.NewBillingService(cfg, stripeClient, roleRepo, logger)
	documentSvc := service.NewDocumentService(cfg, documentRepo, analysisClient, archive, logger)

	userHandler := handler.NewUserHandler(userSvc, roleSvc, validate, logger)
	billingHandler := handler.NewBillingHandler(cfg, billingSvc, logger)
	documentHandler := handler.NewDocumentHandler(cfg, documentSvc, validate, logger)

	// 6. Initialize middleware
	verifier := auth.NewVerifier(cfg.JWTSecret)
	authChain := auth.NewChain(
		auth.NewCookieResolver(verifier, cfg.AuthCookieName),
		auth.NewBearerResolver(verifier),
	)
	authMiddleware := middleware.Auth(authChain, logger)

	// 7. Create ServeMux router
	mux := http.NewServeMux()

	// Billing routes live at the root, outside the v1 prefix, because the
	// provider's webhook endpoint and the frontend checkout call are
	// registered against these exact paths.
	billingHandler.RegisterRoutes(mux, authMiddleware)

	// Create a subrouter for API v1 with the /api/v1 prefix
	apiV1Mux := http.NewServeMux()
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	documentHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"name":"doclens","version":"1.0.0"}`))
	})

	// Add Swagger documentation
	mux.HandleFunc("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger/swagger.json")
	})
	mux.Handle("/swagger/", http.StripPrefix("/swagger/", http.FileServer(http.Dir("./docs/swagger/swagger-ui"))))

	// 8. Apply CORS middleware. The browser sends the auth cookie, so the
	// allowed origin must be explicit whenever the site URL is known.
	allowedOrigins := []string{"*"}
	if cfg.SiteURL != "" {
		allowedOrigins = []string{cfg.SiteURL}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
	})

	// 9. Background status refresher, started by main
	refresher := task.New("status-refresher", cfg.StatusRefreshInterval(), documentSvc.RefreshParsing, logger)

	return middleware.Logger(logger)(c.Handler(mux)), pool, refresher, nil
}

// openPool parses the DSN, applies environment-specific adjustments and
// verifies connectivity.
func openPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	dsn := cfg.DatabaseURL
	// In a development environment, we want to ensure that SSL is disabled for
	// local testing. In production, the connection string should be provided
	// with the correct SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}
	// For non-development environments that use a transaction pooler like pgbouncer,
	// we must use the simple query protocol to avoid issues with server-side prepared statements.
	if cfg.Environment != "development" && !strings.Contains(dsn, "default_query_exec_mode") {
		separator := "&"
		if !strings.Contains(dsn, "?") {
			separator = "?"
		}
		dsn += separator + "default_query_exec_mode=simple_protocol"
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse database URL")
		return nil, err
	}
	poolCfg.MaxConns = 25

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB connection pool")
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, err
	}
	logger.Info().Msg("Database connection successful")
	return pool, nil
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	}), nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
