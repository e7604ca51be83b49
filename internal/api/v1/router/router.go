package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"

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

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	// 1. Open DB connection pool
	dsn := cfg.DBConnectionString
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

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Resolve the Stripe API key, from Secret Manager when configured.
	stripeKey := cfg.StripeSecretKey
	if cfg.StripeSecretName != "" {
		secretSvc, err := service.NewSecretManagerService(context.Background(), cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Secret Manager client")
			return nil, nil, err
		}
		key, err := secretSvc.GetSecret(context.Background(), cfg.StripeSecretName)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load Stripe secret key")
			return nil, nil, err
		}
		stripeKey = key
	}

	// 3. Optional Pub/Sub publisher for usage analytics events.
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(context.Background(), cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
			return nil, nil, err
		}
		publisher = p
	} else {
		logger.Warn().Msg("GCP project not configured, usage analytics events disabled")
	}

	// 4. Optional S3 client for the reconciliation export.
	var s3Client *s3.Client
	if cfg.S3Bucket != "" {
		s3Config, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
			awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
		)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load S3 config")
			return nil, nil, err
		}
		s3Client = s3.NewFromConfig(s3Config, func(o *s3.Options) {
			if cfg.S3URL != "" {
				o.BaseEndpoint = aws.String(cfg.S3URL)
				o.UsePathStyle = true
			}
		})
	} else {
		logger.Warn().Msg("S3 bucket not configured, usage export disabled")
	}

	// 5. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 6. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	billingRepo := repository.NewBillingRepo(pool)
	quotaRepo := repository.NewUsageQuotaRepo(pool)

	planSvc := service.NewPlanService(billingRepo, logger)
	meteringClient := service.NewStripeMeteringClient(stripeKey, logger)
	meteringSvc := service.NewMeteringService(billingRepo, userRepo, meteringClient, map[model.Category]string{
		model.CategoryBasic:   cfg.StripeBasicMeterEvent,
		model.CategoryPremium: cfg.StripePremiumMeterEvent,
	}, time.Duration(cfg.MeterTimeoutSec)*time.Second, logger)
	limits := service.NewLimitTable(cfg.GuestBasicLimit, cfg.GuestPremiumLimit)
	usageSvc := service.NewUsageService(quotaRepo, planSvc, meteringSvc, publisher, cfg.UsageEventsTopic, limits, logger)
	billingSvc := service.NewBillingService(billingRepo, planSvc, logger)
	var exportSvc service.ExportService
	if s3Client != nil {
		exportSvc = service.NewExportService(quotaRepo, billingRepo, s3Client, cfg.S3Bucket, logger)
	}

	usageHandler := handler.NewUsageHandler(usageSvc, exportSvc, validate, logger)
	billingHandler := handler.NewBillingHandler(billingSvc, validate, logger)

	// 7. Initialize middleware
	identityMiddleware := middleware.IdentityMiddleware(cfg.JWTSecret)

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	usageHandler.RegisterRoutes(apiV1Mux, identityMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, identityMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Add Swagger documentation
	mux.HandleFunc("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger/swagger.json")
	})
	mux.Handle("/swagger/", http.StripPrefix("/swagger/", http.FileServer(http.Dir("./docs/swagger/swagger-ui"))))

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		// Only remove the middleware if it exists.
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
