package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/booklane/library-backend/pkg/monitoring"
	"github.com/booklane/library-backend/shared/utils"
	v1 "github.com/booklane/library-backend/v1"
	"github.com/booklane/library-backend/v1/handlers"
	"github.com/booklane/library-backend/v1/middleware"
	"github.com/booklane/library-backend/v1/models"
)

func main() {
	// Load environment variables from .env file (ignore error in production)
	_ = godotenv.Load()

	utils.SetupLogging(
		utils.GetEnvOrDefault("LOG_FORMAT", "json"),
		utils.GetEnvOrDefault("LOG_LEVEL", "info"),
	)

	ctx := context.Background()

	shutdownMetrics, err := monitoring.Setup(ctx, monitoring.Config{
		ServiceName: "library-backend",
	})
	if err != nil {
		slog.Error("Failed to set up metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Error("Failed to shut down metrics", "error", err)
		}
	}()

	dbConfig := v1.NewDatabaseConfig()
	db, err := v1.ConnectGormDB(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	jwtConfig := middleware.JWTAuthConfig{
		Secret:   []byte(os.Getenv("JWT_SECRET")),
		Issuer:   utils.GetEnvOrDefault("JWT_ISSUER", "library-backend"),
		TokenTTL: sessionTokenTTL(),
	}
	if err := jwtConfig.Validate(); err != nil {
		slog.Error("Invalid JWT configuration", "error", err)
		os.Exit(1)
	}

	jwtMiddleware := middleware.NewJWTAuthMiddleware(jwtConfig)
	authzMiddleware := middleware.NewAuthorizationMiddlewareWithConfig(middleware.AuthorizationConfig{
		Mode: models.AuthorizationMode(utils.GetEnvOrDefault("AUTHORIZATION_MODE", string(models.AuthorizationModeFailClosed))),
	})
	corsMiddleware := middleware.NewCORSMiddleware()

	handler := handlers.NewV1Handler(db, jwtMiddleware, jwtConfig.TokenTTL)

	// Seed the staff account when bootstrap credentials are configured
	adminUser := os.Getenv("LIBRARY_ADMIN_USERNAME")
	adminPass := os.Getenv("LIBRARY_ADMIN_PASSWORD")
	if adminUser != "" && adminPass != "" {
		if err := handler.AuthService().EnsureAdmin(ctx, adminUser, adminPass); err != nil {
			slog.Error("Failed to seed admin account", "error", err)
			os.Exit(1)
		}
	}

	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.Handle("/metrics", monitoring.Handler())

	// CORS -> metrics -> authentication -> authorization -> routes
	chain := corsMiddleware(
		monitoring.HTTPMetricsMiddleware(
			jwtMiddleware.AuthenticateJWT(
				authzMiddleware.AuthorizeRequest(mux))))

	serverConfig := utils.DefaultServerConfig()
	server := utils.CreateServer(serverConfig, chain)

	if err := utils.StartServerWithGracefulShutdown(server, "library-backend"); err != nil {
		os.Exit(1)
	}
}

// sessionTokenTTL reads the session lifetime, defaulting to 12 hours
func sessionTokenTTL() time.Duration {
	raw := utils.GetEnvOrDefault("SESSION_TOKEN_TTL", "12h")
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid SESSION_TOKEN_TTL, using default", "value", raw)
		return 12 * time.Hour
	}
	return ttl
}
