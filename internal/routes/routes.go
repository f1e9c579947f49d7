package routes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/tokengate/internal/auth"
	"github.com/congo-pay/tokengate/internal/config"
	"github.com/congo-pay/tokengate/internal/credential"
	"github.com/congo-pay/tokengate/internal/logging"
	"github.com/congo-pay/tokengate/internal/middleware"
	"github.com/congo-pay/tokengate/internal/token"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Credentials overrides the repository chosen from DB. Tests use it to
	// keep a handle on the in-memory store.
	Credentials credential.Repository
	// BcryptCost of 0 selects bcrypt.DefaultCost.
	BcryptCost int
	// Clock overrides time.Now for token issuance and validation.
	Clock func() time.Time
	// AccessLog enables fiber's plain-text access log.
	AccessLog bool
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if !d.Cfg.IsDev() {
		if d.DB == nil && d.Credentials == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	repo := d.Credentials
	if repo == nil {
		if d.DB != nil {
			repo = credential.NewPostgresRepository(d.DB)
		} else {
			d.Logger.Warn("no database configured, credentials are kept in memory")
			repo = credential.NewMemoryRepository()
		}
	}
	store, err := credential.NewService(repo, d.BcryptCost)
	if err != nil {
		return err
	}

	codecOpts := []token.Option{token.WithTTL(d.Cfg.TokenTTL)}
	if d.Clock != nil {
		codecOpts = append(codecOpts, token.WithClock(d.Clock))
	}
	codec, err := token.NewCodec(d.Cfg.JWTSecret, codecOpts...)
	if err != nil {
		return fmt.Errorf("build token codec: %w", err)
	}

	gateway := auth.NewGateway(store, codec, d.Logger)
	authHandler := auth.NewHandler(gateway, d.Logger)
	guard := middleware.NewTokenGuard(codec, store, d.Cfg.BearerPrefix, d.Logger)

	RegisterAuthRoutes(app, d, authHandler, guard.Handler())

	RegisterProtectedRoutes(app, guard.Handler())

	return nil
}
