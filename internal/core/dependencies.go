// Package core собирает приложение из конфига: хранилища, ключи, политику, сервисы и роутер.
package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/xela07ax/orbit-auth/internal/api/graphql"
	"github.com/xela07ax/orbit-auth/internal/api/handler"
	"github.com/xela07ax/orbit-auth/internal/api/server"
	"github.com/xela07ax/orbit-auth/internal/api/service"
	"github.com/xela07ax/orbit-auth/internal/audit"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"github.com/xela07ax/orbit-auth/internal/infra/cookie"
	"github.com/xela07ax/orbit-auth/internal/repository/memory"
	"github.com/xela07ax/orbit-auth/internal/repository/postgres"
	"github.com/xela07ax/orbit-auth/internal/repository/redis"
	"go.uber.org/zap"
)

// Store: полный набор операций основного хранилища.
type Store interface {
	service.UserRepository
	service.InventoryRepository
	audit.Storage
}

// App: собранное приложение. Закрывается через Close.
type App struct {
	Config   *infra.Config
	Handler  http.Handler
	Users    service.UserRepository
	Registry *prometheus.Registry

	logger   *zap.Logger
	recorder *audit.Recorder
	pool     *pgxpool.Pool
	rdb      *goredis.Client
	stop     context.CancelFunc
	purgers  []purger
}

// purger: периодическая чистка истекших записей хранилища.
type purger struct {
	name  string
	purge func(ctx context.Context) (int64, error)
}

// Build создает все зависимости по конфигу. При ошибке уже открытые ресурсы закрываются.
func Build(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (_ *App, err error) {
	app := &App{Config: cfg, logger: logger, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := infra.NewMetrics(app.Registry)

	// 1. Основное хранилище
	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Users = store

	// 2. Refresh-записи и сессии
	refreshStore, err := app.refreshStore(ctx, store)
	if err != nil {
		return nil, err
	}
	var sessions *auth.Sessions
	if cfg.Auth.Mode == infra.AuthModeSession {
		sessionStore, err := app.sessionStore(ctx)
		if err != nil {
			return nil, err
		}
		sessions = auth.NewSessions(sessionStore, cfg.Session.TTL)
	}

	// 3. Ключи и политика
	keys, signer, jwks, err := buildKeys(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts := auth.Options{
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		Refresh:    refreshStore,
		Users:      store,
		Logger:     logger,
		Metrics:    metrics,
	}
	if cfg.Auth.Mode == infra.AuthModeOAuth {
		opts.Issuer = cfg.OAuth.IssuerURL()
		opts.Audience = cfg.OAuth.Audience
	}
	policy := auth.NewPolicy(keys, signer, opts)

	// 4. Аудит
	app.recorder = audit.NewRecorder(store, logger, metrics, audit.Options{})
	app.recorder.Start()

	// 5. Сервисы
	authService, err := service.NewAuthService(store, policy, sessions, app.recorder, service.AuthConfig{
		BcryptCost:         cfg.Auth.BcryptCost,
		SignupRole:         domain.Role(cfg.Auth.SignupRole),
		LoginRatePerMinute: cfg.Auth.LoginRatePerMinute,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}
	userService := service.NewUserService(store, app.recorder, logger)
	inventoryService := service.NewInventoryService(store)
	dashboardService := service.NewDashboardService()

	// 6. Транспорт
	trusted, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}
	cookies := cookie.NewManager(cfg.Cookie)
	authn := auth.NewAuthenticator(cfg.Auth.Mode, policy, sessions, cookies, logger)
	transport := handler.NewTransport(cookies, handler.TransportConfig{
		Mode:       cfg.Auth.Mode,
		AccessTTL:  policy.AccessTTL(),
		RefreshTTL: policy.RefreshTTL(),
		SessionTTL: cfg.Session.TTL,
	})

	schema, err := graphql.NewSchema(graphql.Services{
		Auth:      authService,
		Users:     userService,
		Inventory: inventoryService,
		Dashboard: dashboardService,
		Transport: transport,
	}, authn, logger)
	if err != nil {
		return nil, err
	}

	app.Handler = server.New(server.Handlers{
		Auth:      handler.NewAuthHandler(authService, transport, logger),
		User:      handler.NewUserHandler(userService, logger),
		Inventory: handler.NewInventoryHandler(inventoryService, logger),
		Dashboard: handler.NewDashboardHandler(dashboardService, logger),
		GraphQL:   graphql.NewHandler(schema, logger),
	}, server.Options{
		Logger:         logger,
		Metrics:        metrics,
		Gatherer:       app.Registry,
		Authenticator:  authn,
		JWKS:           jwks,
		Health:         app.health,
		TrustedProxies: trusted,
	})

	app.startJanitor(ctx)
	return app, nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	switch a.Config.Database.Driver {
	case infra.DriverPostgres:
		pool, err := postgres.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		return postgres.NewRepo(pool), nil
	case infra.DriverMemory, "":
		a.logger.Warn("using in-memory store, data is lost on restart")
		return &memoryStore{
			UserRepo:      memory.NewUserRepo(),
			InventoryRepo: memory.NewInventoryRepo(),
			LogStorage:    audit.NewLogStorage(a.logger),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database.driver %q", a.Config.Database.Driver)
	}
}

// memoryStore склеивает in-memory репозитории в один Store; аудит уходит в лог.
type memoryStore struct {
	*memory.UserRepo
	*memory.InventoryRepo
	*audit.LogStorage
}

func (a *App) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	rdb, err := redis.NewClient(ctx, a.Config.Redis)
	if err != nil {
		return nil, err
	}
	a.rdb = rdb
	return rdb, nil
}

func (a *App) refreshStore(ctx context.Context, store Store) (auth.RefreshStore, error) {
	switch a.Config.Auth.RefreshStore {
	case infra.DriverRedis:
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewRefreshStore(rdb), nil
	case infra.DriverPostgres:
		repo, ok := store.(*postgres.Repo)
		if !ok {
			return nil, fmt.Errorf("auth.refresh_store postgres requires database.driver postgres")
		}
		a.purgers = append(a.purgers, purger{name: "refresh", purge: repo.PurgeExpiredRefresh})
		return repo, nil
	case infra.DriverMemory, "":
		repo := memory.NewRefreshRepo()
		a.purgers = append(a.purgers, purger{name: "refresh", purge: repo.PurgeExpired})
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported auth.refresh_store %q", a.Config.Auth.RefreshStore)
	}
}

func (a *App) sessionStore(ctx context.Context) (auth.SessionStore, error) {
	switch a.Config.Session.Store {
	case infra.DriverRedis:
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redis.NewSessionStore(rdb), nil
	case infra.DriverMemory, "":
		repo := memory.NewSessionRepo()
		a.purgers = append(a.purgers, purger{name: "session", purge: repo.PurgeExpired})
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported session.store %q", a.Config.Session.Store)
	}
}

// buildKeys выбирает схему подписи. jwks != nil только для RS256 (публикуем свой ключ).
func buildKeys(cfg *infra.Config, logger *zap.Logger) (auth.KeySource, auth.Signer, *auth.JWKSet, error) {
	if cfg.Auth.Mode == infra.AuthModeOAuth {
		src, err := auth.NewJWKSKeySource(auth.JWKSOptions{
			URL:               cfg.OAuth.JWKSEndpoint(),
			TTL:               cfg.OAuth.JWKSTTL,
			RequestsPerMinute: cfg.OAuth.JWKSRequestsPerMinute,
			Logger:            logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return src, nil, nil, nil
	}

	switch cfg.Auth.Algorithm {
	case "RS256":
		keys, err := auth.NewRSAKeys(cfg.Auth.PrivateKey, cfg.Auth.PublicKey)
		if err != nil {
			return nil, nil, nil, err
		}
		set := keys.JWKS()
		return keys, keys, &set, nil
	default:
		keys, err := auth.NewHMACKeys(cfg.Auth.Secret)
		if err != nil {
			return nil, nil, nil, err
		}
		return keys, keys, nil, nil
	}
}

func (a *App) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// startJanitor раз в час чистит истекшие refresh-записи и сессии в Postgres и памяти.
// Redis удаляет их сам по TTL.
func (a *App) startJanitor(parent context.Context) {
	if len(a.purgers) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	a.stop = cancel

	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.purgeExpired(ctx)
			}
		}
	}()
}

const janitorInterval = time.Hour

func (a *App) purgeExpired(ctx context.Context) {
	for _, p := range a.purgers {
		n, err := p.purge(ctx)
		if err != nil {
			a.logger.Warn("failed to purge expired records", zap.String("store", p.name), zap.Error(err))
			continue
		}
		a.logger.Debug("expired records purged", zap.String("store", p.name), zap.Int64("count", n))
	}
}

// Close останавливает фоновые задачи, дописывает аудит и закрывает соединения.
func (a *App) Close() {
	if a.stop != nil {
		a.stop()
	}
	if a.recorder != nil {
		a.recorder.Stop()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
