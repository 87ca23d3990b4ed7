package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/totegamma/healthvault/internal/config"
	"github.com/totegamma/healthvault/internal/infra/broker"
	"github.com/totegamma/healthvault/internal/infra/contentstore"
	"github.com/totegamma/healthvault/internal/infra/database"
	"github.com/totegamma/healthvault/internal/infra/gateway"
	"github.com/totegamma/healthvault/internal/infra/repository"
	"github.com/totegamma/healthvault/internal/present/rest"
	authmw "github.com/totegamma/healthvault/internal/present/rest/middleware"
	"github.com/totegamma/healthvault/internal/service"
	"github.com/totegamma/healthvault/internal/usecase"
)

const (
	ServiceName  = "healthvault"
	replayWindow = 5 * time.Minute
)

// Server is a configured echo instance plus the connections it owns.
type Server struct {
	Echo *echo.Echo

	cfg     config.Config
	logger  *zap.Logger
	db      *gorm.DB
	rdb     *redis.Client
	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware(ServiceName))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(logger))

	s := &Server{Echo: e, cfg: cfg, logger: logger}

	auth := service.NewAuthService(cfg.Auth)
	authMw := authmw.NewAuthMiddleware(auth)

	var surfaces []rest.Routes
	var registry *usecase.RegistryUsecase

	mode := cfg.Server.Mode
	if mode == "all" || mode == "registry" {
		repo, err := s.patientRepository()
		if err != nil {
			s.Close()
			return nil, err
		}

		var signal *service.SignalService
		sinks := []usecase.EventPublisher{}
		if cfg.Events.Redis {
			signal = service.NewSignalService(s.redis(), logger)
			sinks = append(sinks, signal)
		}
		if cfg.Events.MQTTBroker != "" {
			mq, err := broker.NewMQTTPublisher(broker.MQTTOptions{
				Broker:   cfg.Events.MQTTBroker,
				ClientID: cfg.Events.MQTTClientID,
				QoS:      cfg.Events.MQTTQoS,
			})
			if err != nil {
				s.Close()
				return nil, errors.Wrap(err, "server.New: mqtt")
			}
			s.closers = append(s.closers, func() error { mq.Close(); return nil })
			sinks = append(sinks, mq)
		}

		var publisher usecase.EventPublisher = service.NopPublisher{}
		if len(sinks) > 0 {
			publisher = service.NewMultiPublisher(logger, sinks...)
		}

		registry = usecase.NewRegistryUsecase(repo, publisher, logger.Named("registry"), usecase.RegistryOptions{
			StrictMembership: cfg.Registry.StrictMembership,
		})
		surfaces = append(surfaces, rest.NewRegistryHandler(
			registry, auth, authMw, service.NewReplayGuard(replayWindow), signal, logger,
		))

		store, err := s.blobStore(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		surfaces = append(surfaces, rest.NewContentHandler(usecase.NewContentUsecase(store), authMw))
	}

	if mode == "all" || mode == "keyrelease" {
		keys, err := s.keyStore()
		if err != nil {
			s.Close()
			return nil, err
		}

		var authorizer usecase.ProviderAuthorizer
		if cfg.KeyRelease.ConsultRegistry {
			if registry != nil {
				authorizer = registry.Authorizer()
			} else {
				authorizer = gateway.NewRegistryGateway(cfg.KeyRelease.RegistryURL, auth.ServiceToken)
			}
		}

		keyRelease := usecase.NewKeyReleaseUsecase(keys, authorizer, logger.Named("keyrelease"))
		surfaces = append(surfaces, rest.NewKeyReleaseHandler(
			keyRelease, authMw, cfg.KeyRelease.RateLimit, config.Duration(cfg.KeyRelease.RateWindow),
		))
	}

	rest.RegisterRoutes(e, surfaces...)
	return s, nil
}

func (s *Server) Start() error {
	s.logger.Info("listening", zap.String("addr", s.cfg.Server.Listen), zap.String("mode", s.cfg.Server.Mode))
	return s.Echo.Start(s.cfg.Server.Listen)
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.Close()
	return err
}

// Close releases the owned connections in reverse order of acquisition.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close failed", zap.Error(err))
		}
	}
	s.closers = nil
}

func (s *Server) postgres() (*gorm.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := database.NewPostgres(s.cfg.Server.PostgresDsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}
	err = database.MigratePostgres(db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	s.closers = append(s.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	s.db = db
	return db, nil
}

func (s *Server) redis() *redis.Client {
	if s.rdb == nil {
		s.rdb = database.NewRedis(s.cfg.Server.RedisAddr, s.cfg.Server.RedisPassword, s.cfg.Server.RedisDB)
		s.closers = append(s.closers, s.rdb.Close)
	}
	return s.rdb
}

func (s *Server) patientRepository() (usecase.PatientRepository, error) {
	switch s.cfg.Registry.Backend {
	case "postgres":
		db, err := s.postgres()
		if err != nil {
			return nil, err
		}
		return repository.NewPatientRepository(db), nil
	default:
		return repository.NewMemoryPatientRepository(), nil
	}
}

func (s *Server) keyStore() (usecase.KeyStore, error) {
	switch s.cfg.KeyRelease.Backend {
	case "postgres":
		db, err := s.postgres()
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresKeyStore(db), nil
	case "redis":
		return repository.NewRedisKeyStore(s.redis()), nil
	default:
		return repository.NewMemoryKeyStore(), nil
	}
}

func (s *Server) blobStore(ctx context.Context) (usecase.BlobStore, error) {
	c := s.cfg.Content

	var store usecase.BlobStore
	switch c.Backend {
	case "ipfs":
		store = contentstore.NewKuboStore(c.IPFSAPI)
	case "pinata":
		store = contentstore.NewPinataStore(c.PinataAPIKey, c.PinataAPISecret, c.GatewayURL)
	case "minio":
		m, err := contentstore.NewMinioStore(ctx, contentstore.MinioOptions{
			Endpoint:  c.MinioEndpoint,
			AccessKey: c.MinioAccessKey,
			SecretKey: c.MinioSecretKey,
			Bucket:    c.MinioBucket,
			UseSSL:    c.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		store = m
	default:
		db, err := database.NewBadger(c.BadgerPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open badger")
		}
		s.closers = append(s.closers, db.Close)
		store = contentstore.NewBadgerStore(db)
	}

	ttl := config.Duration(c.CacheTTL)
	switch c.Cache {
	case "memory":
		store = contentstore.NewCachedStore(store, contentstore.NewMemoryCache(ttl))
	case "memcached":
		mc := database.NewMemcached(s.cfg.Server.MemcachedAddr)
		store = contentstore.NewCachedStore(store, contentstore.NewMemcachedCache(mc, ttl, s.logger))
	}
	return store, nil
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
