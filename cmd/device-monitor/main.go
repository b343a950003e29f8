package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/diwise/device-monitor/internal/pkg/application/devicemonitor"
	"github.com/diwise/device-monitor/internal/pkg/application/events"
	"github.com/diwise/device-monitor/internal/pkg/application/watchdog"
	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/internal/pkg/infrastructure/router"
	"github.com/diwise/device-monitor/internal/pkg/infrastructure/tracing"
	"github.com/diwise/device-monitor/internal/pkg/presentation/api"
	"github.com/diwise/device-monitor/internal/pkg/presentation/api/auth"
	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const serviceName string = "device-monitor"

var configFilePath string
var policiesFilePath string
var seedFilePath string

func main() {
	serviceVersion := buildinfo.SourceVersion()

	logger := newLogger(serviceName, serviceVersion)
	logger.Info().Msg("starting up ...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx = logging.NewContextWithLogger(ctx, logger)

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer cleanup()

	flag.StringVar(&configFilePath, "config", "/opt/diwise/config/config.yaml", "a configuration file for commands, the watchdog and notifications")
	flag.StringVar(&policiesFilePath, "policies", "/opt/diwise/config/authz.rego", "an authorization policy file")
	flag.StringVar(&seedFilePath, "devices", "", "a csv file with devices to seed the database with")
	flag.Parse()

	config := loadConfigurationFile(logger, configFilePath)

	appCfg, err := devicemonitor.LoadConfiguration(bytes.NewReader(config))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid commands configuration")
	}

	eventsCfg, err := events.LoadConfiguration(bytes.NewReader(config))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid notifications configuration")
	}

	watchdogCfg, err := watchdog.LoadConfiguration(bytes.NewReader(config))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid watchdog configuration")
	}

	repo, err := database.New(newConnector(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if seedFilePath != "" {
		seedDatabase(ctx, logger, repo, seedFilePath)
	}

	var publisher devicemonitor.Publisher
	var messenger messaging.MsgContext

	if messagingEnabled(appCfg) {
		messenger, err = messaging.Initialize(messaging.LoadConfiguration(serviceName, logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init messenger")
		}
		defer messenger.Close()

		publisher = messenger
	}

	dispatcher := devicemonitor.NewSimulatedDispatcher(appCfg.Commands.ExecutionDelay)
	if appCfg.Commands.Dispatcher == devicemonitor.DispatcherMessaging {
		dispatcher = devicemonitor.NewMessagingDispatcher(publisher)
	}

	dm := devicemonitor.New(repo, publisher, dispatcher, events.New(eventsCfg))

	if messenger != nil {
		for topic, handler := range devicemonitor.TopicHandlers(dm) {
			messenger.RegisterTopicMessageHandler(topic, handler)
		}
	}

	if watchdogCfg.Watchdog.Enabled() {
		wd := watchdog.New(dm, watchdogCfg.Watchdog)
		wd.Start(ctx)
		defer wd.Stop()
	}

	policies := loadPolicies(logger, policiesFilePath)
	session := auth.NewSession(sessionConfig(logger))

	r, err := setupRouter(ctx, serviceName, policies, session, dm)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to setup router")
	}

	servicePort := env.GetVariableOrDefault(logger, "SERVICE_PORT", "8080")

	server := &http.Server{
		Addr:              ":" + servicePort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("port", servicePort).Msg("starting to listen for connections")

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("failed to start request router")
	}
}

func newLogger(serviceName, serviceVersion string) zerolog.Logger {
	logger := log.With().Str("service", strings.ToLower(serviceName)).Str("version", serviceVersion).Logger()
	return logger
}

func setupRouter(ctx context.Context, serviceName string, policies io.Reader, session *auth.Session, dm devicemonitor.DeviceMonitor) (http.Handler, error) {
	var origins []string
	if allowed := os.Getenv("CORS_ALLOWED_ORIGINS"); allowed != "" {
		origins = strings.Split(allowed, ",")
	}

	return api.RegisterHandlers(ctx, router.New(serviceName, origins), policies, session, dm)
}

func newConnector(logger zerolog.Logger) database.ConnectorFunc {
	cfg := database.LoadConfigFromEnv(logger)
	if cfg.Host == "" {
		logger.Warn().Msg("POSTGRES_HOST is not set, using an in-memory database")
		return database.NewSQLiteConnector(logger)
	}

	return database.NewPostgreSQLConnector(logger, cfg)
}

// messagingEnabled reports if a connection to the message bus should be made. Without a
// configured host nothing is published and devices can only report through the api.
func messagingEnabled(cfg *devicemonitor.Config) bool {
	return os.Getenv("RABBITMQ_HOST") != "" || cfg.Commands.Dispatcher == devicemonitor.DispatcherMessaging
}

func loadConfigurationFile(logger zerolog.Logger, path string) []byte {
	config, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warn().Str("path", path).Msg("configuration file not found, using defaults")
		return []byte{}
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read configuration file")
	}

	return config
}

func loadPolicies(logger zerolog.Logger, path string) io.Reader {
	policies, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Str("path", path).Msg("unable to read policy file, using the built in policy")
		return strings.NewReader(auth.DefaultPolicy)
	}

	return bytes.NewReader(policies)
}

func seedDatabase(ctx context.Context, logger zerolog.Logger, repo database.Repository, path string) {
	f, err := os.Open(path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open devices file")
	}
	defer f.Close()

	err = repo.Seed(ctx, f)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed database")
	}
}

func sessionConfig(logger zerolog.Logger) auth.SessionConfig {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		logger.Warn().Msg("SESSION_SECRET is not set, sessions will not survive a restart")
		secret = uuid.NewString()
	}

	ttl, err := time.ParseDuration(env.GetVariableOrDefault(logger, "SESSION_TTL", "24h"))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid session ttl")
	}

	cfg := auth.SessionConfig{
		Secret:       secret,
		TTL:          ttl,
		SecureCookie: env.GetVariableOrDefault(logger, "SESSION_SECURE_COOKIE", "true") == "true",
		UserInfoURL:  os.Getenv("OAUTH2_USERINFO_URL"),
	}

	clientID := os.Getenv("OAUTH2_CLIENT_ID")
	if clientID == "" {
		logger.Info().Msg("OAUTH2_CLIENT_ID is not set, login is disabled")
		return cfg
	}

	cfg.OAuth2 = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: os.Getenv("OAUTH2_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("OAUTH2_REDIRECT_URL"),
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  os.Getenv("OAUTH2_AUTH_URL"),
			TokenURL: os.Getenv("OAUTH2_TOKEN_URL"),
		},
	}

	if cfg.OAuth2.Endpoint.AuthURL == "" || cfg.OAuth2.Endpoint.TokenURL == "" || cfg.UserInfoURL == "" {
		logger.Fatal().Msg("login requires OAUTH2_AUTH_URL, OAUTH2_TOKEN_URL and OAUTH2_USERINFO_URL to be set")
	}

	return cfg
}
