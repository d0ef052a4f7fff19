package main

import (
	"context"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"

	"github.com/rchan/rchan-web/config"
	"github.com/rchan/rchan-web/controllers"
	"github.com/rchan/rchan-web/models"
	"github.com/rchan/rchan-web/routes"
	"github.com/rchan/rchan-web/services"
	"github.com/rchan/rchan-web/session"
	"github.com/rchan/rchan-web/utils"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	loginMaxFailures = 5
	loginWindow      = 15 * time.Minute
	captchaTTL       = 5 * time.Minute
	resetStateTTL    = 30 * time.Minute
	purgeInterval    = 10 * time.Minute
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	flush, err := utils.InitSentry(cfg.SentryDSN, cfg.SentryEnvironment, version)
	if err != nil {
		utils.Sugar.Warnf("sentry disabled: %v", err)
	}
	defer flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional; every consumer falls back to in-process state on nil.
	rdb := utils.GetRedis()
	sessions := session.NewManager(sessionStore(ctx, cfg, rdb), time.Duration(cfg.SessionTTLHours)*time.Hour, utils.NewTokenRevoker(rdb))

	var captchaStore base64Captcha.Store = base64Captcha.DefaultMemStore
	if rdb != nil {
		captchaStore = utils.NewRedisCaptchaStore(rdb, captchaTTL)
	}

	env := &controllers.Env{
		Config:  cfg,
		Signer:  utils.NewSigner(cfg.SessionSecret),
		States:  utils.NewStateTokens(cfg.SessionSecret, resetStateTTL),
		Cache:   utils.NewCache(rdb, "rchan:"),
		Nonces:  utils.NewFormNonces(rdb, time.Duration(cfg.SessionTTLHours)*time.Hour),
		Captcha: utils.NewCaptcha(captchaStore),
		Guard:   utils.NewLoginGuard(rdb, loginMaxFailures, loginWindow),
		Boards:  services.NewBoards(0),
	}

	r, err := routes.SetupRouter(env, sessions)
	if err != nil {
		utils.Sugar.Fatalf("router setup failed: %v", err)
	}

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DefaultReadTimeout, utils.DefaultWriteTimeout)
	srv.OnShutdown(cancel)
	srv.OnShutdown(flush)

	if cfg.TLSEnabled() {
		utils.Sugar.Infof("Starting TLS server on port %s (graceful, sessions=%s, api=%s)", cfg.AppPort, cfg.SessionStore, apiTarget(cfg))
		err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	} else {
		utils.Sugar.Infof("Starting server on port %s (graceful, sessions=%s, api=%s)", cfg.AppPort, cfg.SessionStore, apiTarget(cfg))
		err = srv.ListenAndServe()
	}
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// sessionStore picks the store named by cfg.SessionStore.
func sessionStore(ctx context.Context, cfg config.AppConfig, rdb *redis.Client) session.Store {
	switch cfg.SessionStore {
	case "redis":
		if rdb == nil {
			utils.Sugar.Fatalf("SESSION_STORE=redis but Redis at %s:%d is unreachable", cfg.RedisHost, cfg.RedisPort)
		}
		return session.NewRedisStore(rdb)
	case "database":
		db, err := config.InitDatabase(&models.SessionRecord{})
		if err != nil {
			utils.Sugar.Fatalf("session database: %v", err)
		}
		store := session.NewGormStore(db)
		utils.StartPurger(ctx, "sessions", purgeInterval, store.PurgeExpired)
		return store
	case "memory":
		return session.NewMemoryStore()
	}
	utils.Sugar.Warnf("unknown SESSION_STORE %q, using memory", cfg.SessionStore)
	return session.NewMemoryStore()
}

func apiTarget(cfg config.AppConfig) string {
	if cfg.APIBaseURL != "" {
		return cfg.APIBaseURL
	}
	return "http://<request host>:" + cfg.APIPort
}
