package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"obconnect/internal/audit"
	"obconnect/internal/bankprofile"
	"obconnect/internal/consent"
	"obconnect/internal/gateway"
	"obconnect/internal/keystore"
	"obconnect/internal/platform/config"
	"obconnect/internal/platform/httpserver"
	"obconnect/internal/platform/logger"
	"obconnect/internal/platform/postgres"
	"obconnect/internal/platform/redis"
	"obconnect/internal/registration"
	"obconnect/internal/signing"
	"obconnect/internal/software"
	httptransport "obconnect/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	statement, err := software.Load(software.Statement{
		OrganisationID:      cfg.OrganisationID,
		SoftwareID:          cfg.SoftwareID,
		CertificateIDs:      cfg.CertificateIDs,
		QueryRedirectURL:    cfg.QueryRedirectURL,
		FragmentRedirectURL: cfg.FragmentRedirectURL,
	})
	if err != nil {
		log.Error("load software statement", "error", err)
		os.Exit(1)
	}

	keyPEM, err := os.ReadFile(cfg.SigningKeyFile)
	if err != nil {
		log.Error("read signing key", "file", cfg.SigningKeyFile, "error", err)
		os.Exit(1)
	}
	var certPEM []byte
	if cfg.SigningCert != "" {
		if certPEM, err = os.ReadFile(cfg.SigningCert); err != nil {
			log.Error("read signing certificate", "file", cfg.SigningCert, "error", err)
			os.Exit(1)
		}
	}
	keys := keystore.NewStore()
	if _, err := keys.Load(keystore.KeyMaterial{
		KeyID:          cfg.SigningKeyID,
		PrivateKeyPEM:  keyPEM,
		CertificatePEM: certPEM,
	}); err != nil {
		log.Error("load signing key", "error", err)
		os.Exit(1)
	}
	signingKey, err := keys.Get(cfg.SigningKeyID)
	if err != nil {
		log.Error("resolve signing key", "error", err)
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Error("open postgres", "error", err)
		os.Exit(1)
	}
	var (
		consentStore      consent.Store      = consent.NewInMemoryStore()
		registrationStore registration.Store = registration.NewInMemoryStore()
		auditStore        audit.Store        = audit.NewInMemoryStore()
	)
	if db != nil {
		defer db.Close()
		consentStore = consent.NewPostgresStore(db)
		registrationStore = registration.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	var tokenCache registration.TokenCache = registration.NewMemoryTokenCache()
	if redisClient != nil {
		defer redisClient.Close()
		tokenCache = registration.NewRedisTokenCache(redisClient.Client)
		log.Info("using redis token cache")
	}

	var sink audit.Sink
	if len(cfg.KafkaSeeds) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaSeeds, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("publishing audit events", "topic", cfg.AuditTopic)
	}
	auditPub := audit.NewPublisher(auditStore, sink, log)

	registry := bankprofile.NewRegistry()
	signer := signing.NewSigner(signingKey, statement.Issuer())
	gw := gateway.New(
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		gateway.WithLogger(log),
	)
	registrations := registration.NewManager(registry, registrationStore, tokenCache, gw, statement, auditPub, log)
	consents := consent.NewService(registry, consentStore, registrations, gw, signer, auditPub, log)

	handler := httptransport.NewHandler(consents, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting connector", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("connector stopped")
}
