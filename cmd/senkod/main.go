package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yuchenshi/senko/internal/auth"
	"github.com/yuchenshi/senko/internal/cache"
	"github.com/yuchenshi/senko/internal/config"
	"github.com/yuchenshi/senko/internal/database"
	"github.com/yuchenshi/senko/internal/lobby"
	"github.com/yuchenshi/senko/internal/store"
	"github.com/yuchenshi/senko/internal/ws"
)

func main() {
	log := logrus.New()
	cfg := config.Load(log)
	log.SetLevel(cfg.LogLevel)

	ctx := context.Background()

	var users auth.UserStore
	var journal store.Journal
	var pgJournal *store.PgJournal
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("database connection failed")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool, log); err != nil {
			log.WithError(err).Fatal("schema setup failed")
		}
		users = database.NewUserRepo(pool)
		pgJournal = store.NewPgJournal(pool)
		journal = pgJournal
	} else {
		log.Warn("DATABASE_URL not set, running without persistence")
	}

	st := store.NewMemory(journal, log)
	if pgJournal != nil {
		if err := pgJournal.RestoreInto(ctx, st); err != nil {
			log.WithError(err).Fatal("room restore failed")
		}
	}

	// A typed nil *cache.Presence inside the interface would defeat the
	// handler's nil check, so only assign on a live connection.
	var presence ws.PresenceTracker
	if cfg.RedisURL != "" {
		p, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer p.Close()
		presence = p
	} else {
		log.Warn("REDIS_URL not set, presence tracking disabled")
	}

	authService := auth.NewService(users, cfg.JWTSecret, cfg.TokenTTL)
	authHandlers := auth.NewHandlers(authService, log)
	lobbyService := lobby.NewService(st, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), log)
	wsHandler := ws.NewHandler(st, lobbyService, authService, presence, log)

	mux := http.NewServeMux()
	if users != nil {
		mux.HandleFunc("POST /register", authHandlers.Register)
		mux.HandleFunc("POST /login", authHandlers.Login)
	} else {
		log.Warn("register and login disabled without a database")
	}
	mux.Handle("/ws", wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: mux,
	}

	go func() {
		log.WithField("port", cfg.AppPort).Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	log.Info("server exited")
}
