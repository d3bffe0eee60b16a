package main

import (
	"context"
	"database/sql"
	"errors"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vncsmyrnk/ballot/internal/adapters/api/rest"
	"github.com/vncsmyrnk/ballot/internal/adapters/handler/http"
	"github.com/vncsmyrnk/ballot/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/ballot/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/ballot/internal/config"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"github.com/vncsmyrnk/ballot/internal/core/services"
	"github.com/vncsmyrnk/ballot/internal/logging"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatal(err)
	}
	log := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	credentials, drafts, closeStore := openStore(cfg, log)
	defer closeStore()

	session := services.NewSessionStore(log, services.WithCredentialRepository(credentials))
	if err := session.Restore(ctx); err != nil {
		log.WithError(err).Warn("could not restore session")
	}

	client, err := rest.NewClient(cfg.API.BaseURL, session, log,
		rest.WithTimeout(cfg.API.Timeout),
		rest.WithRateLimit(rate.Limit(cfg.API.RateLimit), cfg.API.RateBurst),
	)
	if err != nil {
		log.Fatal(err)
	}

	opts := []services.ControllerOption{
		services.WithSubmitTimeout(cfg.API.SubmitTimeout),
		services.WithDrafts(drafts),
	}
	if cfg.Voter.Email != "" {
		opts = append(opts, services.WithVoter(domain.LinkVoter(cfg.Voter.Email, cfg.Voter.LinkToken)))
	}
	controller := services.NewSubmissionController(rest.NewSurveyClient(client), session, log, opts...)
	authService := services.NewAuthService(rest.NewAuthClient(client), session, log, services.WithBallotReset(controller))
	resultsService := services.NewResultsService(rest.NewResultsClient(client))

	events := http.NewEventHub(log, cfg.Bridge.AllowedOrigins)
	unsubscribe := controller.Subscribe(events)
	defer unsubscribe()

	handler := http.NewHandler(
		http.NewBallotHandler(controller),
		http.NewSessionHandler(authService),
		http.NewResultsHandler(resultsService),
		events,
		cfg.Bridge.AllowedOrigins,
	)
	server := &stdhttp.Server{Addr: cfg.Bridge.Addr, Handler: handler}

	go func() {
		log.WithField("addr", cfg.Bridge.Addr).Info("voter bridge listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Info("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}

func openStore(cfg *config.Config, log *logrus.Logger) (ports.CredentialRepository, ports.DraftRepository, func()) {
	if cfg.Store.Driver != config.StorePostgres {
		return memory.NewCredentialRepository(), memory.NewDraftRepository(), func() {}
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	log.WithField("host", cfg.Postgres.Host).Info("using postgres store")

	return postgres.NewCredentialRepository(db, cfg.Store.Profile), postgres.NewDraftRepository(db), func() { db.Close() }
}
