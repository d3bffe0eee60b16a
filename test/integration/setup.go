package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vncsmyrnk/ballot/internal/adapters/api/rest"
	handler "github.com/vncsmyrnk/ballot/internal/adapters/handler/http"
	repo "github.com/vncsmyrnk/ballot/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/ballot/internal/core/services"
)

const jwtSecret = "test-secret"

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	dbName := "testdb"
	user := "user"
	password := "password"

	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func applyMigrations(db *sql.DB) error {
	dirPath := "../../internal/adapters/repository/postgres/migrations"

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		fullPath := filepath.Join(dirPath, entry.Name())
		content, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		_, err = db.Exec(string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func setupDatabase(t *testing.T) (*sql.DB, testcontainers.Container) {
	t.Helper()
	ctx := context.Background()
	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	err = applyMigrations(db)
	require.NoError(t, err)
	return db, dbContainer
}

// votingServer mimics the upstream voting service closely enough to drive
// the client end to end.
type votingServer struct {
	mu       sync.Mutex
	voted    map[string]bool
	received []map[string]map[string]any
	failNext int
}

func newVotingServer() *votingServer {
	return &votingServer{voted: map[string]bool{}}
}

func (s *votingServer) failSubmits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *votingServer) submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func (s *votingServer) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/participant-auth/login", s.login)
	r.Get("/api/voting/active-surveys", s.activeSurveys)
	r.Post("/api/voting/submit-votes", s.submitVotes)
	r.Get("/api/results/summary", s.results)
	return r
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *votingServer) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != "secret" {
		reply(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	claims := jwt.MapClaims{
		"sub":   req.Email,
		"email": req.Email,
		"exp":   time.Now().Add(15 * time.Minute).Unix(),
		"iat":   time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		reply(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	reply(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user":         map[string]any{"id": req.Email, "email": req.Email, "full_name": "Test Participant"},
	})
}

func (s *votingServer) participant(r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return []byte(jwtSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", false
	}
	email, err := token.Claims.GetSubject()
	return email, err == nil && email != ""
}

func (s *votingServer) activeSurveys(w http.ResponseWriter, r *http.Request) {
	email, ok := s.participant(r)
	if !ok {
		reply(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
		return
	}
	s.mu.Lock()
	voted := s.voted[email]
	s.mu.Unlock()
	if voted {
		reply(w, http.StatusForbidden, map[string]string{"error": "You have already voted"})
		return
	}

	reply(w, http.StatusOK, map[string]any{
		"participant": map[string]any{"id": email, "email": email},
		"surveys": []map[string]any{{
			"id":    1,
			"title": "Board election",
			"positions": []map[string]any{
				{"id": 1, "name": "President", "candidates": []map[string]any{{"id": 10, "name": "Ana"}, {"id": 11, "name": "Bruno"}}},
				{"id": 2, "name": "Treasurer", "candidates": []map[string]any{{"id": 20, "name": "Carla"}}},
			},
		}},
	})
}

func (s *votingServer) submitVotes(w http.ResponseWriter, r *http.Request) {
	email, ok := s.participant(r)
	if !ok {
		reply(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
		return
	}
	var req struct {
		Votes map[string]map[string]any `json:"votes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Votes) == 0 {
		reply(w, http.StatusBadRequest, map[string]string{"error": "No votes provided"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		reply(w, http.StatusInternalServerError, map[string]string{"error": "database unavailable"})
		return
	}
	if s.voted[email] {
		reply(w, http.StatusForbidden, map[string]string{"error": "You have already voted"})
		return
	}
	s.voted[email] = true
	s.received = append(s.received, req.Votes)
	reply(w, http.StatusOK, map[string]any{"message": "Votes submitted successfully"})
}

func (s *votingServer) results(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, http.StatusOK, map[string]any{
		"summary": map[string]any{"total_votes_cast": len(s.received)},
		"results": []any{},
	})
}

type TestApp struct {
	DB          *sql.DB
	Upstream    *httptest.Server
	Voting      *votingServer
	Server      *httptest.Server
	Client      *http.Client
	DBContainer testcontainers.Container
}

// newBridge builds a bridge against the shared database and upstream, so a
// second bridge behaves like a restarted process.
func newBridge(t *testing.T, db *sql.DB, upstreamURL string) *httptest.Server {
	t.Helper()
	logger, _ := test.NewNullLogger()

	session := services.NewSessionStore(logger, services.WithCredentialRepository(repo.NewCredentialRepository(db, "default")))
	require.NoError(t, session.Restore(context.Background()))

	client, err := rest.NewClient(upstreamURL, session, logger, rest.WithTimeout(5*time.Second))
	require.NoError(t, err)

	controller := services.NewSubmissionController(rest.NewSurveyClient(client), session, logger,
		services.WithDrafts(repo.NewDraftRepository(db)),
		services.WithSubmitTimeout(5*time.Second),
	)
	events := handler.NewEventHub(logger, nil)
	controller.Subscribe(events)

	router := handler.NewHandler(
		handler.NewBallotHandler(controller),
		handler.NewSessionHandler(services.NewAuthService(rest.NewAuthClient(client), session, logger, services.WithBallotReset(controller))),
		handler.NewResultsHandler(services.NewResultsService(rest.NewResultsClient(client))),
		events,
		nil,
	)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		events.Close()
		server.Close()
	})
	return server
}

func setupTestApp(t *testing.T) *TestApp {
	db, dbContainer := setupDatabase(t)

	voting := newVotingServer()
	upstream := httptest.NewServer(voting.router())
	server := newBridge(t, db, upstream.URL)

	return &TestApp{
		DB:          db,
		Upstream:    upstream,
		Voting:      voting,
		Server:      server,
		Client:      server.Client(),
		DBContainer: dbContainer,
	}
}

func (app *TestApp) Teardown(t *testing.T) {
	app.Upstream.Close()
	app.DB.Close()
	if err := app.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}
