// Package apitest is an in-process fake of the behavior backend API. It backs the package
// tests and cmd/mockapi.
package apitest

import (
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"childbehavior/internal/models"
	"childbehavior/internal/security"
)

// Options configures a fake backend
type Options struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
	Now        func() time.Time
	// LoginAttempts per minute per client IP. Zero disables limiting.
	LoginAttempts int
	Logging       bool
}

type account struct {
	user         models.User
	passwordHash string
	age          int
	gender       string
}

// Server is the fake backend
type Server struct {
	opts   Options
	mux    *http.ServeMux
	logins *security.RateLimiter

	mu        sync.RWMutex
	accounts  map[int64]*account
	rewards   map[int64]*models.Reward
	exchanges []models.ExchangeRecord
	behaviors []models.BehaviorRecord
	nextID    int64
	failures  map[string]int
	hits      map[string]int
}

// New creates a fake backend with no data
func New(opts Options) *Server {
	if opts.Secret == "" {
		opts.Secret = "apitest-secret"
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		opts:     opts,
		mux:      http.NewServeMux(),
		accounts: make(map[int64]*account),
		rewards:  make(map[int64]*models.Reward),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}
	if opts.LoginAttempts > 0 {
		s.logins = security.NewRateLimiterWithClock(opts.LoginAttempts, time.Minute, opts.Now)
	}
	s.routes()
	return s
}

// NewSeeded creates a fake backend holding the seed family
func NewSeeded(opts Options) (*Server, error) {
	s := New(opts)
	if err := s.Seed(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start serves the fake backend on a local test listener. Close the returned server when done.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s)
}

// ServeHTTP records the hit, applies injected failures and dispatches to the API routes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.hits[key]++
	status, fail := s.failures[key]
	s.mu.Unlock()

	if s.opts.Logging {
		start := time.Now()
		defer func() { log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start)) }()
	}

	if fail {
		writeError(w, status, http.StatusText(status), nil)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// Fail makes every request to "METHOD /api/path" answer with status until Recover is called
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	s.failures[route] = status
	s.mu.Unlock()
}

// Recover removes an injected failure
func (s *Server) Recover(route string) {
	s.mu.Lock()
	delete(s.failures, route)
	s.mu.Unlock()
}

// Hits returns how many requests reached "METHOD /api/path"
func (s *Server) Hits(route string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[route]
}

func (s *Server) now() time.Time {
	return s.opts.Now()
}

func (s *Server) newID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/auth/register", s.rateLimit(s.handleRegister))
	s.mux.HandleFunc("POST /api/auth/login", s.rateLimit(s.handleLogin))
	s.mux.HandleFunc("GET /api/auth/verify", s.requireAuth(s.handleVerify))
	s.mux.HandleFunc("POST /api/auth/verify-password", s.requireAuth(s.handleVerifyPassword))
	s.mux.HandleFunc("PUT /api/auth/password", s.requireAuth(s.handleChangePassword))

	s.mux.HandleFunc("GET /api/users/profile", s.requireAuth(s.handleGetProfile))
	s.mux.HandleFunc("PUT /api/users/profile", s.requireAuth(s.handleUpdateProfile))
	s.mux.HandleFunc("GET /api/users/{id}/points", s.requireAuth(s.handleGetPoints))

	s.mux.HandleFunc("GET /api/children", s.requireParent(s.handleListChildren))
	s.mux.HandleFunc("POST /api/children", s.requireParent(s.handleCreateChild))
	s.mux.HandleFunc("PUT /api/children/{id}", s.requireParent(s.handleUpdateChild))
	s.mux.HandleFunc("DELETE /api/children/{id}", s.requireParent(s.handleDeleteChild))

	s.mux.HandleFunc("POST /api/behaviors", s.requireParent(s.handleRecordBehavior))
	s.mux.HandleFunc("GET /api/behaviors", s.requireAuth(s.handleListBehaviors))
	s.mux.HandleFunc("GET /api/behaviors/trend", s.requireAuth(s.handleBehaviorTrend))
	s.mux.HandleFunc("GET /api/statistics", s.requireAuth(s.handleStatistics))

	s.mux.HandleFunc("GET /api/rewards", s.requireAuth(s.handleListRewards))
	s.mux.HandleFunc("POST /api/rewards", s.requireParent(s.handleCreateReward))
	s.mux.HandleFunc("PUT /api/rewards/{id}", s.requireParent(s.handleUpdateReward))
	s.mux.HandleFunc("DELETE /api/rewards/{id}", s.requireParent(s.handleDeleteReward))
	s.mux.HandleFunc("POST /api/rewards/exchange", s.requireAuth(s.handleExchange))
	s.mux.HandleFunc("GET /api/rewards/exchanges", s.requireAuth(s.handleListExchanges))

	s.mux.HandleFunc("POST /api/upload/file", s.requireAuth(s.handleUpload))
}
