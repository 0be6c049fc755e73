// Package web serves the Pocket Heist pages: guarded routes, credential and
// heist forms, health endpoints and metrics.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/codename"
	"pocketheist.org/internal/docstore"
	"pocketheist.org/internal/forms"
	"pocketheist.org/internal/guard"
	"pocketheist.org/internal/heist"
	"pocketheist.org/internal/obs"
	"pocketheist.org/internal/session"
)

// Pinger is anything /readyz can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe reports backend readiness. A nil Pinger is always ready.
type ReadyProbe struct {
	Pinger Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// Deps are the collaborators a Server renders on top of.
type Deps struct {
	Holder   *session.Holder
	Provider auth.Provider
	Store    docstore.Store
	Ready    ReadyProbe
	Version  string
}

// Server is the HTTP surface.
type Server struct {
	mux      *http.ServeMux
	pages    pages
	holder   *session.Holder
	provider auth.Provider
	store    docstore.Store
	ready    ReadyProbe
	version  string

	login  *forms.Login
	signup *forms.Signup

	rateBurst    int
	ratePerSec   float64
	maxBodyBytes int64
	rosterWait   time.Duration
	names        codename.Source
	now          func() time.Time

	// base outlives individual requests; roster fetches run under it.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	workflow *heist.Workflow
}

// Option configures a Server.
type Option func(*Server)

func WithRateLimit(burst int, perSecond float64) Option {
	return func(s *Server) {
		s.rateBurst = burst
		s.ratePerSec = perSecond
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithRosterWait bounds how long the create page waits for the roster
// before rendering the pending state.
func WithRosterWait(d time.Duration) Option {
	return func(s *Server) { s.rosterWait = d }
}

// WithNameSource fixes the codename randomness for sign-ups.
func WithNameSource(src codename.Source) Option {
	return func(s *Server) { s.names = src }
}

// WithClock overrides the heist submission clock.
func WithClock(fn func() time.Time) Option {
	return func(s *Server) {
		if fn != nil {
			s.now = fn
		}
	}
}

func New(d Deps, opts ...Option) (*Server, error) {
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		mux:          http.NewServeMux(),
		pages:        p,
		holder:       d.Holder,
		provider:     d.Provider,
		store:        d.Store,
		ready:        d.Ready,
		version:      d.Version,
		rateBurst:    20,
		ratePerSec:   10,
		maxBodyBytes: 1 << 20,
		rosterWait:   2 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	s.login = forms.NewLogin(d.Provider)
	s.signup = forms.NewSignup(d.Provider, d.Store, forms.WithNameSource(s.names))
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	authed := guard.AuthenticatedOnly(guard.LoginPath)
	public := guard.PublicOnly(guard.LandingPath)

	s.mux.HandleFunc("GET /healthz", s.Healthz)
	s.mux.HandleFunc("GET /readyz", s.Ready)
	s.mux.Handle("GET /metrics", obs.Handler())
	s.mux.Handle("GET /assets/", assets())

	s.mux.HandleFunc("/{$}", s.root)

	s.mux.Handle("GET /login", public.Wrap(http.HandlerFunc(s.loginPage), s.loader))
	s.mux.Handle("POST /login", public.Wrap(http.HandlerFunc(s.loginSubmit), s.loader))
	s.mux.Handle("GET /signup", public.Wrap(http.HandlerFunc(s.signupPage), s.loader))
	s.mux.Handle("POST /signup", public.Wrap(http.HandlerFunc(s.signupSubmit), s.loader))

	s.mux.Handle("POST /logout", authed.Wrap(http.HandlerFunc(s.logout), s.loader))
	s.mux.Handle("GET /heists", authed.Wrap(http.HandlerFunc(s.heistList), s.loader))
	s.mux.Handle("GET /heists/create", authed.Wrap(http.HandlerFunc(s.createPage), s.loader))
	s.mux.Handle("POST /heists/create", authed.Wrap(http.HandlerFunc(s.createSubmit), s.loader))
}

// Handler returns the full middleware chain around the mux.
func (s *Server) Handler() http.Handler {
	var h http.Handler = session.Middleware(s.holder, s.mux)
	h = MaxBodyBytes(h, s.maxBodyBytes)
	if s.rateBurst > 0 && s.ratePerSec > 0 {
		h = RateLimit(h, s.rateBurst, s.ratePerSec)
	}
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// Close deactivates the current heist workflow and stops background fetches.
func (s *Server) Close() {
	s.mu.Lock()
	if s.workflow != nil {
		s.workflow.Deactivate()
		s.workflow = nil
	}
	s.mu.Unlock()
	s.cancel()
}

// root sends a resolved session to the heist list and everyone else to login.
func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	d := guard.AuthenticatedOnly(guard.LoginPath).Decide(session.Current(r.Context()))
	switch d.Phase {
	case guard.Settled:
		http.Redirect(w, r, guard.LandingPath, http.StatusSeeOther)
	case guard.Redirecting:
		w.Header().Set("Location", d.Redirect)
		s.loader(w, r, http.StatusSeeOther)
	default:
		w.Header().Set("Refresh", "1")
		s.loader(w, r, http.StatusOK)
	}
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "pocketheist",
		"version": s.version,
	})
}

func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	if err := s.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	if st := s.holder.State(); st.Loading {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  "session unresolved",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
