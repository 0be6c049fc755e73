package guard

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/session"
)

var (
	loading   = session.State{Loading: true}
	signedOut = session.State{}
	signedIn  = session.State{Identity: &auth.Identity{UID: "abc123"}}
)

func TestDecisionTable(t *testing.T) {
	cases := []struct {
		name  string
		guard Guard
		state session.State
		want  Decision
	}{
		{"auth loading", AuthenticatedOnly(""), loading, Decision{Phase: Resolving}},
		{"auth signed out", AuthenticatedOnly(""), signedOut, Decision{Phase: Redirecting, Redirect: LoginPath}},
		{"auth signed in", AuthenticatedOnly(""), signedIn, Decision{Phase: Settled}},
		{"auth loading with identity", AuthenticatedOnly(""), session.State{Identity: signedIn.Identity, Loading: true}, Decision{Phase: Resolving}},
		{"public loading", PublicOnly(""), loading, Decision{Phase: Resolving}},
		{"public signed in", PublicOnly(""), signedIn, Decision{Phase: Redirecting, Redirect: LandingPath}},
		{"public signed out", PublicOnly(""), signedOut, Decision{Phase: Settled}},
		{"custom target", AuthenticatedOnly("/enter"), signedOut, Decision{Phase: Redirecting, Redirect: "/enter"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.guard.Decide(tc.state)
			if got != tc.want {
				t.Fatalf("Decide() = %+v, want %+v", got, tc.want)
			}
			if got.RendersContent() != (tc.want.Phase == Settled) {
				t.Fatalf("RendersContent mismatch for %+v", got)
			}
		})
	}
}

type fixedSource struct {
	ch chan auth.Change
}

func (f *fixedSource) Subscribe() (<-chan auth.Change, auth.Unsubscribe) {
	var once sync.Once
	return f.ch, func() { once.Do(func() { close(f.ch) }) }
}

func holderWith(t *testing.T, c *auth.Change) *session.Holder {
	t.Helper()
	src := &fixedSource{ch: make(chan auth.Change, 1)}
	h := session.NewHolder(src)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(h.Close)
	if c != nil {
		src.ch <- *c
		deadline := time.Now().Add(time.Second)
		for h.State().Loading {
			if time.Now().After(deadline) {
				t.Fatal("holder never loaded")
			}
			time.Sleep(time.Millisecond)
		}
	}
	return h
}

func serve(h *session.Holder, g Guard) (*httptest.ResponseRecorder, *int) {
	contentHits := 0
	content := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentHits++
		_, _ = w.Write([]byte("protected"))
	})
	loader := func(w http.ResponseWriter, r *http.Request, status int) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("loading"))
	}
	rr := httptest.NewRecorder()
	session.Middleware(h, g.Wrap(content, loader)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/heists", nil))
	return rr, &contentHits
}

func TestAuthenticatedOnlyRendersContentWithoutNavigation(t *testing.T) {
	h := holderWith(t, &auth.Change{Identity: &auth.Identity{UID: "abc123"}})
	rr, hits := serve(h, AuthenticatedOnly(""))
	if rr.Code != http.StatusOK || *hits != 1 || rr.Body.String() != "protected" {
		t.Fatalf("expected content, got %d %q", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "" {
		t.Fatalf("unexpected navigation to %q", loc)
	}
}

func TestAuthenticatedOnlyRedirectsOnceWithoutContent(t *testing.T) {
	h := holderWith(t, &auth.Change{})
	rr, hits := serve(h, AuthenticatedOnly(""))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != LoginPath {
		t.Fatalf("expected redirect to login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if *hits != 0 || rr.Body.String() != "loading" {
		t.Fatalf("content leaked: hits=%d body=%q", *hits, rr.Body.String())
	}
}

func TestPublicOnlyRedirectsSignedIn(t *testing.T) {
	h := holderWith(t, &auth.Change{Identity: &auth.Identity{UID: "abc123"}})
	rr, hits := serve(h, PublicOnly(""))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != LandingPath || *hits != 0 {
		t.Fatalf("expected redirect to landing, got %d %q hits=%d", rr.Code, rr.Header().Get("Location"), *hits)
	}
}

func TestPublicOnlyRendersForSignedOut(t *testing.T) {
	h := holderWith(t, &auth.Change{})
	rr, hits := serve(h, PublicOnly(""))
	if rr.Code != http.StatusOK || *hits != 1 || rr.Header().Get("Location") != "" {
		t.Fatalf("expected content, got %d hits=%d", rr.Code, *hits)
	}
}

func TestResolvingShowsLoaderOnly(t *testing.T) {
	h := holderWith(t, nil)
	for _, g := range []Guard{AuthenticatedOnly(""), PublicOnly("")} {
		rr, hits := serve(h, g)
		if rr.Code != http.StatusOK || *hits != 0 || rr.Body.String() != "loading" {
			t.Fatalf("expected loader, got %d %q hits=%d", rr.Code, rr.Body.String(), *hits)
		}
		if rr.Header().Get("Location") != "" {
			t.Fatal("no navigation expected while resolving")
		}
	}
}
