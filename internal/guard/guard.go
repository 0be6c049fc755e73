// Package guard decides whether a page renders, waits, or redirects based
// on the session snapshot.
package guard

import (
	"net/http"

	"pocketheist.org/internal/session"
)

// Default navigation targets.
const (
	LoginPath   = "/login"
	LandingPath = "/heists"
)

// Phase is the guard state.
type Phase int

const (
	// Resolving: the session is still loading.
	Resolving Phase = iota
	// Redirecting: loaded, but the session does not match; navigation issued.
	Redirecting
	// Settled: loaded and matching; wrapped content renders.
	Settled
)

func (p Phase) String() string {
	switch p {
	case Resolving:
		return "resolving"
	case Redirecting:
		return "redirecting"
	case Settled:
		return "settled"
	}
	return "unknown"
}

// Decision is the outcome for one snapshot.
type Decision struct {
	Phase    Phase
	Redirect string
}

// RendersContent reports whether wrapped content may be shown.
func (d Decision) RendersContent() bool { return d.Phase == Settled }

// Guard is one of the two variants.
type Guard struct {
	wantSignedIn bool
	target       string
}

// AuthenticatedOnly admits signed-in sessions and sends others to login.
func AuthenticatedOnly(login string) Guard {
	if login == "" {
		login = LoginPath
	}
	return Guard{wantSignedIn: true, target: login}
}

// PublicOnly admits signed-out sessions and sends others to landing.
func PublicOnly(landing string) Guard {
	if landing == "" {
		landing = LandingPath
	}
	return Guard{wantSignedIn: false, target: landing}
}

// Decide maps a snapshot to a decision. It is pure.
func (g Guard) Decide(st session.State) Decision {
	if st.Loading {
		return Decision{Phase: Resolving}
	}
	if st.SignedIn() != g.wantSignedIn {
		return Decision{Phase: Redirecting, Redirect: g.target}
	}
	return Decision{Phase: Settled}
}

// LoaderFunc renders the neutral loading indicator with the given status.
type LoaderFunc func(w http.ResponseWriter, r *http.Request, status int)

// Wrap applies the guard to next. Only Settled reaches next; every other
// phase renders the loader, with a See Other redirect while Redirecting.
func (g Guard) Wrap(next http.Handler, loader LoaderFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(session.Current(r.Context()))
		switch d.Phase {
		case Settled:
			next.ServeHTTP(w, r)
		case Redirecting:
			w.Header().Set("Location", d.Redirect)
			loader(w, r, http.StatusSeeOther)
		default:
			w.Header().Set("Refresh", "1")
			loader(w, r, http.StatusOK)
		}
	})
}
