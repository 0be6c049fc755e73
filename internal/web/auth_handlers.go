package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"pocketheist.org/internal/audit"
	"pocketheist.org/internal/forms"
	"pocketheist.org/internal/guard"
	"pocketheist.org/internal/obs"
	"pocketheist.org/internal/session"
)

// settleWait bounds how long a handler waits for the holder to observe a
// provider change it just caused.
const settleWait = 2 * time.Second

const msgBusy = "A submission is already in progress."

type credentialForm struct {
	Email      string
	Submitting bool
	Label      string
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageLogin, view{
		Title: "Log In",
		Data:  credentialForm{Label: s.login.Label(), Submitting: s.login.Submitting()},
	})
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	id, err := s.login.Submit(r.Context(), creds)
	if err != nil {
		status, msg := failureStatus(err)
		s.render(w, r, status, pageLogin, view{
			Title: "Log In",
			Alert: msg,
			Data:  credentialForm{Email: creds.Email, Label: s.login.Label()},
		})
		return
	}
	s.awaitIdentity(r.Context(), func(st session.State) bool {
		return st.Identity != nil && st.Identity.UID == id.UID
	})
	// The acknowledgment is rendered in place. The next navigation goes
	// through the public-only guard, which moves the user on.
	s.render(w, r, http.StatusOK, pageLogin, view{
		Title:  "Log In",
		Notice: forms.MsgLoggedIn,
		Data:   credentialForm{Email: creds.Email, Label: s.login.Label()},
	})
}

func (s *Server) signupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageSignup, view{
		Title: "Sign Up",
		Data:  credentialForm{Label: s.signup.Label(), Submitting: s.signup.Submitting()},
	})
}

func (s *Server) signupSubmit(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.readCredentials(w, r)
	if !ok {
		return
	}
	id, err := s.signup.Submit(r.Context(), creds)
	if err != nil {
		status, msg := failureStatus(err)
		s.render(w, r, status, pageSignup, view{
			Title: "Sign Up",
			Alert: msg,
			Data:  credentialForm{Email: creds.Email, Label: s.signup.Label()},
		})
		return
	}
	s.awaitIdentity(r.Context(), func(st session.State) bool {
		return st.Identity != nil && st.Identity.UID == id.UID && st.Identity.DisplayName == id.DisplayName
	})
	http.Redirect(w, r, guard.LandingPath, http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	uid := ""
	if id := session.Current(r.Context()).Identity; id != nil {
		uid = id.UID
	}
	if err := s.provider.SignOut(r.Context()); err != nil {
		obs.Error("sign out failed", err, map[string]any{"uid": uid})
		http.Redirect(w, r, guard.LandingPath, http.StatusSeeOther)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signout", map[string]any{"uid": uid})
	s.awaitIdentity(r.Context(), func(st session.State) bool { return st.Identity == nil })
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (forms.Credentials, bool) {
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return forms.Credentials{}, false
		}
		http.Error(w, "malformed form", http.StatusBadRequest)
		return forms.Credentials{}, false
	}
	return forms.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}, true
}

// awaitIdentity lets the holder catch up with a change the handler caused so
// the response and the next request see the same session.
func (s *Server) awaitIdentity(ctx context.Context, pred func(session.State) bool) {
	ctx, cancel := context.WithTimeout(ctx, settleWait)
	defer cancel()
	if _, err := s.holder.Wait(ctx, pred); err != nil {
		obs.Error("session did not settle", err, nil)
	}
}

func failureStatus(err error) (int, string) {
	if errors.Is(err, forms.ErrSubmissionInFlight) {
		return http.StatusConflict, msgBusy
	}
	msg := forms.MessageOf(err)
	if msg == forms.MsgGeneric {
		return http.StatusInternalServerError, msg
	}
	return http.StatusUnprocessableEntity, msg
}
