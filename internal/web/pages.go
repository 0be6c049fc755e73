package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/codename"
	"pocketheist.org/internal/obs"
	"pocketheist.org/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

// Page names.
const (
	pageLoader = "loader"
	pageLogin  = "login"
	pageSignup = "signup"
	pageHeists = "heists"
	pageCreate = "create"
)

type pages map[string]*template.Template

func parsePages() (pages, error) {
	p := make(pages)
	for _, name := range []string{pageLoader, pageLogin, pageSignup, pageHeists, pageCreate} {
		t, err := template.ParseFS(templateFS,
			"templates/layout.html",
			"templates/navbar.html",
			"templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		p[name] = t
	}
	return p, nil
}

func assets() http.Handler {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/assets/", http.FileServer(http.FS(sub)))
}

// view is the data every page template receives.
type view struct {
	Title    string
	Identity *auth.Identity
	Initials string
	Alert    string
	Notice   string
	Data     any
}

// render executes the page into a buffer first so a template failure never
// produces a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	if id := session.Current(r.Context()).Identity; id != nil {
		v.Identity = id
		v.Initials = codename.Initials(id.DisplayName)
	}
	t, ok := s.pages[page]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		obs.Error("render failed", err, map[string]any{"page": page})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// loader is the guard.LoaderFunc shared by every guarded route. It never
// shows the navbar identity, so nothing about the session leaks while the
// guard is undecided.
func (s *Server) loader(w http.ResponseWriter, r *http.Request, status int) {
	t := s.pages[pageLoader]
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view{Title: "Loading"}); err != nil {
		obs.Error("render failed", err, map[string]any{"page": pageLoader})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
