package web

import (
	"context"
	"errors"
	"net/http"

	"pocketheist.org/internal/guard"
	"pocketheist.org/internal/heist"
	"pocketheist.org/internal/obs"
	"pocketheist.org/internal/session"
)

const msgListFailed = "Could not load heists. Please refresh and try again."

var fieldMessages = map[string]string{
	"Title":       "Title is required.",
	"Description": "Description is required.",
	"AssignedTo":  "Choose an agent.",
}

type createForm struct {
	View   heist.View
	Token  string
	Input  heist.Input
	Fields map[string]string
}

func (s *Server) heistList(w http.ResponseWriter, r *http.Request) {
	id := session.Current(r.Context()).Identity
	if id == nil {
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}
	board, err := heist.ListFor(r.Context(), s.store, id.UID)
	if err != nil {
		obs.Error("list heists failed", err, map[string]any{"uid": id.UID})
		s.render(w, r, http.StatusOK, pageHeists, view{Title: "Heists", Alert: msgListFailed, Data: heist.Board{}})
		return
	}
	s.render(w, r, http.StatusOK, pageHeists, view{Title: "Heists", Data: board})
}

// visit returns the workflow for this page view. A visit whose roster is
// still pending is continued so the loader refresh does not restart the
// fetch; otherwise the previous visit is deactivated and a fresh one starts.
func (s *Server) visit() *heist.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflow != nil && s.workflow.View().Status == heist.RosterPending {
		return s.workflow
	}
	if s.workflow != nil {
		s.workflow.Deactivate()
	}
	wf := heist.NewWorkflow(s.store, heist.WithClock(s.now))
	wf.Activate(s.base)
	s.workflow = wf
	return wf
}

func (s *Server) currentWorkflow() *heist.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflow
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	wf := s.visit()
	if s.rosterWait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), s.rosterWait)
		_ = wf.WaitRoster(ctx)
		cancel()
	}
	v := wf.View()
	if v.Status == heist.RosterPending {
		w.Header().Set("Refresh", "1")
	}
	s.render(w, r, http.StatusOK, pageCreate, view{
		Title: "Create Heist",
		Data:  createForm{View: v, Token: wf.IssueToken()},
	})
}

func (s *Server) createSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	in := heist.Input{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		AssignedTo:  r.PostFormValue("assignedTo"),
		Token:       r.PostFormValue("token"),
	}
	wf := s.currentWorkflow()
	if wf == nil {
		http.Redirect(w, r, "/heists/create", http.StatusSeeOther)
		return
	}

	_, err := wf.Submit(r.Context(), session.Current(r.Context()).Identity, in)
	var verr *heist.ValidationError
	switch {
	case err == nil, errors.Is(err, heist.ErrAlreadySubmitted):
		http.Redirect(w, r, guard.LandingPath, http.StatusSeeOther)
	case errors.Is(err, heist.ErrStaleSubmission):
		http.Redirect(w, r, "/heists/create", http.StatusSeeOther)
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for f := range verr.Fields {
			fields[f] = fieldMessages[f]
		}
		s.renderCreate(w, r, http.StatusUnprocessableEntity, wf, in, fields, "")
	case errors.Is(err, heist.ErrSubmissionInFlight):
		s.renderCreate(w, r, http.StatusConflict, wf, in, nil, msgBusy)
	case errors.Is(err, heist.ErrUnresolvedAssignee):
		s.renderCreate(w, r, http.StatusUnprocessableEntity, wf, in, nil, "")
	default:
		s.renderCreate(w, r, http.StatusInternalServerError, wf, in, nil, "")
	}
}

// renderCreate re-renders the form with the submitted values intact and the
// same token, so a retry is still accepted.
func (s *Server) renderCreate(w http.ResponseWriter, r *http.Request, status int, wf *heist.Workflow, in heist.Input, fields map[string]string, alert string) {
	s.render(w, r, status, pageCreate, view{
		Title: "Create Heist",
		Alert: alert,
		Data:  createForm{View: wf.View(), Token: in.Token, Input: in, Fields: fields},
	})
}
