package heist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"pocketheist.org/internal/audit"
	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/docstore"
	"pocketheist.org/internal/ids"
	"pocketheist.org/internal/obs"
)

// User-facing messages.
const (
	MsgRosterFailed     = "Could not load users. Please refresh and try again."
	MsgUnresolved       = "Could not resolve assignee. Please refresh and try again."
	MsgCreateFailed     = "Failed to create heist. Please try again."
	PlaceholderLoading  = "Loading agents…"
	PlaceholderNoAgents = "No agents available"
	LabelSubmit         = "Create Heist"
	LabelSubmitting     = "Creating heist…"
)

var (
	// ErrSubmissionInFlight rejects a submission while another is running.
	ErrSubmissionInFlight = errors.New("heist: submission already in flight")
	// ErrStaleSubmission rejects a form token this workflow never issued.
	ErrStaleSubmission = errors.New("heist: stale form submission")
	// ErrAlreadySubmitted rejects a replay of a token that already produced a record.
	ErrAlreadySubmitted = errors.New("heist: form already submitted")
	// ErrUnresolvedAssignee is returned when the assignee or creator is unknown.
	ErrUnresolvedAssignee = errors.New("heist: could not resolve assignee")
)

// RosterStatus is the assignee-picker load state.
type RosterStatus int

const (
	RosterPending RosterStatus = iota
	RosterLoaded
	RosterFailed
)

// Input is the submitted form.
type Input struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
	AssignedTo  string `validate:"required"`
	Token       string
}

// ValidationError lists fields that failed their constraints.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("heist: invalid input (%d fields)", len(e.Fields))
}

// View is a render snapshot of the workflow.
type View struct {
	Status     RosterStatus
	Roster     []RosterEntry
	Error      string
	Submitting bool
}

// SelectDisabled reports whether the assignee picker is inert.
func (v View) SelectDisabled() bool {
	return v.Status == RosterPending || len(v.Roster) == 0
}

// SubmitDisabled reports whether the submit control is inert.
func (v View) SubmitDisabled() bool {
	return v.Submitting || v.SelectDisabled()
}

// Placeholder is the option shown instead of roster entries, if any.
func (v View) Placeholder() string {
	switch {
	case v.Status == RosterPending:
		return PlaceholderLoading
	case len(v.Roster) == 0:
		return PlaceholderNoAgents
	}
	return ""
}

// SubmitLabel is the submit control text.
func (v View) SubmitLabel() string {
	if v.Submitting {
		return LabelSubmitting
	}
	return LabelSubmit
}

// Workflow is one visit to the create-heist page: it loads the roster,
// holds the form state and writes the record.
type Workflow struct {
	store    docstore.Store
	now      func() time.Time
	validate *validator.Validate

	mu         sync.Mutex
	status     RosterStatus
	roster     []RosterEntry
	errMsg     string
	submitting bool
	active     bool
	cancel     context.CancelFunc
	loaded     chan struct{}
	tokens     map[string]bool // token -> consumed
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides the submission clock.
func WithClock(fn func() time.Time) Option {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// NewWorkflow returns an inactive workflow in the pending state.
func NewWorkflow(store docstore.Store, opts ...Option) *Workflow {
	w := &Workflow{
		store:    store,
		now:      time.Now,
		validate: validator.New(),
		loaded:   make(chan struct{}),
		tokens:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Activate starts the roster fetch in the background. ctx bounds the fetch;
// Deactivate cancels it.
func (w *Workflow) Activate(ctx context.Context) {
	w.mu.Lock()
	if w.active || w.cancel != nil {
		w.mu.Unlock()
		return
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	w.active = true
	w.cancel = cancel
	w.mu.Unlock()

	go func() {
		defer cancel()
		roster, err := LoadRoster(fetchCtx, w.store)
		w.finishLoad(roster, err)
	}()
}

func (w *Workflow) finishLoad(roster []RosterEntry, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer close(w.loaded)
	if !w.active {
		return
	}
	if err != nil {
		obs.Error("roster load failed", err, nil)
		w.status = RosterFailed
		w.roster = nil
		w.errMsg = MsgRosterFailed
		return
	}
	w.status = RosterLoaded
	w.roster = roster
}

// Deactivate cancels any outstanding fetch. Results that arrive afterwards
// are discarded.
func (w *Workflow) Deactivate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = false
	if w.cancel != nil {
		w.cancel()
	}
}

// WaitRoster blocks until the roster fetch settles or ctx ends.
func (w *Workflow) WaitRoster(ctx context.Context) error {
	select {
	case <-w.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns the current render snapshot.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return View{
		Status:     w.status,
		Roster:     append([]RosterEntry(nil), w.roster...),
		Error:      w.errMsg,
		Submitting: w.submitting,
	}
}

// IssueToken returns a one-time token to embed in a rendered form.
func (w *Workflow) IssueToken() string {
	tok := ids.Token()
	w.mu.Lock()
	w.tokens[tok] = false
	w.mu.Unlock()
	return tok
}

// Submit validates in, resolves the assignee against the loaded roster and
// writes a new heist on behalf of creator. It returns the new record id.
func (w *Workflow) Submit(ctx context.Context, creator *auth.Identity, in Input) (string, error) {
	if err := w.check(in); err != nil {
		return "", err
	}

	w.mu.Lock()
	consumed, issued := w.tokens[in.Token]
	switch {
	case !issued:
		w.mu.Unlock()
		return "", ErrStaleSubmission
	case consumed:
		w.mu.Unlock()
		return "", ErrAlreadySubmitted
	case w.submitting:
		w.mu.Unlock()
		return "", ErrSubmissionInFlight
	}
	assignee, found := w.lookup(in.AssignedTo)
	if !found || creator == nil {
		w.errMsg = MsgUnresolved
		w.mu.Unlock()
		return "", ErrUnresolvedAssignee
	}
	w.errMsg = ""
	w.submitting = true
	w.mu.Unlock()

	id, err := w.write(ctx, creator, assignee, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.errMsg = MsgCreateFailed
		return "", err
	}
	w.tokens[in.Token] = true
	return id, nil
}

// check validates a trimmed copy so blank text is rejected while the stored
// values stay as typed.
func (w *Workflow) check(in Input) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	err := w.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

// lookup must be called with w.mu held.
func (w *Workflow) lookup(id string) (RosterEntry, bool) {
	for _, e := range w.roster {
		if e.ID == id {
			return e, true
		}
	}
	return RosterEntry{}, false
}

// write survives cancellation of ctx so a dropped request never leaves the
// outcome unknown.
func (w *Workflow) write(ctx context.Context, creator *auth.Identity, assignee RosterEntry, in Input) (string, error) {
	record := Heist{
		Title:              in.Title,
		Description:        in.Description,
		CreatedBy:          creator.UID,
		CreatedByCodename:  creator.DisplayName,
		AssignedTo:         assignee.ID,
		AssignedToCodename: assignee.Codename,
		Deadline:           w.now().UTC().Add(DeadlineOffset),
		FinalStatus:        nil,
		CreatedAt:          docstore.ServerTimestamp(),
	}
	id, err := w.store.WriteNew(context.WithoutCancel(ctx), docstore.Heists, record)
	if err != nil {
		obs.Error("heist write failed", err, map[string]any{"assigned_to": assignee.ID})
		return "", err
	}
	obs.ObserveHeistCreated()
	_ = audit.LogEvent(ctx, "heist.created", map[string]any{
		"heist_id":    id,
		"assigned_to": assignee.ID,
	})
	return id, nil
}
