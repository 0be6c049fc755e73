package heist

import (
	"context"
	"sort"
	"time"

	"pocketheist.org/internal/docstore"
)

// DeadlineOffset is added to the submission time to form the deadline.
const DeadlineOffset = 48 * time.Hour

// FinalStatus is the closing outcome of a heist.
type FinalStatus string

const (
	StatusSuccess FinalStatus = "success"
	StatusFailure FinalStatus = "failure"
)

// Heist is a stored task record. Creator and assignee codenames are
// snapshots taken at creation and are never resynchronised.
type Heist struct {
	ID                 string             `json:"-"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	CreatedBy          string             `json:"createdBy"`
	CreatedByCodename  string             `json:"createdByCodename"`
	AssignedTo         string             `json:"assignedTo"`
	AssignedToCodename string             `json:"assignedToCodename"`
	Deadline           time.Time          `json:"deadline"`
	FinalStatus        *FinalStatus       `json:"finalStatus"`
	CreatedAt          docstore.Timestamp `json:"createdAt"`
}

// Profile is the per-user document written once at sign-up.
type Profile struct {
	ID       string `json:"id"`
	Codename string `json:"codename"`
}

// RosterEntry is the projection of a Profile used by the assignee picker.
type RosterEntry struct {
	ID       string
	Codename string
}

// FromDocument decodes a stored heist.
func FromDocument(d docstore.Document) (Heist, error) {
	var h Heist
	if err := d.DataTo(&h); err != nil {
		return Heist{}, err
	}
	h.ID = d.ID
	return h, nil
}

// WriteProfile stores p keyed by its id.
func WriteProfile(ctx context.Context, store docstore.Store, p Profile) error {
	return store.WriteAt(ctx, docstore.Users, p.ID, p)
}

// LoadRoster reads every profile. Documents without an id field fall back
// to the document key.
func LoadRoster(ctx context.Context, store docstore.Store) ([]RosterEntry, error) {
	docs, err := store.ListAll(ctx, docstore.Users)
	if err != nil {
		return nil, err
	}
	roster := make([]RosterEntry, 0, len(docs))
	for _, d := range docs {
		var p Profile
		if err := d.DataTo(&p); err != nil {
			return nil, docstore.Wrap("decode", docstore.Users, err)
		}
		roster = append(roster, RosterEntry{ID: d.ID, Codename: p.Codename})
	}
	return roster, nil
}

// Board groups the heists visible to one identity.
type Board struct {
	Assigned []Heist
	Created  []Heist
}

// ListFor returns heists assigned to or created by uid, soonest deadline first.
func ListFor(ctx context.Context, store docstore.Store, uid string) (Board, error) {
	docs, err := store.ListAll(ctx, docstore.Heists)
	if err != nil {
		return Board{}, err
	}
	var b Board
	for _, d := range docs {
		h, err := FromDocument(d)
		if err != nil {
			return Board{}, docstore.Wrap("decode", docstore.Heists, err)
		}
		if h.AssignedTo == uid {
			b.Assigned = append(b.Assigned, h)
		}
		if h.CreatedBy == uid {
			b.Created = append(b.Created, h)
		}
	}
	byDeadline := func(hs []Heist) {
		sort.SliceStable(hs, func(i, j int) bool { return hs[i].Deadline.Before(hs[j].Deadline) })
	}
	byDeadline(b.Assigned)
	byDeadline(b.Created)
	return b, nil
}
