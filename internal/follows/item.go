// Package follows holds the data model shared by the export engine and the
// match driver: follow-list items, run state, snapshots and the encoders
// used to write them out.
package follows

import "time"

type FollowItem struct {
	Title          string `json:"title"`
	SourceURL      string `json:"source_url"`
	StableID       string `json:"stable_id,omitempty"`
	LastReadMarker string `json:"last_read_marker,omitempty"`
	LastReadURL    string `json:"last_read_url,omitempty"`
	CapturedAt     string `json:"captured_at"`
}

// Identity is the dedupe key: stable id when the site provides one,
// source URL otherwise.
func (it FollowItem) Identity() string {
	if it.StableID != "" {
		return it.StableID
	}

	return it.SourceURL
}

type PayloadMeta struct {
	CapturedAt   string `json:"captured_at"`
	SourceOrigin string `json:"source_origin"`
	OwnerID      string `json:"owner_id"`
	TotalItems   int    `json:"total_items"`
}

type ExportPayload struct {
	Meta  PayloadMeta  `json:"meta"`
	Items []FollowItem `json:"items"`
}

type SnapshotMeta struct {
	Status       Status     `json:"status"`
	Page         int        `json:"page"`
	Pages        int        `json:"pages,omitempty"`
	Total        int        `json:"total,omitempty"`
	OwnerID      string     `json:"owner_id"`
	SourceOrigin string     `json:"source_origin"`
	LastError    *LastError `json:"last_error,omitempty"`
	UpdatedAt    string     `json:"updated_at"`
}

// PartialSnapshot is the resumable record written every few pages and on
// every pause/error. Items only ever grow within a run.
type PartialSnapshot struct {
	Meta  SnapshotMeta `json:"meta"`
	Items []FollowItem `json:"items"`
}

// Valid reports whether the snapshot can seed a resumed run.
func (s *PartialSnapshot) Valid() bool {
	return s != nil && s.Meta.Page >= 1 && len(s.Items) > 0
}

// Page is one page of the site's follows API, already mapped to items.
type Page struct {
	Page  int
	Pages int
	Total int
	Items []FollowItem
}

func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
