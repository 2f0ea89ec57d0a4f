package follows

import "strconv"

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Failure codes. HTTP failures use CodeHTTP(status) instead.
const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeBadResponse  = "BAD_RESPONSE"
	CodeCancelled    = "CANCELLED"
	CodeNotLoggedIn  = "NOT_LOGGED_IN"
	CodeNoSnapshot   = "RESUME_UNAVAILABLE"
	CodeStoreWrite   = "STORE_WRITE_FAILED"
)

// HTTPCode renders a status code as a failure code, e.g. HTTP_503.
func HTTPCode(status int) string {
	return "HTTP_" + strconv.Itoa(status)
}

type LastError struct {
	Code       string `json:"code"`
	Retryable  bool   `json:"retryable"`
	Timestamp  string `json:"timestamp"`
	RetryAfter int64  `json:"retry_after_ms,omitempty"`
	RetryAt    string `json:"retry_at,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
}

// ExportState is the engine's persisted run state, singleton per install.
type ExportState struct {
	Status         Status     `json:"status"`
	Page           int        `json:"page"`
	Pages          int        `json:"pages,omitempty"`
	Collected      int        `json:"collected"`
	Total          int        `json:"total,omitempty"`
	Error          string     `json:"error,omitempty"`
	LastError      *LastError `json:"last_error,omitempty"`
	StartedAt      string     `json:"started_at,omitempty"`
	UpdatedAt      string     `json:"updated_at,omitempty"`
	LastProgressAt string     `json:"last_progress_at,omitempty"`
}

type MatchCandidate struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// MatchResult is the per-item outcome of the auto-match driver. The results
// slice is index-aligned with the exported item list.
type MatchResult struct {
	Processed     bool             `json:"processed"`
	SourceTitle   string           `json:"source_title"`
	SourceURL     string           `json:"source_url"`
	BestCandidate *MatchCandidate  `json:"best_candidate,omitempty"`
	Score         float64          `json:"score"`
	Candidates    []MatchCandidate `json:"candidates,omitempty"`
	Followed      bool             `json:"followed,omitempty"`
	Accepted      bool             `json:"accepted,omitempty"`
	Removed       bool             `json:"removed,omitempty"`
}

// MatchState mirrors ExportState for the match driver, over a fixed-length
// item list instead of unknown-length pages.
type MatchState struct {
	Status    Status `json:"status"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Matched   int    `json:"matched"`
	OpenIndex int    `json:"open_index"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FollowState tracks the opt-in auto-follow driver.
type FollowState struct {
	Status    Status `json:"status"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Followed  int    `json:"followed"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
