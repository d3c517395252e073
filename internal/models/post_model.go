package models

import "time"

// ContentItem is one curated quote. Immutable once fetched; it comes
// from the persisted queue or from the remote feed.
type ContentItem struct {
	ID       int64  `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Body     string `db:"body" json:"body"`
	Citation string `db:"citation" json:"citation"`
	Link     string `db:"link" json:"link"`
	Category string `db:"category" json:"category"`
}

type Post struct {
	ID          int64     `db:"id" json:"id"`
	ContentID   int64     `db:"content_id" json:"content_id"`
	Caption     string    `db:"caption" json:"caption"`
	Link        string    `db:"link" json:"link"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status      string    `db:"status" json:"status"` // pending, posted, failed
	MediaPath   string    `db:"media_path" json:"media_path"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusPending = "pending"
	PostStatusPosted  = "posted"
	PostStatusFailed  = "failed"
)

// PostLog records one platform publish attempt. Append-only.
type PostLog struct {
	ID        int64      `db:"id" json:"id"`
	PostID    int64      `db:"post_id" json:"post_id"`
	Platform  PlatformID `db:"platform" json:"platform"`
	Success   bool       `db:"success" json:"success"`
	RemoteID  string     `db:"remote_id" json:"remote_id"`
	RemoteURL string     `db:"remote_url" json:"remote_url"`
	Error     string     `db:"error_message" json:"error_message"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Settings holds the daily posting time. Changing it reinstalls the
// recurring trigger.
type Settings struct {
	ID            int64     `db:"id" json:"id"`
	PostingHour   int       `db:"posting_hour" json:"posting_hour"`
	PostingMinute int       `db:"posting_minute" json:"posting_minute"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
