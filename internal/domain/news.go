package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Level grades an alert: orange is elevated, rouge is critical.
type Level string

const (
	LevelNone   Level = ""
	LevelOrange Level = "orange"
	LevelRouge  Level = "rouge"
)

func (l Level) rank() int {
	switch l {
	case LevelOrange:
		return 1
	case LevelRouge:
		return 2
	default:
		return 0
	}
}

// MaxLevel returns the more severe of two levels. Detection checks may only
// escalate a level, never downgrade it.
func MaxLevel(a, b Level) Level {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Escalated raises a level by one step; rouge stays rouge.
func (l Level) Escalated() Level {
	switch l {
	case LevelNone:
		return LevelOrange
	default:
		return LevelRouge
	}
}

// NewsItem is a single ingested feed entry. Rows are created once during
// ingestion and never mutated afterward.
type NewsItem struct {
	Fingerprint string    `json:"-"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Sector      string    `json:"category"`
	Region      string    `json:"region"`
	Lang        string    `json:"lang,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary"`
	Sentiment   int       `json:"sentiment"`
	Impact      int       `json:"impact"`
	CreatedAt   time.Time `json:"-"`
}

// IndexScore is an append-only snapshot of the rolling sentiment index for a
// (region, sector) pair; the latest row per pair is authoritative.
type IndexScore struct {
	Region    string    `json:"region"`
	Sector    string    `json:"sector"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Signal is a graded anomaly alert for one keyword family.
type Signal struct {
	Topic     string    `json:"topic"`
	Level     Level     `json:"level"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Fingerprint derives the dedup key for an item. The published argument is the
// raw timestamp string from the feed, so an unchanged item hashes identically
// across ingestion runs regardless of how the timestamp later parses.
func Fingerprint(source, title, url, published string) string {
	sum := sha256.Sum256([]byte(source + "|" + title + "|" + url + "|" + published))
	return hex.EncodeToString(sum[:])
}
