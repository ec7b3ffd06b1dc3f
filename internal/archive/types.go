package archive

import "time"

// ConversationRecord is the archived form of a closed conversation.
type ConversationRecord struct {
	Version         string     `json:"version"` // "1.0"
	ConversationID  int64      `json:"conversation_id"`
	ExternalID      string     `json:"external_id,omitempty"`
	PhoneHash       string     `json:"phone_hash"` // sha256 of phone
	Direction       string     `json:"direction"`
	Locale          string     `json:"locale"`
	StartTS         time.Time  `json:"start_ts"`
	EndTS           *time.Time `json:"end_ts"`
	DurationSeconds int        `json:"duration_seconds"`
	Transcript      string     `json:"transcript"`
	Intents         []string   `json:"intents"`
	ArchivedAt      time.Time  `json:"archived_at"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	ConversationID int64  `json:"conversation_id"`
	S3Key          string `json:"s3_key"`
	Direction      string `json:"direction"`
	Intent         string `json:"intent"`
	ArchivedAt     string `json:"archived_at"`
}
