package entities

import (
	"encoding/json"
	"time"
)

// KVSetResult reports an upsert. Created is true iff the key did not exist.
type KVSetResult struct {
	Key       string     `json:"key"`
	Created   bool       `json:"created"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// KVItem is one key-value row.
type KVItem struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

// KVListItem omits values: listing is a key scan.
type KVListItem struct {
	Key       string     `json:"key"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Paste is an immutable text snippet addressed by a short random id.
type Paste struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Title     string     `json:"title,omitempty"`
	Language  string     `json:"language,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// SQLQueryResult is the sandboxed SELECT output.
type SQLQueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
}

// SQLExecResult is the sandboxed mutation output.
type SQLExecResult struct {
	RowsAffected int64 `json:"rowsAffected"`
}

// SQLTable is one user table from engine introspection.
type SQLTable struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// LockResult is the outcome of an acquire attempt. Token is only set when
// acquired; HeldUntil reports the current holder's expiry otherwise.
type LockResult struct {
	Acquired  bool       `json:"acquired"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	HeldUntil *time.Time `json:"heldUntil,omitempty"`
}

// LockState describes a lock without exposing its holder token.
type LockState struct {
	Name      string     `json:"name"`
	Held      bool       `json:"held"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// QueueJob is one queued item as returned by pop and peek.
type QueueJob struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"createdAt"`
}

// QueuePushResult reports how many items were enqueued.
type QueuePushResult struct {
	Queued int      `json:"queued"`
	JobIDs []string `json:"jobIds"`
}

// QueueStatus counts jobs by state.
type QueueStatus struct {
	Queue      string `json:"queue"`
	Pending    int64  `json:"pending"`
	Processing int64  `json:"processing"`
	Total      int64  `json:"total"`
}

// MemoryItem is one vector-memory row.
type MemoryItem struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Embedding []float64       `json:"embedding,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// MemorySearchHit pairs an item with its cosine similarity to the query.
type MemorySearchHit struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Similarity float64         `json:"similarity"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Content scan verdict targets.
const (
	ScanContentPaste  = "paste"
	ScanContentKV     = "kv"
	ScanContentMemory = "memory"
)

// ScanVerdict is the classifier's judgement of one piece of content.
type ScanVerdict struct {
	Safe       bool    `json:"safe"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// ContentScan is a stored verdict; the latest verdict for an id wins.
type ContentScan struct {
	ContentID   string    `json:"contentId"`
	ContentType string    `json:"contentType"`
	Safe        bool      `json:"safe"`
	Confidence  float64   `json:"confidence"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
