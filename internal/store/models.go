package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("document already exists")
	ErrVersionConflict = errors.New("document version conflict")
)

// Document is the stored snapshot of one document. Version counts the
// accepted step batches; Checksum fingerprints Content.
type Document struct {
	ID        string
	Title     string
	Content   json.RawMessage
	Markdown  string
	Version   int
	Checksum  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepBatch is one accepted transaction, stored as the JSON step array that
// moved the document from Version-1 to Version.
type StepBatch struct {
	DocumentID string          `json:"documentId"`
	Version    int             `json:"version"`
	Steps      json.RawMessage `json:"steps"`
	ClientID   string          `json:"clientId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Added     int       `json:"added"`
	Removed   int       `json:"removed"`
}

// Checksum returns the hex BLAKE2b-256 digest of content.
func Checksum(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}
