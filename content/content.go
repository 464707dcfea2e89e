// Package content stores the platform's four record kinds (proposals, votes,
// comments, journal entries), each attributed to a verified agent
// fingerprint. Governance semantics such as vote tallying and proposal
// lifecycle live elsewhere; this layer only persists what authenticated
// agents submitted.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the four record types.
type Kind string

const (
	KindProposal Kind = "proposal"
	KindVote     Kind = "vote"
	KindComment  Kind = "comment"
	KindJournal  Kind = "journal"
)

// Kinds lists every record kind, in route order.
var Kinds = []Kind{KindProposal, KindVote, KindComment, KindJournal}

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProposal, KindVote, KindComment, KindJournal:
		return true
	}
	return false
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is one attributed submission. Fields holds the client's payload
// minus the authentication fields; Author is the fingerprint returned by
// signature verification, never a client-supplied claim.
type Record struct {
	ID        string                 `json:"id"`
	Kind      Kind                   `json:"kind"`
	Author    string                 `json:"author"`
	Fields    map[string]interface{} `json:"fields"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewRecord mints a record for an authenticated submission.
func NewRecord(kind Kind, author string, fields map[string]interface{}) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Kind:      kind,
		Author:    author,
		Fields:    fields,
		CreatedAt: time.Now().UTC(),
	}
}

// Store persists records by kind.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, kind Kind, id string) (*Record, error)
	List(ctx context.Context, kind Kind) ([]*Record, error)
}
