package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexhr/curator/pkg/contenthash"
	"github.com/lexhr/curator/pkg/quotes"
)

var (
	// ErrHashMismatch is returned when a supplied content hash does not
	// match the digest of the raw bytes.
	ErrHashMismatch = errors.New("content hash does not match raw content")

	// ErrQuoteNotInEvidence is returned when an exact quote cannot be
	// located verbatim in the evidence body.
	ErrQuoteNotInEvidence = errors.New("exact quote is not a substring of evidence content")

	// ErrBadOffsets is returned for inverted or out-of-range quote offsets.
	ErrBadOffsets = errors.New("quote offsets are invalid")
)

// Evidence is immutable captured source content. RawContent is never
// mutated after creation; only the staleness service touches the
// verification fields.
type Evidence struct {
	ID                  string          `json:"id"`
	SourceID            string          `json:"source_id"`
	SourceHierarchy     int             `json:"source_hierarchy"`
	URL                 string          `json:"url"`
	RawContent          []byte          `json:"raw_content"`
	ContentHash         string          `json:"content_hash"`
	ContentType         string          `json:"content_type"`
	FetchedAt           time.Time       `json:"fetched_at"`
	LastVerifiedAt      time.Time       `json:"last_verified_at"`
	LastCheckedAt       time.Time       `json:"last_checked_at"`
	SourceEtag          string          `json:"source_etag,omitempty"`
	SourceLastMod       string          `json:"source_last_mod,omitempty"`
	Staleness           StalenessStatus `json:"staleness_status"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	HasChanged          bool            `json:"has_changed"`
	DeletedAt           *time.Time      `json:"deleted_at,omitempty"`
}

// NewEvidence captures raw source bytes. The content hash is computed
// here and is the only accepted value; a caller-supplied hash must be
// checked with VerifyHash instead of trusted.
func NewEvidence(sourceID, url string, raw []byte, contentType string, hierarchy int, fetchedAt time.Time) (*Evidence, error) {
	if sourceID == "" || url == "" {
		return nil, fmt.Errorf("evidence requires source id and url")
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("evidence requires raw content")
	}
	if contentType == "" {
		contentType = contenthash.Sniff(raw)
	}
	if hierarchy < 1 || hierarchy > 5 {
		return nil, fmt.Errorf("source hierarchy %d outside 1..5", hierarchy)
	}
	body := make([]byte, len(raw))
	copy(body, raw)

	return &Evidence{
		ID:              uuid.New().String(),
		SourceID:        sourceID,
		SourceHierarchy: hierarchy,
		URL:             url,
		RawContent:      body,
		ContentHash:     contenthash.Hash(body, contentType),
		ContentType:     contentType,
		FetchedAt:       fetchedAt.UTC(),
		LastVerifiedAt:  fetchedAt.UTC(),
		LastCheckedAt:   fetchedAt.UTC(),
		Staleness:       StalenessFresh,
	}, nil
}

// VerifyHash re-derives the content hash and compares it to the stored
// one. A mismatch means the raw bytes were tampered with after capture.
func (e *Evidence) VerifyHash() error {
	if got := contenthash.Hash(e.RawContent, e.ContentType); got != e.ContentHash {
		return fmt.Errorf("%w: stored %s, derived %s", ErrHashMismatch, e.ContentHash, got)
	}
	return nil
}

// SourcePointer is a located, quoted fact inside one evidence record.
// ExactQuote is verbatim with respect to the evidence body, compared
// under quote normalization of both sides.
type SourcePointer struct {
	ID             string    `json:"id"`
	EvidenceID     string    `json:"evidence_id"`
	Domain         string    `json:"domain"`
	ValueType      string    `json:"value_type"`
	ExtractedValue any       `json:"extracted_value"`
	ExactQuote     string    `json:"exact_quote"`
	StartOffset    int       `json:"start_offset"`
	EndOffset      int       `json:"end_offset"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewSourcePointer locates a quoted fact inside ev. The quote must be a
// substring of the evidence body after quote normalization, and offsets
// must be a sane byte range.
func NewSourcePointer(ev *Evidence, domain, valueType string, value any, quote string, start, end int, confidence float64) (*SourcePointer, error) {
	if ev == nil {
		return nil, fmt.Errorf("source pointer requires evidence")
	}
	if domain == "" {
		return nil, fmt.Errorf("source pointer requires a domain")
	}
	if quote == "" {
		return nil, fmt.Errorf("source pointer requires an exact quote")
	}
	if start < 0 || end <= start || end > len(ev.RawContent) {
		return nil, fmt.Errorf("%w: [%d,%d) against %d bytes", ErrBadOffsets, start, end, len(ev.RawContent))
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence %v outside [0,1]", confidence)
	}

	body := quotes.Normalize(string(ev.RawContent))
	if !strings.Contains(body, quotes.Normalize(quote)) {
		return nil, fmt.Errorf("%w: %.60q", ErrQuoteNotInEvidence, quote)
	}

	return &SourcePointer{
		ID:             uuid.New().String(),
		EvidenceID:     ev.ID,
		Domain:         strings.ToLower(domain),
		ValueType:      valueType,
		ExtractedValue: value,
		ExactQuote:     quote,
		StartOffset:    start,
		EndOffset:      end,
		Confidence:     confidence,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
