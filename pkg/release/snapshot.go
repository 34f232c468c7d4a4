package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/lexhr/curator/pkg/rules"
)

// ErrHashMismatch is returned when a snapshot's recorded hash does not
// match the hash recomputed from its rules.
var ErrHashMismatch = errors.New("snapshot hash does not match rule set")

// Snapshot is one exportable release of the published rule set.
type Snapshot struct {
	Version     string                  `json:"version"`
	GeneratedAt time.Time               `json:"generated_at"`
	RuleCount   int                     `json:"rule_count"`
	ReleaseHash string                  `json:"release_hash"`
	Rules       []*rules.RegulatoryRule `json:"rules"`
}

// NewSnapshot builds a snapshot for the given rules under a validated
// semantic version.
func NewSnapshot(version string, rs []*rules.RegulatoryRule, generatedAt time.Time) (*Snapshot, error) {
	if _, err := semver.StrictNewVersion(trimV(version)); err != nil {
		return nil, fmt.Errorf("release: version %q is not valid semver: %w", version, err)
	}
	hash, err := ComputeReleaseHash(rs)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:     version,
		GeneratedAt: generatedAt.UTC(),
		RuleCount:   len(rs),
		ReleaseHash: hash,
		Rules:       rs,
	}, nil
}

// Verify recomputes the release hash from the embedded rules and
// compares it to the recorded one.
func (s *Snapshot) Verify() error {
	hash, err := ComputeReleaseHash(s.Rules)
	if err != nil {
		return err
	}
	if hash != s.ReleaseHash {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrHashMismatch, s.ReleaseHash, hash)
	}
	if s.RuleCount != len(s.Rules) {
		return fmt.Errorf("%w: rule_count %d but %d rules embedded", ErrHashMismatch, s.RuleCount, len(s.Rules))
	}
	return nil
}

// ParseSnapshot decodes and verifies a serialized snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("release: decode snapshot: %w", err)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal serializes the snapshot with stable indentation for diffable
// artifacts.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func trimV(version string) string {
	if len(version) > 0 && version[0] == 'v' {
		return version[1:]
	}
	return version
}
