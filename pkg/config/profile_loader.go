package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CurationProfile is the jurisdiction-specific curation policy: concept
// aliases, blocked domains, per-domain source hierarchies and staleness
// overrides.
type CurationProfile struct {
	Name      string   `yaml:"name" json:"name"`
	Code      string   `yaml:"code" json:"code"`
	Languages []string `yaml:"languages,omitempty" json:"languages,omitempty"`

	// Aliases maps known alternative concept slugs to the canonical one.
	Aliases map[string]string `yaml:"concept_aliases,omitempty" json:"concept_aliases,omitempty"`

	// BlockedDomains never yield persisted rules, on top of the
	// built-in synthetic TLD set.
	BlockedDomains []string `yaml:"blocked_domains,omitempty" json:"blocked_domains,omitempty"`

	// SourceHierarchies assigns a hierarchy level 1..5 per source
	// domain (1 = official gazette).
	SourceHierarchies map[string]int `yaml:"source_hierarchies,omitempty" json:"source_hierarchies,omitempty"`

	// StalenessOverrides replaces the default per-hierarchy staleness
	// threshold (days) for specific domains.
	StalenessOverrides map[string]float64 `yaml:"staleness_overrides,omitempty" json:"staleness_overrides,omitempty"`

	// StrictExplanations turns the quote-only explanation fallback into
	// a hard rejection.
	StrictExplanations bool `yaml:"strict_explanations,omitempty" json:"strict_explanations,omitempty"`
}

// LoadProfile reads and validates a curation profile YAML file.
func LoadProfile(path string) (*CurationProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}
	var p CurationProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	for domain, h := range p.SourceHierarchies {
		if h < 1 || h > 5 {
			return nil, fmt.Errorf("profile %s: hierarchy %d for %s outside 1..5", path, h, domain)
		}
	}
	for domain, days := range p.StalenessOverrides {
		if days <= 0 {
			return nil, fmt.Errorf("profile %s: staleness override %v for %s must be positive", path, days, domain)
		}
	}
	return &p, nil
}

// Hierarchy returns the configured hierarchy for a domain, default 4
// (secondary commentary) for unknown sources.
func (p *CurationProfile) Hierarchy(domain string) int {
	if h, ok := p.SourceHierarchies[domain]; ok {
		return h
	}
	return 4
}
