package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexhr/curator/pkg/applieswhen"
	"github.com/lexhr/curator/pkg/rules"
)

// SQLite is the single-node persistent store. Uniqueness constraints
// carry idempotency: a duplicate content hash or meaning signature is
// rejected by the database, not by in-process locking.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a sqlite store at path. Use
// ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an existing database handle and runs migrations.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// Bundle exposes the sqlite store through the repository aggregate.
func (s *SQLite) Bundle() *Store {
	return &Store{
		Evidence:  sqlEvidence{s},
		Pointers:  sqlPointers{s},
		Concepts:  sqlConcepts{s},
		Rules:     sqlRules{s},
		Conflicts: sqlConflicts{s},
		Edges:     sqlEdges{s},
	}
}

func (s *SQLite) migrate() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS evidence (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		source_hierarchy INTEGER NOT NULL,
		url TEXT NOT NULL,
		raw_content BLOB NOT NULL,
		content_hash TEXT NOT NULL,
		content_type TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		last_verified_at TEXT NOT NULL,
		last_checked_at TEXT NOT NULL,
		source_etag TEXT NOT NULL DEFAULT '',
		source_last_mod TEXT NOT NULL DEFAULT '',
		staleness_status TEXT NOT NULL,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		has_changed INTEGER NOT NULL DEFAULT 0,
		deleted_at TEXT,
		UNIQUE(source_id, content_hash)
	);
	CREATE TABLE IF NOT EXISTS source_pointers (
		id TEXT PRIMARY KEY,
		evidence_id TEXT NOT NULL REFERENCES evidence(id),
		domain TEXT NOT NULL,
		value_type TEXT NOT NULL,
		extracted_value TEXT,
		exact_quote TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		confidence REAL NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS concepts (
		slug TEXT PRIMARY KEY,
		name_hr TEXT NOT NULL DEFAULT '',
		name_en TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]'
	);
	CREATE TABLE IF NOT EXISTS regulatory_rules (
		id TEXT PRIMARY KEY,
		concept_slug TEXT NOT NULL,
		title_hr TEXT NOT NULL DEFAULT '',
		title_en TEXT NOT NULL DEFAULT '',
		risk_tier TEXT NOT NULL DEFAULT '',
		authority_level TEXT NOT NULL,
		applies_when TEXT,
		value TEXT,
		value_type TEXT NOT NULL,
		explanation_hr TEXT NOT NULL DEFAULT '',
		explanation_en TEXT NOT NULL DEFAULT '',
		effective_from TEXT NOT NULL,
		effective_until TEXT,
		supersedes_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		confidence REAL NOT NULL,
		meaning_signature TEXT NOT NULL,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rules_live_signature
		ON regulatory_rules(concept_slug, meaning_signature)
		WHERE status != 'DEPRECATED';
	CREATE TABLE IF NOT EXISTS rule_pointers (
		rule_id TEXT NOT NULL REFERENCES regulatory_rules(id),
		pointer_id TEXT NOT NULL REFERENCES source_pointers(id),
		PRIMARY KEY (rule_id, pointer_id)
	);
	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		conflict_type TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		rule_ids TEXT NOT NULL DEFAULT '[]',
		pointer_ids TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS amendment_edges (
		id TEXT PRIMARY KEY,
		from_rule_id TEXT NOT NULL REFERENCES regulatory_rules(id),
		to_rule_id TEXT NOT NULL REFERENCES regulatory_rules(id),
		relation TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), ddl); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// fmtTime uses second precision so the stored strings compare
// lexicographically in SQL range predicates.
func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sqlite marshal: %w", err)
	}
	return string(b), nil
}

// --- EvidenceRepo ---

type sqlEvidence struct{ s *SQLite }

func (v sqlEvidence) Insert(ctx context.Context, ev *rules.Evidence) error {
	_, err := v.s.db.ExecContext(ctx, `
		INSERT INTO evidence (id, source_id, source_hierarchy, url, raw_content, content_hash,
			content_type, fetched_at, last_verified_at, last_checked_at, source_etag,
			source_last_mod, staleness_status, consecutive_failures, has_changed, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SourceID, ev.SourceHierarchy, ev.URL, ev.RawContent, ev.ContentHash,
		ev.ContentType, fmtTime(ev.FetchedAt), fmtTime(ev.LastVerifiedAt), fmtTime(ev.LastCheckedAt),
		ev.SourceEtag, ev.SourceLastMod, string(ev.Staleness), ev.ConsecutiveFailures,
		ev.HasChanged, fmtTimePtr(ev.DeletedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: source %s", ErrDuplicateContent, ev.SourceID)
	}
	if err != nil {
		return fmt.Errorf("sqlite insert evidence: %w", err)
	}
	return nil
}

func (v sqlEvidence) Get(ctx context.Context, id string) (*rules.Evidence, error) {
	row := v.s.db.QueryRowContext(ctx, `
		SELECT id, source_id, source_hierarchy, url, raw_content, content_hash, content_type,
			fetched_at, last_verified_at, last_checked_at, source_etag, source_last_mod,
			staleness_status, consecutive_failures, has_changed, deleted_at
		FROM evidence WHERE id = ?`, id)
	return scanEvidence(row)
}

func (v sqlEvidence) Update(ctx context.Context, ev *rules.Evidence) error {
	res, err := v.s.db.ExecContext(ctx, `
		UPDATE evidence SET last_verified_at = ?, last_checked_at = ?, source_etag = ?,
			source_last_mod = ?, staleness_status = ?, consecutive_failures = ?,
			has_changed = ?, deleted_at = ?
		WHERE id = ?`,
		fmtTime(ev.LastVerifiedAt), fmtTime(ev.LastCheckedAt), ev.SourceEtag, ev.SourceLastMod,
		string(ev.Staleness), ev.ConsecutiveFailures, ev.HasChanged, fmtTimePtr(ev.DeletedAt), ev.ID)
	if err != nil {
		return fmt.Errorf("sqlite update evidence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: evidence %s", ErrNotFound, ev.ID)
	}
	return nil
}

func (v sqlEvidence) ListDue(ctx context.Context, now time.Time) ([]*rules.Evidence, error) {
	rows, err := v.s.db.QueryContext(ctx, `
		SELECT id, source_id, source_hierarchy, url, raw_content, content_hash, content_type,
			fetched_at, last_verified_at, last_checked_at, source_etag, source_last_mod,
			staleness_status, consecutive_failures, has_changed, deleted_at
		FROM evidence
		WHERE deleted_at IS NULL AND staleness_status != 'EXPIRED'
		  AND ((staleness_status = 'UNAVAILABLE' AND last_checked_at <= ?)
		    OR (staleness_status != 'UNAVAILABLE' AND last_verified_at <= ?))
		ORDER BY id`,
		fmtTime(now.Add(-4*time.Hour)), fmtTime(now.Add(-24*time.Hour)))
	if err != nil {
		return nil, fmt.Errorf("sqlite list due evidence: %w", err)
	}
	defer rows.Close()

	var out []*rules.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanEvidence(row rowScanner) (*rules.Evidence, error) {
	var (
		ev                             rules.Evidence
		fetched, verified, checked, st string
		deleted                        sql.NullString
	)
	err := row.Scan(&ev.ID, &ev.SourceID, &ev.SourceHierarchy, &ev.URL, &ev.RawContent,
		&ev.ContentHash, &ev.ContentType, &fetched, &verified, &checked, &ev.SourceEtag,
		&ev.SourceLastMod, &st, &ev.ConsecutiveFailures, &ev.HasChanged, &deleted)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: evidence", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite scan evidence: %w", err)
	}
	ev.FetchedAt = parseTime(fetched)
	ev.LastVerifiedAt = parseTime(verified)
	ev.LastCheckedAt = parseTime(checked)
	ev.Staleness = rules.StalenessStatus(st)
	ev.DeletedAt = parseTimePtr(deleted)
	return &ev, nil
}

// --- PointerRepo ---

type sqlPointers struct{ s *SQLite }

func (v sqlPointers) Insert(ctx context.Context, sp *rules.SourcePointer) error {
	val, err := marshalJSON(sp.ExtractedValue)
	if err != nil {
		return err
	}
	_, err = v.s.db.ExecContext(ctx, `
		INSERT INTO source_pointers (id, evidence_id, domain, value_type, extracted_value,
			exact_quote, start_offset, end_offset, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.EvidenceID, sp.Domain, sp.ValueType, val, sp.ExactQuote,
		sp.StartOffset, sp.EndOffset, sp.Confidence, fmtTime(sp.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite insert pointer: %w", err)
	}
	return nil
}

func (v sqlPointers) Get(ctx context.Context, id string) (*rules.SourcePointer, error) {
	row := v.s.db.QueryRowContext(ctx, `
		SELECT id, evidence_id, domain, value_type, extracted_value, exact_quote,
			start_offset, end_offset, confidence, created_at
		FROM source_pointers WHERE id = ?`, id)

	var (
		sp      rules.SourcePointer
		val     sql.NullString
		created string
	)
	err := row.Scan(&sp.ID, &sp.EvidenceID, &sp.Domain, &sp.ValueType, &val,
		&sp.ExactQuote, &sp.StartOffset, &sp.EndOffset, &sp.Confidence, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: source pointer %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite scan pointer: %w", err)
	}
	if val.Valid && val.String != "" {
		if err := json.Unmarshal([]byte(val.String), &sp.ExtractedValue); err != nil {
			return nil, fmt.Errorf("sqlite decode pointer value: %w", err)
		}
	}
	sp.CreatedAt = parseTime(created)
	return &sp, nil
}

func (v sqlPointers) GetMany(ctx context.Context, ids []string) ([]*rules.SourcePointer, error) {
	out := make([]*rules.SourcePointer, 0, len(ids))
	for _, id := range ids {
		sp, err := v.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// --- ConceptRepo ---

type sqlConcepts struct{ s *SQLite }

func (v sqlConcepts) Upsert(ctx context.Context, c *rules.Concept) error {
	tags, err := marshalJSON(c.Tags)
	if err != nil {
		return err
	}
	if tags == "" {
		tags = "[]"
	}
	_, err = v.s.db.ExecContext(ctx, `
		INSERT INTO concepts (slug, name_hr, name_en, tags) VALUES (?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET name_hr = excluded.name_hr,
			name_en = excluded.name_en, tags = excluded.tags`,
		c.Slug, c.NameHr, c.NameEn, tags)
	if err != nil {
		return fmt.Errorf("sqlite upsert concept: %w", err)
	}
	return nil
}

func (v sqlConcepts) Get(ctx context.Context, slug string) (*rules.Concept, error) {
	row := v.s.db.QueryRowContext(ctx,
		`SELECT slug, name_hr, name_en, tags FROM concepts WHERE slug = ?`, slug)
	var c rules.Concept
	var tags string
	err := row.Scan(&c.Slug, &c.NameHr, &c.NameEn, &tags)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: concept %s", ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite scan concept: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("sqlite decode concept tags: %w", err)
	}
	return &c, nil
}

// --- RuleRepo ---

type sqlRules struct{ s *SQLite }

const ruleColumns = `id, concept_slug, title_hr, title_en, risk_tier, authority_level,
	applies_when, value, value_type, explanation_hr, explanation_en, effective_from,
	effective_until, supersedes_id, status, confidence, meaning_signature, approved_by,
	approved_at, created_at, updated_at`

func (v sqlRules) Insert(ctx context.Context, r *rules.RegulatoryRule) error {
	aw, err := marshalJSON(r.AppliesWhen)
	if err != nil {
		return err
	}
	val, err := marshalJSON(r.Value)
	if err != nil {
		return err
	}
	tx, err := v.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO regulatory_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ConceptSlug, r.TitleHr, r.TitleEn, r.RiskTier, string(r.Authority),
		aw, val, r.ValueType, r.ExplanationHr, r.ExplanationEn, fmtTime(r.EffectiveFrom),
		fmtTimePtr(r.EffectiveUntil), r.SupersedesID, string(r.Status), r.Confidence,
		r.MeaningSignature, r.ApprovedBy, fmtTimePtr(r.ApprovedAt),
		fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: concept %s", ErrDuplicateSignature, r.ConceptSlug)
	}
	if err != nil {
		return fmt.Errorf("sqlite insert rule: %w", err)
	}
	for _, pid := range r.SourcePointerIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO rule_pointers (rule_id, pointer_id) VALUES (?, ?)`,
			r.ID, pid); err != nil {
			return fmt.Errorf("sqlite link pointer: %w", err)
		}
	}
	return tx.Commit()
}

func (v sqlRules) Get(ctx context.Context, id string) (*rules.RegulatoryRule, error) {
	row := v.s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM regulatory_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err != nil {
		return nil, err
	}
	if err := v.loadPointerIDs(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (v sqlRules) Update(ctx context.Context, r *rules.RegulatoryRule) error {
	res, err := v.s.db.ExecContext(ctx, `
		UPDATE regulatory_rules SET status = ?, confidence = ?, supersedes_id = ?,
			approved_by = ?, approved_at = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status), r.Confidence, r.SupersedesID, r.ApprovedBy,
		fmtTimePtr(r.ApprovedAt), fmtTime(time.Now()), r.ID)
	if err != nil {
		return fmt.Errorf("sqlite update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: rule %s", ErrNotFound, r.ID)
	}
	return nil
}

func (v sqlRules) BySignature(ctx context.Context, conceptSlug, sig string) (*rules.RegulatoryRule, error) {
	row := v.s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+` FROM regulatory_rules
		WHERE concept_slug = ? AND meaning_signature = ? AND status != 'DEPRECATED'`,
		conceptSlug, sig)
	r, err := scanRule(row)
	if err != nil {
		return nil, err
	}
	if err := v.loadPointerIDs(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (v sqlRules) ByConcept(ctx context.Context, conceptSlug string) ([]*rules.RegulatoryRule, error) {
	return v.query(ctx,
		`SELECT `+ruleColumns+` FROM regulatory_rules WHERE concept_slug = ? ORDER BY id`,
		conceptSlug)
}

func (v sqlRules) ByStatus(ctx context.Context, status rules.Status) ([]*rules.RegulatoryRule, error) {
	return v.query(ctx,
		`SELECT `+ruleColumns+` FROM regulatory_rules WHERE status = ? ORDER BY id`,
		string(status))
}

func (v sqlRules) PublishedExpired(ctx context.Context, now time.Time) ([]*rules.RegulatoryRule, error) {
	return v.query(ctx, `
		SELECT `+ruleColumns+` FROM regulatory_rules
		WHERE status = 'PUBLISHED' AND effective_until IS NOT NULL AND effective_until <= ?
		ORDER BY id`, fmtTime(now))
}

func (v sqlRules) AttachPointers(ctx context.Context, ruleID string, pointerIDs []string) error {
	for _, pid := range pointerIDs {
		if _, err := v.s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO rule_pointers (rule_id, pointer_id) VALUES (?, ?)`,
			ruleID, pid); err != nil {
			return fmt.Errorf("sqlite attach pointer: %w", err)
		}
	}
	return nil
}

func (v sqlRules) query(ctx context.Context, q string, args ...any) ([]*rules.RegulatoryRule, error) {
	rows, err := v.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.RegulatoryRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range out {
		if err := v.loadPointerIDs(ctx, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (v sqlRules) loadPointerIDs(ctx context.Context, r *rules.RegulatoryRule) error {
	rows, err := v.s.db.QueryContext(ctx,
		`SELECT pointer_id FROM rule_pointers WHERE rule_id = ? ORDER BY pointer_id`, r.ID)
	if err != nil {
		return fmt.Errorf("sqlite load pointers: %w", err)
	}
	defer rows.Close()
	r.SourcePointerIDs = nil
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return err
		}
		r.SourcePointerIDs = append(r.SourcePointerIDs, pid)
	}
	return rows.Err()
}

func scanRule(row rowScanner) (*rules.RegulatoryRule, error) {
	var (
		r                      rules.RegulatoryRule
		aw, val                sql.NullString
		auth, status           string
		from, created, updated string
		until, approved        sql.NullString
	)
	err := row.Scan(&r.ID, &r.ConceptSlug, &r.TitleHr, &r.TitleEn, &r.RiskTier, &auth,
		&aw, &val, &r.ValueType, &r.ExplanationHr, &r.ExplanationEn, &from, &until,
		&r.SupersedesID, &status, &r.Confidence, &r.MeaningSignature, &r.ApprovedBy,
		&approved, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: rule", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite scan rule: %w", err)
	}
	r.Authority = rules.AuthorityLevel(auth)
	r.Status = rules.Status(status)
	r.EffectiveFrom = parseTime(from)
	r.EffectiveUntil = parseTimePtr(until)
	r.ApprovedAt = parseTimePtr(approved)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	if aw.Valid && aw.String != "" {
		var n applieswhen.Node
		if err := json.Unmarshal([]byte(aw.String), &n); err != nil {
			return nil, fmt.Errorf("sqlite decode applies_when: %w", err)
		}
		r.AppliesWhen = &n
	}
	if val.Valid && val.String != "" {
		if err := json.Unmarshal([]byte(val.String), &r.Value); err != nil {
			return nil, fmt.Errorf("sqlite decode rule value: %w", err)
		}
	}
	return &r, nil
}

// --- ConflictRepo ---

type sqlConflicts struct{ s *SQLite }

func (v sqlConflicts) Insert(ctx context.Context, c *rules.RegulatoryConflict) error {
	ruleIDs, err := marshalJSON(c.RuleIDs)
	if err != nil {
		return err
	}
	pointerIDs, err := marshalJSON(c.PointerIDs)
	if err != nil {
		return err
	}
	if ruleIDs == "" {
		ruleIDs = "[]"
	}
	if pointerIDs == "" {
		pointerIDs = "[]"
	}
	_, err = v.s.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, conflict_type, status, description, rule_ids, pointer_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Type), string(c.Status), c.Description, ruleIDs, pointerIDs, fmtTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite insert conflict: %w", err)
	}
	return nil
}

func (v sqlConflicts) Get(ctx context.Context, id string) (*rules.RegulatoryConflict, error) {
	row := v.s.db.QueryRowContext(ctx, `
		SELECT id, conflict_type, status, description, rule_ids, pointer_ids, created_at
		FROM conflicts WHERE id = ?`, id)
	return scanConflict(row)
}

func (v sqlConflicts) OpenForPair(ctx context.Context, ruleA, ruleB string) (bool, error) {
	all, err := v.ListOpen(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range all {
		var hasA, hasB bool
		for _, id := range c.RuleIDs {
			hasA = hasA || id == ruleA
			hasB = hasB || id == ruleB
		}
		if hasA && hasB {
			return true, nil
		}
	}
	return false, nil
}

func (v sqlConflicts) ListOpen(ctx context.Context) ([]*rules.RegulatoryConflict, error) {
	rows, err := v.s.db.QueryContext(ctx, `
		SELECT id, conflict_type, status, description, rule_ids, pointer_ids, created_at
		FROM conflicts WHERE status = 'OPEN' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list conflicts: %w", err)
	}
	defer rows.Close()
	var out []*rules.RegulatoryConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanConflict(row rowScanner) (*rules.RegulatoryConflict, error) {
	var (
		c                            rules.RegulatoryConflict
		kind, status                 string
		ruleIDs, pointerIDs, created string
	)
	err := row.Scan(&c.ID, &kind, &status, &c.Description, &ruleIDs, &pointerIDs, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: conflict", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite scan conflict: %w", err)
	}
	c.Type = rules.ConflictType(kind)
	c.Status = rules.ConflictStatus(status)
	c.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(ruleIDs), &c.RuleIDs); err != nil {
		return nil, fmt.Errorf("sqlite decode conflict rule ids: %w", err)
	}
	if err := json.Unmarshal([]byte(pointerIDs), &c.PointerIDs); err != nil {
		return nil, fmt.Errorf("sqlite decode conflict pointer ids: %w", err)
	}
	return &c, nil
}

// --- EdgeRepo ---

type sqlEdges struct{ s *SQLite }

func (v sqlEdges) Insert(ctx context.Context, e *rules.AmendmentEdge) error {
	_, err := v.s.db.ExecContext(ctx, `
		INSERT INTO amendment_edges (id, from_rule_id, to_rule_id, relation, valid_from, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.FromRuleID, e.ToRuleID, e.Relation, fmtTime(e.ValidFrom), fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite insert edge: %w", err)
	}
	return nil
}

func (v sqlEdges) From(ctx context.Context, ruleID string) ([]*rules.AmendmentEdge, error) {
	rows, err := v.s.db.QueryContext(ctx, `
		SELECT id, from_rule_id, to_rule_id, relation, valid_from, created_at
		FROM amendment_edges WHERE from_rule_id = ?`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query edges: %w", err)
	}
	defer rows.Close()
	var out []*rules.AmendmentEdge
	for rows.Next() {
		var e rules.AmendmentEdge
		var validFrom, created string
		if err := rows.Scan(&e.ID, &e.FromRuleID, &e.ToRuleID, &e.Relation, &validFrom, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan edge: %w", err)
		}
		e.ValidFrom = parseTime(validFrom)
		e.CreatedAt = parseTime(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}
