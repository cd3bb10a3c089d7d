package storage

import (
	"database/sql"
	"fmt"
)

const knowledgeColumns = `id, question, answer, context, source_request_id, is_active, created_at`

func (s *Store) InsertKnowledgeEntry(e KnowledgeEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO knowledge_entries (id, question, answer, context, source_request_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		e.ID, e.Question, e.Answer, e.Context, e.SourceRequestID, formatTime(e.CreatedAt),
	)
	return err
}

// GetKnowledgeEntry returns an entry by id regardless of active state, so
// deactivated entries stay retrievable for audit.
func (s *Store) GetKnowledgeEntry(id string) (KnowledgeEntry, error) {
	row := s.db.QueryRow(`SELECT `+knowledgeColumns+` FROM knowledge_entries WHERE id = ?`, id)
	e, err := scanKnowledge(row)
	if err == sql.ErrNoRows {
		return KnowledgeEntry{}, ErrNotFound
	}
	return e, err
}

// FindActiveEntryContaining returns the oldest active entry whose question
// contains the given question as a case-insensitive substring. This is the
// upsert target search: deliberately looser than the lookup overlap test so
// restatements of a learned question update in place instead of piling up.
func (s *Store) FindActiveEntryContaining(question string) (KnowledgeEntry, error) {
	row := s.db.QueryRow(`
		SELECT `+knowledgeColumns+` FROM knowledge_entries
		WHERE is_active = 1 AND instr(lower(question), lower(?)) > 0
		ORDER BY created_at ASC, id ASC LIMIT 1`, question)
	e, err := scanKnowledge(row)
	if err == sql.ErrNoRows {
		return KnowledgeEntry{}, ErrNotFound
	}
	return e, err
}

// UpdateKnowledgeAnswer overwrites answer, context, and source request of an
// existing entry in place. Identity and created_at are preserved.
func (s *Store) UpdateKnowledgeAnswer(id, answer, context, sourceRequestID string) error {
	res, err := s.db.Exec(`
		UPDATE knowledge_entries SET answer = ?, context = ?, source_request_id = ?
		WHERE id = ?`,
		answer, context, sourceRequestID, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveKnowledge returns active entries, newest first. A limit <= 0
// means no limit.
func (s *Store) ListActiveKnowledge(limit int) ([]KnowledgeEntry, error) {
	return s.queryKnowledge(`
		SELECT `+knowledgeColumns+` FROM knowledge_entries
		WHERE is_active = 1 ORDER BY created_at DESC LIMIT ?`, normalizeLimit(limit))
}

// SQLite treats LIMIT 0 as "zero rows" and only negative values as
// unbounded, so a caller's "no limit" zero is mapped to -1.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// ActiveKnowledgeByCreation returns all active entries in creation order.
// This is the canonical enumeration order for the lookup scan: callers take
// the first entry over threshold, not the best match.
func (s *Store) ActiveKnowledgeByCreation() ([]KnowledgeEntry, error) {
	return s.queryKnowledge(`
		SELECT ` + knowledgeColumns + ` FROM knowledge_entries
		WHERE is_active = 1 ORDER BY created_at ASC, id ASC`)
}

// DeactivateKnowledge soft-deletes an entry. Already-inactive or missing
// entries report ErrNotFound; the row is never physically removed.
func (s *Store) DeactivateKnowledge(id string) error {
	res, err := s.db.Exec(`UPDATE knowledge_entries SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryKnowledge(query string, args ...any) ([]KnowledgeEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func scanKnowledge(row rowScanner) (KnowledgeEntry, error) {
	var e KnowledgeEntry
	var createdAt string
	var isActive int
	err := row.Scan(&e.ID, &e.Question, &e.Answer, &e.Context, &e.SourceRequestID, &isActive, &createdAt)
	if err != nil {
		return KnowledgeEntry{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return KnowledgeEntry{}, fmt.Errorf("parsing created_at for entry %s: %w", e.ID, err)
	}
	e.IsActive = isActive == 1
	return e, nil
}
