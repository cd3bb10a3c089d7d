package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const requestColumns = `id, customer_ref, question, context, status, supervisor_response, created_at, resolved_at, timeout_at, reminder_sent`

// Stats summarizes request counts by status plus the active knowledge count.
type Stats struct {
	Pending        int `json:"pending"`
	Resolved       int `json:"resolved"`
	Unresolved     int `json:"unresolved"`
	KnowledgeCount int `json:"knowledge_count"`
	TotalRequests  int `json:"total_requests"`
}

func (s *Store) CreateHelpRequest(r HelpRequest) error {
	status := r.Status
	if status == "" {
		status = StatusPending
	}
	_, err := s.db.Exec(`
		INSERT INTO help_requests (id, customer_ref, question, context, status, created_at, timeout_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CustomerRef, r.Question, r.Context, status,
		formatTime(r.CreatedAt), formatTime(r.TimeoutAt),
	)
	return err
}

func (s *Store) GetHelpRequest(id string) (HelpRequest, error) {
	row := s.db.QueryRow(`SELECT `+requestColumns+` FROM help_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return HelpRequest{}, ErrNotFound
	}
	return r, err
}

// ResolveHelpRequest transitions a PENDING request to RESOLVED, recording the
// supervisor's response. The update is conditional on the current status, so
// exactly one of a concurrent resolve/expire pair succeeds; the loser gets
// ErrInvalidTransition.
func (s *Store) ResolveHelpRequest(id, response string, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning resolve transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM help_requests WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != StatusPending {
		return ErrInvalidTransition
	}

	res, err := tx.Exec(`
		UPDATE help_requests SET status = ?, supervisor_response = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		StatusResolved, response, formatTime(now), id, StatusPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrInvalidTransition
	}

	return tx.Commit()
}

// ExpireHelpRequest transitions a PENDING request whose deadline has passed to
// UNRESOLVED. Returns ErrNotDue when called before timeout_at, and
// ErrInvalidTransition when the request already reached a terminal state.
func (s *Store) ExpireHelpRequest(id string, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning expire transaction: %w", err)
	}
	defer tx.Rollback()

	var status, timeoutAtStr string
	err = tx.QueryRow(`SELECT status, timeout_at FROM help_requests WHERE id = ?`, id).Scan(&status, &timeoutAtStr)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != StatusPending {
		return ErrInvalidTransition
	}
	timeoutAt, err := parseTime(timeoutAtStr)
	if err != nil {
		return fmt.Errorf("parsing timeout_at: %w", err)
	}
	if now.Before(timeoutAt) {
		return ErrNotDue
	}

	res, err := tx.Exec(`
		UPDATE help_requests SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ? AND timeout_at <= ?`,
		StatusUnresolved, formatTime(now), id, StatusPending, formatTime(now),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrInvalidTransition
	}

	return tx.Commit()
}

// ClaimReminder marks a pending request's one-shot reminder as sent. Returns
// true only for the caller that flipped the flag, so concurrent sweeps never
// double-remind.
func (s *Store) ClaimReminder(id string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE help_requests SET reminder_sent = 1
		WHERE id = ? AND status = ? AND reminder_sent = 0`,
		id, StatusPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ListPendingRequests() ([]HelpRequest, error) {
	return s.queryRequests(`
		SELECT `+requestColumns+` FROM help_requests
		WHERE status = ? ORDER BY created_at DESC`, StatusPending)
}

func (s *Store) ListResolvedRequests(limit int) ([]HelpRequest, error) {
	return s.queryRequests(`
		SELECT `+requestColumns+` FROM help_requests
		WHERE status = ? ORDER BY resolved_at DESC LIMIT ?`, StatusResolved, normalizeLimit(limit))
}

func (s *Store) ListRequests(limit int) ([]HelpRequest, error) {
	return s.queryRequests(`
		SELECT `+requestColumns+` FROM help_requests
		ORDER BY created_at DESC LIMIT ?`, normalizeLimit(limit))
}

// ListDueRequests returns pending requests whose timeout deadline has passed.
func (s *Store) ListDueRequests(now time.Time) ([]HelpRequest, error) {
	return s.queryRequests(`
		SELECT `+requestColumns+` FROM help_requests
		WHERE status = ? AND timeout_at <= ?
		ORDER BY timeout_at ASC`, StatusPending, formatTime(now))
}

// ListReminderDue returns pending requests that have not been reminded yet
// and whose deadline falls at or before cutoff.
func (s *Store) ListReminderDue(cutoff time.Time) ([]HelpRequest, error) {
	return s.queryRequests(`
		SELECT `+requestColumns+` FROM help_requests
		WHERE status = ? AND reminder_sent = 0 AND timeout_at <= ?
		ORDER BY timeout_at ASC`, StatusPending, formatTime(cutoff))
}

func (s *Store) RequestStats() (Stats, error) {
	var st Stats
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM help_requests GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case StatusPending:
			st.Pending = count
		case StatusResolved:
			st.Resolved = count
		case StatusUnresolved:
			st.Unresolved = count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	st.TotalRequests = st.Pending + st.Resolved + st.Unresolved

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM knowledge_entries WHERE is_active = 1`).Scan(&st.KnowledgeCount); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *Store) queryRequests(query string, args ...any) ([]HelpRequest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []HelpRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (HelpRequest, error) {
	var r HelpRequest
	var createdAt, timeoutAt string
	var resolvedAt sql.NullString
	var reminderSent int
	err := row.Scan(&r.ID, &r.CustomerRef, &r.Question, &r.Context, &r.Status,
		&r.SupervisorResponse, &createdAt, &resolvedAt, &timeoutAt, &reminderSent)
	if err != nil {
		return HelpRequest{}, err
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return HelpRequest{}, fmt.Errorf("parsing created_at for request %s: %w", r.ID, err)
	}
	if r.TimeoutAt, err = parseTime(timeoutAt); err != nil {
		return HelpRequest{}, fmt.Errorf("parsing timeout_at for request %s: %w", r.ID, err)
	}
	if resolvedAt.Valid {
		if r.ResolvedAt, err = parseTime(resolvedAt.String); err != nil {
			return HelpRequest{}, fmt.Errorf("parsing resolved_at for request %s: %w", r.ID, err)
		}
	}
	r.ReminderSent = reminderSent == 1
	return r, nil
}
