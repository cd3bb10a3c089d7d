package knowledge

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/frontdesk/internal/storage"
)

// ErrNoAnswer is returned by Lookup when no stored entry matches the query.
var ErrNoAnswer = errors.New("knowledge: no matching entry")

// Base is the learned question/answer store. Lookups are lexical: the first
// active entry (oldest first) whose question overlaps the query above the
// matcher's threshold wins.
type Base struct {
	store   *storage.Store
	matcher Matcher
	logger  *slog.Logger
}

// SeedEntry is a question/answer pair installed at startup.
type SeedEntry struct {
	Question string
	Answer   string
	Context  string
}

func NewBase(store *storage.Store, matcher Matcher, logger *slog.Logger) *Base {
	if matcher == nil {
		matcher = NewLexicalMatcher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{store: store, matcher: matcher, logger: logger}
}

// Lookup returns the answer for the first active entry matching the query.
// Returns ErrNoAnswer when nothing clears the threshold.
func (b *Base) Lookup(query string) (storage.KnowledgeEntry, error) {
	entries, err := b.store.ActiveKnowledgeByCreation()
	if err != nil {
		return storage.KnowledgeEntry{}, fmt.Errorf("lookup knowledge: %w", err)
	}
	for _, e := range entries {
		if b.matcher.Match(query, e.Question) {
			return e, nil
		}
	}
	return storage.KnowledgeEntry{}, ErrNoAnswer
}

// Upsert stores an answer for a question. If an active entry's question
// contains the new question (case-insensitive substring), that entry's
// answer is replaced in place; otherwise a new entry is created. Returns
// the entry id.
func (b *Base) Upsert(question, answer, context, sourceRequestID string) (string, error) {
	existing, err := b.store.FindActiveEntryContaining(question)
	switch {
	case err == nil:
		if err := b.store.UpdateKnowledgeAnswer(existing.ID, answer, context, sourceRequestID); err != nil {
			return "", fmt.Errorf("update knowledge entry: %w", err)
		}
		b.logger.Info("knowledge entry updated", "id", existing.ID, "question", existing.Question)
		return existing.ID, nil
	case errors.Is(err, storage.ErrNotFound):
		entry := storage.KnowledgeEntry{
			ID:              uuid.NewString(),
			Question:        question,
			Answer:          answer,
			Context:         context,
			SourceRequestID: sourceRequestID,
			IsActive:        true,
			CreatedAt:       time.Now().UTC(),
		}
		if err := b.store.InsertKnowledgeEntry(entry); err != nil {
			return "", fmt.Errorf("insert knowledge entry: %w", err)
		}
		b.logger.Info("knowledge entry created", "id", entry.ID, "question", question)
		return entry.ID, nil
	default:
		return "", fmt.Errorf("find knowledge entry: %w", err)
	}
}

// Deactivate soft-deletes an entry. The row stays readable via Get for
// audit, but stops serving lookups. Returns storage.ErrNotFound when the
// entry does not exist or is already inactive.
func (b *Base) Deactivate(id string) error {
	if err := b.store.DeactivateKnowledge(id); err != nil {
		return err
	}
	b.logger.Info("knowledge entry deactivated", "id", id)
	return nil
}

// Get fetches an entry regardless of active state.
func (b *Base) Get(id string) (storage.KnowledgeEntry, error) {
	return b.store.GetKnowledgeEntry(id)
}

// ListActive returns active entries, newest first. limit <= 0 means no limit.
func (b *Base) ListActive(limit int) ([]storage.KnowledgeEntry, error) {
	return b.store.ListActiveKnowledge(limit)
}

// Seed installs the given entries through Upsert, so re-running on an
// already seeded store replaces nothing and creates no duplicates.
func (b *Base) Seed(entries []SeedEntry) error {
	for _, e := range entries {
		if _, err := b.Upsert(e.Question, e.Answer, e.Context, ""); err != nil {
			return fmt.Errorf("seed %q: %w", e.Question, err)
		}
	}
	return nil
}
