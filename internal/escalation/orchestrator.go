package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/frontdesk/internal/knowledge"
	"github.com/kalambet/frontdesk/internal/storage"
)

// escalationMessage is what the customer hears when their question has to
// go to a human.
const escalationMessage = "Let me check with my supervisor and get back to you."

// expireConcurrency bounds how many overdue requests a single sweep expires
// in parallel.
const expireConcurrency = 4

// Orchestrator is the decision point between answering from the knowledge
// base and escalating to a human supervisor. All request state transitions
// go through here; notifications are fired on separate goroutines so a slow
// or failing channel never delays a transition.
type Orchestrator struct {
	store    *storage.Store
	kb       *knowledge.Base
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
}

// Answer is the outcome of handling a customer question.
type Answer struct {
	Text      string `json:"text"`
	Escalated bool   `json:"escalated"`
	RequestID string `json:"request_id,omitempty"`
}

// NewOrchestrator wires the orchestrator. If timeout <= 0 it defaults to
// 30 minutes.
func NewOrchestrator(store *storage.Store, kb *knowledge.Base, notifier Notifier, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		kb:       kb,
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
	}
}

// HandleQuestion answers a customer question from the knowledge base, or
// escalates it: a PENDING help request is created with a fixed timeout
// deadline, the supervisor is notified, and the customer gets a holding
// message.
func (o *Orchestrator) HandleQuestion(customerRef, question, context string) (Answer, error) {
	entry, err := o.kb.Lookup(question)
	if err == nil {
		o.logger.Info("answered from knowledge base",
			"customer", customerRef, "entry_id", entry.ID)
		return Answer{Text: entry.Answer}, nil
	}
	if !errors.Is(err, knowledge.ErrNoAnswer) {
		return Answer{}, err
	}

	now := time.Now().UTC()
	req := storage.HelpRequest{
		ID:          uuid.NewString(),
		CustomerRef: customerRef,
		Question:    question,
		Context:     context,
		Status:      storage.StatusPending,
		CreatedAt:   now,
		TimeoutAt:   now.Add(o.timeout),
	}
	if err := o.store.CreateHelpRequest(req); err != nil {
		return Answer{}, fmt.Errorf("creating help request: %w", err)
	}

	o.logger.Info("question escalated",
		"request_id", req.ID, "customer", customerRef, "question", question)
	go o.notifier.NotifyNewEscalation(req)

	return Answer{Text: escalationMessage, Escalated: true, RequestID: req.ID}, nil
}

// Resolve records the supervisor's answer on a pending request, teaches the
// knowledge base so the question is answered directly next time, and relays
// the answer to the waiting customer. Returns storage.ErrNotFound for an
// unknown request and storage.ErrInvalidTransition when the request already
// reached a terminal state (including losing the race against a timeout).
//
// The state transition commits before the knowledge update: a knowledge
// failure leaves the request RESOLVED and is reported to the caller.
func (o *Orchestrator) Resolve(id, response string) error {
	now := time.Now().UTC()
	if err := o.store.ResolveHelpRequest(id, response, now); err != nil {
		return err
	}

	req, err := o.store.GetHelpRequest(id)
	if err != nil {
		return fmt.Errorf("reloading resolved request %s: %w", id, err)
	}

	context := fmt.Sprintf("Learned from supervisor response to request %s", id)
	if _, err := o.kb.Upsert(req.Question, response, context, id); err != nil {
		return fmt.Errorf("request %s resolved but knowledge update failed: %w", id, err)
	}

	o.logger.Info("request resolved", "request_id", id)
	go o.notifier.NotifyCustomer(req, response)
	return nil
}

// SweepTimeouts expires every pending request whose deadline has passed as
// of now, notifying the supervisor for each. Requests resolved between the
// listing and the expiry lose the race cleanly and are skipped. Returns the
// number of requests expired.
func (o *Orchestrator) SweepTimeouts(ctx context.Context, now time.Time) (int, error) {
	due, err := o.store.ListDueRequests(now)
	if err != nil {
		return 0, fmt.Errorf("listing due requests: %w", err)
	}

	var expired atomic.Int64
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(expireConcurrency)
	for _, req := range due {
		g.Go(func() error {
			err := o.store.ExpireHelpRequest(req.ID, now)
			if errors.Is(err, storage.ErrInvalidTransition) || errors.Is(err, storage.ErrNotDue) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("expiring request %s: %w", req.ID, err)
			}
			expired.Add(1)
			o.logger.Info("request timed out", "request_id", req.ID, "question", req.Question)
			o.notifier.NotifyTimeout(req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(expired.Load()), err
	}
	return int(expired.Load()), nil
}

// SendReminders nudges the supervisor once per pending request whose
// deadline falls within lead of now. The reminder flag is claimed
// atomically, so a request is never reminded twice even with overlapping
// sweeps. Returns the number of reminders sent.
func (o *Orchestrator) SendReminders(now time.Time, lead time.Duration) (int, error) {
	due, err := o.store.ListReminderDue(now.Add(lead))
	if err != nil {
		return 0, fmt.Errorf("listing reminder-due requests: %w", err)
	}

	sent := 0
	for _, req := range due {
		claimed, err := o.store.ClaimReminder(req.ID)
		if err != nil {
			return sent, fmt.Errorf("claiming reminder for request %s: %w", req.ID, err)
		}
		if !claimed {
			continue
		}
		remaining := req.TimeoutAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		o.logger.Info("reminder sent", "request_id", req.ID, "minutes_remaining", int(remaining.Minutes()))
		o.notifier.NotifyReminder(req, remaining)
		sent++
	}
	return sent, nil
}
