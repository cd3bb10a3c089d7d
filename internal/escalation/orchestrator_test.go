package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/frontdesk/internal/knowledge"
	"github.com/kalambet/frontdesk/internal/storage"
)

type mockNotifier struct {
	escalations chan storage.HelpRequest
	reminders   chan storage.HelpRequest
	timeouts    chan storage.HelpRequest
	followUps   chan string
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		escalations: make(chan storage.HelpRequest, 16),
		reminders:   make(chan storage.HelpRequest, 16),
		timeouts:    make(chan storage.HelpRequest, 16),
		followUps:   make(chan string, 16),
	}
}

func (m *mockNotifier) NotifyNewEscalation(req storage.HelpRequest) { m.escalations <- req }
func (m *mockNotifier) NotifyReminder(req storage.HelpRequest, _ time.Duration) {
	m.reminders <- req
}
func (m *mockNotifier) NotifyTimeout(req storage.HelpRequest)          { m.timeouts <- req }
func (m *mockNotifier) NotifyCustomer(_ storage.HelpRequest, a string) { m.followUps <- a }

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func newTestOrchestrator(t *testing.T, timeout time.Duration) (*Orchestrator, *storage.Store, *mockNotifier) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	kb := knowledge.NewBase(store, nil, nil)
	notifier := newMockNotifier()
	return NewOrchestrator(store, kb, notifier, timeout, nil), store, notifier
}

func TestHandleQuestionAnsweredFromKnowledge(t *testing.T) {
	orch, _, notifier := newTestOrchestrator(t, time.Hour)

	if _, err := orch.kb.Upsert("What are your hours?", "9am to 7pm", "", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	answer, err := orch.HandleQuestion("+15551234567", "What are your hours today?", "")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	if answer.Escalated {
		t.Error("expected direct answer, got escalation")
	}
	if answer.Text != "9am to 7pm" {
		t.Errorf("answer = %q", answer.Text)
	}

	select {
	case <-notifier.escalations:
		t.Error("unexpected escalation notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleQuestionEscalates(t *testing.T) {
	orch, store, notifier := newTestOrchestrator(t, time.Hour)

	answer, err := orch.HandleQuestion("+15551234567", "Do you do keratin treatments?", "first visit")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	if !answer.Escalated {
		t.Fatal("expected escalation")
	}
	if answer.Text != escalationMessage {
		t.Errorf("text = %q", answer.Text)
	}

	req, err := store.GetHelpRequest(answer.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != storage.StatusPending {
		t.Errorf("status = %s, want PENDING", req.Status)
	}
	if got := req.TimeoutAt.Sub(req.CreatedAt); got != time.Hour {
		t.Errorf("timeout window = %v, want 1h", got)
	}

	notified := waitFor(t, notifier.escalations, "escalation notification")
	if notified.ID != answer.RequestID {
		t.Errorf("notified request = %s, want %s", notified.ID, answer.RequestID)
	}
}

func TestResolveTeachesKnowledgeAndNotifiesCustomer(t *testing.T) {
	orch, store, notifier := newTestOrchestrator(t, time.Hour)

	answer, err := orch.HandleQuestion("+15551234567", "Do you do keratin treatments?", "")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	waitFor(t, notifier.escalations, "escalation notification")

	if err := orch.Resolve(answer.RequestID, "Yes, from $150"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	req, err := store.GetHelpRequest(answer.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != storage.StatusResolved {
		t.Errorf("status = %s, want RESOLVED", req.Status)
	}
	if req.SupervisorResponse != "Yes, from $150" {
		t.Errorf("supervisor response = %q", req.SupervisorResponse)
	}

	if got := waitFor(t, notifier.followUps, "customer follow-up"); got != "Yes, from $150" {
		t.Errorf("follow-up = %q", got)
	}

	// Same question again is now answered directly.
	again, err := orch.HandleQuestion("+15559999999", "Do you do keratin treatments?", "")
	if err != nil {
		t.Fatalf("second handle question: %v", err)
	}
	if again.Escalated {
		t.Error("expected direct answer after resolve")
	}
	if again.Text != "Yes, from $150" {
		t.Errorf("answer = %q", again.Text)
	}
}

func TestResolveUnknownRequest(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, time.Hour)

	if err := orch.Resolve("no-such-id", "answer"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveTerminalRequest(t *testing.T) {
	orch, _, notifier := newTestOrchestrator(t, time.Hour)

	answer, err := orch.HandleQuestion("+15551234567", "Do you do keratin treatments?", "")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	waitFor(t, notifier.escalations, "escalation notification")

	if err := orch.Resolve(answer.RequestID, "first answer"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	waitFor(t, notifier.followUps, "customer follow-up")

	if err := orch.Resolve(answer.RequestID, "second answer"); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("second resolve err = %v, want ErrInvalidTransition", err)
	}
}

func TestSweepTimeoutsExpiresOverdue(t *testing.T) {
	orch, store, notifier := newTestOrchestrator(t, time.Minute)

	answer, err := orch.HandleQuestion("+15551234567", "Do you do keratin treatments?", "")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	waitFor(t, notifier.escalations, "escalation notification")

	// Before the deadline nothing happens.
	n, err := orch.SweepTimeouts(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("early sweep expired %d requests, want 0", n)
	}

	n, err = orch.SweepTimeouts(context.Background(), time.Now().UTC().Add(2*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d requests, want 1", n)
	}

	req, err := store.GetHelpRequest(answer.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != storage.StatusUnresolved {
		t.Errorf("status = %s, want UNRESOLVED", req.Status)
	}
	if req.SupervisorResponse != "" {
		t.Errorf("supervisor response = %q, want empty", req.SupervisorResponse)
	}

	timedOut := waitFor(t, notifier.timeouts, "timeout notification")
	if timedOut.ID != answer.RequestID {
		t.Errorf("notified request = %s, want %s", timedOut.ID, answer.RequestID)
	}

	// A request that already expired is not swept again.
	n, err = orch.SweepTimeouts(context.Background(), time.Now().UTC().Add(3*time.Minute))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep expired %d requests, want 0", n)
	}
}

func TestSendRemindersOncePerRequest(t *testing.T) {
	orch, _, notifier := newTestOrchestrator(t, 10*time.Minute)

	answer, err := orch.HandleQuestion("+15551234567", "Do you do keratin treatments?", "")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	waitFor(t, notifier.escalations, "escalation notification")

	// Too early: deadline is not within the lead window yet.
	n, err := orch.SendReminders(time.Now().UTC(), 5*time.Minute)
	if err != nil {
		t.Fatalf("early reminders: %v", err)
	}
	if n != 0 {
		t.Errorf("early pass sent %d reminders, want 0", n)
	}

	within := time.Now().UTC().Add(6 * time.Minute)
	n, err = orch.SendReminders(within, 5*time.Minute)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if n != 1 {
		t.Errorf("sent %d reminders, want 1", n)
	}
	reminded := waitFor(t, notifier.reminders, "reminder notification")
	if reminded.ID != answer.RequestID {
		t.Errorf("reminded request = %s, want %s", reminded.ID, answer.RequestID)
	}

	// The flag is claimed: a second pass sends nothing.
	n, err = orch.SendReminders(within, 5*time.Minute)
	if err != nil {
		t.Fatalf("second reminders: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass sent %d reminders, want 0", n)
	}
}

func TestSweeperRunOnce(t *testing.T) {
	orch, store, notifier := newTestOrchestrator(t, time.Minute)
	sweeper := NewSweeper(orch, 0, 5*time.Minute)

	answer, err := orch.HandleQuestion("+15551234567", "Do you do keratin treatments?", "")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	waitFor(t, notifier.escalations, "escalation notification")

	if err := sweeper.RunOnce(context.Background(), time.Now().UTC().Add(2*time.Minute)); err != nil {
		t.Fatalf("run once: %v", err)
	}

	req, err := store.GetHelpRequest(answer.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != storage.StatusUnresolved {
		t.Errorf("status = %s, want UNRESOLVED", req.Status)
	}
	// The reminder pass ran first; the deadline was already inside the
	// lead window, so the reminder and the timeout both fired.
	waitFor(t, notifier.reminders, "reminder notification")
	waitFor(t, notifier.timeouts, "timeout notification")
}
