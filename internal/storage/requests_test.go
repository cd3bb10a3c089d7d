package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestRequest(id string, createdAt time.Time, timeout time.Duration) HelpRequest {
	return HelpRequest{
		ID:          id,
		CustomerRef: "555-123-4567",
		Question:    "Do you offer pet grooming services?",
		Context:     "voice call",
		CreatedAt:   createdAt,
		TimeoutAt:   createdAt.Add(timeout),
	}
}

func TestCreateAndGetHelpRequest(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	want := newTestRequest("req-001", now, 30*time.Minute)
	if err := s.CreateHelpRequest(want); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}

	got, err := s.GetHelpRequest("req-001")
	if err != nil {
		t.Fatalf("GetHelpRequest: %v", err)
	}

	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
	if got.CustomerRef != want.CustomerRef {
		t.Errorf("CustomerRef = %q, want %q", got.CustomerRef, want.CustomerRef)
	}
	if got.Question != want.Question {
		t.Errorf("Question = %q, want %q", got.Question, want.Question)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if !got.TimeoutAt.Equal(want.TimeoutAt) {
		t.Errorf("TimeoutAt = %v, want %v", got.TimeoutAt, want.TimeoutAt)
	}
	if !got.ResolvedAt.IsZero() {
		t.Errorf("ResolvedAt = %v, want zero for pending request", got.ResolvedAt)
	}
	if got.ReminderSent {
		t.Error("ReminderSent = true, want false on creation")
	}
}

func TestGetHelpRequestNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetHelpRequest("does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestResolveHelpRequest(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateHelpRequest(newTestRequest("req-r1", now, 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}

	resolvedAt := now.Add(5 * time.Minute)
	if err := s.ResolveHelpRequest("req-r1", "No, we don't offer grooming", resolvedAt); err != nil {
		t.Fatalf("ResolveHelpRequest: %v", err)
	}

	got, err := s.GetHelpRequest("req-r1")
	if err != nil {
		t.Fatalf("GetHelpRequest: %v", err)
	}
	if got.Status != StatusResolved {
		t.Errorf("Status = %q, want %q", got.Status, StatusResolved)
	}
	if got.SupervisorResponse != "No, we don't offer grooming" {
		t.Errorf("SupervisorResponse = %q", got.SupervisorResponse)
	}
	if !got.ResolvedAt.Equal(resolvedAt) {
		t.Errorf("ResolvedAt = %v, want %v", got.ResolvedAt, resolvedAt)
	}
	if !got.TimeoutAt.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("TimeoutAt changed on resolve: %v", got.TimeoutAt)
	}
}

func TestResolveHelpRequest_NotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.ResolveHelpRequest("missing", "answer", time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestResolveHelpRequest_AlreadyTerminal verifies a second transition attempt
// returns ErrInvalidTransition and leaves all fields unchanged.
func TestResolveHelpRequest_AlreadyTerminal(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateHelpRequest(newTestRequest("req-r2", now, 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}
	if err := s.ResolveHelpRequest("req-r2", "first answer", now.Add(time.Minute)); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	err := s.ResolveHelpRequest("req-r2", "second answer", now.Add(2*time.Minute))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}

	got, err := s.GetHelpRequest("req-r2")
	if err != nil {
		t.Fatalf("GetHelpRequest: %v", err)
	}
	if got.SupervisorResponse != "first answer" {
		t.Errorf("SupervisorResponse overwritten: %q", got.SupervisorResponse)
	}
	if !got.ResolvedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("ResolvedAt changed: %v", got.ResolvedAt)
	}
}

func TestExpireHelpRequest_BeforeDeadline(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateHelpRequest(newTestRequest("req-e1", now, 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}

	err := s.ExpireHelpRequest("req-e1", now.Add(29*time.Minute))
	if !errors.Is(err, ErrNotDue) {
		t.Fatalf("error = %v, want ErrNotDue", err)
	}

	got, err := s.GetHelpRequest("req-e1")
	if err != nil {
		t.Fatalf("GetHelpRequest: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want still %q", got.Status, StatusPending)
	}
}

func TestExpireHelpRequest_AtDeadline(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateHelpRequest(newTestRequest("req-e2", now, 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}

	deadline := now.Add(30 * time.Minute)
	if err := s.ExpireHelpRequest("req-e2", deadline); err != nil {
		t.Fatalf("ExpireHelpRequest at deadline: %v", err)
	}

	got, err := s.GetHelpRequest("req-e2")
	if err != nil {
		t.Fatalf("GetHelpRequest: %v", err)
	}
	if got.Status != StatusUnresolved {
		t.Errorf("Status = %q, want %q", got.Status, StatusUnresolved)
	}
	if !got.ResolvedAt.Equal(deadline) {
		t.Errorf("ResolvedAt = %v, want %v", got.ResolvedAt, deadline)
	}
}

func TestExpireHelpRequest_AfterResolve(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateHelpRequest(newTestRequest("req-e3", now, time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}
	if err := s.ResolveHelpRequest("req-e3", "answered in time", now.Add(30*time.Second)); err != nil {
		t.Fatalf("ResolveHelpRequest: %v", err)
	}

	err := s.ExpireHelpRequest("req-e3", now.Add(2*time.Minute))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

// TestResolveExpireRace drives resolve and expire concurrently for the same
// request and verifies exactly one wins and the loser sees ErrInvalidTransition.
func TestResolveExpireRace(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	after := now.Add(time.Minute)

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("req-race-%02d", i)
		// Deadline already passed, so both transitions are eligible.
		if err := s.CreateHelpRequest(newTestRequest(id, now.Add(-time.Hour), time.Minute)); err != nil {
			t.Fatalf("CreateHelpRequest: %v", err)
		}

		var wg sync.WaitGroup
		var resolveErr, expireErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			resolveErr = s.ResolveHelpRequest(id, "late answer", after)
		}()
		go func() {
			defer wg.Done()
			expireErr = s.ExpireHelpRequest(id, after)
		}()
		wg.Wait()

		wins := 0
		for _, err := range []error{resolveErr, expireErr} {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidTransition):
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("request %s: %d winners (resolve=%v expire=%v), want exactly 1", id, wins, resolveErr, expireErr)
		}

		got, err := s.GetHelpRequest(id)
		if err != nil {
			t.Fatalf("GetHelpRequest: %v", err)
		}
		if got.Status == StatusPending {
			t.Fatalf("request %s still pending after race", id)
		}
		if got.Status == StatusUnresolved && got.SupervisorResponse != "" {
			t.Fatalf("request %s: unresolved but has supervisor response %q", id, got.SupervisorResponse)
		}
		if got.ResolvedAt.IsZero() {
			t.Fatalf("request %s: terminal but resolved_at unset", id)
		}
	}
}

func TestClaimReminder_OnlyOnce(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateHelpRequest(newTestRequest("req-rem", now, 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}

	first, err := s.ClaimReminder("req-rem")
	if err != nil {
		t.Fatalf("ClaimReminder: %v", err)
	}
	if !first {
		t.Fatal("first ClaimReminder returned false, want true")
	}

	second, err := s.ClaimReminder("req-rem")
	if err != nil {
		t.Fatalf("second ClaimReminder: %v", err)
	}
	if second {
		t.Error("second ClaimReminder returned true, want false")
	}
}

func TestClaimReminder_TerminalRequest(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateHelpRequest(newTestRequest("req-rem-t", now, 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}
	if err := s.ResolveHelpRequest("req-rem-t", "done", now); err != nil {
		t.Fatalf("ResolveHelpRequest: %v", err)
	}

	claimed, err := s.ClaimReminder("req-rem-t")
	if err != nil {
		t.Fatalf("ClaimReminder: %v", err)
	}
	if claimed {
		t.Error("claimed reminder for a resolved request")
	}
}

func TestListDueRequests(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	// One overdue, one not yet due, one overdue but already resolved.
	if err := s.CreateHelpRequest(newTestRequest("req-due", now.Add(-time.Hour), 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}
	if err := s.CreateHelpRequest(newTestRequest("req-fresh", now, 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}
	if err := s.CreateHelpRequest(newTestRequest("req-done", now.Add(-time.Hour), 30*time.Minute)); err != nil {
		t.Fatalf("CreateHelpRequest: %v", err)
	}
	if err := s.ResolveHelpRequest("req-done", "handled", now); err != nil {
		t.Fatalf("ResolveHelpRequest: %v", err)
	}

	due, err := s.ListDueRequests(now)
	if err != nil {
		t.Fatalf("ListDueRequests: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due requests, want 1", len(due))
	}
	if due[0].ID != "req-due" {
		t.Errorf("due request = %q, want %q", due[0].ID, "req-due")
	}
}

func TestListPendingAndResolved(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		r := newTestRequest(fmt.Sprintf("req-%02d", i), base.Add(time.Duration(i)*time.Minute), 30*time.Minute)
		if err := s.CreateHelpRequest(r); err != nil {
			t.Fatalf("CreateHelpRequest %d: %v", i, err)
		}
	}
	if err := s.ResolveHelpRequest("req-01", "answer one", base.Add(time.Hour)); err != nil {
		t.Fatalf("ResolveHelpRequest: %v", err)
	}

	pending, err := s.ListPendingRequests()
	if err != nil {
		t.Fatalf("ListPendingRequests: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	// Newest first.
	if pending[0].ID != "req-03" {
		t.Errorf("first pending = %q, want %q", pending[0].ID, "req-03")
	}

	resolved, err := s.ListResolvedRequests(10)
	if err != nil {
		t.Fatalf("ListResolvedRequests: %v", err)
	}
	if len(resolved) != 1 || resolved[0].ID != "req-01" {
		t.Fatalf("resolved = %+v, want single req-01", resolved)
	}

	all, err := s.ListRequests(10)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d requests, want 4", len(all))
	}

	// Zero means unlimited, not LIMIT 0.
	unlimited, err := s.ListRequests(0)
	if err != nil {
		t.Fatalf("ListRequests(0): %v", err)
	}
	if len(unlimited) != 4 {
		t.Fatalf("got %d requests with no limit, want 4", len(unlimited))
	}
}

func TestRequestStats(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		if err := s.CreateHelpRequest(newTestRequest(fmt.Sprintf("req-s%d", i), now.Add(-time.Hour), time.Minute)); err != nil {
			t.Fatalf("CreateHelpRequest: %v", err)
		}
	}
	if err := s.ResolveHelpRequest("req-s0", "answer", now); err != nil {
		t.Fatalf("ResolveHelpRequest: %v", err)
	}
	if err := s.ExpireHelpRequest("req-s1", now); err != nil {
		t.Fatalf("ExpireHelpRequest: %v", err)
	}
	if err := s.InsertKnowledgeEntry(KnowledgeEntry{
		ID: "k-1", Question: "What are your hours?", Answer: "9-5", CreatedAt: now,
	}); err != nil {
		t.Fatalf("InsertKnowledgeEntry: %v", err)
	}

	st, err := s.RequestStats()
	if err != nil {
		t.Fatalf("RequestStats: %v", err)
	}
	if st.Pending != 1 || st.Resolved != 1 || st.Unresolved != 1 {
		t.Errorf("stats = %+v, want 1/1/1", st)
	}
	if st.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", st.TotalRequests)
	}
	if st.KnowledgeCount != 1 {
		t.Errorf("KnowledgeCount = %d, want 1", st.KnowledgeCount)
	}
}
