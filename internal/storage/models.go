package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when resolve or expire is attempted on a
// request that is no longer PENDING. This is the expected outcome of a race
// between a late supervisor answer and a timeout, not a system failure.
var ErrInvalidTransition = errors.New("invalid transition: request is not pending")

// ErrNotDue is returned when expire is attempted before the request's
// timeout deadline has passed.
var ErrNotDue = errors.New("request timeout not due")

// Help request status values. A request starts PENDING and transitions
// exactly once, to RESOLVED or UNRESOLVED.
const (
	StatusPending    = "PENDING"
	StatusResolved   = "RESOLVED"
	StatusUnresolved = "UNRESOLVED"
)

type HelpRequest struct {
	ID                 string
	CustomerRef        string
	Question           string
	Context            string
	Status             string // "PENDING", "RESOLVED", "UNRESOLVED"
	SupervisorResponse string // set only once RESOLVED
	CreatedAt          time.Time
	ResolvedAt         time.Time // zero until the request reaches a terminal state
	TimeoutAt          time.Time // CreatedAt + request timeout, fixed at creation
	ReminderSent       bool
}

type KnowledgeEntry struct {
	ID              string
	Question        string
	Answer          string
	Context         string
	SourceRequestID string // weak reference to the originating help request, may dangle
	IsActive        bool
	CreatedAt       time.Time
}
