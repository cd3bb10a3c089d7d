package escalation

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kalambet/frontdesk/internal/storage"
)

// Notifier delivers human-facing notifications. Delivery is best effort:
// implementations must not block the caller, and a failed notification never
// affects request state.
type Notifier interface {
	// NotifyNewEscalation tells the supervisor a question needs an answer.
	NotifyNewEscalation(req storage.HelpRequest)
	// NotifyReminder nudges the supervisor about a request nearing timeout.
	NotifyReminder(req storage.HelpRequest, remaining time.Duration)
	// NotifyTimeout tells the supervisor a request expired unanswered.
	NotifyTimeout(req storage.HelpRequest)
	// NotifyCustomer delivers a follow-up answer to the customer.
	NotifyCustomer(req storage.HelpRequest, answer string)
}

// LogNotifier writes notifications to the structured log. It stands in for
// a real SMS or chat integration and keeps a running count so operators can
// see delivery volume in stats output.
type LogNotifier struct {
	logger *slog.Logger
	sent   atomic.Int64
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Sent returns the number of notifications emitted since startup.
func (n *LogNotifier) Sent() int64 {
	return n.sent.Load()
}

func (n *LogNotifier) NotifyNewEscalation(req storage.HelpRequest) {
	n.sent.Add(1)
	n.logger.Info("supervisor notification: new escalation",
		"request_id", req.ID,
		"customer", req.CustomerRef,
		"question", req.Question,
		"respond_by", req.TimeoutAt.Format(time.RFC3339),
	)
}

func (n *LogNotifier) NotifyReminder(req storage.HelpRequest, remaining time.Duration) {
	n.sent.Add(1)
	n.logger.Info("supervisor notification: reminder",
		"request_id", req.ID,
		"question", req.Question,
		"minutes_remaining", int(remaining.Minutes()),
	)
}

func (n *LogNotifier) NotifyTimeout(req storage.HelpRequest) {
	n.sent.Add(1)
	n.logger.Info("supervisor notification: request timed out",
		"request_id", req.ID,
		"customer", req.CustomerRef,
		"question", req.Question,
	)
}

func (n *LogNotifier) NotifyCustomer(req storage.HelpRequest, answer string) {
	n.sent.Add(1)
	n.logger.Info("customer follow-up",
		"request_id", req.ID,
		"customer", req.CustomerRef,
		"answer", answer,
	)
}
