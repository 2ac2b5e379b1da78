package audit

import (
	"time"

	"github.com/ecovend/backend/internal/models"
	"github.com/rs/zerolog"
)

type AuditEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	ActivityID string    `json:"activity_id,omitempty"`
	Identity   string    `json:"identity"`
	Amount     int64     `json:"amount"`
	Balance    int64     `json:"balance"`
	Status     string    `json:"status"`
	Details    any       `json:"details,omitempty"`
}

// AuditLogger writes one structured event per ledger or account mutation.
type AuditLogger struct {
	log zerolog.Logger
}

func NewAuditLogger(log zerolog.Logger) *AuditLogger {
	return &AuditLogger{log: log.With().Str("component", "audit").Logger()}
}

// LogActivity records an applied ledger activity.
func (a *AuditLogger) LogActivity(identity string, activity models.Activity, balance int64) {
	details := map[string]string{"title": activity.Title}
	if cash, ok := activity.CashEquivalent(); ok {
		details["cash_equivalent"] = cash.StringFixed(2)
	}
	a.write(AuditEvent{
		Timestamp:  time.UnixMilli(activity.CreatedAt).UTC(),
		EventType:  string(activity.Kind()),
		ActivityID: activity.ID,
		Identity:   identity,
		Amount:     activity.CoinDelta,
		Balance:    balance,
		Status:     "SUCCESS",
		Details:    details,
	})
}

// LogRejected records a ledger command refused by its guard.
func (a *AuditLogger) LogRejected(identity string, kind models.ActivityKind, amount, balance int64, err error) {
	a.write(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: string(kind),
		Identity:  identity,
		Amount:    amount,
		Balance:   balance,
		Status:    "REJECTED",
		Details:   map[string]string{"error": err.Error()},
	})
}

// LogOperation records a non-ledger account event such as signup or login.
func (a *AuditLogger) LogOperation(identity, operation, details string) {
	a.write(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: operation,
		Identity:  identity,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *AuditLogger) write(event AuditEvent) {
	level := zerolog.InfoLevel
	if event.Status != "SUCCESS" {
		level = zerolog.WarnLevel
	}
	a.log.WithLevel(level).Interface("audit", event).Msg("AUDIT")
}
