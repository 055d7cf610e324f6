package audit

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

// entityEvent names the row an audit log entry is about.
type entityEvent interface {
	Entity() (kind, id string)
}

// securityEvent marks events persisted to security_logs instead of
// audit_logs.
type securityEvent interface {
	SecurityEventType() string
}

// Recorder writes events to the syslog stream and persists them into the
// tenant database they concern. A nil *Recorder records nothing.
type Recorder struct {
	logger *Logger
	log    logrus.FieldLogger
	clock  clock.Clock
}

// NewRecorder creates a new Recorder. A nil logger skips the syslog
// stream.
func NewRecorder(logger *Logger, log logrus.FieldLogger, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{logger: logger, log: log, clock: clk}
}

// Record logs event and, when sink is not nil, appends it to the tenant's
// audit or security log. Persistence is best effort: a failure is logged
// and never returned.
func (r *Recorder) Record(ctx context.Context, sink store.AuditStore, event Event) {
	if r == nil {
		return
	}
	if r.logger != nil {
		r.logger.Log(event)
	}
	r.Persist(ctx, sink, event)
}

// Persist appends event to the tenant's audit or security log without
// writing it to the syslog stream. A nil sink is a no-op.
func (r *Recorder) Persist(ctx context.Context, sink store.AuditStore, event Event) {
	if r == nil || sink == nil {
		return
	}
	if err := r.save(ctx, sink, event); err != nil {
		r.log.WithError(err).WithField("msgid", event.MessageID()).Warn("audit: failed to save event")
	}
}

func (r *Recorder) save(ctx context.Context, sink store.AuditStore, event Event) error {
	sd := event.StructuredData()
	ip := sd[SDIDClient]["ip"]
	now := r.clock.Now().UTC()

	if sec, ok := event.(securityEvent); ok {
		return sink.SaveSecurityLog(ctx, &model.SecurityLog{
			EventType: sec.SecurityEventType(),
			Severity:  event.Severity().String(),
			IPAddress: ip,
			Details:   event.Message(),
			CreatedAt: now,
		})
	}

	entry := &model.AuditLog{
		Action:    event.MessageID(),
		Details:   event.Message(),
		IPAddress: ip,
		CreatedAt: now,
	}
	if e, ok := event.(entityEvent); ok {
		entry.EntityType, entry.EntityID = e.Entity()
	}
	return sink.SaveAuditLog(ctx, entry)
}
