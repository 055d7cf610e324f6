package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

type fakeSink struct {
	audit    []*model.AuditLog
	security []*model.SecurityLog
	err      error
}

func (f *fakeSink) SaveAuditLog(_ context.Context, entry *model.AuditLog) error {
	f.audit = append(f.audit, entry)
	return f.err
}

func (f *fakeSink) SaveSecurityLog(_ context.Context, entry *model.SecurityLog) error {
	f.security = append(f.security, entry)
	return f.err
}

func TestRecorderPersistsAuditLog(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(NewLogger(io.Discard), logging.Discard(), nil)

	rec.Record(context.Background(), sink, QuotaEvent{TenantID: 3, Category: "files", Action: QuotaAlert, Level: "warning", Percentage: 81})

	if len(sink.audit) != 1 || len(sink.security) != 0 {
		t.Fatalf("expected one audit entry, got %d audit / %d security", len(sink.audit), len(sink.security))
	}
	entry := sink.audit[0]
	if entry.Action != "quota" || entry.EntityType != "storage_usage" || entry.EntityID != "files" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestRecorderPersistsSecurityLog(t *testing.T) {
	sink := &fakeSink{}
	rec := NewRecorder(nil, logging.Discard(), nil)

	rec.Record(context.Background(), sink, RateLimitExceededEvent{TenantID: 3, Endpoint: "/login", ClientID: "1.2.3.4", Limit: 5, Count: 5})

	if len(sink.security) != 1 {
		t.Fatalf("expected one security entry, got %d", len(sink.security))
	}
	if got := sink.security[0]; got.EventType != "rate_limit_exceeded" || got.Severity != "warning" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestRecorderSwallowsErrors(t *testing.T) {
	sink := &fakeSink{err: errors.New("db gone")}
	rec := NewRecorder(nil, logging.Discard(), nil)
	rec.Record(context.Background(), sink, TenantMigratedEvent{TenantID: 1, Success: true})

	var nilRecorder *Recorder
	nilRecorder.Record(context.Background(), sink, TenantMigratedEvent{TenantID: 1})
	if len(sink.audit) != 1 {
		t.Errorf("expected one save attempt, got %d", len(sink.audit))
	}
}

func TestRecorderPersistSkipsSyslog(t *testing.T) {
	var syslog bytes.Buffer
	sink := &fakeSink{}
	rec := NewRecorder(NewLogger(&syslog), logging.Discard(), nil)

	rec.Persist(context.Background(), sink, RateLimitExceededEvent{TenantID: 3, Endpoint: "/login", ClientID: "1.2.3.4", Limit: 5, Count: 5})
	rec.Persist(context.Background(), nil, RateLimitExceededEvent{TenantID: 3})

	if len(sink.security) != 1 {
		t.Fatalf("expected one security entry, got %d", len(sink.security))
	}
	if syslog.Len() != 0 {
		t.Errorf("expected no syslog output, got %q", syslog.String())
	}
}
