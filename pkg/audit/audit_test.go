package audit

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	logger.SetClock(clk)

	logger.Log(TenantProvisionedEvent{
		TenantID: 42,
		Database: "school_42",
		ClientIP: "192.168.1.1",
		Success:  true,
	})

	output := buf.String()

	if !strings.HasPrefix(output, "<133>1 2024-03-01T12:00:00.000Z ") {
		t.Errorf("unexpected header: %q", output)
	}
	for _, want := range []string{
		"schoolhost",
		"tenant-provision",
		`[action@32473 operation="provision" result="success"][client@32473 ip="192.168.1.1"][tenant@32473 database="school_42" id="42"]`,
		"provisioned database school_42 for tenant 42",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output %q", want, output)
		}
	}
}

func TestEscapeSDValue(t *testing.T) {
	got := escapeSDValue(`a"b]c\d`)
	want := `"a\"b\]c\\d"`
	if got != want {
		t.Errorf("escapeSDValue() = %s, want %s", got, want)
	}
}

func TestEvents(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		wantMsg   string
		wantSev   Severity
		wantFac   int
		wantMsgID string
	}{
		{
			name:      "failed provisioning",
			event:     TenantProvisionedEvent{TenantID: 7, Database: "school_7", FailedTables: []string{"users"}, ErrorMessage: "boom"},
			wantMsg:   "failed to provision database school_7 for tenant 7 (failed tables: users): boom",
			wantSev:   SeverityError,
			wantFac:   FacilityLocal0,
			wantMsgID: "tenant-provision",
		},
		{
			name:      "migration",
			event:     TenantMigratedEvent{TenantID: 7, Database: "school_7", Version: 2, Success: true},
			wantMsg:   "migrated database school_7 of tenant 7 to version 2",
			wantSev:   SeverityInfo,
			wantFac:   FacilityLocal0,
			wantMsgID: "tenant-migrate",
		},
		{
			name:      "quota warning",
			event:     QuotaEvent{TenantID: 7, Category: "files", Action: QuotaAlert, Level: "warning", Percentage: 85},
			wantMsg:   "tenant 7: files storage at 85.0% of quota (warning)",
			wantSev:   SeverityWarning,
			wantFac:   FacilityLocal0,
			wantMsgID: "quota",
		},
		{
			name:      "quota rejection",
			event:     QuotaEvent{TenantID: 7, Category: "files", Action: QuotaRejected, Used: 90, Limit: 100, Delta: 20},
			wantMsg:   "tenant 7: refused 20 bytes of files storage (90 of 100 bytes used)",
			wantSev:   SeverityCritical,
			wantFac:   FacilityLocal0,
			wantMsgID: "quota",
		},
		{
			name:      "rate limit",
			event:     RateLimitExceededEvent{TenantID: 7, Endpoint: "/api/students", ClientID: "10.0.0.1", Limit: 5, Count: 5},
			wantMsg:   "10.0.0.1 exceeded the rate limit of 5 requests on /api/students",
			wantSev:   SeverityWarning,
			wantFac:   FacilityAuthPriv,
			wantMsgID: "rate-limit",
		},
		{
			name:      "drop",
			event:     DatabaseDroppedEvent{TenantID: 7, Database: "school_7", Actor: "schoolctl", Success: true},
			wantMsg:   "schoolctl dropped database school_7 of tenant 7",
			wantSev:   SeverityWarning,
			wantFac:   FacilityAuthPriv,
			wantMsgID: "tenant-drop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Message(); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.event.Severity(); got != tt.wantSev {
				t.Errorf("Severity() = %v, want %v", got, tt.wantSev)
			}
			if got := tt.event.Facility(); got != tt.wantFac {
				t.Errorf("Facility() = %v, want %v", got, tt.wantFac)
			}
			if got := tt.event.MessageID(); got != tt.wantMsgID {
				t.Errorf("MessageID() = %v, want %v", got, tt.wantMsgID)
			}
		})
	}
}
