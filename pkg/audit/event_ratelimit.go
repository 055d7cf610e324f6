package audit

import (
	"fmt"
	"strconv"
)

// RateLimitExceededEvent records a request denied by the rate limiter.
type RateLimitExceededEvent struct {
	TenantID int64
	Endpoint string
	ClientID string
	Limit    int
	Count    int
}

func (e RateLimitExceededEvent) MessageID() string {
	return "rate-limit"
}

func (e RateLimitExceededEvent) Message() string {
	return fmt.Sprintf("%s exceeded the rate limit of %d requests on %s", e.ClientID, e.Limit, e.Endpoint)
}

func (e RateLimitExceededEvent) Severity() Severity {
	return SeverityWarning
}

func (e RateLimitExceededEvent) Facility() int {
	return FacilityAuthPriv
}

func (e RateLimitExceededEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDTenant: {
			"id": strconv.FormatInt(e.TenantID, 10),
		},
		SDIDLimit: {
			"endpoint": e.Endpoint,
			"limit":    strconv.Itoa(e.Limit),
			"count":    strconv.Itoa(e.Count),
		},
		SDIDClient: {
			"id": e.ClientID,
		},
		SDIDAction: {
			"operation": "request",
			"result":    "failure",
		},
	}
}

// SecurityEventType is the event_type of the security_logs row.
func (e RateLimitExceededEvent) SecurityEventType() string {
	return "rate_limit_exceeded"
}
