package model

import (
	"time"
)

// AuditLog records one complete API operation.
type AuditLog struct {
	ID        string `json:"id"`         // request id (UUID)
	APIKey    string `json:"api_key"`    // caller's key, redacted to a prefix
	Method    string `json:"method"`     // HTTP method
	Path      string `json:"path"`       // request path
	IP        string `json:"ip"`         // client IP
	UserAgent string `json:"user_agent"` // client UA

	RequestBody   string `json:"request_body"`
	RequestHeader string `json:"request_header"`

	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context filled in by handlers (job ids, vault ids, errors)
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
