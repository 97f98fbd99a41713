package models

import "time"

// Invocation kinds.
const (
	InvocationHTTP  = "http"
	InvocationTimer = "timer"
)

// Invocation describes who or what triggered a lifecycle operation. HTTP and
// timer invocations expose the same shape so the engine and the audit sink do
// not care which one they serve.
type Invocation struct {
	Kind      string
	ID        string
	Method    string
	Endpoint  string
	URL       string
	Origin    string
	StartedAt time.Time
	Requestor *Requestor
}

// NewHTTPInvocation builds the invocation context for an incoming request.
func NewHTTPInvocation(id, method, endpoint, url, origin string, requestor *Requestor) Invocation {
	return Invocation{
		Kind:      InvocationHTTP,
		ID:        id,
		Method:    method,
		Endpoint:  endpoint,
		URL:       url,
		Origin:    origin,
		StartedAt: time.Now().UTC(),
		Requestor: requestor,
	}
}

// NewTimerInvocation builds the invocation context for a scheduled trigger.
func NewTimerInvocation(id, name string) Invocation {
	return Invocation{
		Kind:      InvocationTimer,
		ID:        id,
		Endpoint:  name,
		StartedAt: time.Now().UTC(),
	}
}
