package fleet

import (
	"context"
	"time"
)

// Rule is an exception rule defined on the fleet platform.
type Rule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Device is a tracked asset.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref is an id-only reference embedded in other entities.
type Ref struct {
	ID string `json:"id"`
}

// ExceptionEvent is one rule violation by one device. Duration is in 100ns ticks.
type ExceptionEvent struct {
	Rule       Ref       `json:"rule"`
	Device     Ref       `json:"device"`
	ActiveFrom time.Time `json:"activeFrom"`
	Duration   int64     `json:"duration"`
}

// ExceptionEventSearch is the search object for Get ExceptionEvent. Empty ids
// are omitted from the payload entirely.
type ExceptionEventSearch struct {
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
	RuleID   string `json:"ruleId,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// Credentials identify an authenticated API session.
type Credentials struct {
	Database  string `json:"database"`
	UserName  string `json:"userName"`
	SessionID string `json:"sessionId"`
}

type API interface {
	GetRules(ctx context.Context) ([]Rule, error)
	GetDevices(ctx context.Context) ([]Device, error)
	GetExceptionEvents(ctx context.Context, search ExceptionEventSearch) ([]ExceptionEvent, error)
}
