package models

import (
	"time"
)

// Class groups routes that share one admission policy.
type Class string

const (
	// ClassGeneral: every public route except health (100 req / 15 min)
	ClassGeneral Class = "general"
	// ClassVerify: POST /api/cheque/verify (5 req / 5 min, progressive delay after 2)
	ClassVerify Class = "verify"
	// ClassHealth: orchestration probes (60 req / min)
	ClassHealth Class = "health"
)

// IsValid checks if the class is one of the supported values.
func (c Class) IsValid() bool {
	switch c {
	case ClassGeneral, ClassVerify, ClassHealth:
		return true
	}
	return false
}

// Policy is a fixed-window limit with an optional progressive delay.
// DelayAfter of zero disables the delay.
type Policy struct {
	Limit      int
	Window     time.Duration
	DelayAfter int
	DelayStep  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicies returns the built-in policy per class.
func DefaultPolicies() map[Class]Policy {
	return map[Class]Policy{
		ClassGeneral: {Limit: 100, Window: 15 * time.Minute},
		ClassVerify: {
			Limit:      5,
			Window:     5 * time.Minute,
			DelayAfter: 2,
			DelayStep:  500 * time.Millisecond,
			MaxDelay:   5 * time.Second,
		},
		ClassHealth: {Limit: 60, Window: time.Minute},
	}
}

// DelayFor returns the delay owed by the count-th request in a window.
func (p Policy) DelayFor(count int) time.Duration {
	if p.DelayAfter <= 0 || count <= p.DelayAfter || p.DelayStep <= 0 {
		return 0
	}
	d := time.Duration(count-p.DelayAfter) * p.DelayStep
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// State is where a client key sits within its current window.
type State int

const (
	StateNormal State = iota
	// StateSoftThreshold: still admitted, but responses are delayed.
	StateSoftThreshold
	// StateHardLimit: rejected with 429 until the window resets.
	StateHardLimit
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateSoftThreshold:
		return "soft_threshold"
	case StateHardLimit:
		return "hard_limit"
	default:
		return "unknown"
	}
}

// StateFor classifies the count-th request in a window under p.
func (p Policy) StateFor(count int) State {
	switch {
	case count > p.Limit:
		return StateHardLimit
	case p.DelayFor(count) > 0:
		return StateSoftThreshold
	default:
		return StateNormal
	}
}

// Window is a counter store's view of one key.
type Window struct {
	Count   int
	ResetAt time.Time
}

// Decision is the outcome of one admission check.
type Decision struct {
	Class      Class
	State      State
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
	Delay      time.Duration
}

// KeyPrefix namespaces admission counters in shared stores.
const KeyPrefix = "admission"

// NewKey builds the counter key for a class and client IP.
func NewKey(class Class, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return KeyPrefix + ":" + string(class) + ":" + ip
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}
