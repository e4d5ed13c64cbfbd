package planner

import (
	"fmt"
	"time"
)

// Subject is the NATS subject planning requests arrive on.
const Subject = "journeys.plan"

// Queue is the queue group shared by planner replicas.
const Queue = "planner"

// Error codes carried by PlanResponse.Error.
const (
	CodeInvalidRequest = "invalid_request"
	CodeStructural     = "structural"
	CodeTimeout        = "timeout"
	CodeRateLimited    = "rate_limited"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal"
)

// PlanRequest asks for journeys between stations. Zero limits fall back to
// the service defaults.
type PlanRequest struct {
	From string   `json:"from"`
	To   []string `json:"to"`
	// Date is "2006-01-02" and Time is "15:04".
	Date string `json:"date"`
	Time string `json:"time"`

	MaxJourneys int  `json:"max_journeys,omitempty"`
	MaxChanges  *int `json:"max_changes,omitempty"`
	// MaxInitialWaitMinutes bounds the wait for the first boarding; zero
	// allows only a departure at the requested time.
	MaxInitialWaitMinutes *int     `json:"max_initial_wait_minutes,omitempty"`
	MaxDurationMinutes    int      `json:"max_duration_minutes,omitempty"`
	Modes                 []string `json:"modes,omitempty"`
	Expansion             string   `json:"expansion,omitempty"`
	Stop                  string   `json:"stop,omitempty"`
	// Explain asks for the exclusion report of the search.
	Explain bool `json:"explain,omitempty"`
}

// PlanResponse answers a PlanRequest. An empty Journeys list with no Error
// means no journey exists within the limits.
type PlanResponse struct {
	RequestID   string    `json:"request_id"`
	Journeys    []Journey `json:"journeys"`
	Diagnostics string    `json:"diagnostics,omitempty"`
	Error       *Error    `json:"error,omitempty"`
}

// Error is a failed plan.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// Journey is one itinerary.
type Journey struct {
	Depart          string  `json:"depart"`
	Arrive          string  `json:"arrive"`
	DurationSeconds int64   `json:"duration_seconds"`
	Changes         int     `json:"changes"`
	Stages          []Stage `json:"stages"`
	Diversions      int     `json:"diversions,omitempty"`
}

// Stage kinds.
const (
	KindRide      = "ride"
	KindWalk      = "walk"
	KindLink      = "link"
	KindDiversion = "diversion"
)

// Stage is one leg of a journey. From and To are station ids where the
// endpoint belongs to a station, node ids otherwise.
type Stage struct {
	Kind            string `json:"kind"`
	Mode            string `json:"mode,omitempty"`
	Service         string `json:"service,omitempty"`
	From            string `json:"from"`
	To              string `json:"to"`
	Depart          string `json:"depart,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// FormatClock renders an offset from midnight as "15:04", with a "+N" suffix
// past midnight of the query date.
func FormatClock(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	s := fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
	if days > 0 {
		s += fmt.Sprintf("+%d", days)
	}
	return s
}
