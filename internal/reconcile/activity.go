package reconcile

import "time"

// Activity buckets a session by how recently its log was written.
type Activity int

const (
	Inactive Activity = iota
	Idle
	Recent
	Active
	VeryActive
)

var activityNames = map[Activity]string{
	VeryActive: "very-active",
	Active:     "active",
	Recent:     "recent",
	Idle:       "idle",
	Inactive:   "inactive",
}

func (a Activity) String() string {
	if s, ok := activityNames[a]; ok {
		return s
	}
	return "inactive"
}

// MarshalText encodes the activity by name for JSON output.
func (a Activity) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Classify buckets the age of modified relative to now. Timestamps in the
// future count as very active.
func Classify(now, modified time.Time) Activity {
	age := now.Sub(modified)
	switch {
	case age < 5*time.Minute:
		return VeryActive
	case age < 30*time.Minute:
		return Active
	case age < time.Hour:
		return Recent
	case age < 5*time.Hour:
		return Idle
	default:
		return Inactive
	}
}
