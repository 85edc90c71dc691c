package ntsseed

import (
	"fmt"
	"time"
)

type Status int

const (
	StatusPending Status = iota
	// StatusWritten means a fresh secret was stored.
	StatusWritten
	// StatusExists means the key was already present and left untouched.
	StatusExists
	// StatusPresent means verification found a well formed secret.
	StatusPresent
	// StatusMissing means verification found no value.
	StatusMissing
	// StatusInvalid means verification found a value of the wrong length.
	StatusInvalid
	StatusFailed
)

var statusNames = map[Status]string{
	StatusPending: "pending",
	StatusWritten: "written",
	StatusExists:  "exists",
	StatusPresent: "present",
	StatusMissing: "missing",
	StatusInvalid: "invalid",
	StatusFailed:  "failed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// OK reports whether s counts as a success.
func (s Status) OK() bool {
	switch s {
	case StatusWritten, StatusExists, StatusPresent:
		return true
	}
	return false
}

// Outcome is what happened to one key.
type Outcome struct {
	Bucket Bucket
	Key    string
	Status Status
	Err    error
}

// Report is the result of one Fill or Verify run. Outcomes are in offset order.
type Report struct {
	RunID    string
	Now      time.Time
	Span     TimeRange
	Outcomes []Outcome
	Elapsed  time.Duration
}

// OK is true when every key succeeded.
func (r *Report) OK() bool {
	for _, o := range r.Outcomes {
		if !o.Status.OK() {
			return false
		}
	}
	return true
}

// Failed returns the outcomes that did not succeed.
func (r *Report) Failed() []Outcome {
	var ret []Outcome
	for _, o := range r.Outcomes {
		if !o.Status.OK() {
			ret = append(ret, o)
		}
	}
	return ret
}

func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Keys() []string {
	ret := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		ret[i] = o.Key
	}
	return ret
}

func (r *Report) String() string {
	return fmt.Sprintf("Report(keys: %d, written: %d, exists: %d, present: %d, missing: %d, invalid: %d, failed: %d)",
		len(r.Outcomes),
		r.Count(StatusWritten),
		r.Count(StatusExists),
		r.Count(StatusPresent),
		r.Count(StatusMissing),
		r.Count(StatusInvalid),
		r.Count(StatusFailed),
	)
}
