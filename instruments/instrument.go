package instruments

import (
	"encoding/json"
	"strconv"
)

// Status is the setup status of a saved instrument.
type Status int

const (
	StatusUnknown Status = iota
	StatusInProgress
	StatusAdded
	StatusCannotBeAdded
	StatusDuplicate
)

var statusNames = map[Status]string{
	StatusUnknown:       "UNKNOWN",
	StatusInProgress:    "IN_PROGRESS",
	StatusAdded:         "ADDED",
	StatusCannotBeAdded: "CANNOT_BE_ADDED",
	StatusDuplicate:     "DUPLICATE",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Terminal reports whether no further status change is expected.
func (s Status) Terminal() bool {
	return s == StatusAdded || s == StatusCannotBeAdded || s == StatusDuplicate
}

// MarshalJSON writes the status name.
func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalJSON accepts the status name; unknown names map to StatusUnknown.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	*s = StatusUnknown
	for k, v := range statusNames {
		if v == name {
			*s = k
			break
		}
	}
	return nil
}

// Instrument is a saved payment card.
type Instrument struct {
	ID        string `json:"cardUuid"`
	Brand     string `json:"brand,omitempty"`
	Last4     string `json:"last4"`
	ExpMonth  int    `json:"expMonth,omitempty"`
	ExpYear   int    `json:"expYear,omitempty"`
	IsPrimary bool   `json:"isPrimary"`
	Status    Status `json:"status"`
}
