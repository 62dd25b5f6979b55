package listing

import (
	"fmt"
)

// Status is the lifecycle state shared by Sale and Exchange records. The zero
// value is not a valid status.
type Status uint8

const (
	StatusAvailable Status = iota + 1
	StatusPending
	StatusUnavailable
	StatusAccepted
	StatusDeclined
)

var statusNames = map[Status]string{
	StatusAvailable:   "AVAILABLE",
	StatusPending:     "PENDING",
	StatusUnavailable: "UNAVAILABLE",
	StatusAccepted:    "ACCEPTED",
	StatusDeclined:    "DECLINE",
}

// Statuses lists every status in declaration order.
func Statuses() []Status {
	return []Status{StatusAvailable, StatusPending, StatusUnavailable, StatusAccepted, StatusDeclined}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus maps a stored status name back to its Status.
func ParseStatus(name string) (Status, error) {
	for status, n := range statusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown listing status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid listing status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Sale machine: AVAILABLE -> UNAVAILABLE.
var saleTransitions = map[Status][]Status{
	StatusAvailable: {StatusUnavailable},
}

// Exchange machine: AVAILABLE -> PENDING -> ACCEPTED | DECLINE.
var exchangeTransitions = map[Status][]Status{
	StatusAvailable: {StatusPending},
	StatusPending:   {StatusAccepted, StatusDeclined},
}

func SaleTransitionAllowed(from, to Status) bool {
	return allowed(saleTransitions, from, to)
}

func ExchangeTransitionAllowed(from, to Status) bool {
	return allowed(exchangeTransitions, from, to)
}

func allowed(table map[Status][]Status, from, to Status) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ExchangeOpen reports whether an exchange in this status still occupies the
// book's exchange slot.
func ExchangeOpen(s Status) bool {
	return s == StatusAvailable || s == StatusPending
}
