package domain

// StatusKind classifies how a profile relates to the live settings.
type StatusKind int

const (
	StatusNoMatch StatusKind = iota
	StatusFullMatch
	StatusPartialMatch
	StatusError
)

// ActivationStatus is derived on demand, never persisted.
type ActivationStatus struct {
	Kind   StatusKind
	Reason string // set only for StatusError
}

var (
	FullMatch    = ActivationStatus{Kind: StatusFullMatch}
	PartialMatch = ActivationStatus{Kind: StatusPartialMatch}
	NoMatch      = ActivationStatus{Kind: StatusNoMatch}
)

// ErrorStatus builds an error status carrying reason.
func ErrorStatus(reason string) ActivationStatus {
	return ActivationStatus{Kind: StatusError, Reason: reason}
}

func (s ActivationStatus) String() string {
	switch s.Kind {
	case StatusFullMatch:
		return "full-match"
	case StatusPartialMatch:
		return "partial-match"
	case StatusNoMatch:
		return "no-match"
	case StatusError:
		return "error: " + s.Reason
	default:
		return "unknown"
	}
}
