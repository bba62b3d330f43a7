package game

// Status tracks a game through its lifecycle.
type Status int32

const (
	StatusOpen Status = iota
	StatusClosed
	StatusSettling
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusClosed:
		return "Closed"
	case StatusSettling:
		return "Settling"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates status transitions. Refunds bypass the machine
// entirely; every other path goes through here.
func (s Status) CanTransitionTo(next Status) bool {
	validTransitions := map[Status][]Status{
		StatusOpen: {
			StatusClosed,
		},
		StatusClosed: {
			StatusSettling,
		},
		StatusSettling: {
			StatusCompleted,
		},
		StatusCompleted: {},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, allowedStatus := range allowed {
		if next == allowedStatus {
			return true
		}
	}

	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// AcceptsBets reports whether placement is currently allowed.
func (s Status) AcceptsBets() bool {
	return s == StatusOpen
}
