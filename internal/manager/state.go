package manager

// State is a step of the update state machine.
type State int

const (
	Idle State = iota
	CheckingForUpdate
	UpToDate
	AwaitingUserDecision
	Downloading
	Verifying
	Installing
	Terminating
	Declined
	Skipped
)

var stateNames = map[State]string{
	Idle:                 "idle",
	CheckingForUpdate:    "checking",
	UpToDate:             "up-to-date",
	AwaitingUserDecision: "awaiting-decision",
	Downloading:          "downloading",
	Verifying:            "verifying",
	Installing:           "installing",
	Terminating:          "terminating",
	Declined:             "declined",
	Skipped:              "skipped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions lists the legal successors of every state. Failures from any
// working state fall back to Idle.
var transitions = map[State][]State{
	Idle:                 {CheckingForUpdate},
	CheckingForUpdate:    {UpToDate, AwaitingUserDecision, Downloading, Skipped, Idle},
	AwaitingUserDecision: {Downloading, Declined, Skipped, Idle},
	Downloading:          {Verifying, Idle},
	Verifying:            {Installing, Idle},
	Installing:           {Terminating, Idle},
	Terminating:          {Idle},
	UpToDate:             {Idle},
	Declined:             {Idle},
	Skipped:              {Idle},
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateListener observes state changes. It is called synchronously.
type StateListener func(from, to State)
