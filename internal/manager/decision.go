package manager

import (
	"context"

	"github.com/adamancini/upkeep/internal/update"
)

// Decision is the user's answer to an update offer.
type Decision int

const (
	// Decline postpones the update until the next check.
	Decline Decision = iota
	// Accept downloads and installs now.
	Accept
	// Skip suppresses this version until a newer one is published.
	Skip
	// Exit closes the application instead of taking a forced update.
	Exit
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Skip:
		return "skip"
	case Exit:
		return "exit"
	default:
		return "decline"
	}
}

// Prompt is what the user is shown when an update is available.
type Prompt struct {
	CurrentVersion string
	Manifest       *update.Manifest
	// AllowDecline is false for forced updates: only Accept or Exit.
	AllowDecline bool
}

// Decider presents an update offer and blocks for an answer. When ctx is done
// before the user answers it must return Decline.
type Decider interface {
	Decide(ctx context.Context, p Prompt) Decision
}

// Notifier presents the terminal outcome of an interactive attempt.
type Notifier interface {
	Notify(outcome update.Outcome)
}

// Installer hands a verified package to the out-of-process installer.
type Installer interface {
	Install(ctx context.Context, archivePath, newVersion, installDir string) error
}
