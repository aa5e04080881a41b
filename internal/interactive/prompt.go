// Package interactive provides the terminal prompts shown for update offers
// and outcomes.
package interactive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/adamancini/upkeep/internal/manager"
	"github.com/adamancini/upkeep/internal/update"
)

// Prompter asks the user about update offers and reports outcomes.
// It implements manager.Decider and manager.Notifier.
type Prompter struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  in,
		out: out,
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readLine waits for the next input line. ok is false on EOF or when ctx is
// done first.
func (p *Prompter) readLine(ctx context.Context) (line string, ok bool) {
	p.once.Do(func() {
		p.lines = make(chan string)
		go func() {
			defer close(p.lines)
			scanner := bufio.NewScanner(p.in)
			for scanner.Scan() {
				p.lines <- scanner.Text()
			}
		}()
	})

	select {
	case line, ok = <-p.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

// Decide shows the offer and blocks for an answer. A forced update only
// offers updating now or quitting the application.
func (p *Prompter) Decide(ctx context.Context, prompt manager.Prompt) manager.Decision {
	m := prompt.Manifest
	p.printOffer(prompt)

	if !prompt.AllowDecline {
		_, _ = fmt.Fprintln(p.out, "This update is required to continue using the application.")
		_, _ = fmt.Fprint(p.out, "Update now? [y]es / [q]uit ")
	} else {
		_, _ = fmt.Fprint(p.out, "Update now? [y]es / [n]o / [s]kip this version ")
	}

	line, ok := p.readLine(ctx)
	if !ok {
		_, _ = fmt.Fprintln(p.out)
		return refuse(prompt)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return manager.Accept
	case "s", "skip":
		if prompt.AllowDecline {
			_, _ = fmt.Fprintf(p.out, "Version %s will not be offered again.\n", m.Version)
			return manager.Skip
		}
	case "n", "no", "q", "quit":
		return refuse(prompt)
	}

	// Default to no for invalid input
	_, _ = fmt.Fprintln(p.out, "Invalid response, not updating.")
	return refuse(prompt)
}

func refuse(prompt manager.Prompt) manager.Decision {
	if prompt.AllowDecline {
		return manager.Decline
	}
	return manager.Exit
}

func (p *Prompter) printOffer(prompt manager.Prompt) {
	m := prompt.Manifest

	_, _ = fmt.Fprintf(p.out, "\nA new version is available: %s (you have %s)\n", m.Version, prompt.CurrentVersion)
	if !m.ReleaseDate.IsZero() {
		_, _ = fmt.Fprintf(p.out, "  Released: %s\n", m.ReleaseDate.Format("2006-01-02"))
	}
	_, _ = fmt.Fprintf(p.out, "  Size:     %s\n", m.FormattedSize())

	if len(m.ReleaseNotes) > 0 {
		_, _ = fmt.Fprintln(p.out, "\nWhat's new:")
		for _, note := range m.ReleaseNotes {
			_, _ = fmt.Fprintf(p.out, "  - %s\n", note)
		}
	}
	_, _ = fmt.Fprintln(p.out)
}

// Notify prints the message for a terminal outcome.
func (p *Prompter) Notify(outcome update.Outcome) {
	_, _ = fmt.Fprintln(p.out, Message(outcome))
}

// Message phrases an outcome for the end user. Failure reasons are not
// included; they go to the log.
func Message(outcome update.Outcome) string {
	version := ""
	if outcome.Manifest != nil {
		version = outcome.Manifest.Version
	}

	switch outcome.Kind {
	case update.OutcomeAlreadyLatest:
		return "You are running the latest version."
	case update.OutcomeDeclined:
		return "Update postponed. You will be asked again at the next check."
	case update.OutcomeSkipped:
		return fmt.Sprintf("Version %s was skipped.", version)
	case update.OutcomeInstalled:
		return fmt.Sprintf("Installing version %s. The application will restart.", version)
	case update.OutcomeNetworkError:
		return "Could not reach the update server. Check your connection and try again later."
	case update.OutcomeChecksumMismatch:
		return "The downloaded update failed verification and was discarded. Your installation was not changed."
	case update.OutcomeVersionNotSupported:
		return fmt.Sprintf("Version %s cannot be installed over this version. Please download and install it manually.", version)
	case update.OutcomeBusy:
		return "An update check is already running."
	default:
		return "The update could not be installed. Your installation was not changed."
	}
}
