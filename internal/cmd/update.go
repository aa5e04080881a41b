package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adamancini/upkeep/internal/interactive"
	"github.com/adamancini/upkeep/internal/manager"
	"github.com/adamancini/upkeep/internal/update"
)

func newUpdateCmd() *cobra.Command {
	var silent bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for an update and install it",
		Long: `Update runs one update attempt: fetch the manifest, offer the new version,
download and verify the package, then hand the installation over to a helper
that restarts the application.

Without a terminal, or with --silent, offers are accepted automatically and
problems are only logged.

Examples:
  upkeep update
  upkeep update --silent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, terminate := withTerminate(cmd.Context())
			defer terminate()

			silent = silent || !interactive.IsTerminal()
			outcome := runUpdate(ctx, s, terminate, silent, os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return outcomeError(outcome)
		},
	}

	cmd.Flags().BoolVar(&silent, "silent", false, "Do not prompt; accept the update and only log problems")

	return cmd
}

// runUpdate performs one attempt. In interactive mode offers are read from
// in, notices go to out and download progress to errOut.
func runUpdate(ctx context.Context, s *session, terminate func(), silent bool, in io.Reader, out, errOut io.Writer) update.Outcome {
	var opts []manager.Option
	var progress *interactive.ProgressRenderer
	if !silent {
		prompter := interactive.NewPrompterWithIO(in, out)
		progress = interactive.NewProgressRenderer(errOut, isTerminal(errOut))
		opts = append(opts,
			manager.WithDecider(prompter),
			manager.WithNotifier(prompter),
			manager.WithProgress(progress.Render),
		)
	}

	controller := s.controller(terminate, opts...)
	outcome := controller.CheckAndUpdate(ctx, silent)
	if progress != nil {
		progress.Finish()
	}
	return outcome
}

// outcomeError turns failed outcomes into a non-zero exit.
func outcomeError(outcome update.Outcome) error {
	if !outcome.IsError() {
		return nil
	}
	return fmt.Errorf("update %s", outcome)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
