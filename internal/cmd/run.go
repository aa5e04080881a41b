package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/adamancini/upkeep/internal/manager"
	"github.com/adamancini/upkeep/internal/update"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check for updates periodically until interrupted",
		Long: `Run keeps checking the update host in the background, every
update.check_interval after an initial update.initial_delay. Updates are
installed silently. Sending SIGHUP requests an immediate check. The command
exits when interrupted or once the installer helper has taken over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.cfg.Update.AutoCheck {
				log.Info("automatic update checks are disabled (update.auto_check)")
				return nil
			}
			wake := make(chan os.Signal, 1)
			signal.Notify(wake, syscall.SIGHUP)
			defer signal.Stop(wake)

			return runScheduler(cmd.Context(), s, wake)
		},
	}
}

// runScheduler blocks until ctx is done or the pipeline asks to terminate.
// Every value received on wake triggers an immediate check.
func runScheduler(parent context.Context, s *session, wake <-chan os.Signal) error {
	ctx, terminate := withTerminate(parent)
	defer terminate()

	controller := s.controller(terminate)
	scheduler := manager.NewScheduler(controller, s.cfg.Update.CheckInterval, s.cfg.Update.InitialDelay)
	scheduler.OnCheck(func(outcome update.Outcome) {
		entry := log.WithField("outcome", outcome.Kind)
		if outcome.IsError() {
			entry.Warnf("scheduled update check failed: %s", outcome.Reason)
			return
		}
		entry.Info("scheduled update check finished")
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start(gctx)
		log.WithFields(log.Fields{
			"interval":      scheduler.Interval,
			"initial_delay": scheduler.InitialDelay,
			"version":       controller.CurrentVersion(),
		}).Info("update scheduler started")
		<-gctx.Done()
		scheduler.Stop()
		log.Info("update scheduler stopped")
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case sig, ok := <-wake:
				if !ok {
					return nil
				}
				log.WithField("signal", sig).Info("update check requested")
				scheduler.CheckNow()
			}
		}
	})

	return g.Wait()
}
