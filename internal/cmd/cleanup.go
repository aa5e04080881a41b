package cmd

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/upkeep/internal/manager"
	"github.com/adamancini/upkeep/internal/output"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Prune old backups and remove downloaded packages",
		Long: `Cleanup keeps the newest update.backup_retain backups of the installation
directory, deletes older ones and empties the download cache.

The installer helper restarts the application with --post-update, which runs
the same cleanup and reports the new version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			return runCleanup(cmd.OutOrStdout(), s, "")
		},
	}
}

func runPostUpdate(cmd *cobra.Command) error {
	s, err := loadSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	return runCleanup(cmd.OutOrStdout(), s, s.currentVersion())
}

// runCleanup prunes backups and the download cache. A non-empty version is
// recorded as current and announced.
func runCleanup(out io.Writer, s *session, version string) error {
	report, err := manager.PostUpdate(manager.PostUpdateConfig{
		InstallDir: s.cfg.App.InstallDir,
		CacheDir:   s.cfg.Update.CacheDir,
		Retain:     s.cfg.Update.BackupRetain,
		Version:    version,
		Store:      s.store,
	})
	if err != nil {
		// cleanup problems never block the relaunched application
		log.Warnf("post-update cleanup: %v", err)
	}

	w, werr := outputWriter(out)
	if werr != nil {
		return werr
	}
	if w.Format() != output.FormatText {
		return w.Write(report)
	}

	if version != "" {
		_, _ = fmt.Fprintln(out, report.Message)
		if report.Backup != "" {
			_, _ = fmt.Fprintf(out, "The previous installation was saved to %s\n", report.Backup)
		}
	}
	for _, b := range report.Pruned {
		_, _ = fmt.Fprintf(out, "Removed backup %s\n", b.Name)
	}
	if version == "" && len(report.Pruned) == 0 {
		_, _ = fmt.Fprintf(out, "Nothing to clean up. Keeping %d backup(s).\n", report.Kept)
	}
	return nil
}
