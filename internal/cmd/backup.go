package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/adamancini/upkeep/internal/backup"
	"github.com/adamancini/upkeep/internal/output"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Inspect and prune installation backups",
		Long: `Backup lists and prunes the copies the installer helper makes of the
installation directory before replacing it.

Backups live next to the installation directory and are named
<install_dir>.backup.<yyyyMMddHHmmss>. If an update leaves the application
unusable, copy the newest backup back over the installation directory.`,
	}

	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all backups",
		Long:  `List displays the backups of the installation directory, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			return runBackupList(cmd.OutOrStdout(), backup.NewManager(s.cfg.App.InstallDir), time.Now())
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old backups",
		Long: `Prune deletes old backups, keeping only the most recent N backups.

By default, keeps update.backup_retain backups.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			if !cmd.Flags().Changed("keep") {
				keep = s.cfg.Update.BackupRetain
			}
			return runBackupPrune(cmd.OutOrStdout(), backup.NewManager(s.cfg.App.InstallDir), keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeepCount, "Number of backups to keep")

	return cmd
}

// runBackupList lists all backups.
func runBackupList(out io.Writer, manager *backup.Manager, now time.Time) error {
	backups, err := manager.List()
	if err != nil {
		return err
	}

	w, err := outputWriter(out)
	if err != nil {
		return err
	}
	if w.Format() != output.FormatText {
		return w.Write(backups)
	}

	if len(backups) == 0 {
		_, _ = fmt.Fprintf(out, "No backups found for %s.\n", manager.InstallDir())
		return nil
	}

	_, _ = fmt.Fprintf(out, "Backups of %s:\n\n", manager.InstallDir())

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Name\tCreated\tAge")
	for _, b := range backups {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n",
			b.Name,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
			humanize.RelTime(b.CreatedAt, now, "ago", "from now"),
		)
	}
	return tw.Flush()
}

// runBackupPrune removes old backups.
func runBackupPrune(out io.Writer, manager *backup.Manager, keep int) error {
	if keep < 1 {
		return fmt.Errorf("--keep must be at least 1, got %d", keep)
	}

	result, err := manager.Prune(keep)
	if result == nil {
		return err
	}

	w, werr := outputWriter(out)
	if werr != nil {
		return werr
	}
	if w.Format() != output.FormatText {
		if werr := w.Write(result); werr != nil {
			return werr
		}
		return err
	}

	if len(result.Deleted) == 0 && len(result.Failed) == 0 {
		_, _ = fmt.Fprintf(out, "No backups to prune. Keeping %d backup(s).\n", result.Kept)
		return err
	}

	_, _ = fmt.Fprintf(out, "Pruned %d backup(s), keeping %d:\n", len(result.Deleted), result.Kept)
	for _, b := range result.Deleted {
		_, _ = fmt.Fprintf(out, "  - %s (%s)\n", b.Name, b.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return err
}
