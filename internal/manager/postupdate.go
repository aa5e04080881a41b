package manager

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/adamancini/upkeep/internal/appstate"
	"github.com/adamancini/upkeep/internal/backup"
)

// PostUpdateConfig describes the cleanup run by a relaunched application.
type PostUpdateConfig struct {
	InstallDir string
	CacheDir   string
	Retain     int
	Version    string
	Store      *appstate.Store
}

// PostUpdateReport is what the relaunched application tells the user.
type PostUpdateReport struct {
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
	Pruned  []backup.Info `json:"pruned" yaml:"pruned"`
	Kept    int           `json:"kept" yaml:"kept"`
	Backup  string        `json:"backup,omitempty" yaml:"backup,omitempty"`
	Message string        `json:"message" yaml:"message"`
}

// PostUpdate prunes old backups down to Retain generations, removes the
// download cache and records Version as current. Every step is attempted;
// failures are aggregated.
func PostUpdate(cfg PostUpdateConfig) (*PostUpdateReport, error) {
	if cfg.Retain < 1 {
		cfg.Retain = backup.DefaultKeepCount
	}

	report := &PostUpdateReport{Version: cfg.Version, Pruned: []backup.Info{}}
	var errs *multierror.Error

	if cfg.InstallDir != "" {
		result, err := backup.NewManager(cfg.InstallDir).Prune(cfg.Retain)
		if result != nil {
			report.Pruned = append(report.Pruned, result.Deleted...)
			report.Kept = result.Kept
		}
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		if latest, err := backup.NewManager(cfg.InstallDir).Latest(); err == nil && latest != nil {
			report.Backup = latest.Path
		}
	}

	if cfg.CacheDir != "" {
		if err := os.RemoveAll(cfg.CacheDir); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("remove download cache: %w", err))
		} else {
			log.WithField("path", cfg.CacheDir).Debug("removed download cache")
		}
	}

	if cfg.Store != nil && cfg.Version != "" {
		if err := cfg.Store.Update(func(st *appstate.State) {
			st.CurrentVersion = cfg.Version
			st.SkippedVersion = ""
		}); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if cfg.Version != "" {
		report.Message = fmt.Sprintf("Update completed. You are now running version %s.", cfg.Version)
	} else {
		report.Message = "Update completed."
	}

	return report, errs.ErrorOrNil()
}
