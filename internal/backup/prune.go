package backup

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// DefaultKeepCount is the default number of backup generations to retain.
const DefaultKeepCount = 1

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []Info `json:"deleted" yaml:"deleted"`
	Failed  []Info `json:"failed,omitempty" yaml:"failed,omitempty"`
	Kept    int    `json:"kept" yaml:"kept"`
}

// Prune removes old backups, keeping only the most recent keep backups.
// Every stale backup is attempted; failures are aggregated into the returned
// error and listed in the result.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	backups, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}

	// Backups are already sorted newest first
	if len(backups) <= keep {
		result.Kept = len(backups)
		return result, nil
	}

	result.Kept = keep

	var errs *multierror.Error
	for _, b := range backups[keep:] {
		if err := os.RemoveAll(b.Path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("delete backup %s: %w", b.Name, err))
			result.Failed = append(result.Failed, b)
			continue
		}
		log.WithField("path", b.Path).Info("removed old backup")
		result.Deleted = append(result.Deleted, b)
	}

	return result, errs.ErrorOrNil()
}
