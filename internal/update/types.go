package update

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Manifest describes the latest published release.
type Manifest struct {
	Version      string    `json:"version" yaml:"version"`
	ReleaseDate  Timestamp `json:"releaseDate" yaml:"releaseDate"`
	DownloadURL  string    `json:"downloadUrl" yaml:"downloadUrl"`
	FileSize     int64     `json:"fileSize" yaml:"fileSize"`
	Checksum     string    `json:"checksum" yaml:"checksum"`
	ReleaseNotes []string  `json:"releaseNotes" yaml:"releaseNotes"`
	MinVersion   string    `json:"minVersion" yaml:"minVersion"`
	ForceUpdate  bool      `json:"forceUpdate" yaml:"forceUpdate"`
}

// Validate checks the fields the update flow depends on. The version is not
// checked here: an unparseable version compares as not newer.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.DownloadURL) == "" {
		return fmt.Errorf("%w: downloadUrl is empty", ErrInvalidManifest)
	}
	return nil
}

// ReleaseNotesText joins the release notes one per line.
func (m *Manifest) ReleaseNotesText() string {
	return strings.Join(m.ReleaseNotes, "\n")
}

// FormattedSize returns the package size in human readable form, e.g. "12 MB".
func (m *Manifest) FormattedSize() string {
	if m.FileSize <= 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(m.FileSize))
}

// Progress is a snapshot of an in-flight download.
type Progress struct {
	BytesTransferred int64
	TotalBytes       int64 // 0 when the server did not send a length
	BytesPerSecond   int64
}

// Percent returns floor(transferred*100/total), or 0 if the total is unknown.
func (p Progress) Percent() int {
	if p.TotalBytes <= 0 {
		return 0
	}
	return int(p.BytesTransferred * 100 / p.TotalBytes)
}

// RemainingSeconds estimates the time left at the current rate.
func (p Progress) RemainingSeconds() int64 {
	if p.BytesPerSecond <= 0 || p.TotalBytes <= 0 {
		return 0
	}
	remaining := p.TotalBytes - p.BytesTransferred
	if remaining <= 0 {
		return 0
	}
	return remaining / p.BytesPerSecond
}

// ETA is RemainingSeconds as a duration.
func (p Progress) ETA() time.Duration {
	return time.Duration(p.RemainingSeconds()) * time.Second
}

// ProgressFunc receives progress after every chunk written to disk.
// It is called synchronously from the download loop.
type ProgressFunc func(Progress)

// OutcomeKind enumerates the terminal results of an update attempt.
type OutcomeKind int

const (
	OutcomeAlreadyLatest OutcomeKind = iota
	OutcomeDeclined
	OutcomeSkipped
	OutcomeInstalled
	OutcomeFailed
	OutcomeNetworkError
	OutcomeChecksumMismatch
	OutcomeVersionNotSupported
	OutcomeBusy
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeAlreadyLatest:       "already-latest",
	OutcomeDeclined:            "declined",
	OutcomeSkipped:             "skipped",
	OutcomeInstalled:           "installed",
	OutcomeFailed:              "failed",
	OutcomeNetworkError:        "network-error",
	OutcomeChecksumMismatch:    "checksum-mismatch",
	OutcomeVersionNotSupported: "version-not-supported",
	OutcomeBusy:                "busy",
}

// String returns the string representation of an OutcomeKind.
func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the kind by name in json/yaml output.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the terminal result of one update attempt.
type Outcome struct {
	Kind     OutcomeKind `json:"kind" yaml:"kind"`
	Reason   string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Manifest *Manifest   `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// NewOutcome builds an outcome without a failure reason.
func NewOutcome(kind OutcomeKind, m *Manifest) Outcome {
	return Outcome{Kind: kind, Manifest: m}
}

// FailedOutcome builds an outcome carrying err as its reason.
func FailedOutcome(kind OutcomeKind, m *Manifest, err error) Outcome {
	o := Outcome{Kind: kind, Manifest: m}
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

// IsError reports whether the outcome should be presented as an error.
func (o Outcome) IsError() bool {
	switch o.Kind {
	case OutcomeFailed, OutcomeNetworkError, OutcomeChecksumMismatch, OutcomeVersionNotSupported:
		return true
	}
	return false
}

func (o Outcome) String() string {
	if o.Reason != "" {
		return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
	}
	return o.Kind.String()
}

// ManifestSource returns the latest manifest, or nil without error when
// nothing has been published.
type ManifestSource interface {
	FetchLatest(ctx context.Context) (*Manifest, error)
}

// Downloader streams a package to disk.
type Downloader interface {
	Download(ctx context.Context, url, dst string, onProgress ProgressFunc) error
}
