// Package manager sequences an update attempt: check, decide, download,
// verify and hand off. It also owns the periodic re-check schedule.
package manager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/adamancini/upkeep/internal/appstate"
	"github.com/adamancini/upkeep/internal/update"
)

// ErrCheckInProgress is reported when a check is requested while another runs.
var ErrCheckInProgress = errors.New("update check already in progress")

// DefaultDecisionTimeout bounds how long an offer waits for the user.
const DefaultDecisionTimeout = 10 * time.Minute

// Config describes the running installation.
type Config struct {
	CurrentVersion  string
	InstallDir      string
	CacheDir        string
	DecisionTimeout time.Duration
}

// Controller runs update attempts one at a time.
type Controller struct {
	cfg        Config
	source     update.ManifestSource
	downloader update.Downloader
	installer  Installer
	verify     func(path, expectedHex string) bool

	decider  Decider
	notifier Notifier
	progress update.ProgressFunc
	store    *appstate.Store
	exit     func()
	listener StateListener
	now      func() time.Time

	inFlight atomic.Bool
	mu       sync.Mutex
	state    State
}

// Option configures a Controller.
type Option func(*Controller)

// WithDecider sets who answers update offers in interactive mode.
// Without a decider every offer is accepted.
func WithDecider(d Decider) Option {
	return func(c *Controller) {
		c.decider = d
	}
}

// WithNotifier sets who is told about outcomes in interactive mode.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithProgress sets the download progress sink.
func WithProgress(fn update.ProgressFunc) Option {
	return func(c *Controller) {
		c.progress = fn
	}
}

// WithStore persists skipped versions and the last handed-off version.
func WithStore(s *appstate.Store) Option {
	return func(c *Controller) {
		c.store = s
	}
}

// WithExit sets how the host is closed when a forced update is refused.
func WithExit(fn func()) Option {
	return func(c *Controller) {
		c.exit = fn
	}
}

// WithVerifier replaces the package integrity check.
func WithVerifier(fn func(path, expectedHex string) bool) Option {
	return func(c *Controller) {
		c.verify = fn
	}
}

// WithStateListener observes every state transition.
func WithStateListener(fn StateListener) Option {
	return func(c *Controller) {
		c.listener = fn
	}
}

// NewController creates a controller for the installation described by cfg.
func NewController(cfg Config, source update.ManifestSource, downloader update.Downloader, installer Installer, opts ...Option) *Controller {
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = DefaultDecisionTimeout
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "upkeep", "updates")
	}
	c := &Controller{
		cfg:        cfg,
		source:     source,
		downloader: downloader,
		installer:  installer,
		verify:     update.Verify,
		now:        time.Now,
		state:      Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state of the machine.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentVersion returns the version the controller compares against.
func (c *Controller) CurrentVersion() string {
	return c.cfg.CurrentVersion
}

func (c *Controller) setState(to State) {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return
	}
	if !CanTransition(from, to) {
		log.Errorf("illegal update state transition %s -> %s", from, to)
	}
	c.state = to
	c.mu.Unlock()

	log.WithFields(log.Fields{"from": from.String(), "to": to.String()}).Debug("update state")
	if c.listener != nil {
		c.listener(from, to)
	}
}

// CheckAndUpdate runs one update attempt. In silent mode no prompt is shown
// and failures are only logged; otherwise the decider is consulted and the
// notifier sees the outcome. A call made while another is running returns
// OutcomeBusy immediately.
//
// CheckAndUpdate never panics; unexpected failures become OutcomeFailed.
func (c *Controller) CheckAndUpdate(ctx context.Context, silent bool) (outcome update.Outcome) {
	if !c.inFlight.CompareAndSwap(false, true) {
		log.Debug(ErrCheckInProgress)
		return update.FailedOutcome(update.OutcomeBusy, nil, ErrCheckInProgress)
	}
	defer c.inFlight.Store(false)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("update attempt panicked: %v\n%s", r, debug.Stack())
			outcome = update.FailedOutcome(update.OutcomeFailed, outcome.Manifest, fmt.Errorf("internal error: %v", r))
		}
		c.setState(Idle)
		c.finish(outcome, silent)
	}()

	return c.attempt(ctx, silent)
}

func (c *Controller) attempt(ctx context.Context, silent bool) update.Outcome {
	c.setState(CheckingForUpdate)

	m, err := c.source.FetchLatest(ctx)
	if err != nil {
		var netErr *update.NetworkError
		if errors.As(err, &netErr) {
			return update.FailedOutcome(update.OutcomeNetworkError, nil, err)
		}
		return update.FailedOutcome(update.OutcomeFailed, nil, err)
	}
	if m == nil {
		c.setState(UpToDate)
		return update.NewOutcome(update.OutcomeAlreadyLatest, nil)
	}

	current := c.cfg.CurrentVersion
	if !update.IsUpdateAvailable(current, m.Version) {
		c.setState(UpToDate)
		return update.NewOutcome(update.OutcomeAlreadyLatest, m)
	}

	if !update.IsCompatible(current, m.MinVersion) {
		return update.FailedOutcome(update.OutcomeVersionNotSupported, m,
			fmt.Errorf("version %s requires at least %s, running %s", m.Version, m.MinVersion, current))
	}

	if !m.ForceUpdate && c.skipped(m.Version) {
		log.Debugf("version %s was skipped by the user", m.Version)
		c.setState(Skipped)
		return update.NewOutcome(update.OutcomeSkipped, m)
	}

	if !silent && c.decider != nil {
		if outcome, proceed := c.decide(ctx, m); !proceed {
			return outcome
		}
	}

	return c.apply(ctx, m)
}

func (c *Controller) decide(ctx context.Context, m *update.Manifest) (update.Outcome, bool) {
	c.setState(AwaitingUserDecision)

	dctx, cancel := context.WithTimeout(ctx, c.cfg.DecisionTimeout)
	defer cancel()

	decision := c.decider.Decide(dctx, Prompt{
		CurrentVersion: c.cfg.CurrentVersion,
		Manifest:       m,
		AllowDecline:   !m.ForceUpdate,
	})
	log.WithFields(log.Fields{"version": m.Version, "decision": decision.String()}).Info("update decision")

	if decision == Accept {
		return update.Outcome{}, true
	}

	if m.ForceUpdate {
		// declining a mandatory update closes the application
		c.setState(Declined)
		if c.exit != nil {
			c.exit()
		}
		return update.NewOutcome(update.OutcomeDeclined, m), false
	}

	if decision == Skip {
		c.setState(Skipped)
		c.persist(func(st *appstate.State) { st.SkippedVersion = m.Version })
		return update.NewOutcome(update.OutcomeSkipped, m), false
	}

	c.setState(Declined)
	return update.NewOutcome(update.OutcomeDeclined, m), false
}

func (c *Controller) apply(ctx context.Context, m *update.Manifest) update.Outcome {
	c.setState(Downloading)

	dir := filepath.Join(c.cfg.CacheDir, "downloads", uuid.NewString())
	archive := filepath.Join(dir, packageName(m.DownloadURL))
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warnf("failed to remove download dir %s: %v", dir, err)
		}
	}()

	if err := c.downloader.Download(ctx, m.DownloadURL, archive, c.progress); err != nil {
		var netErr *update.NetworkError
		if errors.As(err, &netErr) {
			return update.FailedOutcome(update.OutcomeNetworkError, m, err)
		}
		return update.FailedOutcome(update.OutcomeFailed, m, err)
	}

	c.setState(Verifying)
	if !c.verify(archive, m.Checksum) {
		return update.FailedOutcome(update.OutcomeChecksumMismatch, m,
			fmt.Errorf("checksum of %s does not match %s", filepath.Base(archive), m.Checksum))
	}

	c.setState(Installing)
	if err := c.installer.Install(ctx, archive, m.Version, c.cfg.InstallDir); err != nil {
		return update.FailedOutcome(update.OutcomeFailed, m, err)
	}

	c.setState(Terminating)
	c.persist(func(st *appstate.State) {
		st.CurrentVersion = m.Version
		st.SkippedVersion = ""
	})
	return update.NewOutcome(update.OutcomeInstalled, m)
}

func (c *Controller) finish(outcome update.Outcome, silent bool) {
	fields := log.Fields{"outcome": outcome.Kind.String(), "silent": silent}
	if outcome.Manifest != nil {
		fields["version"] = outcome.Manifest.Version
	}
	entry := log.WithFields(fields)
	if outcome.IsError() {
		entry.Warnf("update attempt failed: %s", outcome.Reason)
	} else {
		entry.Info("update attempt finished")
	}

	if outcome.Kind == update.OutcomeBusy {
		return
	}

	c.persist(func(st *appstate.State) {
		st.LastCheck = c.now()
		st.LastOutcome = outcome.Kind.String()
	})

	if silent || c.notifier == nil || outcome.Kind == update.OutcomeInstalled {
		return
	}
	c.notifier.Notify(outcome)
}

func (c *Controller) skipped(version string) bool {
	if c.store == nil {
		return false
	}
	st, err := c.store.Load()
	if err != nil {
		log.Warnf("failed to load update state: %v", err)
		return false
	}
	return st.SkippedVersion != "" && update.NormalizeVersion(st.SkippedVersion) == update.NormalizeVersion(version)
}

func (c *Controller) persist(fn func(*appstate.State)) {
	if c.store == nil {
		return
	}
	if err := c.store.Update(fn); err != nil {
		log.Warnf("failed to save update state: %v", err)
	}
}

// packageName derives the local archive name from the download URL.
func packageName(rawURL string) string {
	name := "package.zip"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	return name
}
