package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/upkeep/internal/appstate"
	"github.com/adamancini/upkeep/internal/config"
	"github.com/adamancini/upkeep/internal/installer"
	"github.com/adamancini/upkeep/internal/logging"
	"github.com/adamancini/upkeep/internal/manager"
	"github.com/adamancini/upkeep/internal/output"
	"github.com/adamancini/upkeep/internal/update"
)

// session is the configuration and logging shared by one command invocation.
type session struct {
	cfg    *config.Config
	store  *appstate.Store
	closer io.Closer
}

// loadSession resolves configuration from flags, environment and file, and
// initializes logging. validate is false for commands that never contact the
// update host.
func loadSession(validate bool) (*session, error) {
	overrides := map[string]interface{}{}
	if logLevel != "" {
		overrides[config.KeyLogLevel] = logLevel
	}
	if logFile != "" {
		overrides[config.KeyLogFile] = logFile
	}
	if baseURL != "" {
		overrides[config.KeyBaseURL] = baseURL
	}

	cfg, err := config.Load(config.WithConfigFile(configPath), config.WithOverrides(overrides))
	if err != nil {
		return nil, err
	}
	if validate {
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	closer, err := logging.Init(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"file":        cfg.File,
		"install_dir": cfg.App.InstallDir,
		"base_url":    cfg.Update.BaseURL,
	}).Debug("configuration loaded")

	return newSession(cfg, closer), nil
}

func newSession(cfg *config.Config, closer io.Closer) *session {
	return &session{
		cfg:    cfg,
		store:  appstate.NewStore(cfg.State.Path),
		closer: closer,
	}
}

func (s *session) Close() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

// currentVersion picks the running version: configured, then this binary's
// build metadata when it is the managed application, then the persisted value.
func (s *session) currentVersion() string {
	if s.cfg.App.Version != "" {
		return s.cfg.App.Version
	}
	if _, err := update.ParseVersion(buildVersion); err == nil && s.managesSelf() {
		return buildVersion
	}
	if st, err := s.store.Load(); err == nil && st.CurrentVersion != "" {
		return st.CurrentVersion
	} else if err != nil {
		log.Warnf("read update state: %v", err)
	}
	return buildVersion
}

func (s *session) managesSelf() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return strings.EqualFold(filepath.Base(exe), s.cfg.App.Executable)
}

func (s *session) userAgent() string {
	return "upkeep/" + buildVersion
}

func (s *session) manifestClient() *update.ManifestClient {
	return update.NewManifestClient(s.cfg.Update.BaseURL,
		update.WithTimeout(s.cfg.Update.Timeout),
		update.WithManifestPath(s.cfg.Update.ManifestPath),
		update.WithUserAgent(s.userAgent()),
	)
}

// controller wires the update pipeline. terminate is called once the
// installer helper has taken over, and when a forced update is refused.
func (s *session) controller(terminate func(), opts ...manager.Option) *manager.Controller {
	cfg := s.cfg

	fetcher := update.NewFetcher(
		update.WithChunkSize(cfg.Update.ChunkSize),
		update.WithFetcherUserAgent(s.userAgent()),
	)

	orchestrator := installer.New(installer.Config{
		WorkDir:      cfg.Update.CacheDir,
		Executable:   cfg.App.Executable,
		HelperWait:   cfg.Update.HelperWait,
		HandoffDelay: cfg.Update.HandoffDelay,
	},
		installer.WithLauncher(installer.DetachedLauncher{Elevate: cfg.Update.Elevate}),
		installer.WithTerminator(func() {
			log.Info("installer helper started, shutting down")
			terminate()
		}),
	)

	base := []manager.Option{
		manager.WithStore(s.store),
		manager.WithExit(terminate),
		manager.WithStateListener(func(from, to manager.State) {
			log.WithFields(log.Fields{"from": from, "to": to}).Debug("update state changed")
		}),
	}

	return manager.NewController(manager.Config{
		CurrentVersion:  s.currentVersion(),
		InstallDir:      cfg.App.InstallDir,
		CacheDir:        cfg.Update.CacheDir,
		DecisionTimeout: cfg.Update.DecisionTimeout,
	}, s.manifestClient(), fetcher, orchestrator, append(base, opts...)...)
}

func outputWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}

// withTerminate derives a context that the update pipeline can cancel to end
// the command.
func withTerminate(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithCancel(ctx)
}
