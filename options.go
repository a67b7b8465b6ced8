package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// Provider persists settings tagged with the application version and migrates
// them forward when the version changes. It holds no state of its own beyond
// configuration; every operation opens one backend handle and releases it
// before returning. A Provider adds no locking, so concurrent use is only as
// safe as the backend.
type Provider struct {
	backend   Backend
	current   Version
	caps      Capabilities
	cfg       providerConfig
	evaluator Evaluator
	rules     map[string]compiledMigrationRule
	emitter   *activity.Emitter
}

type compiledMigrationRule struct {
	expr string
	rule CompiledRule
}

// New constructs a Provider over backend.
func New(backend Backend, opts ...Option) (*Provider, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	cfg := applyOptions(opts)

	p := &Provider{
		backend: backend,
		caps:    CapabilitiesOf(backend),
		cfg:     cfg,
	}
	p.current = p.resolveCurrentVersion()

	if err := p.compileRules(); err != nil {
		return nil, err
	}

	activityCfg := cfg.activityConfig
	if !cfg.activitySet {
		activityCfg = activity.Config{Enabled: true, Channel: "settings"}
	}
	p.emitter = activity.NewEmitter(cfg.activityHooks, activityCfg)
	return p, nil
}

func (p *Provider) resolveCurrentVersion() Version {
	if p.cfg.currentVersion != nil {
		return *p.cfg.currentVersion
	}
	v, ok := ResolveAppVersion(WithAppVersion(p.cfg.appVersion))
	if !ok {
		p.cfg.logger.LogOperation(LogEvent{
			Operation: "resolve-version",
			Version:   MinVersion,
			Err:       fmt.Errorf("%w: application version unavailable, using %s", ErrInvalidVersion, MinVersion),
		})
	}
	return v
}

// CurrentVersion returns the version new settings are written under.
func (p *Provider) CurrentVersion() Version {
	return p.current
}

// Capabilities returns the capabilities reported by the backend.
func (p *Provider) Capabilities() Capabilities {
	return p.caps
}

// withHandle opens one handle, runs fn and always closes the handle. A close
// failure is only reported when fn succeeded.
func (p *Provider) withHandle(ctx context.Context, fn func(Handle) error) (err error) {
	h, err := p.backend.Open(ctx)
	if err != nil {
		return backendError("open", "", nil, err)
	}
	defer func() {
		if closeErr := p.backend.Close(ctx, h); closeErr != nil && err == nil {
			err = backendError("close", "", nil, closeErr)
		}
	}()
	return fn(h)
}

func (p *Provider) require(op string, needVersioning, needCleanup bool) error {
	if needVersioning && !p.caps.Versioning {
		return fmt.Errorf("%w: %s needs ListVersions", ErrUnsupported, op)
	}
	if needCleanup && !p.caps.Cleanup {
		return fmt.Errorf("%w: %s needs DeleteForVersion", ErrUnsupported, op)
	}
	return nil
}

func (p *Provider) logOperation(event LogEvent, start time.Time) {
	event.Duration = time.Since(start)
	p.cfg.logger.LogOperation(event)
}
