package settings

import (
	"context"
	"fmt"

	"github.com/goliatone/go-settings/pkg/activity"
)

// WithActivityHooks attaches activity hooks. Hooks are cloned and nil entries
// dropped. Emission is enabled unless WithActivityConfig says otherwise.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *providerConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig controls activity emission defaults.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *providerConfig) {
		cfg.activityConfig = config
		cfg.activitySet = true
	}
}

// WithActivityActor resolves the actor recorded on emitted events from the
// operation's context.
func WithActivityActor(resolve func(context.Context) string) Option {
	return func(cfg *providerConfig) {
		cfg.activityActor = resolve
	}
}

// ActivityHooks returns a cloned slice of the configured activity hooks.
func (p *Provider) ActivityHooks() activity.Hooks {
	if p == nil {
		return nil
	}
	return cloneActivityHooks(p.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

func (p *Provider) emitSaved(ctx context.Context, version Version, names []string) {
	if len(names) == 0 {
		return
	}
	p.emit(ctx, activity.BuildSavedEvent(p.eventInput(ctx, version, func(in *activity.SettingsEventInput) {
		in.Properties = names
	})))
}

func (p *Provider) emitReset(ctx context.Context, version Version) {
	p.emit(ctx, activity.BuildResetEvent(p.eventInput(ctx, version, nil)))
}

func (p *Provider) emitUpgraded(ctx context.Context, report UpgradeReport) {
	p.emit(ctx, activity.BuildUpgradedEvent(p.eventInput(ctx, report.To, func(in *activity.SettingsEventInput) {
		in.PreviousVersion = report.From.String()
		in.Properties = report.Migrated
		in.Skipped = report.Skipped
	})))
}

func (p *Provider) emitPurged(ctx context.Context, purged []Version) {
	p.emit(ctx, activity.BuildPurgedEvent(p.eventInput(ctx, p.current, func(in *activity.SettingsEventInput) {
		in.PurgedVersions = versionStrings(purged)
	})))
}

func (p *Provider) eventInput(ctx context.Context, version Version, fill func(*activity.SettingsEventInput)) activity.SettingsEventInput {
	input := activity.SettingsEventInput{Version: version.String()}
	if p.cfg.activityActor != nil {
		input.ActorID = p.cfg.activityActor(ctx)
	}
	if fill != nil {
		fill(&input)
	}
	return input
}

// emit never fails the calling operation; hook errors are logged.
func (p *Provider) emit(ctx context.Context, event activity.Event) {
	if !p.emitter.Enabled() {
		return
	}
	if err := p.emitter.Emit(ctx, event); err != nil {
		p.cfg.logger.LogOperation(LogEvent{
			Operation: "activity",
			Version:   p.current,
			Err:       fmt.Errorf("settings: activity %s: %w", event.Verb, err),
		})
	}
}

func versionStrings(versions []Version) []string {
	if len(versions) == 0 {
		return nil
	}
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out
}
