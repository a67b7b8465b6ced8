package settings

import (
	"context"
	"time"
)

// UpgradeReport summarises an Upgrade run.
type UpgradeReport struct {
	// NoOp is true when no previous version existed and nothing was touched.
	NoOp     bool
	From     Version
	To       Version
	Migrated []string
	// Skipped lists properties with no previous value, or whose rule dropped it.
	Skipped []string
	Purged  []Version
}

// UpgradeOption adjusts a single Upgrade call.
type UpgradeOption func(*upgradeConfig)

type upgradeConfig struct {
	purge *bool
}

// UpgradePurge overrides the provider's purge policy for one Upgrade call.
func UpgradePurge(enabled bool) UpgradeOption {
	return func(cfg *upgradeConfig) {
		cfg.purge = &enabled
	}
}

// PreviousVersion returns the greatest recorded version strictly below the
// current version.
func (p *Provider) PreviousVersion(ctx context.Context) (prev Version, found bool, err error) {
	if err := p.require("previous version", true, false); err != nil {
		return Version{}, false, err
	}
	err = p.withHandle(ctx, func(h Handle) error {
		var resolveErr error
		prev, found, resolveErr = p.previousVersion(ctx, h)
		return resolveErr
	})
	return prev, found, err
}

// Versions returns every recorded version in ascending order.
func (p *Provider) Versions(ctx context.Context) (versions []Version, err error) {
	if err := p.require("versions", true, false); err != nil {
		return nil, err
	}
	err = p.withHandle(ctx, func(h Handle) error {
		var listErr error
		versions, listErr = p.listVersions(ctx, h)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	return SortVersions(versions), nil
}

// Reset deletes every value stored for the current version.
func (p *Provider) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		p.logOperation(LogEvent{Operation: "reset", Version: p.current, Err: err}, start)
	}()

	if err := p.require("reset", false, true); err != nil {
		return err
	}
	err = p.withHandle(ctx, func(h Handle) error {
		return p.deleteVersion(ctx, h, p.current)
	})
	if err != nil {
		return err
	}
	p.emitReset(ctx, p.current)
	return nil
}

// PreviousValue reads prop at the previous version. When there is no previous
// version the returned value is unset.
func (p *Provider) PreviousValue(ctx context.Context, prop Property) (value Value, err error) {
	start := time.Now()
	var previous *Version
	defer func() {
		p.logOperation(LogEvent{Operation: "previous-value", Version: p.current, Previous: previous, Properties: 1, Err: err}, start)
	}()

	if err := validateProperties([]Property{prop}); err != nil {
		return Value{}, err
	}
	if err := p.require("previous value", true, false); err != nil {
		return Value{}, err
	}
	value = Value{Property: prop}
	err = p.withHandle(ctx, func(h Handle) error {
		prev, found, err := p.previousVersion(ctx, h)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		previous = &prev
		value, err = p.readValue(ctx, h, prop, prev)
		return err
	})
	if err != nil {
		return Value{}, err
	}
	return value, nil
}

// Upgrade copies the previous version's values for props into the current
// version. Current-version data is cleared first, so the result holds exactly
// the migrated values. With no previous version Upgrade does nothing, which
// makes it safe to call on every start. When purging is enabled every version
// below the current one is deleted afterwards.
func (p *Provider) Upgrade(ctx context.Context, props []Property, opts ...UpgradeOption) (report UpgradeReport, err error) {
	start := time.Now()
	report.To = p.current
	defer func() {
		event := LogEvent{
			Operation:  "upgrade",
			Version:    p.current,
			Properties: len(props),
			Written:    len(report.Migrated),
			Deleted:    len(report.Purged),
			Err:        err,
		}
		if !report.NoOp && err == nil {
			from := report.From
			event.Previous = &from
		}
		p.logOperation(event, start)
	}()

	if err := validateProperties(props); err != nil {
		return report, err
	}
	if err := p.require("upgrade", true, true); err != nil {
		return report, err
	}

	cfg := upgradeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	purge := p.cfg.purgeOldVersions
	if cfg.purge != nil {
		purge = *cfg.purge
	}

	err = p.withHandle(ctx, func(h Handle) error {
		prev, found, err := p.previousVersion(ctx, h)
		if err != nil {
			return err
		}
		if !found {
			report.NoOp = true
			return nil
		}
		report.From = prev

		if err := p.deleteVersion(ctx, h, p.current); err != nil {
			return err
		}

		previous, err := p.readBatch(ctx, h, props, prev)
		if err != nil {
			return err
		}
		for _, value := range previous {
			if !value.IsSet() {
				report.Skipped = append(report.Skipped, value.Property.Name)
				continue
			}
			serialized, keep, err := p.applyRule(value.Property.Name, *value.Serialized, prev)
			if err != nil {
				return err
			}
			if !keep {
				report.Skipped = append(report.Skipped, value.Property.Name)
				continue
			}
			if err := p.writeValue(ctx, h, value.Property.Name, p.current, serialized); err != nil {
				return err
			}
			report.Migrated = append(report.Migrated, value.Property.Name)
		}

		if purge {
			purged, err := p.purgeOlder(ctx, h)
			report.Purged = purged
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	if !report.NoOp {
		p.emitUpgraded(ctx, report)
		if len(report.Purged) > 0 {
			p.emitPurged(ctx, report.Purged)
		}
	}
	return report, nil
}

// Purge deletes every version strictly below the current version and returns
// the versions removed.
func (p *Provider) Purge(ctx context.Context) (purged []Version, err error) {
	start := time.Now()
	defer func() {
		p.logOperation(LogEvent{Operation: "purge", Version: p.current, Deleted: len(purged), Err: err}, start)
	}()

	if err := p.require("purge", true, true); err != nil {
		return nil, err
	}
	err = p.withHandle(ctx, func(h Handle) error {
		var purgeErr error
		purged, purgeErr = p.purgeOlder(ctx, h)
		return purgeErr
	})
	if err != nil {
		return purged, err
	}
	if len(purged) > 0 {
		p.emitPurged(ctx, purged)
	}
	return purged, nil
}

func (p *Provider) listVersions(ctx context.Context, h Handle) ([]Version, error) {
	versions, err := p.backend.ListVersions(ctx, h)
	if err != nil {
		return nil, backendError("list", "", nil, err)
	}
	return versions, nil
}

func (p *Provider) previousVersion(ctx context.Context, h Handle) (Version, bool, error) {
	versions, err := p.listVersions(ctx, h)
	if err != nil {
		return Version{}, false, err
	}
	prev, found := PreviousVersionOf(p.current, versions)
	return prev, found, nil
}

func (p *Provider) deleteVersion(ctx context.Context, h Handle, version Version) error {
	if err := p.backend.DeleteForVersion(ctx, h, version); err != nil {
		return backendError("delete", "", &version, err)
	}
	return nil
}

func (p *Provider) purgeOlder(ctx context.Context, h Handle) ([]Version, error) {
	versions, err := p.listVersions(ctx, h)
	if err != nil {
		return nil, err
	}
	var purged []Version
	for _, v := range olderThan(p.current, versions) {
		if err := p.deleteVersion(ctx, h, v); err != nil {
			return purged, err
		}
		purged = append(purged, v)
	}
	return purged, nil
}
