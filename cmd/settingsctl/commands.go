package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	settings "github.com/goliatone/go-settings"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME...",
		Short: "Print values stored for the current version",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := propertiesFromArgs(args)
			if err != nil {
				return err
			}
			values, err := a.provider.Load(cmd.Context(), props)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), valueMap(values))
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME=VALUE...",
		Short: "Store values for the current version",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(settings.Values, 0, len(args))
			for _, arg := range args {
				name, value, ok := strings.Cut(arg, "=")
				if !ok || strings.TrimSpace(name) == "" {
					return fmt.Errorf("expected NAME=VALUE, got %q", arg)
				}
				values = append(values, settings.NewValue(settings.Property{Name: name}, value))
			}
			return a.provider.Save(cmd.Context(), values)
		},
	}
}

type versionsOutput struct {
	Current  string   `yaml:"current"`
	Versions []string `yaml:"versions"`
}

func newVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List versions holding data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			versions, err := a.provider.Versions(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), versionsOutput{
				Current:  a.provider.CurrentVersion().String(),
				Versions: versionStrings(versions),
			})
		},
	}
}

type previousOutput struct {
	Version string         `yaml:"version,omitempty"`
	Values  map[string]any `yaml:"values"`
}

func newPreviousCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "previous NAME...",
		Short: "Print values stored for the previous version",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := propertiesFromArgs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := previousOutput{Values: map[string]any{}}
			prev, found, err := a.provider.PreviousVersion(ctx)
			if err != nil {
				return err
			}
			if found {
				out.Version = prev.String()
			}
			for _, prop := range props {
				value, err := a.provider.PreviousValue(ctx, prop)
				if err != nil {
					return err
				}
				out.Values[prop.Name] = optional(value)
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every value stored for the current version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.provider.Reset(cmd.Context())
		},
	}
}

type upgradeOutput struct {
	NoOp     bool     `yaml:"noop"`
	From     string   `yaml:"from,omitempty"`
	To       string   `yaml:"to"`
	Migrated []string `yaml:"migrated,omitempty"`
	Skipped  []string `yaml:"skipped,omitempty"`
	Purged   []string `yaml:"purged,omitempty"`
}

func newUpgradeCmd(a *app) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "upgrade NAME...",
		Short: "Copy values from the previous version into the current one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := propertiesFromArgs(args)
			if err != nil {
				return err
			}
			var opts []settings.UpgradeOption
			if cmd.Flags().Changed("purge") {
				opts = append(opts, settings.UpgradePurge(purge))
			}
			report, err := a.provider.Upgrade(cmd.Context(), props, opts...)
			if err != nil {
				return err
			}
			out := upgradeOutput{
				NoOp:     report.NoOp,
				To:       report.To.String(),
				Migrated: report.Migrated,
				Skipped:  report.Skipped,
				Purged:   versionStrings(report.Purged),
			}
			if !report.NoOp {
				out.From = report.From.String()
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "delete older versions after upgrading (env SETTINGS_PURGE_OLD_VERSIONS)")
	return cmd
}

type purgeOutput struct {
	Purged []string `yaml:"purged"`
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every version older than the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			purged, err := a.provider.Purge(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), purgeOutput{Purged: versionStrings(purged)})
		},
	}
}

func propertiesFromArgs(args []string) ([]settings.Property, error) {
	props := make([]settings.Property, 0, len(args))
	for _, arg := range args {
		if strings.TrimSpace(arg) == "" {
			return nil, settings.ErrPropertyNameRequired
		}
		props = append(props, settings.Property{Name: arg})
	}
	return props, nil
}

func valueMap(values settings.Values) map[string]any {
	out := make(map[string]any, len(values))
	for _, value := range values {
		out[value.Property.Name] = optional(value)
	}
	return out
}

// optional renders an unset value as null.
func optional(value settings.Value) any {
	if !value.IsSet() {
		return nil
	}
	return *value.Serialized
}

func versionStrings(versions []settings.Version) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
