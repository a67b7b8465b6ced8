// Package backendtest holds the behaviour every settings backend shares, run
// against each implementation from its own tests.
package backendtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	settings "github.com/goliatone/go-settings"
)

// Factory returns a fresh, empty backend. Cleanup is registered on t.
type Factory func(t *testing.T) settings.Backend

var (
	v1 = settings.NewVersion(1, 0, 0, 0)
	v2 = settings.NewVersion(1, 2, 0, 0)
	v3 = settings.NewVersion(2, 0, 0, 0)
)

// Run exercises the backend contract against backends produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("missing value is absent", func(t *testing.T) {
		b := factory(t)
		ctx := context.Background()
		h := open(t, b)
		defer closeHandle(t, b, h)

		value, ok, err := b.GetValue(ctx, h, "Theme", v1)
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, value)
	})

	t.Run("set then get round trips", func(t *testing.T) {
		b := factory(t)
		ctx := context.Background()
		h := open(t, b)
		require.NoError(t, b.SetValue(ctx, h, "Theme", v1, "Dark"))
		require.NoError(t, b.SetValue(ctx, h, "Empty", v1, ""))
		require.NoError(t, b.SetValue(ctx, h, "Multi", v1, "line one\nline two"))
		closeHandle(t, b, h)

		h = open(t, b)
		defer closeHandle(t, b, h)
		for name, want := range map[string]string{"Theme": "Dark", "Empty": "", "Multi": "line one\nline two"} {
			got, ok, err := b.GetValue(ctx, h, name, v1)
			require.NoError(t, err)
			require.True(t, ok, name)
			require.Equal(t, want, got, name)
		}
	})

	t.Run("set overwrites", func(t *testing.T) {
		b := factory(t)
		ctx := context.Background()
		h := open(t, b)
		defer closeHandle(t, b, h)

		require.NoError(t, b.SetValue(ctx, h, "Theme", v1, "Dark"))
		require.NoError(t, b.SetValue(ctx, h, "Theme", v1, "Light"))
		got, ok, err := b.GetValue(ctx, h, "Theme", v1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Light", got)
	})

	t.Run("versions are isolated", func(t *testing.T) {
		b := factory(t)
		ctx := context.Background()
		h := open(t, b)
		defer closeHandle(t, b, h)

		require.NoError(t, b.SetValue(ctx, h, "Theme", v1, "Dark"))
		_, ok, err := b.GetValue(ctx, h, "Theme", v2)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		b := factory(t)
		ctx := context.Background()
		h := open(t, b)
		require.NoError(t, b.SetValue(ctx, h, "Theme", v1, "Dark"))
		closeHandle(t, b, h)
		closeHandle(t, b, h)

		_, _, err := b.GetValue(ctx, h, "Theme", v1)
		require.ErrorIs(t, err, settings.ErrClosedHandle)
		require.ErrorIs(t, b.SetValue(ctx, h, "Theme", v1, "Light"), settings.ErrClosedHandle)

		h = open(t, b)
		defer closeHandle(t, b, h)
		got, ok, err := b.GetValue(ctx, h, "Theme", v1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "Dark", got)
	})

	caps := settings.CapabilitiesOf(factory(t))

	if caps.Versioning {
		t.Run("list versions", func(t *testing.T) {
			b := factory(t)
			ctx := context.Background()
			h := open(t, b)
			defer closeHandle(t, b, h)

			versions, err := b.ListVersions(ctx, h)
			require.NoError(t, err)
			require.Empty(t, versions)

			require.NoError(t, b.SetValue(ctx, h, "Theme", v3, "Dark"))
			require.NoError(t, b.SetValue(ctx, h, "Theme", v1, "Light"))
			require.NoError(t, b.SetValue(ctx, h, "Locale", v1, "en"))
			require.NoError(t, b.SetValue(ctx, h, "Theme", v2, "Blue"))

			versions, err = b.ListVersions(ctx, h)
			require.NoError(t, err)
			require.ElementsMatch(t, []settings.Version{v1, v2, v3}, versions)
		})
	}

	if caps.Cleanup {
		t.Run("delete for version", func(t *testing.T) {
			b := factory(t)
			ctx := context.Background()
			h := open(t, b)
			defer closeHandle(t, b, h)

			require.NoError(t, b.SetValue(ctx, h, "Theme", v1, "Dark"))
			require.NoError(t, b.SetValue(ctx, h, "Locale", v1, "en"))
			require.NoError(t, b.SetValue(ctx, h, "Theme", v2, "Light"))

			require.NoError(t, b.DeleteForVersion(ctx, h, v1))
			_, ok, err := b.GetValue(ctx, h, "Theme", v1)
			require.NoError(t, err)
			require.False(t, ok)
			_, ok, err = b.GetValue(ctx, h, "Locale", v1)
			require.NoError(t, err)
			require.False(t, ok)

			got, ok, err := b.GetValue(ctx, h, "Theme", v2)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "Light", got)

			require.NoError(t, b.DeleteForVersion(ctx, h, v3), "deleting an empty version succeeds")

			if caps.Versioning {
				versions, err := b.ListVersions(ctx, h)
				require.NoError(t, err)
				require.Equal(t, []settings.Version{v2}, versions)
			}
		})
	}

	t.Run("provider round trip", func(t *testing.T) {
		b := factory(t)
		ctx := context.Background()
		theme := settings.Property{Name: "Theme", Default: "Light"}

		p, err := settings.New(b, settings.WithCurrentVersion(v1))
		require.NoError(t, err)
		values, err := p.Load(ctx, []settings.Property{theme})
		require.NoError(t, err)
		require.False(t, values[0].IsSet())

		values[0].Set("Dark")
		require.NoError(t, p.Save(ctx, values))

		values, err = p.Load(ctx, []settings.Property{theme})
		require.NoError(t, err)
		require.Equal(t, "Dark", values[0].String())
	})

	if caps.Versioning && caps.Cleanup {
		t.Run("provider upgrade", func(t *testing.T) {
			b := factory(t)
			ctx := context.Background()
			theme := settings.Property{Name: "Theme", Default: "Light"}

			old, err := settings.New(b, settings.WithCurrentVersion(v1))
			require.NoError(t, err)
			require.NoError(t, old.Save(ctx, settings.Values{settings.NewValue(theme, "Dark")}))

			current, err := settings.New(b, settings.WithCurrentVersion(v3))
			require.NoError(t, err)
			report, err := current.Upgrade(ctx, []settings.Property{theme}, settings.UpgradePurge(true))
			require.NoError(t, err)
			require.Equal(t, []string{"Theme"}, report.Migrated)
			require.Equal(t, []settings.Version{v1}, report.Purged)

			values, err := current.Load(ctx, []settings.Property{theme})
			require.NoError(t, err)
			require.Equal(t, "Dark", values[0].String())

			versions, err := current.Versions(ctx)
			require.NoError(t, err)
			require.Equal(t, []settings.Version{v3}, versions)
		})
	}
}

func open(t *testing.T, b settings.Backend) settings.Handle {
	t.Helper()
	h, err := b.Open(context.Background())
	require.NoError(t, err)
	return h
}

func closeHandle(t *testing.T, b settings.Backend, h settings.Handle) {
	t.Helper()
	require.NoError(t, b.Close(context.Background(), h))
}
