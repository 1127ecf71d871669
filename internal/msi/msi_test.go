package msi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lwalthert/intuneapp/internal/data"
)

// TestUnavailable always degrades.
func TestUnavailable(t *testing.T) {
	t.Parallel()

	info, err := Unavailable{}.Inspect(context.Background(), "setup.msi")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Nil(t, info)

	var empty *Static
	_, err = empty.Inspect(context.Background(), "setup.msi")
	require.ErrorIs(t, err, ErrUnavailable)
}

// TestFromPropertiesPackageTypes maps ALLUSERS and MSIINSTALLPERUSER to manifest flags.
func TestFromPropertiesPackageTypes(t *testing.T) {
	t.Parallel()

	base := func(extra map[string]string) map[string]string {
		props := map[string]string{
			PropertyProductCode:    "{P}",
			PropertyProductVersion: "1.0.0",
		}
		for k, v := range extra {
			props[k] = v
		}

		return props
	}

	perUser, err := FromProperties(base(nil), Summary{})
	require.NoError(t, err)
	require.Equal(t, data.MsiPackageTypePerUser, perUser.Information.PackageType)
	require.Equal(t, ExecutionContextUser, perUser.Manifest.ExecutionContext)
	require.True(t, perUser.Manifest.IsUserInstall)
	require.False(t, perUser.Manifest.IsMachineInstall)

	machine, err := FromProperties(base(map[string]string{PropertyAllUsers: "1"}), Summary{})
	require.NoError(t, err)
	require.Equal(t, data.MsiPackageTypeMachine, machine.Information.PackageType)
	require.Equal(t, ExecutionContextSystem, machine.Manifest.ExecutionContext)
	require.True(t, machine.Manifest.IsMachineInstall)
	require.False(t, machine.Manifest.IsUserInstall)

	dual, err := FromProperties(base(map[string]string{PropertyAllUsers: "2"}), Summary{})
	require.NoError(t, err)
	require.Equal(t, ExecutionContextAny, dual.Manifest.ExecutionContext)
	require.False(t, dual.Manifest.IsUserInstall)
	require.False(t, dual.Manifest.IsMachineInstall)

	dualOptIn, err := FromProperties(base(map[string]string{
		PropertyAllUsers:       "2",
		PropertyInstallPerUser: "1",
	}), Summary{})
	require.NoError(t, err)
	require.True(t, dualOptIn.Manifest.IsUserInstall)
	require.True(t, dualOptIn.Manifest.IsMachineInstall)

	_, err = FromProperties(base(map[string]string{PropertyAllUsers: "3"}), Summary{})
	require.Error(t, err)
}

// TestFromPropertiesRebootAndNames reads REBOOT and prefers the summary stream.
func TestFromPropertiesRebootAndNames(t *testing.T) {
	t.Parallel()

	info, err := FromProperties(map[string]string{
		PropertyProductCode:    "{P}",
		PropertyProductVersion: "2.1",
		PropertyReboot:         "Force",
		PropertyProductName:    "From table",
		PropertyManufacturer:   "Contoso",
		PropertyUpgradeCode:    "{U}",
	}, Summary{ProductName: "From summary"})
	require.NoError(t, err)

	require.True(t, info.Information.RequiresReboot)
	require.True(t, info.Manifest.RequiresReboot)
	require.Equal(t, "From summary", info.Information.ProductName)
	require.Equal(t, "Contoso", info.Information.Publisher)
	require.Equal(t, "{U}", info.Manifest.UpgradeCode)

	suppressed, err := FromProperties(map[string]string{
		PropertyProductCode:    "{P}",
		PropertyProductVersion: "2.1",
		PropertyReboot:         "ReallySuppress",
	}, Summary{})
	require.NoError(t, err)
	require.False(t, suppressed.Information.RequiresReboot)

	_, err = FromProperties(map[string]string{PropertyProductVersion: "1"}, Summary{})
	require.Error(t, err)
}

// TestLoadStatic reads a YAML metadata file.
func TestLoadStatic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`properties:
  ProductCode: "{P}"
  ProductVersion: "3.0"
  ALLUSERS: "1"
summary:
  product_name: Contoso Agent
  manufacturer: Contoso
`), 0o600))

	inspector, err := LoadStatic(path)
	require.NoError(t, err)

	info, err := inspector.Inspect(context.Background(), "agent.msi")
	require.NoError(t, err)
	require.Equal(t, "Contoso Agent", info.Information.ProductName)
	require.Equal(t, data.MsiPackageTypeMachine, info.Information.PackageType)
}
