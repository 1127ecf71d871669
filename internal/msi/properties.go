package msi

import (
	"fmt"
	"strings"

	"github.com/lwalthert/intuneapp/internal/data"
)

// Installer property names consulted by FromProperties.
const (
	PropertyProductCode    = "ProductCode"
	PropertyProductVersion = "ProductVersion"
	PropertyUpgradeCode    = "UpgradeCode"
	PropertyProductName    = "ProductName"
	PropertyManufacturer   = "Manufacturer"
	PropertyAllUsers       = "ALLUSERS"
	PropertyReboot         = "REBOOT"
	PropertyInstallPerUser = "MSIINSTALLPERUSER"
)

// Execution contexts written to the manifest.
const (
	ExecutionContextUser   = "User"
	ExecutionContextSystem = "System"
	ExecutionContextAny    = "Any"
)

// REBOOT=Force and its abbreviations.
const rebootForcePrefix = 'F'

// Summary holds values from the installer summary stream. They take precedence over
// the property table when present.
type Summary struct {
	ProductName  string
	Manufacturer string
}

// FromProperties derives application metadata and the device manifest from raw
// installer properties. ProductCode and ProductVersion are required.
func FromProperties(props map[string]string, summary Summary) (*Info, error) {
	get := func(name string) string { return strings.TrimSpace(props[name]) }

	productCode := get(PropertyProductCode)
	if productCode == "" {
		return nil, fmt.Errorf("property not found: %s", PropertyProductCode)
	}

	productVersion := get(PropertyProductVersion)
	if productVersion == "" {
		return nil, fmt.Errorf("property not found: %s", PropertyProductVersion)
	}

	packageType, err := packageTypeOf(get(PropertyAllUsers))
	if err != nil {
		return nil, err
	}

	reboot := get(PropertyReboot)
	perUserOptIn := get(PropertyInstallPerUser) != ""

	info := &data.MsiInformation{
		ProductCode:    productCode,
		ProductVersion: productVersion,
		UpgradeCode:    get(PropertyUpgradeCode),
		RequiresReboot: reboot != "" && reboot[0] == rebootForcePrefix,
		PackageType:    packageType,
		ProductName:    firstNonBlank(summary.ProductName, get(PropertyProductName)),
		Publisher:      firstNonBlank(summary.Manufacturer, get(PropertyManufacturer)),
	}

	dualOptIn := packageType == data.MsiPackageTypeDual && perUserOptIn

	manifest := &data.MsiManifest{
		ExecutionContext: executionContextOf(packageType),
		RequiresReboot:   info.RequiresReboot,
		UpgradeCode:      info.UpgradeCode,
		IsUserInstall:    packageType == data.MsiPackageTypePerUser || dualOptIn,
		IsMachineInstall: packageType == data.MsiPackageTypeMachine || dualOptIn,
	}

	return &Info{Information: info, Manifest: manifest}, nil
}

func packageTypeOf(allUsers string) (string, error) {
	switch allUsers {
	case "":
		return data.MsiPackageTypePerUser, nil
	case "1":
		return data.MsiPackageTypeMachine, nil
	case "2":
		return data.MsiPackageTypeDual, nil
	default:
		return "", fmt.Errorf("invalid %s property value: %q", PropertyAllUsers, allUsers)
	}
}

func executionContextOf(packageType string) string {
	switch packageType {
	case data.MsiPackageTypePerUser:
		return ExecutionContextUser
	case data.MsiPackageTypeMachine:
		return ExecutionContextSystem
	default:
		return ExecutionContextAny
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	return ""
}
