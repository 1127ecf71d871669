package data

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// OData types of the line-of-business apps this tool produces.
const (
	Win32LobAppType       = "#microsoft.graph.win32LobApp"
	WindowsMobileMSIType  = "#microsoft.graph.windowsMobileMSI"
	PowerShellScriptRule  = "#microsoft.graph.win32LobAppPowerShellScriptDetection"
	ProductCodeRule       = "#microsoft.graph.win32LobAppProductCodeDetection"
	RunAsAccountSystem    = "system"
	RunAsAccountUser      = "user"
	MsiPackageTypePerUser = "perUser"
	MsiPackageTypeMachine = "perMachine"
	MsiPackageTypeDual    = "dualPurpose"
)

// MobileLobApp is the subset of the management API's mobile app record the tool reads and writes.
type MobileLobApp struct {
	ODataType               string `json:"@odata.type"`
	ID                      string `json:"id,omitempty"`
	DisplayName             string `json:"displayName,omitempty"`
	Publisher               string `json:"publisher,omitempty"`
	FileName                string `json:"fileName,omitempty"`
	CommittedContentVersion string `json:"committedContentVersion,omitempty"`

	// windowsMobileMSI
	ProductCode     string `json:"productCode,omitempty"`
	ProductVersion  string `json:"productVersion,omitempty"`
	IdentityVersion string `json:"identityVersion,omitempty"`

	// win32LobApp
	SetupFilePath        string             `json:"setupFilePath,omitempty"`
	InstallCommandLine   string             `json:"installCommandLine,omitempty"`
	UninstallCommandLine string             `json:"uninstallCommandLine,omitempty"`
	InstallExperience    *InstallExperience `json:"installExperience,omitempty"`
	MsiInformation       *MsiInformation    `json:"msiInformation,omitempty"`
	DetectionRules       []DetectionRule    `json:"detectionRules,omitempty"`
}

type InstallExperience struct {
	RunAsAccount string `json:"runAsAccount"`
}

// MsiInformation is what the installer collaborator could read from an .msi.
type MsiInformation struct {
	ProductCode    string `json:"productCode,omitempty"`
	ProductVersion string `json:"productVersion,omitempty"`
	UpgradeCode    string `json:"upgradeCode,omitempty"`
	RequiresReboot bool   `json:"requiresReboot"`
	PackageType    string `json:"packageType,omitempty"`
	ProductName    string `json:"productName,omitempty"`
	Publisher      string `json:"publisher,omitempty"`
}

type DetectionRule struct {
	ODataType     string `json:"@odata.type"`
	ScriptContent string `json:"scriptContent,omitempty"`
	ProductCode   string `json:"productCode,omitempty"`
}

// Kind returns the OData type without the leading '#'.
func (a *MobileLobApp) Kind() string {
	return strings.TrimPrefix(a.ODataType, "#")
}

func (a *MobileLobApp) IsWin32() bool {
	return a.Kind() == strings.TrimPrefix(Win32LobAppType, "#")
}

func (a *MobileLobApp) IsMSI() bool {
	return a.Kind() == strings.TrimPrefix(WindowsMobileMSIType, "#")
}

// ApplyDefaults fills properties the service requires when creating a win32 app.
// They can be changed later in the portal.
func (a *MobileLobApp) ApplyDefaults() {
	if !a.IsWin32() {
		return
	}

	if a.InstallExperience == nil {
		a.InstallExperience = &InstallExperience{RunAsAccount: RunAsAccountSystem}
	}

	if a.InstallCommandLine == "" {
		if a.MsiInformation == nil {
			a.InstallCommandLine = a.SetupFilePath
		} else {
			a.InstallCommandLine = fmt.Sprintf("msiexec /i \"%s\"", a.SetupFilePath)
		}
	}

	if a.UninstallCommandLine == "" {
		if a.MsiInformation == nil {
			a.UninstallCommandLine = "echo Not Supported"
		} else {
			a.UninstallCommandLine = fmt.Sprintf("msiexec /x \"%s\"", a.MsiInformation.ProductCode)
		}
	}

	if len(a.DetectionRules) == 0 {
		if a.MsiInformation == nil {
			// nothing to infer from, use an empty script
			a.DetectionRules = []DetectionRule{{
				ODataType:     PowerShellScriptRule,
				ScriptContent: base64.StdEncoding.EncodeToString(nil),
			}}
		} else {
			a.DetectionRules = []DetectionRule{{
				ODataType:   ProductCodeRule,
				ProductCode: a.MsiInformation.ProductCode,
			}}
		}
	}
}
