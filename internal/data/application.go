package data

import "encoding/xml"

// ApplicationInfo is the root of IntuneWinPackage/Metadata/Detection.xml.
// The portal reads it with a format-sensitive parser, so field order is fixed.
type ApplicationInfo struct {
	XMLName                xml.Name          `xml:"ApplicationInfo"`
	ToolVersion            string            `xml:"ToolVersion,attr"`
	Name                   string            `xml:"Name"`
	UnencryptedContentSize int64             `xml:"UnencryptedContentSize"`
	FileName               string            `xml:"FileName"`
	SetupFile              string            `xml:"SetupFile"`
	EncryptionInfo         EncryptionInfoXML `xml:"EncryptionInfo"`
	MsiInfo                *MsiInfo          `xml:"MsiInfo,omitempty"`
}

func NewApplicationInfo(name, fileName, setupFile, toolVersion string) *ApplicationInfo {
	return &ApplicationInfo{
		Name:        name,
		FileName:    fileName,
		SetupFile:   setupFile,
		ToolVersion: toolVersion,
	}
}

// MsiInfo is the element form of an installer manifest inside Detection.xml.
type MsiInfo struct {
	ExecutionContext           string `xml:"MsiExecutionContext"`
	RequiresReboot             bool   `xml:"MsiRequiresReboot"`
	UpgradeCode                string `xml:"MsiUpgradeCode,omitempty"` // guid
	IsMachineInstall           bool   `xml:"MsiIsMachineInstall"`
	IsUserInstall              bool   `xml:"MsiIsUserInstall"`
	IncludesServices           bool   `xml:"MsiIncludesServices"`
	ContainsSystemRegistryKeys bool   `xml:"MsiContainsSystemRegistryKeys"`
	ContainsSystemFolders      bool   `xml:"MsiContainsSystemFolders"`
}

// MsiManifest is the attribute form of the installer manifest. Its serialized bytes are
// sent as the content file manifest for windowsMobileMSI apps.
type MsiManifest struct {
	XMLName                    xml.Name `xml:"MobileMsiData"`
	ExecutionContext           string   `xml:"MsiExecutionContext,attr"`
	RequiresReboot             bool     `xml:"MsiRequiresReboot,attr"`
	UpgradeCode                string   `xml:"MsiUpgradeCode,attr,omitempty"`
	IsMachineInstall           bool     `xml:"MsiIsMachineInstall,attr"`
	IsUserInstall              bool     `xml:"MsiIsUserInstall,attr"`
	IncludesServices           bool     `xml:"MsiIncludesServices,attr"`
	ContainsSystemRegistryKeys bool     `xml:"MsiContainsSystemRegistryKeys,attr"`
	ContainsSystemFolders      bool     `xml:"MsiContainsSystemFolders,attr"`
}

// Bytes serializes the manifest without an XML declaration.
func (m *MsiManifest) Bytes() ([]byte, error) {
	return xml.Marshal(m)
}

// ParseMsiManifest is the inverse of MsiManifest.Bytes.
func ParseMsiManifest(b []byte) (*MsiManifest, error) {
	m := new(MsiManifest)
	if err := xml.Unmarshal(b, m); err != nil {
		return nil, err
	}

	return m, nil
}

// Info converts the manifest to its Detection.xml element form.
func (m *MsiManifest) Info() *MsiInfo {
	return &MsiInfo{
		ExecutionContext:           m.ExecutionContext,
		RequiresReboot:             m.RequiresReboot,
		UpgradeCode:                m.UpgradeCode,
		IsMachineInstall:           m.IsMachineInstall,
		IsUserInstall:              m.IsUserInstall,
		IncludesServices:           m.IncludesServices,
		ContainsSystemRegistryKeys: m.ContainsSystemRegistryKeys,
		ContainsSystemFolders:      m.ContainsSystemFolders,
	}
}
