package pkg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/lwalthert/intuneapp/internal/data"
)

const (
	toolVersion    = "1.4.0.0"
	outputFileName = "IntunePackage.intunewin" // The name of the encrypted content file inside the portal package
)

// textQuotes undoes the escaping encoding/xml applies to quotes in character data.
var textQuotes = strings.NewReplacer("&#39;", "'", "&#34;", `"`)

// DetectionXML renders IntuneWinPackage/Metadata/Detection.xml for a package:
// no declaration, two-space indentation and CRLF line endings.
func DetectionXML(p *data.Package) ([]byte, error) {
	setupFile := p.App.FileName
	if p.App.IsWin32() {
		setupFile = p.App.SetupFilePath
	}

	info := data.NewApplicationInfo(p.App.DisplayName, outputFileName, setupFile, toolVersion)
	info.UnencryptedContentSize = p.File.Size
	info.EncryptionInfo = p.EncryptionInfo.XML()

	if len(p.File.Manifest) > 0 {
		manifest, err := data.ParseMsiManifest(p.File.Manifest)
		if err != nil {
			return nil, fmt.Errorf("parse manifest: %w", err)
		}
		info.MsiInfo = manifest.Info()
	}

	out, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}

	// Quotes only need escaping in attributes, and the only attribute is ToolVersion.
	out = []byte(textQuotes.Replace(string(out)))

	return bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n")), nil
}

// parseDetectionXML is the inverse of DetectionXML.
func parseDetectionXML(b []byte) (*data.ApplicationInfo, error) {
	info := new(data.ApplicationInfo)
	if err := xml.Unmarshal(b, info); err != nil {
		return nil, fmt.Errorf("decode Detection.xml: %w", err)
	}

	return info, nil
}
