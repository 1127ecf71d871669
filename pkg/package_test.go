package pkg

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/msi"
)

func makeContentDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "agent")
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return dir
}

func staticInspector() *msi.Static {
	info, err := msi.FromProperties(map[string]string{
		msi.PropertyProductCode:    "{11111111-2222-3333-4444-555555555555}",
		msi.PropertyProductVersion: "1.2.3",
		msi.PropertyUpgradeCode:    "{UPGRADE}",
		msi.PropertyAllUsers:       "1",
	}, msi.Summary{ProductName: "Contoso Agent", Manufacturer: "Contoso"})
	if err != nil {
		panic(err)
	}

	return &msi.Static{Info: info}
}

// TestBuildPackageFromDirectory zips the folder and picks the only executable.
func TestBuildPackageFromDirectory(t *testing.T) {
	t.Parallel()

	dir := makeContentDir(t, map[string]string{
		"setup.exe":       "MZ",
		"config/app.json": "{}",
	})

	p, err := BuildPackage(context.Background(), dir, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer p.Close()

	require.True(t, p.App.IsWin32())
	require.Equal(t, "agent", p.App.DisplayName)
	require.Equal(t, "agent.intunewin", p.App.FileName)
	require.Equal(t, "setup.exe", p.App.SetupFilePath)
	require.Equal(t, data.RunAsAccountSystem, p.App.InstallExperience.RunAsAccount)
	require.Equal(t, EncryptedSize(p.File.Size), p.File.SizeEncrypted)
	require.Empty(t, p.File.Manifest)
	require.NoError(t, ValidatePackage(p))

	var plain bytes.Buffer
	require.NoError(t, DecryptContent(p.Data(), &plain, p.EncryptionInfo))

	zr, err := zip.NewReader(bytes.NewReader(plain.Bytes()), int64(plain.Len()))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
		require.Equal(t, zip.Deflate, f.Method)
	}
	require.ElementsMatch(t, []string{"setup.exe", "config/app.json"}, names)
}

// TestResolveSetupFile prefers a single msi, then a single exe, and rejects ambiguity.
func TestResolveSetupFile(t *testing.T) {
	t.Parallel()

	both := makeContentDir(t, map[string]string{"a.msi": "", "b.exe": ""})
	got, err := resolveSetupFile(both, "")
	require.NoError(t, err)
	require.Equal(t, "a.msi", got)

	ambiguous := makeContentDir(t, map[string]string{"a.exe": "", "b.exe": ""})
	_, err = resolveSetupFile(ambiguous, "")
	require.ErrorIs(t, err, ErrorInvalidSetupFile)

	got, err = resolveSetupFile(ambiguous, "b.exe")
	require.NoError(t, err)
	require.Equal(t, "b.exe", got)

	_, err = resolveSetupFile(ambiguous, filepath.Join("..", "b.exe"))
	require.ErrorIs(t, err, ErrorInvalidSetupFile)

	empty := makeContentDir(t, map[string]string{"readme.txt": ""})
	_, err = resolveSetupFile(empty, "")
	require.ErrorIs(t, err, ErrorInvalidSetupFile)
}

// TestBuildPackageMissingSource reports fatal input.
func TestBuildPackageMissingSource(t *testing.T) {
	t.Parallel()

	_, err := BuildPackage(context.Background(), filepath.Join(t.TempDir(), "nope.msi"))
	require.ErrorIs(t, err, ErrSourceNotFound)
}

// TestBuildPackageMSI produces a windowsMobileMSI app with a manifest when metadata is readable.
func TestBuildPackageMSI(t *testing.T) {
	t.Parallel()

	source, _ := writeRandomFile(t, t.TempDir(), "agent.msi", 3000)

	p, err := BuildPackage(context.Background(), source, WithInspector(staticInspector()), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer p.Close()

	require.True(t, p.App.IsMSI())
	require.Equal(t, "Contoso Agent", p.App.DisplayName)
	require.Equal(t, "Contoso", p.App.Publisher)
	require.Equal(t, "1.2.3", p.App.IdentityVersion)
	require.Equal(t, "Contoso Agent.intunewin", p.App.FileName)
	require.Equal(t, int64(3000), p.File.Size)

	manifest, err := data.ParseMsiManifest(p.File.Manifest)
	require.NoError(t, err)
	require.Equal(t, msi.ExecutionContextSystem, manifest.ExecutionContext)
	require.True(t, manifest.IsMachineInstall)

	// Without metadata the same file is an opaque win32 payload.
	opaque, err := BuildPackage(context.Background(), source, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer opaque.Close()

	require.True(t, opaque.App.IsWin32())
	require.Equal(t, "agent.msi", opaque.App.SetupFilePath)
	require.Nil(t, opaque.App.MsiInformation)
}

// TestBuildPackageDirectoryWithMSI keeps a folder with an msi a win32 app.
func TestBuildPackageDirectoryWithMSI(t *testing.T) {
	t.Parallel()

	dir := makeContentDir(t, map[string]string{"agent.msi": "msi", "setup.exe": "MZ"})

	p, err := BuildPackage(context.Background(), dir, WithInspector(staticInspector()), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer p.Close()

	require.True(t, p.App.IsWin32())
	require.Equal(t, "agent.msi", p.App.SetupFilePath)
	require.NotNil(t, p.App.MsiInformation)
	require.Empty(t, p.File.Manifest)
}

// TestPortalPackage stores both entries uncompressed and writes a CRLF Detection.xml.
func TestPortalPackage(t *testing.T) {
	t.Parallel()

	source, _ := writeRandomFile(t, t.TempDir(), "agent.msi", 500)

	p, err := BuildPackage(context.Background(), source, WithInspector(staticInspector()), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer p.Close()

	var portal bytes.Buffer
	require.NoError(t, WritePortalPackage(context.Background(), p, &portal))

	zr, err := zip.NewReader(bytes.NewReader(portal.Bytes()), int64(portal.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	entries := map[string]*zip.File{}
	for _, f := range zr.File {
		require.Equal(t, zip.Store, f.Method, f.Name)
		entries[f.Name] = f
	}

	content := entries["IntuneWinPackage/Contents/IntunePackage.intunewin"]
	require.NotNil(t, content)
	require.Equal(t, uint64(p.File.SizeEncrypted), content.UncompressedSize64)

	rc, err := entries["IntuneWinPackage/Metadata/Detection.xml"].Open()
	require.NoError(t, err)
	detection, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	text := string(detection)
	require.True(t, strings.HasPrefix(text, `<ApplicationInfo ToolVersion="1.4.0.0">`+"\r\n"), text)
	require.NotContains(t, text, "<?xml")
	require.NotContains(t, strings.ReplaceAll(text, "\r\n", ""), "\n")
	require.Contains(t, text, "\r\n  <Name>Contoso Agent</Name>\r\n")
	require.Contains(t, text, "<FileName>IntunePackage.intunewin</FileName>")
	require.Contains(t, text, "<SetupFile>Contoso Agent.intunewin</SetupFile>")
	require.Contains(t, text, "<MsiExecutionContext>System</MsiExecutionContext>")

	order := []string{"<EncryptionKey>", "<FileDigest>", "<FileDigestAlgorithm>", "<InitializationVector>", "<Mac>", "<MacKey>", "<ProfileIdentifier>"}
	last := -1
	for _, tag := range order {
		idx := strings.Index(text, tag)
		require.Greater(t, idx, last, tag)
		last = idx
	}
}

// TestDetectionXMLQuotes writes quotes in element text as plain characters.
func TestDetectionXMLQuotes(t *testing.T) {
	t.Parallel()

	p := data.NewPackage(
		&data.MobileLobApp{ODataType: data.Win32LobAppType, DisplayName: `Bob's "App" & <Tools>`, SetupFilePath: "setup.exe"},
		&data.EncryptionInfo{ProfileIdentifier: data.ProfileVersion1, FileDigestAlgorithm: data.FileDigestSHA256},
		&data.ContentFileDescriptor{Size: 10},
		nil,
	)

	detection, err := DetectionXML(p)
	require.NoError(t, err)
	require.Contains(t, string(detection), `<Name>Bob's "App" &amp; &lt;Tools&gt;</Name>`)

	parsed, err := parseDetectionXML(detection)
	require.NoError(t, err)
	require.Equal(t, `Bob's "App" & <Tools>`, parsed.Name)
	require.Equal(t, "setup.exe", parsed.SetupFile)
}

// TestArtifactsRoundTrip writes the three artifacts and loads the package back.
func TestArtifactsRoundTrip(t *testing.T) {
	t.Parallel()

	dir := makeContentDir(t, map[string]string{"setup.exe": strings.Repeat("x", 10_000)})
	out := t.TempDir()

	p, err := BuildPackage(context.Background(), dir, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer p.Close()

	artifacts, err := WriteArtifacts(context.Background(), p, out)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "agent.intunewin.json"), artifacts.Metadata)
	require.Equal(t, filepath.Join(out, "agent.intunewin"), artifacts.Data)
	require.Equal(t, filepath.Join(out, "agent.portal.intunewin"), artifacts.Portal)

	raw, err := os.ReadFile(artifacts.Metadata)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.ElementsMatch(t, []string{"app", "encryptionInfo", "file"}, keys(doc))

	loaded, err := LoadPackage(context.Background(), artifacts.Metadata)
	require.NoError(t, err)
	defer loaded.Close()

	require.Equal(t, p.App, loaded.App)
	require.Equal(t, p.File, loaded.File)
	require.Equal(t, p.EncryptionInfo, loaded.EncryptionInfo)

	iw, err := OpenFile(artifacts.Portal)
	require.NoError(t, err)
	defer iw.Close()

	require.Equal(t, "agent", iw.Name)
	require.Equal(t, p.EncryptionInfo, iw.EncryptionInfo())

	var plain bytes.Buffer
	require.NoError(t, iw.ExtractContent(&plain))
	require.Equal(t, p.File.Size, int64(plain.Len()))
}

// TestLoadPackageRejectsSizeMismatch fails before anything is uploaded.
func TestLoadPackageRejectsSizeMismatch(t *testing.T) {
	t.Parallel()

	dir := makeContentDir(t, map[string]string{"setup.exe": "MZ"})
	out := t.TempDir()

	p, err := BuildPackage(context.Background(), dir, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer p.Close()

	p.File.SizeEncrypted += 16
	artifacts, err := WriteArtifacts(context.Background(), p, out)
	require.NoError(t, err)

	_, err = LoadPackage(context.Background(), artifacts.Metadata)
	require.ErrorIs(t, err, ErrSizeMismatch)

	_, err = LoadPackage(context.Background(), filepath.Join(out, "missing.intunewin.json"))
	require.ErrorIs(t, err, ErrSourceNotFound)
}

// TestValidatePackageRejectsWrongSize catches plaintext sizes off by less than a padding block.
func TestValidatePackageRejectsWrongSize(t *testing.T) {
	t.Parallel()

	for _, delta := range []int64{1, 15, 16} {
		dir := makeContentDir(t, map[string]string{"setup.exe": strings.Repeat("MZ", 81)})

		p, err := BuildPackage(context.Background(), dir, WithTempDir(t.TempDir()))
		require.NoError(t, err)
		require.NoError(t, ValidatePackage(p))

		p.File.Size += delta
		require.ErrorIs(t, ValidatePackage(p), ErrSizeMismatch, "delta %d", delta)

		// A descriptor that agrees with itself still has to agree with the content.
		p.File.SizeEncrypted = EncryptedSize(p.File.Size)
		require.ErrorIs(t, ValidatePackage(p), ErrSizeMismatch, "delta %d", delta)

		require.NoError(t, p.Close())
	}
}

// TestOpenFileDetectsTampering rejects a portal package whose container was modified.
func TestOpenFileDetectsTampering(t *testing.T) {
	t.Parallel()

	dir := makeContentDir(t, map[string]string{"setup.exe": "MZ-payload"})

	p, err := BuildPackage(context.Background(), dir, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer p.Close()

	b := make([]byte, 1)
	f := p.Data().(*tempFile)
	_, err = f.ReadAt(b, HeaderSize)
	require.NoError(t, err)
	b[0] ^= 0x01
	_, err = f.WriteAt(b, HeaderSize)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tampered.portal.intunewin")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WritePortalPackage(context.Background(), p, out))
	require.NoError(t, out.Close())

	_, err = OpenFile(path)
	require.ErrorIs(t, err, ErrMACMismatch)
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
