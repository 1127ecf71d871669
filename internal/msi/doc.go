// Package msi reads Windows Installer metadata used to describe MSI payloads.
//
// Reading an installer database needs the Windows Installer runtime, which
// has no Go-native counterpart. The Inspector interface lets callers plug in
// whatever reader the platform offers. Unavailable is the default and always
// reports ErrUnavailable, so callers treat the payload as opaque. Static
// serves fixed metadata, for example loaded from a YAML file produced on a
// Windows machine. FromProperties turns raw installer properties into the
// application metadata and the device manifest.
package msi
