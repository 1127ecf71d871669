package data

import "encoding/base64"

type Profile string

const (
	ProfileVersion1 Profile = "ProfileVersion1"

	// FileDigestSHA256 is the only digest algorithm the service accepts.
	FileDigestSHA256 = "SHA256"
)

// Sizes of the cryptographic material carried by an EncryptionInfo.
const (
	KeySize    = 32 // AES-256 and HMAC-SHA256 keys
	IVSize     = 16 // AES block size
	MacSize    = 32 // HMAC-SHA256 digest
	DigestSize = 32 // SHA-256 digest of the plaintext
)

// EncryptionInfo is the envelope the service needs to decrypt and verify a container.
// The JSON form is used both for the companion .intunewin.json document and for the
// body of the commit request, byte slices are encoded as standard base64.
type EncryptionInfo struct {
	EncryptionKey        []byte  `json:"encryptionKey"`        // 32 byte AES key
	FileDigest           []byte  `json:"fileDigest"`           // hash of the unencrypted file
	FileDigestAlgorithm  string  `json:"fileDigestAlgorithm"`  // SHA256 is the only supported value
	InitializationVector []byte  `json:"initializationVector"` // IV for the AES encryption
	Mac                  []byte  `json:"mac"`                  // HMAC of IV + ciphertext
	MacKey               []byte  `json:"macKey"`               // 32 byte HMAC key
	ProfileIdentifier    Profile `json:"profileIdentifier"`
}

// EncryptionInfoXML is the Detection.xml projection of EncryptionInfo.
type EncryptionInfoXML struct {
	EncryptionKey        string  `xml:"EncryptionKey"`
	FileDigest           string  `xml:"FileDigest"`
	FileDigestAlgorithm  string  `xml:"FileDigestAlgorithm"`
	InitializationVector string  `xml:"InitializationVector"`
	Mac                  string  `xml:"Mac"`
	MacKey               string  `xml:"MacKey"`
	ProfileIdentifier    Profile `xml:"ProfileIdentifier"`
}

// XML returns the base64 text form used inside Detection.xml.
func (e *EncryptionInfo) XML() EncryptionInfoXML {
	enc := base64.StdEncoding

	return EncryptionInfoXML{
		EncryptionKey:        enc.EncodeToString(e.EncryptionKey),
		FileDigest:           enc.EncodeToString(e.FileDigest),
		FileDigestAlgorithm:  e.FileDigestAlgorithm,
		InitializationVector: enc.EncodeToString(e.InitializationVector),
		Mac:                  enc.EncodeToString(e.Mac),
		MacKey:               enc.EncodeToString(e.MacKey),
		ProfileIdentifier:    e.ProfileIdentifier,
	}
}

// Decode converts the Detection.xml form back into an EncryptionInfo.
func (x EncryptionInfoXML) Decode() (*EncryptionInfo, error) {
	info := &EncryptionInfo{
		FileDigestAlgorithm: x.FileDigestAlgorithm,
		ProfileIdentifier:   x.ProfileIdentifier,
	}

	fields := []struct {
		dst *[]byte
		src string
	}{
		{&info.EncryptionKey, x.EncryptionKey},
		{&info.FileDigest, x.FileDigest},
		{&info.InitializationVector, x.InitializationVector},
		{&info.Mac, x.Mac},
		{&info.MacKey, x.MacKey},
	}
	for _, f := range fields {
		b, err := base64.StdEncoding.DecodeString(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = b
	}

	return info, nil
}

// Valid reports whether all key material has the sizes the format requires.
func (e *EncryptionInfo) Valid() bool {
	return e != nil &&
		len(e.EncryptionKey) == KeySize &&
		len(e.MacKey) == KeySize &&
		len(e.InitializationVector) == IVSize &&
		len(e.Mac) == MacSize &&
		len(e.FileDigest) == DigestSize &&
		e.FileDigestAlgorithm == FileDigestSHA256 &&
		e.ProfileIdentifier == ProfileVersion1
}
