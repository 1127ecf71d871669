package data

import (
	"fmt"
	"time"
)

// UploadState is the lifecycle state of a remote content file.
type UploadState string

const (
	UploadStateSuccess        UploadState = "success"
	UploadStateTransientError UploadState = "transientError"
	UploadStateError          UploadState = "error"
	UploadStateUnknown        UploadState = "unknown"

	AzureStorageURIRequestSuccess  UploadState = "azureStorageUriRequestSuccess"
	AzureStorageURIRequestPending  UploadState = "azureStorageUriRequestPending"
	AzureStorageURIRequestFailed   UploadState = "azureStorageUriRequestFailed"
	AzureStorageURIRequestTimedOut UploadState = "azureStorageUriRequestTimedOut"

	AzureStorageURIRenewalSuccess  UploadState = "azureStorageUriRenewalSuccess"
	AzureStorageURIRenewalPending  UploadState = "azureStorageUriRenewalPending"
	AzureStorageURIRenewalFailed   UploadState = "azureStorageUriRenewalFailed"
	AzureStorageURIRenewalTimedOut UploadState = "azureStorageUriRenewalTimedOut"

	CommitFileSuccess  UploadState = "commitFileSuccess"
	CommitFilePending  UploadState = "commitFilePending"
	CommitFileFailed   UploadState = "commitFileFailed"
	CommitFileTimedOut UploadState = "commitFileTimedOut"
)

// IsFailure reports whether the state is a terminal failure that will never recover.
func (s UploadState) IsFailure() bool {
	switch s {
	case AzureStorageURIRequestFailed, AzureStorageURIRenewalFailed, CommitFileFailed:
		return true
	default:
		return false
	}
}

// ContentFileDescriptor describes the payload when the content file resource is created.
type ContentFileDescriptor struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`          // plaintext bytes
	SizeEncrypted int64  `json:"sizeEncrypted"` // container bytes
	Manifest      []byte `json:"manifest,omitempty"`
}

// ContentFile is the remote content file resource as returned by the service.
type ContentFile struct {
	ID                                string      `json:"id"`
	Name                              string      `json:"name,omitempty"`
	Size                              int64       `json:"size,omitempty"`
	SizeEncrypted                     int64       `json:"sizeEncrypted,omitempty"`
	UploadState                       UploadState `json:"uploadState"`
	AzureStorageURI                   string      `json:"azureStorageUri,omitempty"`
	AzureStorageURIExpirationDateTime *time.Time  `json:"azureStorageUriExpirationDateTime,omitempty"`
	IsCommitted                       bool        `json:"isCommitted,omitempty"`
}

// ContentVersion is a remote content version; each publish commits one.
type ContentVersion struct {
	ID string `json:"id"`
}

// ContentFileRef addresses a content file resource.
type ContentFileRef struct {
	AppID            string
	AppType          string // OData type without '#'
	ContentVersionID string
	FileID           string
}

func (r ContentFileRef) String() string {
	return fmt.Sprintf("%s/%s/contentVersions/%s/files/%s", r.AppID, r.AppType, r.ContentVersionID, r.FileID)
}
