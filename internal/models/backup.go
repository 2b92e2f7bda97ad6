package models

import "time"

// BackupArtifact is a backup file held in the remote archive.
// It is never persisted locally; every listing goes back to the remote.
type BackupArtifact struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedTime    time.Time `json:"createdTime"`
	Size           int64     `json:"size"`
	MimeType       string    `json:"mimeType,omitempty"`
	WebViewLink    string    `json:"webViewLink,omitempty"`
	WebContentLink string    `json:"webContentLink,omitempty"`
}
