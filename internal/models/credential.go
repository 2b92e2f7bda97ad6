package models

// Credential is a key/value secret attached to a project.
// Value is stored as plain text.
type Credential struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}
