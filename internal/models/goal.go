package models

// Goal is a checklist item for a project.
type Goal struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}
