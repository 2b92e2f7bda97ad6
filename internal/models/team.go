package models

// TeamMember is a person working on a project.
type TeamMember struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Contact   string `json:"contact"`
}
