package models

import "time"

// ProjectStatus is the lifecycle stage of a project.
type ProjectStatus string

const (
	ProjectStatusPlanning    ProjectStatus = "Planning"
	ProjectStatusDevelopment ProjectStatus = "Development"
	ProjectStatusTesting     ProjectStatus = "Testing"
	ProjectStatusLive        ProjectStatus = "Live"
	ProjectStatusMaintenance ProjectStatus = "Maintenance"
	ProjectStatusOnHold      ProjectStatus = "On Hold"
)

// ProjectStatuses lists every status in display order.
var ProjectStatuses = []ProjectStatus{
	ProjectStatusPlanning,
	ProjectStatusDevelopment,
	ProjectStatusTesting,
	ProjectStatusLive,
	ProjectStatusMaintenance,
	ProjectStatusOnHold,
}

// Valid reports whether s is one of the known project statuses.
func (s ProjectStatus) Valid() bool {
	for _, known := range ProjectStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Project is a tracked project and the root of its issues, credentials,
// team members and goals.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"projectName"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	StartDate   string        `json:"startDate"`
	TechStack   []string      `json:"technologyStack"`
	RepoURL     string        `json:"repoLink"`
	LiveURL     string        `json:"liveLink"`
	DevNotes    string        `json:"devNotes"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
