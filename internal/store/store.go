package store

import (
	"context"
	"errors"

	"github.com/joescharf/projectops/internal/models"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// IssueListFilter specifies filters for listing issues.
type IssueListFilter struct {
	ProjectID string
	Status    models.IssueStatus
	Priority  models.IssuePriority
}

// ProjectStats holds per-project counters for dashboards and listings.
type ProjectStats struct {
	Issues         int `json:"issues"`
	OpenIssues     int `json:"openIssues"`
	Credentials    int `json:"credentials"`
	TeamMembers    int `json:"teamMembers"`
	Goals          int `json:"goals"`
	CompletedGoals int `json:"completedGoals"`
}

// Store defines the persistence interface for projectops.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	ProjectStats(ctx context.Context, projectID string) (*ProjectStats, error)

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, filter IssueListFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, issue *models.Issue) error
	DeleteIssue(ctx context.Context, id string) error

	// Credentials
	CreateCredential(ctx context.Context, c *models.Credential) error
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	ListCredentials(ctx context.Context, projectID string) ([]*models.Credential, error)
	UpdateCredential(ctx context.Context, c *models.Credential) error
	DeleteCredential(ctx context.Context, id string) error

	// Team members
	CreateTeamMember(ctx context.Context, m *models.TeamMember) error
	GetTeamMember(ctx context.Context, id string) (*models.TeamMember, error)
	ListTeamMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error)
	UpdateTeamMember(ctx context.Context, m *models.TeamMember) error
	DeleteTeamMember(ctx context.Context, id string) error

	// Goals
	CreateGoal(ctx context.Context, g *models.Goal) error
	GetGoal(ctx context.Context, id string) (*models.Goal, error)
	ListGoals(ctx context.Context, projectID string) ([]*models.Goal, error)
	UpdateGoal(ctx context.Context, g *models.Goal) error
	DeleteGoal(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
