// Package snapshot assembles a point-in-time export of one project and
// everything that hangs off it.
//
// The three child reads run concurrently without a shared transaction, so a
// document built while the project is being edited may mix states (an issue
// counted as open that closed a moment later). That is acceptable for a
// personal backup.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/projectops/internal/models"
)

// ExportTimeFormat is ISO-8601 UTC with millisecond precision.
const ExportTimeFormat = "2006-01-02T15:04:05.000Z"

// Reader is the read-only slice of the store the builder needs.
type Reader interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListIssuesForProject(ctx context.Context, projectID string) ([]*models.Issue, error)
	ListTeamMembers(ctx context.Context, projectID string) ([]*models.TeamMember, error)
	ListGoals(ctx context.Context, projectID string) ([]*models.Goal, error)
}

// Metadata carries the summary counters of a snapshot.
type Metadata struct {
	TotalIssues      int `json:"totalIssues"`
	TotalTeamMembers int `json:"totalTeamMembers"`
	TotalGoals       int `json:"totalGoals"`
	OpenIssues       int `json:"openIssues"`
	CompletedGoals   int `json:"completedGoals"`
}

// Document is the serializable export of a single project.
type Document struct {
	ExportedAt  string               `json:"exportedAt"`
	Project     *models.Project      `json:"project"`
	Issues      []*models.Issue      `json:"issues"`
	TeamMembers []*models.TeamMember `json:"teamMembers"`
	Goals       []*models.Goal       `json:"goals"`
	Metadata    Metadata             `json:"metadata"`
}

// MarshalIndent renders the document as two-space indented UTF-8 JSON.
func (d *Document) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Summarize computes the counters for a set of child entities.
func Summarize(issues []*models.Issue, team []*models.TeamMember, goals []*models.Goal) Metadata {
	md := Metadata{
		TotalIssues:      len(issues),
		TotalTeamMembers: len(team),
		TotalGoals:       len(goals),
	}
	for _, i := range issues {
		if i.Status == models.IssueStatusOpen {
			md.OpenIssues++
		}
	}
	for _, g := range goals {
		if g.Completed {
			md.CompletedGoals++
		}
	}
	return md
}

// Builder produces Documents from a Reader.
type Builder struct {
	reader Reader
	now    func() time.Time
}

// NewBuilder creates a Builder. A nil clock defaults to time.Now.
func NewBuilder(r Reader, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{reader: r, now: now}
}

// Build exports the project with the given id. Errors from the project
// lookup are returned as-is so callers can test for store.ErrNotFound.
func (b *Builder) Build(ctx context.Context, projectID string) (*Document, error) {
	project, err := b.reader.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var (
		issues []*models.Issue
		team   []*models.TeamMember
		goals  []*models.Goal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issues, err = b.reader.ListIssuesForProject(gctx, projectID)
		if err != nil {
			return fmt.Errorf("snapshot issues: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		team, err = b.reader.ListTeamMembers(gctx, projectID)
		if err != nil {
			return fmt.Errorf("snapshot team members: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		goals, err = b.reader.ListGoals(gctx, projectID)
		if err != nil {
			return fmt.Errorf("snapshot goals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Empty arrays, not null, in the exported JSON.
	if issues == nil {
		issues = []*models.Issue{}
	}
	if team == nil {
		team = []*models.TeamMember{}
	}
	if goals == nil {
		goals = []*models.Goal{}
	}

	return &Document{
		ExportedAt:  b.now().UTC().Format(ExportTimeFormat),
		Project:     project,
		Issues:      issues,
		TeamMembers: team,
		Goals:       goals,
		Metadata:    Summarize(issues, team, goals),
	}, nil
}
