// Package health scores how well a project is being kept up from its
// issue backlog, goal checklist, and recent activity.
package health

import (
	"time"

	"github.com/joescharf/projectops/internal/models"
)

// Score represents the computed health of a project.
type Score struct {
	Total        int `json:"total"`
	IssueHealth  int `json:"issueHealth"`  // 0-40
	GoalProgress int `json:"goalProgress"` // 0-30
	Activity     int `json:"activity"`     // 0-30
}

// Scorer computes health scores for projects.
type Scorer struct {
	now func() time.Time
}

// NewScorer returns a Scorer that measures recency against now. A nil now
// uses time.Now.
func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// Score computes a health score (0-100) for a project.
func (s *Scorer) Score(project *models.Project, issues []*models.Issue, goals []*models.Goal) *Score {
	h := &Score{
		IssueHealth:  scoreIssues(issues, 40),
		GoalProgress: scoreGoals(goals, 30),
		Activity:     scoreRecency(s.now(), lastActivity(project, issues), 30),
	}
	h.Total = h.IssueHealth + h.GoalProgress + h.Activity
	return h
}

// lastActivity is the later of the project's last edit and its newest issue.
func lastActivity(project *models.Project, issues []*models.Issue) time.Time {
	var last time.Time
	if project != nil {
		last = project.UpdatedAt
	}
	for _, i := range issues {
		if i.CreatedAt.After(last) {
			last = i.CreatedAt
		}
	}
	return last
}

// scoreRecency converts time since last activity to points.
func scoreRecency(now, t time.Time, maxPoints int) int {
	if t.IsZero() {
		return 0
	}
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 1:
		return maxPoints
	case days <= 3:
		return int(float64(maxPoints) * 0.9)
	case days <= 7:
		return int(float64(maxPoints) * 0.75)
	case days <= 14:
		return int(float64(maxPoints) * 0.6)
	case days <= 30:
		return int(float64(maxPoints) * 0.4)
	case days <= 90:
		return int(float64(maxPoints) * 0.2)
	default:
		return int(float64(maxPoints) * 0.1)
	}
}

// scoreIssues rewards a small open backlog. Each open High issue costs an
// extra tenth of the points.
func scoreIssues(issues []*models.Issue, maxPoints int) int {
	if len(issues) == 0 {
		return maxPoints
	}

	open, urgent := 0, 0
	for _, i := range issues {
		if i.Status != models.IssueStatusOpen {
			continue
		}
		open++
		if i.Priority == models.IssuePriorityHigh {
			urgent++
		}
	}

	ratio := float64(open) / float64(len(issues))
	points := int(float64(maxPoints)*(1-ratio*0.8)) - urgent*maxPoints/10
	if points < 0 {
		return 0
	}
	return points
}

// scoreGoals is proportional to completed goals. A project with no goals
// gets a third of the points.
func scoreGoals(goals []*models.Goal, maxPoints int) int {
	if len(goals) == 0 {
		return maxPoints / 3
	}
	done := 0
	for _, g := range goals {
		if g.Completed {
			done++
		}
	}
	return maxPoints * done / len(goals)
}
