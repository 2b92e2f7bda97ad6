package models

import "time"

// IssueStatus represents the state of an issue.
type IssueStatus string

const (
	IssueStatusOpen   IssueStatus = "Open"
	IssueStatusClosed IssueStatus = "Closed"
)

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "Low"
	IssuePriorityMedium IssuePriority = "Medium"
	IssuePriorityHigh   IssuePriority = "High"
)

// Issue represents a tracked bug or task for a project.
type Issue struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Priority    IssuePriority `json:"priority"`
	Status      IssueStatus   `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Valid reports whether s is a known issue status.
func (s IssueStatus) Valid() bool {
	return s == IssueStatusOpen || s == IssueStatusClosed
}

// Valid reports whether p is a known issue priority.
func (p IssuePriority) Valid() bool {
	switch p {
	case IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh:
		return true
	}
	return false
}
