package snapshot

import (
	"context"

	"github.com/joescharf/projectops/internal/models"
	"github.com/joescharf/projectops/internal/store"
)

type storeReader struct {
	store.Store
}

// FromStore adapts a store.Store to a Reader.
func FromStore(s store.Store) Reader {
	return storeReader{Store: s}
}

func (r storeReader) ListIssuesForProject(ctx context.Context, projectID string) ([]*models.Issue, error) {
	return r.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
}
