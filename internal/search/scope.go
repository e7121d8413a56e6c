package search

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/inodb/featureindex/internal/feature"
)

// ErrEmptyScope is returned when a scope names neither a project nor files.
var ErrEmptyScope = errors.New("empty scope")

// Resolver looks up file membership. Authorization has already been checked
// by the caller for every project and file it passes in.
type Resolver interface {
	ProjectFiles(ctx context.Context, id feature.ProjectID) ([]feature.FileID, error)
	ReferenceFiles(ctx context.Context, id feature.ReferenceID) ([]feature.FileID, error)
}

// Scope selects the files a query runs against: a project, an explicit file
// list, or both (the files of the list that belong to the project).
type Scope struct {
	ProjectID feature.ProjectID
	FileIDs   []feature.FileID
}

// Files scopes a query to an explicit file list.
func Files(ids ...feature.FileID) Scope {
	return Scope{FileIDs: ids}
}

// Project scopes a query to a project's files.
func Project(id feature.ProjectID) Scope {
	return Scope{ProjectID: id}
}

// fileIDs resolves the scope to a sorted, de-duplicated file list.
func (e *Engine) fileIDs(ctx context.Context, scope Scope) ([]feature.FileID, error) {
	if scope.ProjectID == 0 && len(scope.FileIDs) == 0 {
		return nil, ErrEmptyScope
	}

	ids := slices.Clone(scope.FileIDs)
	if scope.ProjectID != 0 {
		if e.resolver == nil {
			return nil, fmt.Errorf("resolve project %d: no resolver configured", scope.ProjectID)
		}
		members, err := e.resolver.ProjectFiles(ctx, scope.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("resolve project %d: %w", scope.ProjectID, err)
		}
		if len(scope.FileIDs) == 0 {
			ids = slices.Clone(members)
		} else {
			ids = slices.DeleteFunc(ids, func(id feature.FileID) bool {
				return !slices.Contains(members, id)
			})
		}
	}

	slices.Sort(ids)
	return slices.Compact(ids), nil
}
