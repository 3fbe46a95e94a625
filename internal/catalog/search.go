package catalog

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/types"
)

const defaultSearchLimit = 10

// Search runs the substring search of every catalog entity and groups the
// first limit matches of each.
func (s *Service) Search(ctx context.Context, q string, limit int) (*types.SearchResults, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.Validation("search query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	opts := types.ListOptions{Page: 1, Limit: limit, Search: q}

	servers, err := listPage(ctx, s, serverMeta, squirrel.And{}, opts, scanServer)
	if err != nil {
		return nil, err
	}
	databases, err := listPage(ctx, s, databaseMeta, squirrel.And{}, opts, scanDatabase)
	if err != nil {
		return nil, err
	}
	tables, err := listPage(ctx, s, tableMeta, squirrel.And{}, opts, scanTable)
	if err != nil {
		return nil, err
	}
	elements, err := listPage(ctx, s, elementMeta, squirrel.And{}, opts, scanElement)
	if err != nil {
		return nil, err
	}
	abbreviations, err := listPage(ctx, s, abbreviationMeta, squirrel.And{}, opts, scanAbbreviation)
	if err != nil {
		return nil, err
	}

	return &types.SearchResults{
		Query:         q,
		Servers:       servers.Items,
		Databases:     databases.Items,
		Tables:        tables.Items,
		Elements:      elements.Items,
		Abbreviations: abbreviations.Items,
	}, nil
}
