package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/treelinehq/canopy/pkg/repo"
)

// Listing parameter defaults.
const (
	defaultMaxItems = 100
)

// parseListOptions extracts skipCount, maxItems, orderBy and where from
// the query string.
//
// Malformed numerics are InvalidArgument here at the boundary; range
// violations (negative skipCount, maxItems below one) pass through so
// the repository rejects them uniformly for every adapter.
func parseListOptions(r *http.Request) (repo.ListOptions, error) {
	opts := repo.ListOptions{MaxItems: defaultMaxItems}
	query := r.URL.Query()

	if raw := query.Get("skipCount"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, repo.NewError(repo.KindInvalidArgument, "skipCount must be an integer")
		}
		opts.SkipCount = n
	}
	if raw := query.Get("maxItems"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, repo.NewError(repo.KindInvalidArgument, "maxItems must be an integer")
		}
		opts.MaxItems = n
	}

	orderBy, err := parseOrderBy(query.Get("orderBy"))
	if err != nil {
		return opts, err
	}
	opts.OrderBy = orderBy

	filter, err := parseWhere(query.Get("where"))
	if err != nil {
		return opts, err
	}
	opts.Filter = filter

	return opts, nil
}

// parseOrderBy parses a comma-separated sort clause like
// "isFolder DESC,name ASC". Direction defaults to ascending.
func parseOrderBy(raw string) ([]repo.SortKey, error) {
	if raw == "" {
		return nil, nil
	}

	var keys []repo.SortKey
	for _, clause := range strings.Split(raw, ",") {
		fields := strings.Fields(clause)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, repo.NewError(repo.KindInvalidArgument, "malformed orderBy clause: "+clause)
		}

		key := repo.SortKey{Ascending: true}
		switch repo.SortField(fields[0]) {
		case repo.SortByName, repo.SortByIsFolder, repo.SortByCreatedAt,
			repo.SortByModifiedAt, repo.SortBySize:
			key.Field = repo.SortField(fields[0])
		default:
			return nil, repo.NewError(repo.KindInvalidArgument, "unknown orderBy field: "+fields[0])
		}

		if len(fields) == 2 {
			switch strings.ToUpper(fields[1]) {
			case "ASC":
			case "DESC":
				key.Ascending = false
			default:
				return nil, repo.NewError(repo.KindInvalidArgument, "orderBy direction must be ASC or DESC")
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// parseWhere parses the parenthesized filter predicate:
//
//	(isFolder=true)
//	(isFile=false)
//	(nodeType='cm:content')
//	(nodeType='cm:content' INCLUDESUBTYPES)
//
// Contradictory combinations are not judged here; the repository owns
// that rule.
func parseWhere(raw string) (repo.ChildFilter, error) {
	var filter repo.ChildFilter
	if raw == "" {
		return filter, nil
	}

	if !strings.HasPrefix(raw, "(") || !strings.HasSuffix(raw, ")") {
		return filter, repo.NewError(repo.KindInvalidArgument, "where clause must be parenthesized")
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])

	for _, clause := range strings.Split(inner, " AND ") {
		clause = strings.TrimSpace(clause)

		includeSubtypes := false
		if trimmed, found := strings.CutSuffix(clause, " INCLUDESUBTYPES"); found {
			includeSubtypes = true
			clause = strings.TrimSpace(trimmed)
		}

		name, value, found := strings.Cut(clause, "=")
		if !found {
			return filter, repo.NewError(repo.KindInvalidArgument, "malformed where clause: "+clause)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)

		switch name {
		case "isFolder", "isFile":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return filter, repo.NewError(repo.KindInvalidArgument, name+" must be true or false")
			}
			if name == "isFolder" {
				filter.IsFolder = &b
			} else {
				filter.IsFile = &b
			}
		case "nodeType":
			unquoted := strings.Trim(value, "'")
			if unquoted == "" {
				return filter, repo.NewError(repo.KindInvalidArgument, "nodeType must not be empty")
			}
			filter.Type = repo.QName(unquoted)
			filter.IncludeSubtypes = includeSubtypes
		default:
			return filter, repo.NewError(repo.KindInvalidArgument, "unknown where predicate: "+name)
		}
	}
	return filter, nil
}
