package memory

import (
	"sort"
	"strings"

	"github.com/treelinehq/canopy/pkg/repo"
)

// ListChildren lists a folder's children with filtering, multi-key sorting
// and offset pagination.
func (s *MemoryStore) ListChildren(opCtx *repo.OperationContext, parent repo.NodeID, opts repo.ListOptions) (*repo.ChildPage, error) {
	if err := checkContext(opCtx); err != nil {
		return nil, err
	}

	if err := validateListOptions(opts); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.tenant(opCtx)
	if err != nil {
		return nil, err
	}

	parentData, ok := ts.nodes[parent]
	if !ok {
		return nil, repo.NewErrorAt(repo.KindNotFound, "parent node not found", string(parent))
	}
	if !parentData.node.IsFolder {
		return nil, repo.NewErrorAt(repo.KindInvalidArgument, "node is not a folder", string(parent))
	}
	if !s.canPerform(ts, opCtx.Principal, parentData, repo.ActionRead) {
		return nil, repo.NewErrorAt(repo.KindPermissionDenied, "not permitted to read node", string(parent))
	}

	// Collect matching children the caller can read.
	var matches []*nodeData
	for _, childID := range ts.children[parent] {
		child, ok := ts.nodes[childID]
		if !ok {
			continue
		}
		if !s.matchesFilter(child, opts.Filter) {
			continue
		}
		if !s.canPerform(ts, opCtx.Principal, child, repo.ActionRead) {
			continue
		}
		matches = append(matches, child)
	}

	sortChildren(matches, opts.OrderBy)

	total := len(matches)
	start := opts.SkipCount
	if start > total {
		start = total
	}
	end := start + opts.MaxItems
	if end > total {
		end = total
	}

	page := &repo.ChildPage{
		Entries:      make([]*repo.Node, 0, end-start),
		TotalItems:   total,
		HasMoreItems: end < total,
		SkipCount:    opts.SkipCount,
		MaxItems:     opts.MaxItems,
	}
	for _, nd := range matches[start:end] {
		page.Entries = append(page.Entries, s.toPublic(nd))
	}
	return page, nil
}

// validateListOptions rejects malformed pagination and contradictory or
// mutually exclusive filter predicates before touching the tree.
func validateListOptions(opts repo.ListOptions) error {
	if opts.MaxItems < 1 {
		return repo.NewError(repo.KindInvalidArgument, "maxItems must be at least 1")
	}
	if opts.SkipCount < 0 {
		return repo.NewError(repo.KindInvalidArgument, "skipCount must not be negative")
	}

	filter := opts.Filter
	if filter.IsFolder != nil && filter.IsFile != nil && *filter.IsFolder && *filter.IsFile {
		return repo.NewError(repo.KindInvalidArgument,
			"isFolder and isFile filters are contradictory")
	}
	if filter.Type != "" && (filter.IsFolder != nil || filter.IsFile != nil) {
		return repo.NewError(repo.KindInvalidArgument,
			"type filter and isFolder/isFile filters are mutually exclusive")
	}

	for _, key := range opts.OrderBy {
		switch key.Field {
		case repo.SortByName, repo.SortByIsFolder, repo.SortByCreatedAt,
			repo.SortByModifiedAt, repo.SortBySize:
		default:
			return repo.NewErrorAt(repo.KindInvalidArgument, "unknown sort field", string(key.Field))
		}
	}
	return nil
}

func (s *MemoryStore) matchesFilter(nd *nodeData, filter repo.ChildFilter) bool {
	if filter.IsFolder != nil && nd.node.IsFolder != *filter.IsFolder {
		return false
	}
	if filter.IsFile != nil && nd.node.IsFile != *filter.IsFile {
		return false
	}
	if filter.Type != "" {
		if filter.IncludeSubtypes {
			if !s.model.IsSubtype(nd.node.Type, filter.Type) {
				return false
			}
		} else if nd.node.Type != filter.Type {
			return false
		}
	}
	return true
}

// sortChildren applies the sort keys in order with a stable tie-break on
// creation order.
func sortChildren(nodes []*nodeData, keys []repo.SortKey) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		for _, key := range keys {
			cmp := compareBy(a, b, key.Field)
			if cmp == 0 {
				continue
			}
			if key.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return a.seq < b.seq
	})
}

func compareBy(a, b *nodeData, field repo.SortField) int {
	switch field {
	case repo.SortByName:
		return strings.Compare(a.node.Name, b.node.Name)
	case repo.SortByIsFolder:
		return compareBool(a.node.IsFolder, b.node.IsFolder)
	case repo.SortByCreatedAt:
		return a.node.CreatedAt.Compare(b.node.CreatedAt)
	case repo.SortByModifiedAt:
		return a.node.ModifiedAt.Compare(b.node.ModifiedAt)
	case repo.SortBySize:
		return compareInt64(contentSize(a), contentSize(b))
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func contentSize(nd *nodeData) int64 {
	if nd.node.Content == nil {
		return 0
	}
	return nd.node.Content.Size
}
