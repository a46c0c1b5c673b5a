package sinktree

import "tagsink/internal/model"

// FindBestSink returns the sink a file carrying tagIDs should be filed into,
// or nil when no sink shares any tag with it.
//
// A sink is a candidate when its tag set intersects tagIDs. The deepest
// candidate wins (forest roots have depth 1), so a nested, more specific sink
// beats a shallower one even if the shallower one matches more tags. Equally
// deep candidates are ordered by NixPath and the lexically smallest wins.
func (t *Tree) FindBestSink(tagIDs []string) *model.SinkMatch {
	if len(tagIDs) == 0 {
		return nil
	}
	query := make(map[string]struct{}, len(tagIDs))
	for _, id := range tagIDs {
		query[id] = struct{}{}
	}

	var best *ForestNode
	bestDepth := 0

	var visit func(nodes []*ForestNode, depth int)
	visit = func(nodes []*ForestNode, depth int) {
		for _, fn := range nodes {
			if fn.intersects(query) {
				if depth > bestDepth || (depth == bestDepth && fn.NixPath < best.NixPath) {
					best, bestDepth = fn, depth
				}
			}
			visit(fn.Sinks, depth+1)
		}
	}
	visit(t.roots, 1)

	if best == nil {
		return nil
	}
	return &model.SinkMatch{ID: best.SinkID, NixPath: best.NixPath, Depth: bestDepth}
}

func (fn *ForestNode) intersects(query map[string]struct{}) bool {
	small, large := fn.TagMap, query
	if len(small) > len(large) {
		small, large = large, small
	}
	for id := range small {
		if _, ok := large[id]; ok {
			return true
		}
	}
	return false
}
