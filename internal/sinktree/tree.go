// Package sinktree answers "which directory should a file with these tags be
// filed into".
//
// A Tree holds every sink (tagged directory) of a collection in a prefix tree
// keyed by path, plus a collapsed forest containing only the nodes that are
// actual sinks. Callers overwrite individual sinks as their tag sets change and
// then Rebuild the forest once per batch.
package sinktree

import (
	"slices"
	"strings"

	"github.com/armon/go-radix"

	"tagsink/internal/identity"
	"tagsink/internal/model"
)

// node is the payload stored in the prefix tree.
type node struct {
	sinkID  string
	nixPath string
	tagIDs  []string // sorted, unique; empty means not a sink
}

// ForestNode is an entry of the collapsed forest. Sinks holds the nearest
// tagged descendants; untagged intermediate directories are not represented.
type ForestNode struct {
	SinkID  string
	NixPath string
	TagMap  map[string]struct{}
	Sinks   []*ForestNode
}

// Tree is the sink index of one collection. It is not safe for concurrent use;
// the owning collection serializes access.
type Tree struct {
	prefix *radix.Tree
	roots  []*ForestNode
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{prefix: radix.New()}
}

// treeKey terminates every key with "/" so that stored prefixes of a key are
// exactly its ancestor directories ("/a/" is a prefix of "/a/b/" but not of "/ab/").
func treeKey(nixPath string) string {
	return nixPath + "/"
}

// OverwriteSink stores s at its path, replacing whatever was there before.
// The root and empty paths are ignored. The forest is not rebuilt.
func (t *Tree) OverwriteSink(s model.Sink) {
	if s.NixPath == "" {
		return
	}
	p := identity.Normalize(s.NixPath)
	if p == identity.Root {
		return
	}

	t.prefix.Insert(treeKey(p), &node{
		sinkID:  s.ID,
		nixPath: p,
		tagIDs:  normalizeTagIDs(s.TagIDs),
	})
}

// Rebuild recomputes the collapsed forest from the prefix tree. It must run
// after every batch of OverwriteSink calls.
func (t *Tree) Rebuild() {
	var roots []*ForestNode
	var open []*ForestNode // chain of tagged ancestors of the current key

	// Walk visits keys in lexical order, so the descendants of a key follow it
	// contiguously and a stack of open ancestors is enough.
	t.prefix.Walk(func(k string, v interface{}) bool {
		n := v.(*node)
		if len(n.tagIDs) == 0 {
			return false
		}

		fn := &ForestNode{
			SinkID:  n.sinkID,
			NixPath: n.nixPath,
			TagMap:  make(map[string]struct{}, len(n.tagIDs)),
		}
		for _, id := range n.tagIDs {
			fn.TagMap[id] = struct{}{}
		}

		for len(open) > 0 && !strings.HasPrefix(k, treeKey(open[len(open)-1].NixPath)) {
			open = open[:len(open)-1]
		}
		if len(open) == 0 {
			roots = append(roots, fn)
		} else {
			parent := open[len(open)-1]
			parent.Sinks = append(parent.Sinks, fn)
		}
		open = append(open, fn)
		return false
	})

	// Keys end in "/", so "/a b/" walks before "/a/"; order siblings by nixPath.
	sortByPath(roots)
	t.roots = roots
}

func sortByPath(nodes []*ForestNode) {
	slices.SortFunc(nodes, func(a, b *ForestNode) int {
		return strings.Compare(a.NixPath, b.NixPath)
	})
	for _, fn := range nodes {
		sortByPath(fn.Sinks)
	}
}

// Reset removes every node and the forest.
func (t *Tree) Reset() {
	t.prefix = radix.New()
	t.roots = nil
}

// Roots returns the forest roots. The result must not be modified.
func (t *Tree) Roots() []*ForestNode {
	return t.roots
}

// Len returns the number of sinks in the forest.
func (t *Tree) Len() int {
	n := 0
	var count func([]*ForestNode)
	count = func(nodes []*ForestNode) {
		for _, fn := range nodes {
			n++
			count(fn.Sinks)
		}
	}
	count(t.roots)
	return n
}

// Nodes returns the number of nodes in the prefix tree, tagged or not.
func (t *Tree) Nodes() int {
	return t.prefix.Len()
}

func normalizeTagIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
