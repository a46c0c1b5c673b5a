package sinktree

import (
	"slices"
	"sort"

	"github.com/armon/go-radix"

	"tagsink/internal/model"
)

// SnapshotNode is the serializable form of a ForestNode.
type SnapshotNode struct {
	SinkID  string          `json:"sink_id"`
	NixPath string          `json:"nix_path"`
	TagIDs  []string        `json:"tag_ids"`
	Sinks   []*SnapshotNode `json:"sinks,omitempty"`
}

// Snapshot returns a deep copy of the collapsed forest.
func (t *Tree) Snapshot() []*SnapshotNode {
	return snapshotNodes(t.roots)
}

func snapshotNodes(nodes []*ForestNode) []*SnapshotNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]*SnapshotNode, len(nodes))
	for i, fn := range nodes {
		tags := make([]string, 0, len(fn.TagMap))
		for id := range fn.TagMap {
			tags = append(tags, id)
		}
		slices.Sort(tags)
		out[i] = &SnapshotNode{
			SinkID:  fn.SinkID,
			NixPath: fn.NixPath,
			TagIDs:  tags,
			Sinks:   snapshotNodes(fn.Sinks),
		}
	}
	return out
}

// LoadSnapshot replaces the tree's contents with a deep copy of snapshot.
// The prefix tree is repopulated too, so later OverwriteSink and Rebuild calls
// operate on the loaded state.
func (t *Tree) LoadSnapshot(snapshot []*SnapshotNode) {
	t.prefix = radix.New()

	var load func(nodes []*SnapshotNode) []*ForestNode
	load = func(nodes []*SnapshotNode) []*ForestNode {
		if len(nodes) == 0 {
			return nil
		}
		out := make([]*ForestNode, len(nodes))
		for i, sn := range nodes {
			t.OverwriteSink(model.Sink{ID: sn.SinkID, NixPath: sn.NixPath, TagIDs: sn.TagIDs})
			fn := &ForestNode{
				SinkID:  sn.SinkID,
				NixPath: sn.NixPath,
				TagMap:  make(map[string]struct{}, len(sn.TagIDs)),
				Sinks:   load(sn.Sinks),
			}
			for _, id := range sn.TagIDs {
				fn.TagMap[id] = struct{}{}
			}
			out[i] = fn
		}
		return out
	}
	t.roots = load(snapshot)
}

// Equal reports whether two snapshots are structurally identical.
func Equal(a, b []*SnapshotNode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.SinkID != y.SinkID || x.NixPath != y.NixPath {
			return false
		}
		if !slices.Equal(x.TagIDs, y.TagIDs) {
			return false
		}
		if !Equal(x.Sinks, y.Sinks) {
			return false
		}
	}
	return true
}

// ChangeKind classifies a Change.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	Changed ChangeKind = "changed"
)

// Change describes how a single sink differs between two snapshots.
// For Removed, the fields describe the sink as it was before.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	SinkID  string     `json:"sink_id"`
	NixPath string     `json:"nix_path"`
	TagIDs  []string   `json:"tag_ids,omitempty"`
	Parent  string     `json:"parent,omitempty"` // NixPath of the enclosing sink, "" for roots
}

type flatSink struct {
	sinkID string
	tagIDs []string
	parent string
}

func flatten(nodes []*SnapshotNode, parent string, into map[string]flatSink) {
	for _, sn := range nodes {
		into[sn.NixPath] = flatSink{sinkID: sn.SinkID, tagIDs: sn.TagIDs, parent: parent}
		flatten(sn.Sinks, sn.NixPath, into)
	}
}

// Diff lists per-sink differences from before to after, ordered by NixPath.
// A sink counts as Changed when its id, tags or enclosing sink differ.
func Diff(before, after []*SnapshotNode) []Change {
	old := make(map[string]flatSink)
	cur := make(map[string]flatSink)
	flatten(before, "", old)
	flatten(after, "", cur)

	var changes []Change
	for p, s := range cur {
		prev, ok := old[p]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: Added, SinkID: s.sinkID, NixPath: p, TagIDs: s.tagIDs, Parent: s.parent})
		case prev.sinkID != s.sinkID || prev.parent != s.parent || !slices.Equal(prev.tagIDs, s.tagIDs):
			changes = append(changes, Change{Kind: Changed, SinkID: s.sinkID, NixPath: p, TagIDs: s.tagIDs, Parent: s.parent})
		}
	}
	for p, s := range old {
		if _, ok := cur[p]; !ok {
			changes = append(changes, Change{Kind: Removed, SinkID: s.sinkID, NixPath: p, TagIDs: s.tagIDs, Parent: s.parent})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].NixPath < changes[j].NixPath })
	return changes
}
