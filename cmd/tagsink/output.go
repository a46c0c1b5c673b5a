package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tagsink/internal/app"
	"tagsink/internal/model"
	"tagsink/internal/sinktree"
	"tagsink/internal/tagsink"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCollections(statuses []app.CollectionStatus) {
	if len(statuses) == 0 {
		fmt.Println("No collections configured.")
		return
	}
	for _, st := range statuses {
		if st.Error != "" {
			fmt.Printf("%-12s  %s  FAILED: %s\n", st.Slug, st.Root, st.Error)
			continue
		}
		fmt.Printf("%-12s  %s  %d sink(s)\n", st.Slug, st.Root, st.Sinks)
	}
}

func printTagResult(res any) {
	r := res.(*tagsink.TagResult)
	for _, p := range r.Skipped {
		fmt.Printf("skipped %s\n", p)
	}
	fmt.Printf("%d path(s), %d tag(s)\n", len(r.Entities), len(r.TagIDs))
}

func printTags(res any) {
	tags := res.([]*model.Tag)
	if len(tags) == 0 {
		fmt.Println("No tags.")
		return
	}
	for _, t := range tags {
		fmt.Printf("%s  %s  %s\n", t.ID, t.Color, t.Name)
	}
}

func printCount(format string) func(any) {
	return func(res any) {
		fmt.Printf(format, res.(*app.CountResult).Count)
	}
}

func printList(res any) {
	entries := res.([]tagsink.ListEntry)
	if len(entries) == 0 {
		fmt.Println("Empty directory.")
		return
	}
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		fmt.Printf("%-40s  %s\n", name, strings.Join(e.TagIDs, ","))
	}
}

func printMove(res any) {
	r := res.(*tagsink.MoveResult)
	fmt.Printf("%s -> %s\n", r.From, r.To)
}

func printRename(res any) {
	r := res.(*model.RenameResult)
	fmt.Printf("Updated %d entit(ies)\n", len(r.Updated))
}

func printSinkMatch(res any) {
	m := res.(*model.SinkMatch)
	if m == nil {
		fmt.Println("No matching sink.")
		return
	}
	fmt.Println(m.NixPath)
}

func printSinkTree(res any) {
	nodes := res.([]*sinktree.SnapshotNode)
	if len(nodes) == 0 {
		fmt.Println("No sinks.")
		return
	}
	var walk func(nodes []*sinktree.SnapshotNode, depth int)
	walk = func(nodes []*sinktree.SnapshotNode, depth int) {
		for _, n := range nodes {
			fmt.Printf("%s%s  [%s]\n", strings.Repeat("  ", depth), n.NixPath, strings.Join(n.TagIDs, ","))
			walk(n.Sinks, depth+1)
		}
	}
	walk(nodes, 0)
}

func printFileResult(res any) {
	r := res.(*tagsink.FileResult)
	switch {
	case r.Moved:
		fmt.Printf("%s -> %s\n", r.From, r.To)
	case r.Sink == nil:
		fmt.Printf("No sink for %s\n", r.From)
	default:
		fmt.Printf("%s already in %s\n", r.From, r.Sink.NixPath)
	}
}
