package database

import (
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"tagsink/internal/events"
	"tagsink/internal/identity"
	"tagsink/internal/model"
)

// seqIDs hands out predictable ids.
type seqIDs struct {
	prefix string
	n      int
}

func (g *seqIDs) New() string {
	g.n++
	return fmt.Sprintf("%s-%03d", g.prefix, g.n)
}

// newTestDB creates a new in-memory database with migrations applied.
func newTestDB(t *testing.T) (*SQLiteDatabase, *events.MemoryQueue) {
	t.Helper()

	queue := events.NewMemoryQueue(0)
	db, err := NewSQLiteDatabase(":memory:", queue, &seqIDs{prefix: "id"})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := db.Prepare(); err != nil {
		db.Close()
		t.Fatalf("failed to prepare database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db, queue
}

func mustEntities(t *testing.T, db *SQLiteDatabase, paths ...model.PathInfo) []*model.Entity {
	t.Helper()
	got, err := db.GetOrCreateEntities(paths)
	if err != nil {
		t.Fatalf("GetOrCreateEntities() error = %v", err)
	}
	return got
}

func mustTags(t *testing.T, db *SQLiteDatabase, names ...string) []string {
	t.Helper()
	got, err := db.GetOrCreateTagIDs(names)
	if err != nil {
		t.Fatalf("GetOrCreateTagIDs() error = %v", err)
	}
	return got
}

func dir(p string) model.PathInfo  { return model.PathInfo{NixPath: p, IsDir: true} }
func file(p string) model.PathInfo { return model.PathInfo{NixPath: p} }

func TestSQLiteDatabase_GetOrCreateEntities(t *testing.T) {
	t.Run("creates entities with hash of nixPath", func(t *testing.T) {
		db, _ := newTestDB(t)

		got := mustEntities(t, db, dir("/Invoices"), file("/Invoices/a.pdf"))
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].NixPath != "/Invoices" || !got[0].IsDir {
			t.Errorf("got[0] = %+v", got[0])
		}
		if got[1].Hash != identity.FileHash("/Invoices/a.pdf") {
			t.Errorf("Hash = %q, want %q", got[1].Hash, identity.FileHash("/Invoices/a.pdf"))
		}
	})

	t.Run("reuses existing entities", func(t *testing.T) {
		db, _ := newTestDB(t)

		first := mustEntities(t, db, file("/a.txt"))
		// isDir of an existing entity is never rewritten.
		second := mustEntities(t, db, dir("/a.txt"), file("/b.txt"))

		if second[0].ID != first[0].ID {
			t.Errorf("ID = %q, want %q", second[0].ID, first[0].ID)
		}
		if second[0].IsDir {
			t.Error("IsDir changed for existing entity")
		}
		if second[1].ID == first[0].ID {
			t.Error("distinct path got the same entity")
		}
	})

	t.Run("normalizes and de-duplicates input", func(t *testing.T) {
		db, _ := newTestDB(t)

		got := mustEntities(t, db, file("docs//x.txt"), file("/docs/./x.txt"), file(`\docs\x.txt`))
		if got[0].ID != got[1].ID || got[1].ID != got[2].ID {
			t.Errorf("ids = %q %q %q, want equal", got[0].ID, got[1].ID, got[2].ID)
		}
		if got[0].NixPath != "/docs/x.txt" {
			t.Errorf("NixPath = %q, want /docs/x.txt", got[0].NixPath)
		}

		all, err := db.ListEntities()
		if err != nil {
			t.Fatalf("ListEntities() error = %v", err)
		}
		if len(all) != 1 {
			t.Errorf("len(ListEntities) = %d, want 1", len(all))
		}
	})

	t.Run("publishes created entities only", func(t *testing.T) {
		db, queue := newTestDB(t)

		mustEntities(t, db, file("/a"))
		queue.Drain()
		mustEntities(t, db, file("/a"), file("/b"))

		evs := queue.Drain()
		if len(evs) != 1 {
			t.Fatalf("len(events) = %d, want 1", len(evs))
		}
		if evs[0].Kind != events.EntitiesCreated {
			t.Errorf("Kind = %q, want %q", evs[0].Kind, events.EntitiesCreated)
		}
		if len(evs[0].Entities) != 1 || evs[0].Entities[0].NixPath != "/b" {
			t.Errorf("Entities = %+v, want [/b]", evs[0].Entities)
		}

		mustEntities(t, db, file("/a"))
		if queue.Len() != 0 {
			t.Errorf("Len() = %d, want 0 when nothing was created", queue.Len())
		}
	})
}

func TestSQLiteDatabase_FindEntity(t *testing.T) {
	db, _ := newTestDB(t)
	created := mustEntities(t, db, file("/notes/todo.md"))[0]

	t.Run("by id", func(t *testing.T) {
		got, err := db.FindEntityByID(created.ID)
		if err != nil || got == nil || got.NixPath != "/notes/todo.md" {
			t.Errorf("FindEntityByID() = %+v, %v", got, err)
		}
	})

	t.Run("by path", func(t *testing.T) {
		got, err := db.FindEntityByPath("notes/todo.md")
		if err != nil || got == nil || got.ID != created.ID {
			t.Errorf("FindEntityByPath() = %+v, %v", got, err)
		}
	})

	t.Run("returns nil when not found", func(t *testing.T) {
		byID, err := db.FindEntityByID("missing")
		if err != nil || byID != nil {
			t.Errorf("FindEntityByID() = %+v, %v, want nil, nil", byID, err)
		}
		byHash, err := db.FindEntityByHash("000000000000")
		if err != nil || byHash != nil {
			t.Errorf("FindEntityByHash() = %+v, %v, want nil, nil", byHash, err)
		}
		withTags, err := db.FindEntityWithTags("missing")
		if err != nil || withTags != nil {
			t.Errorf("FindEntityWithTags() = %+v, %v, want nil, nil", withTags, err)
		}
	})
}

func TestSQLiteDatabase_FindEntitiesByPathPrefix(t *testing.T) {
	db, _ := newTestDB(t)
	mustEntities(t, db,
		dir("/a"), file("/a/x"), dir("/a/b"), file("/a/b/y"),
		file("/ab"), file("/a_c"), dir("/a%"), file("/a%/z"),
	)

	tests := []struct {
		dir  string
		want []string
	}{
		{"/a", []string{"/a/b", "/a/b/y", "/a/x"}},
		{"/a/b", []string{"/a/b/y"}},
		{"/a%", []string{"/a%/z"}},
		{"/ab", nil},
		{"/", []string{"/a", "/a%", "/a%/z", "/a/b", "/a/b/y", "/a/x", "/a_c", "/ab"}},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			got, err := db.FindEntitiesByPathPrefix(tt.dir)
			if err != nil {
				t.Fatalf("FindEntitiesByPathPrefix() error = %v", err)
			}
			var paths []string
			for _, e := range got {
				paths = append(paths, e.NixPath)
			}
			slices.Sort(paths)
			want := slices.Clone(tt.want)
			slices.Sort(want)
			if !slices.Equal(paths, want) {
				t.Errorf("paths = %v, want %v", paths, want)
			}
		})
	}
}

func TestSQLiteDatabase_GetOrCreateTagIDs(t *testing.T) {
	t.Run("matches case-insensitively", func(t *testing.T) {
		db, _ := newTestDB(t)

		first := mustTags(t, db, "Invoice")
		second := mustTags(t, db, "invoice", "INVOICE")
		if len(second) != 1 || second[0] != first[0] {
			t.Errorf("ids = %v, want [%s]", second, first[0])
		}

		tags, _ := db.ListTags()
		if len(tags) != 1 || tags[0].Name != "Invoice" {
			t.Errorf("ListTags() = %+v, want one tag named Invoice", tags)
		}
	})

	t.Run("skips empty names and trims", func(t *testing.T) {
		db, _ := newTestDB(t)

		got := mustTags(t, db, "", "  ", " work ", "Work")
		if len(got) != 1 {
			t.Fatalf("ids = %v, want one id", got)
		}
		tag, _ := db.FindTagByID(got[0])
		if tag.Name != "work" {
			t.Errorf("Name = %q, want %q", tag.Name, "work")
		}
	})

	t.Run("keeps first-seen order", func(t *testing.T) {
		db, _ := newTestDB(t)

		b := mustTags(t, db, "b")[0]
		got := mustTags(t, db, "a", "b", "c", "A")
		if len(got) != 3 || got[1] != b {
			t.Errorf("ids = %v, want [a %s c]", got, b)
		}
	})

	t.Run("assigns palette colors and publishes", func(t *testing.T) {
		db, queue := newTestDB(t)

		mustTags(t, db, "x", "y")
		evs := queue.Drain()
		if len(evs) != 1 || evs[0].Kind != events.TagsCreated || len(evs[0].Tags) != 2 {
			t.Fatalf("events = %+v, want one TagsCreated with two tags", evs)
		}
		for _, tag := range evs[0].Tags {
			if !slices.Contains(TagPalette, tag.Color) {
				t.Errorf("Color = %q not in palette", tag.Color)
			}
		}
	})
}

func TestSQLiteDatabase_SetTags(t *testing.T) {
	t.Run("cartesian product and idempotent", func(t *testing.T) {
		db, _ := newTestDB(t)
		ents := mustEntities(t, db, file("/a"), file("/b"))
		tags := mustTags(t, db, "t1", "t2")
		ids := []string{ents[0].ID, ents[1].ID}

		for range 2 {
			if err := db.SetTags(ids, tags); err != nil {
				t.Fatalf("SetTags() error = %v", err)
			}
		}

		for _, e := range ents {
			got, err := db.GetTagIDs(e.ID)
			if err != nil {
				t.Fatalf("GetTagIDs() error = %v", err)
			}
			want := slices.Clone(tags)
			slices.Sort(want)
			if !slices.Equal(got, want) {
				t.Errorf("GetTagIDs(%s) = %v, want %v", e.NixPath, got, want)
			}
		}
	})

	t.Run("missing ids are ignored", func(t *testing.T) {
		db, _ := newTestDB(t)
		e := mustEntities(t, db, file("/a"))[0]
		tag := mustTags(t, db, "t1")[0]

		if err := db.SetTags([]string{e.ID, "gone"}, []string{tag, "deleted-tag"}); err != nil {
			t.Fatalf("SetTags() error = %v", err)
		}

		got, _ := db.GetTagIDs(e.ID)
		if !slices.Equal(got, []string{tag}) {
			t.Errorf("GetTagIDs() = %v, want [%s]", got, tag)
		}
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		db, _ := newTestDB(t)
		e := mustEntities(t, db, file("/a"))[0]
		tags := mustTags(t, db, "t1", "t2")
		db.SetTags([]string{e.ID}, tags)

		for range 2 {
			if err := db.RemoveTags([]string{e.ID, "gone"}, tags[:1]); err != nil {
				t.Fatalf("RemoveTags() error = %v", err)
			}
		}

		got, _ := db.GetTagIDs(e.ID)
		if !slices.Equal(got, tags[1:]) {
			t.Errorf("GetTagIDs() = %v, want %v", got, tags[1:])
		}
	})
}

func TestSQLiteDatabase_RenamePath(t *testing.T) {
	t.Run("preserves id and tags", func(t *testing.T) {
		db, _ := newTestDB(t)
		e := mustEntities(t, db, file("/a/report.pdf"))[0]
		tag := mustTags(t, db, "finance")[0]
		db.SetTags([]string{e.ID}, []string{tag})

		res, err := db.RenamePath("/a/report.pdf", "/b/report.pdf")
		if err != nil {
			t.Fatalf("RenamePath() error = %v", err)
		}
		if res.DirRenamed {
			t.Error("DirRenamed = true for a file")
		}
		if !slices.Equal(res.DeletedHashes, []string{identity.FileHash("/a/report.pdf")}) {
			t.Errorf("DeletedHashes = %v", res.DeletedHashes)
		}
		want := model.SlimEntity{ID: e.ID, Hash: identity.FileHash("/b/report.pdf")}
		if len(res.Updated) != 1 || res.Updated[0] != want {
			t.Errorf("Updated = %+v, want [%+v]", res.Updated, want)
		}

		moved, _ := db.FindEntityByPath("/b/report.pdf")
		if moved == nil || moved.ID != e.ID {
			t.Fatalf("FindEntityByPath(new) = %+v, want id %s", moved, e.ID)
		}
		old, _ := db.FindEntityByPath("/a/report.pdf")
		if old != nil {
			t.Errorf("old path still resolves to %+v", old)
		}
		tags, _ := db.GetTagIDs(e.ID)
		if !slices.Equal(tags, []string{tag}) {
			t.Errorf("tags after rename = %v, want [%s]", tags, tag)
		}
	})

	t.Run("cascades to descendants", func(t *testing.T) {
		db, _ := newTestDB(t)
		ents := mustEntities(t, db, dir("/a"), dir("/a/b"), file("/a/b/c.txt"), file("/ab.txt"))

		res, err := db.RenamePath("/a", "/z")
		if err != nil {
			t.Fatalf("RenamePath() error = %v", err)
		}
		if !res.DirRenamed {
			t.Error("DirRenamed = false")
		}
		if len(res.Updated) != 3 {
			t.Errorf("len(Updated) = %d, want 3", len(res.Updated))
		}

		for path, id := range map[string]string{"/z": ents[0].ID, "/z/b": ents[1].ID, "/z/b/c.txt": ents[2].ID, "/ab.txt": ents[3].ID} {
			got, _ := db.FindEntityByPath(path)
			if got == nil || got.ID != id {
				t.Errorf("FindEntityByPath(%s) = %+v, want id %s", path, got, id)
			}
			if got != nil && got.Hash != identity.FileHash(path) {
				t.Errorf("Hash of %s = %q, want %q", path, got.Hash, identity.FileHash(path))
			}
		}
	})

	t.Run("untracked parent still moves descendants", func(t *testing.T) {
		db, _ := newTestDB(t)
		e := mustEntities(t, db, file("/a/x"))[0]

		res, err := db.RenamePath("/a", "/b")
		if err != nil {
			t.Fatalf("RenamePath() error = %v", err)
		}
		if len(res.Updated) != 1 || res.Updated[0].ID != e.ID {
			t.Errorf("Updated = %+v", res.Updated)
		}
	})

	t.Run("stale target is replaced", func(t *testing.T) {
		db, _ := newTestDB(t)
		ents := mustEntities(t, db, file("/a"), file("/b"))

		res, err := db.RenamePath("/a", "/b")
		if err != nil {
			t.Fatalf("RenamePath() error = %v", err)
		}
		if !slices.Contains(res.DeletedHashes, identity.FileHash("/b")) {
			t.Errorf("DeletedHashes = %v, want the stale hash included", res.DeletedHashes)
		}
		stale, _ := db.FindEntityByID(ents[1].ID)
		if stale != nil {
			t.Errorf("stale entity still present: %+v", stale)
		}
		got, _ := db.FindEntityByPath("/b")
		if got == nil || got.ID != ents[0].ID {
			t.Errorf("FindEntityByPath(/b) = %+v, want id %s", got, ents[0].ID)
		}
	})

	t.Run("no-ops", func(t *testing.T) {
		db, _ := newTestDB(t)
		mustEntities(t, db, dir("/a"), file("/a/x"))

		cases := [][2]string{{"/a", "/a"}, {"/", "/x"}, {"/a", "/"}, {"/a", "/a/inner"}, {"/a/x", "/a"}, {"/missing", "/other"}}
		for _, c := range cases {
			res, err := db.RenamePath(c[0], c[1])
			if err != nil {
				t.Fatalf("RenamePath(%s, %s) error = %v", c[0], c[1], err)
			}
			if len(res.Updated) != 0 || len(res.DeletedHashes) != 0 {
				t.Errorf("RenamePath(%s, %s) = %+v, want empty", c[0], c[1], res)
			}
		}
	})
}

func TestSQLiteDatabase_DeleteEntities(t *testing.T) {
	db, _ := newTestDB(t)
	ents := mustEntities(t, db, file("/a"), file("/b"))
	tag := mustTags(t, db, "t")[0]
	db.SetTags([]string{ents[0].ID, ents[1].ID}, []string{tag})

	if err := db.DeleteEntities([]string{ents[0].ID, "missing"}); err != nil {
		t.Fatalf("DeleteEntities() error = %v", err)
	}

	if got, _ := db.FindEntityByID(ents[0].ID); got != nil {
		t.Errorf("entity not deleted: %+v", got)
	}
	if got, _ := db.GetTagIDs(ents[0].ID); len(got) != 0 {
		t.Errorf("relations not deleted: %v", got)
	}
	if got, _ := db.GetTagIDs(ents[1].ID); len(got) != 1 {
		t.Errorf("unrelated relations touched: %v", got)
	}
}

func TestSQLiteDatabase_Tags(t *testing.T) {
	t.Run("find by name is case-insensitive", func(t *testing.T) {
		db, _ := newTestDB(t)
		id := mustTags(t, db, "Travel")[0]

		got, err := db.FindTagByName("TRAVEL")
		if err != nil || got == nil || got.ID != id {
			t.Errorf("FindTagByName() = %+v, %v", got, err)
		}
		missing, err := db.FindTagByName("nope")
		if err != nil || missing != nil {
			t.Errorf("FindTagByName(nope) = %+v, %v, want nil, nil", missing, err)
		}
	})

	t.Run("update", func(t *testing.T) {
		db, _ := newTestDB(t)
		id := mustTags(t, db, "old")[0]

		ok, err := db.UpdateTag(&model.Tag{ID: id, Name: "new", Color: "#000000"})
		if err != nil || !ok {
			t.Fatalf("UpdateTag() = %v, %v", ok, err)
		}
		got, _ := db.FindTagByID(id)
		if got.Name != "new" || got.Color != "#000000" {
			t.Errorf("tag = %+v", got)
		}

		ok, err = db.UpdateTag(&model.Tag{ID: "missing", Name: "x"})
		if err != nil || ok {
			t.Errorf("UpdateTag(missing) = %v, %v, want false, nil", ok, err)
		}
	})

	t.Run("delete cascades relations", func(t *testing.T) {
		db, _ := newTestDB(t)
		e := mustEntities(t, db, dir("/d"))[0]
		tags := mustTags(t, db, "t1", "t2")
		db.SetTags([]string{e.ID}, tags)

		if err := db.DeleteTags(tags[:1]); err != nil {
			t.Fatalf("DeleteTags() error = %v", err)
		}
		got, _ := db.GetTagIDs(e.ID)
		if !slices.Equal(got, tags[1:]) {
			t.Errorf("GetTagIDs() = %v, want %v", got, tags[1:])
		}
		if tag, _ := db.FindTagByID(tags[0]); tag != nil {
			t.Errorf("tag not deleted: %+v", tag)
		}
	})
}

func TestSQLiteDatabase_Sinks(t *testing.T) {
	db, _ := newTestDB(t)
	ents := mustEntities(t, db, dir("/Invoices"), dir("/Invoices/2024"), file("/Invoices/a.pdf"), dir("/Empty"))
	tags := mustTags(t, db, "t1", "t2")
	db.SetTags([]string{ents[0].ID, ents[1].ID, ents[2].ID}, tags[:1])
	db.SetTags([]string{ents[1].ID}, tags[1:])

	t.Run("list returns tagged directories", func(t *testing.T) {
		sinks, err := db.ListSinks()
		if err != nil {
			t.Fatalf("ListSinks() error = %v", err)
		}
		if len(sinks) != 2 {
			t.Fatalf("len(ListSinks) = %d, want 2", len(sinks))
		}
		if sinks[0].NixPath != "/Invoices" || len(sinks[0].TagIDs) != 1 {
			t.Errorf("sinks[0] = %+v", sinks[0])
		}
		if sinks[1].NixPath != "/Invoices/2024" || len(sinks[1].TagIDs) != 2 {
			t.Errorf("sinks[1] = %+v", sinks[1])
		}
	})

	t.Run("find sink", func(t *testing.T) {
		empty, err := db.FindSink(ents[3].ID)
		if err != nil || empty == nil || len(empty.TagIDs) != 0 {
			t.Errorf("FindSink(empty dir) = %+v, %v", empty, err)
		}
		notDir, err := db.FindSink(ents[2].ID)
		if err != nil || notDir != nil {
			t.Errorf("FindSink(file) = %+v, %v, want nil, nil", notDir, err)
		}
	})

	t.Run("entities with tags by hashes", func(t *testing.T) {
		got, err := db.FindEntitiesWithTagsByHashes([]string{ents[1].Hash, "unknown", ents[3].Hash})
		if err != nil {
			t.Fatalf("FindEntitiesWithTagsByHashes() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if len(got[0].TagIDs) != 2 || len(got[1].TagIDs) != 0 {
			t.Errorf("tags = %v / %v", got[0].TagIDs, got[1].TagIDs)
		}
	})
}

func TestSQLiteDatabase_Properties(t *testing.T) {
	db, _ := newTestDB(t)

	v, err := db.GetProperty("schemaVersion")
	if err != nil || v != "1" {
		t.Errorf("GetProperty(schemaVersion) = %q, %v, want 1", v, err)
	}

	if err := db.SetProperty("lastScan", "a"); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	if err := db.SetProperty("lastScan", "b"); err != nil {
		t.Fatalf("SetProperty() overwrite error = %v", err)
	}
	if v, _ := db.GetProperty("lastScan"); v != "b" {
		t.Errorf("GetProperty(lastScan) = %q, want b", v)
	}
	if v, err := db.GetProperty("unset"); err != nil || v != "" {
		t.Errorf("GetProperty(unset) = %q, %v", v, err)
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db, _ := newTestDB(t)
	mustEntities(t, db, file("/kept.txt"))

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(dest, nil, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	if err := restored.Prepare(); err != nil {
		t.Fatalf("Prepare() on backup error = %v", err)
	}
	got, _ := restored.FindEntityByPath("/kept.txt")
	if got == nil {
		t.Error("backup is missing entity")
	}
}
