package tagsink_test

import (
	"testing"
	"time"

	"tagsink/internal/events"
	"tagsink/internal/sinktree"
	"tagsink/internal/tagsink"
	"tagsink/internal/testutil"
)

type fixture struct {
	c     *tagsink.Collection
	store tagsink.Store
	fsmgr *testutil.MockFilesystemManager
	queue *events.MemoryQueue
	clock *testutil.StubClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	queue := events.NewMemoryQueue(0)
	f := &fixture{
		store: testutil.NewTestDatabase(t, queue),
		fsmgr: testutil.NewMockFilesystemManager(),
		queue: queue,
		clock: testutil.FixedClock(),
	}
	f.c = tagsink.NewCollection("docs", f.store, f.fsmgr, queue, tagsink.NewNopLogger(), f.clock)
	if err := f.c.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return f
}

// tag tags nixPaths with names and drains the queue.
func (f *fixture) tag(t *testing.T, names []string, nixPaths ...string) *tagsink.TagResult {
	t.Helper()
	raw := make([]string, len(nixPaths))
	for i, p := range nixPaths {
		raw[i] = f.fsmgr.Host(p)
	}
	res, err := f.c.TagPaths(raw, names)
	if err != nil {
		t.Fatalf("TagPaths(%v, %v) error = %v", nixPaths, names, err)
	}
	f.c.Events()
	return res
}

func (f *fixture) bestSink(t *testing.T, names ...string) string {
	t.Helper()
	m, err := f.c.BestSink(names)
	if err != nil {
		t.Fatalf("BestSink(%v) error = %v", names, err)
	}
	if m == nil {
		return ""
	}
	return m.NixPath
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func findEvent(evs []events.Event, kind events.Kind) *events.Event {
	for i := range evs {
		if evs[i].Kind == kind {
			return &evs[i]
		}
	}
	return nil
}

// flatPaths lists the NixPaths of a snapshot depth-first.
func flatPaths(nodes []*sinktree.SnapshotNode) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.NixPath)
		out = append(out, flatPaths(n.Sinks)...)
	}
	return out
}

func TestCollection_Open(t *testing.T) {
	t.Run("loads stored sinks", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/Invoices/2024")
		f.tag(t, []string{"invoice"}, "/Invoices")
		f.tag(t, []string{"2024"}, "/Invoices/2024")

		reopened := tagsink.NewCollection("docs", f.store, f.fsmgr, events.NewMemoryQueue(0), tagsink.NewNopLogger(), f.clock)
		if err := reopened.Open(); err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		if !sinktree.Equal(reopened.SinkSnapshot(), f.c.SinkSnapshot()) {
			t.Errorf("reopened snapshot = %v, want %v", flatPaths(reopened.SinkSnapshot()), flatPaths(f.c.SinkSnapshot()))
		}
	})

	t.Run("empty store has no sinks", func(t *testing.T) {
		f := newFixture(t)
		if snap := f.c.SinkSnapshot(); len(snap) != 0 {
			t.Errorf("SinkSnapshot() = %v, want empty", flatPaths(snap))
		}
	})
}

func TestCollection_Accessors(t *testing.T) {
	f := newFixture(t)

	if got := f.c.Slug(); got != "docs" {
		t.Errorf("Slug() = %q, want docs", got)
	}
	if got := f.c.Root(); got != testutil.MockRoot {
		t.Errorf("Root() = %q, want %q", got, testutil.MockRoot)
	}
	if got := f.c.StorePath(); got != ":memory:" {
		t.Errorf("StorePath() = %q, want :memory:", got)
	}
}

func TestCollection_Events(t *testing.T) {
	t.Run("tagging a directory publishes creation and sink events", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/Invoices")

		if _, err := f.c.TagPaths([]string{f.fsmgr.Host("/Invoices")}, []string{"invoice"}); err != nil {
			t.Fatalf("TagPaths() error = %v", err)
		}

		evs := f.c.Events()
		want := []events.Kind{events.TagsCreated, events.EntitiesCreated, events.SinksChanged}
		got := kinds(evs)
		if len(got) != len(want) {
			t.Fatalf("events = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event %d = %s, want %s", i, got[i], want[i])
			}
		}

		changes := evs[2].SinkChanges
		if len(changes) != 1 || changes[0].Kind != sinktree.Added || changes[0].NixPath != "/Invoices" {
			t.Errorf("SinkChanges = %+v, want one added /Invoices", changes)
		}

		if len(f.c.Events()) != 0 {
			t.Error("Events() did not drain the queue")
		}
	})

	t.Run("tagging a file changes no sinks", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddFile("/a.txt")

		f.c.TagPaths([]string{f.fsmgr.Host("/a.txt")}, []string{"x"})
		if ev := findEvent(f.c.Events(), events.SinksChanged); ev != nil {
			t.Errorf("unexpected SinksChanged: %+v", ev.SinkChanges)
		}
	})

	t.Run("subscribers see every event", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/Invoices")

		var seen []events.Kind
		f.c.Subscribe(func(ev events.Event) { seen = append(seen, ev.Kind) })
		f.c.TagPaths([]string{f.fsmgr.Host("/Invoices")}, []string{"invoice"})

		if len(seen) != 3 {
			t.Errorf("observer saw %v, want 3 events", seen)
		}
	})

	t.Run("observers may call back into the collection", func(t *testing.T) {
		f := newFixture(t)
		f.fsmgr.AddDirectory("/docs")

		var tagNames []string
		var sinkPaths []string
		f.c.Subscribe(func(ev events.Event) {
			switch ev.Kind {
			case events.TagsCreated:
				tags, err := f.c.Tags()
				if err != nil {
					t.Errorf("Tags() from observer error = %v", err)
					return
				}
				for _, tag := range tags {
					tagNames = append(tagNames, tag.Name)
				}
			case events.SinksChanged:
				sinkPaths = flatPaths(f.c.SinkSnapshot())
			}
		})

		done := make(chan error, 1)
		go func() {
			_, err := f.c.TagPaths([]string{f.fsmgr.Host("/docs")}, []string{"work"})
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("TagPaths() error = %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("TagPaths() did not return while an observer called the collection")
		}

		if len(tagNames) != 1 || tagNames[0] != "work" {
			t.Errorf("observer saw tags %v, want [work]", tagNames)
		}
		if len(sinkPaths) != 1 || sinkPaths[0] != "/docs" {
			t.Errorf("observer saw sinks %v, want [/docs]", sinkPaths)
		}
	})
}

func TestCollection_BackupTo(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddDirectory("/Invoices")
	f.tag(t, []string{"invoice"}, "/Invoices")

	dest := t.TempDir() + "/copy.db"
	if err := f.c.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}
}
