package tagsink_test

import (
	"testing"
)

func TestCollection_EditTag(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddFile("/a.txt")
	id := f.tag(t, []string{"draft"}, "/a.txt").TagIDs[0]

	tests := []struct {
		name      string
		id        string
		newName   string
		color     string
		wantOK    bool
		wantErr   bool
		wantName  string
		wantColor string
	}{
		{name: "rename", id: id, newName: "  final ", wantOK: true, wantName: "final"},
		{name: "recolor lowercases", id: id, color: "#A0B1C2", wantOK: true, wantName: "final", wantColor: "#a0b1c2"},
		{name: "invalid color", id: id, color: "red", wantErr: true},
		{name: "unknown tag", id: "nope", newName: "x", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.c.EditTag(tt.id, tt.newName, tt.color)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EditTag() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if ok != tt.wantOK {
				t.Errorf("EditTag() = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}

			tag, _ := f.store.FindTagByID(tt.id)
			if tag.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", tag.Name, tt.wantName)
			}
			if tt.wantColor != "" && tag.Color != tt.wantColor {
				t.Errorf("Color = %q, want %q", tag.Color, tt.wantColor)
			}
		})
	}
}

func TestCollection_FindTag(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddFile("/a.txt")
	id := f.tag(t, []string{"Invoice"}, "/a.txt").TagIDs[0]

	tag, err := f.c.FindTag("invoice")
	if err != nil || tag == nil || tag.ID != id {
		t.Errorf("FindTag(invoice) = %+v, %v", tag, err)
	}
	if tag, _ := f.c.FindTag("missing"); tag != nil {
		t.Errorf("FindTag(missing) = %+v, want nil", tag)
	}
}

func TestCollection_DeleteTags(t *testing.T) {
	f := newFixture(t)
	f.fsmgr.AddDirectory("/Invoices")
	f.fsmgr.AddDirectory("/Taxes")
	inv := f.tag(t, []string{"invoice"}, "/Invoices").TagIDs[0]
	f.tag(t, []string{"tax"}, "/Taxes")

	if err := f.c.DeleteTags([]string{inv}); err != nil {
		t.Fatalf("DeleteTags() error = %v", err)
	}

	snap := f.c.SinkSnapshot()
	if got := flatPaths(snap); len(got) != 1 || got[0] != "/Taxes" {
		t.Errorf("SinkSnapshot() = %v, want [/Taxes]", got)
	}
	tags, _ := f.c.Tags()
	if len(tags) != 1 || tags[0].Name != "tax" {
		t.Errorf("Tags() = %+v, want only tax", tags)
	}

	if err := f.c.DeleteTags(nil); err != nil {
		t.Errorf("DeleteTags(nil) error = %v", err)
	}
}
