package daap

import "testing"

func TestIdentityIsStable(t *testing.T) {
	a := NewIdentity("/var/lib/mediashare/library.db")
	b := NewIdentity("/var/lib/mediashare/library.db")
	if a != b {
		t.Fatalf("identity changed between calls: %v vs %v", a, b)
	}
	if a.PersistentID == 0 {
		t.Fatal("persistent id must not be zero")
	}
	if got := a.DatabaseID(); len(got) != 16 {
		t.Fatalf("unexpected database id %q", got)
	}
	if c := NewIdentity("other.db"); c.PersistentID == a.PersistentID {
		t.Fatal("different seeds produced the same id")
	}
}
