package state

import (
	"math/big"
	"testing"

	"prism/storage"
)

func TestManagerReadsThroughToDatabase(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("seed db: %v", err)
	}
	m := NewManager(db)
	got, ok, err := m.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected value %q", got)
	}
	if _, ok, _ := m.Get([]byte("missing")); ok {
		t.Fatal("missing key reported present")
	}
}

func TestManagerStagesWritesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	if err := m.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := db.Get([]byte("k")); err == nil {
		t.Fatal("write reached database before commit")
	}
	if err := m.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("db get after commit: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected committed value %q", got)
	}
}

func TestManagerRevertUndoesWritesAndDeletes(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("kept"), []byte("old")); err != nil {
		t.Fatalf("seed db: %v", err)
	}
	m := NewManager(db)

	mark := m.Snapshot()
	if err := m.Put([]byte("kept"), []byte("new")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Put([]byte("fresh"), []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Delete([]byte("kept")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	m.RevertTo(mark)

	got, ok, err := m.Get([]byte("kept"))
	if err != nil || !ok {
		t.Fatalf("get kept: %v ok=%v", err, ok)
	}
	if string(got) != "old" {
		t.Fatalf("revert lost database value: %q", got)
	}
	if _, ok, _ := m.Get([]byte("fresh")); ok {
		t.Fatal("reverted write still visible")
	}
}

func TestManagerNestedSnapshots(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	outer := m.Snapshot()
	if err := m.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	inner := m.Snapshot()
	if err := m.Put([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Put([]byte("b"), []byte("3")); err != nil {
		t.Fatalf("put: %v", err)
	}

	m.RevertTo(inner)
	got, ok, _ := m.Get([]byte("a"))
	if !ok || string(got) != "1" {
		t.Fatalf("inner revert gave %q ok=%v", got, ok)
	}
	if _, ok, _ := m.Get([]byte("b")); ok {
		t.Fatal("inner revert kept b")
	}

	m.RevertTo(outer)
	if _, ok, _ := m.Get([]byte("a")); ok {
		t.Fatal("outer revert kept a")
	}
}

func TestManagerCommitClearsJournal(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	if err := m.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// A revert to a pre-commit mark must not undo committed state.
	m.RevertTo(0)
	got, ok, _ := m.Get([]byte("a"))
	if !ok || string(got) != "1" {
		t.Fatalf("revert after commit gave %q ok=%v", got, ok)
	}
}

func TestManagerRLPRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	want := big.NewInt(123456789)
	if err := m.PutRLP([]byte("n"), want); err != nil {
		t.Fatalf("put rlp: %v", err)
	}
	got := new(big.Int)
	ok, err := m.GetRLP([]byte("n"), got)
	if err != nil || !ok {
		t.Fatalf("get rlp: %v ok=%v", err, ok)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("round trip gave %s", got)
	}
	ok, err = m.GetRLP([]byte("missing"), got)
	if err != nil || ok {
		t.Fatalf("missing key gave %v ok=%v", err, ok)
	}
}
