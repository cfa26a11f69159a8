package state

import (
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Bolt {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestCredentials_SaveLoadDelete(t *testing.T) {
	t.Parallel()
	b := openTest(t)

	got, err := b.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got != nil {
		t.Fatalf("fresh store must have no credentials")
	}

	want := Credentials{Token: "tok", Email: "u@example.com", UserID: "uid", Saved: time.Now().UTC()}
	if err := b.SaveCredentials(want); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}
	got, err = b.LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got == nil || got.Token != "tok" || got.Email != "u@example.com" {
		t.Fatalf("mismatch: %+v", got)
	}

	if err := b.DeleteCredentials(); err != nil {
		t.Fatalf("DeleteCredentials: %v", err)
	}
	got, _ = b.LoadCredentials()
	if got != nil {
		t.Fatalf("credentials not deleted")
	}
	// deleting again is fine
	if err := b.DeleteCredentials(); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()
	b := openTest(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := b.Enqueue(QueuedOp{ID: id, Type: "saveVault", QueuedAt: time.Now()}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	ops, err := b.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(ops) != 3 || ops[0].ID != "a" || ops[1].ID != "b" || ops[2].ID != "c" {
		t.Fatalf("order broken: %+v", ops)
	}

	if err := b.Remove("b"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	ops, _ = b.Pending()
	if len(ops) != 2 || ops[0].ID != "a" || ops[1].ID != "c" {
		t.Fatalf("remove broke order: %+v", ops)
	}
	if err := b.Remove("missing"); err == nil {
		t.Fatalf("want error removing unknown id")
	}

	if err := b.ClearQueue(); err != nil {
		t.Fatalf("ClearQueue: %v", err)
	}
	ops, _ = b.Pending()
	if len(ops) != 0 {
		t.Fatalf("queue not cleared")
	}
	// the queue stays usable after clearing
	if err := b.Enqueue(QueuedOp{ID: "d", Type: "saveVault"}); err != nil {
		t.Fatalf("Enqueue after clear: %v", err)
	}
}

func TestKeyFile(t *testing.T) {
	t.Parallel()
	k := NewKeyFile(filepath.Join(t.TempDir(), "sub", "session.key"))

	got, err := k.Load()
	if err != nil || got != "" {
		t.Fatalf("missing file must read empty: %q %v", got, err)
	}
	if err := k.Save("ZXhwb3J0"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = k.Load()
	if err != nil || got != "ZXhwb3J0" {
		t.Fatalf("Load: %q %v", got, err)
	}
	if err := k.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = k.Load()
	if got != "" {
		t.Fatalf("key not deleted")
	}
	if err := k.Delete(); err != nil {
		t.Fatalf("second delete must not fail: %v", err)
	}
}
