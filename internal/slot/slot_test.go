package slot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// setupDirStore creates a DirStore in the test's temp directory.
func setupDirStore(t *testing.T) *DirStore {
	t.Helper()
	store, err := NewDirStore(filepath.Join(t.TempDir(), "slots"))
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	return store
}

// TestDirStore tests the file-backed store.
func TestDirStore(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			store := setupDirStore(t)

			if err := store.Set("users", []byte(`[{"id":1}]`)); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, err := store.Get("users")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !bytes.Equal(got, []byte(`[{"id":1}]`)) {
				t.Errorf("Get() = %s, want [{\"id\":1}]", got)
			}
		})

		t.Run("errors", func(t *testing.T) {
			store := setupDirStore(t)

			t.Run("missing slot", func(t *testing.T) {
				if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get() error = %v, want ErrNotFound", err)
				}
			})

			t.Run("invalid name", func(t *testing.T) {
				if _, err := store.Get("../etc/passwd"); err == nil {
					t.Error("Get() expected error for traversal name, got nil")
				}
			})
		})
	})

	t.Run("Set", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			store := setupDirStore(t)

			t.Run("creates slot", func(t *testing.T) {
				if err := store.Set("t1", []byte("[]")); err != nil {
					t.Fatalf("Set failed: %v", err)
				}
				if _, err := os.Stat(filepath.Join(store.Root(), "t1.json")); err != nil {
					t.Errorf("slot file missing: %v", err)
				}
			})

			t.Run("overwrites slot", func(t *testing.T) {
				if err := store.Set("t1", []byte(`[{"id":2}]`)); err != nil {
					t.Fatalf("Set failed: %v", err)
				}
				got, err := store.Get("t1")
				if err != nil {
					t.Fatalf("Get failed: %v", err)
				}
				if string(got) != `[{"id":2}]` {
					t.Errorf("Get() = %s after overwrite", got)
				}
			})

			t.Run("leaves no temp files", func(t *testing.T) {
				entries, err := os.ReadDir(store.Root())
				if err != nil {
					t.Fatalf("ReadDir failed: %v", err)
				}
				for _, e := range entries {
					if filepath.Ext(e.Name()) == ".tmp" {
						t.Errorf("temp file left behind: %s", e.Name())
					}
				}
			})
		})

		t.Run("errors", func(t *testing.T) {
			store := setupDirStore(t)

			tests := []struct {
				name     string
				slotName string
			}{
				{"empty name", ""},
				{"path separator", "a/b"},
				{"backslash", `a\b`},
				{"parent traversal", ".."},
				{"dot prefix", ".hidden"},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					if err := store.Set(tt.slotName, []byte("[]")); err == nil {
						t.Errorf("Set(%q) expected error, got nil", tt.slotName)
					}
				})
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			store := setupDirStore(t)

			if err := store.Set("gone", []byte("[]")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := store.Delete("gone"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Get("gone"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
			}

			t.Run("missing slot is not an error", func(t *testing.T) {
				if err := store.Delete("never-existed"); err != nil {
					t.Errorf("Delete() = %v, want nil", err)
				}
			})
		})
	})

	t.Run("Names", func(t *testing.T) {
		store := setupDirStore(t)

		for _, name := range []string{"b", "a", "c"} {
			if err := store.Set(name, []byte("[]")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}
		// Non-slot files are ignored.
		if err := os.WriteFile(filepath.Join(store.Root(), "stray.txt"), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		names, err := store.Names()
		if err != nil {
			t.Fatalf("Names failed: %v", err)
		}
		slices.Sort(names)
		want := []string{"a", "b", "c"}
		if !slices.Equal(names, want) {
			t.Errorf("Names() = %v, want %v", names, want)
		}
	})
}

// TestMemStore tests the in-memory store.
func TestMemStore(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		store := NewMemStore()

		if err := store.Set("t", []byte("[]")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := store.Get("t")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "[]" {
			t.Errorf("Get() = %s, want []", got)
		}
	})

	t.Run("missing slot", func(t *testing.T) {
		store := NewMemStore()
		if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returns copies", func(t *testing.T) {
		store := NewMemStore()

		data := []byte(`[{"id":1}]`)
		if err := store.Set("t", data); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		data[1] = 'X'

		got, err := store.Get("t")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != `[{"id":1}]` {
			t.Error("Set() stored a reference instead of a copy")
		}

		got[1] = 'Y'
		again, err := store.Get("t")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(again) != `[{"id":1}]` {
			t.Error("Get() returned a reference instead of a copy")
		}
	})

	t.Run("Names sorted", func(t *testing.T) {
		store := NewMemStore()
		for _, name := range []string{"z", "a", "m"} {
			if err := store.Set(name, nil); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}
		names, err := store.Names()
		if err != nil {
			t.Fatalf("Names failed: %v", err)
		}
		if !slices.Equal(names, []string{"a", "m", "z"}) {
			t.Errorf("Names() = %v, want sorted", names)
		}
	})
}

// TestWatch tests slot change notification.
func TestWatch(t *testing.T) {
	t.Run("reports slot writes", func(t *testing.T) {
		store := setupDirStore(t)

		changes, err := Watch(t.Context(), store, nil)
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
		// Give the watcher time to register before writing.
		time.Sleep(100 * time.Millisecond)

		if err := store.Set("users", []byte(`[{"id":1}]`)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		select {
		case name := <-changes:
			if name != "users" {
				t.Errorf("change = %q, want users", name)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for slot change")
		}
	})

	t.Run("ignores stray files", func(t *testing.T) {
		store := setupDirStore(t)

		changes, err := Watch(t.Context(), store, nil)
		if err != nil {
			t.Fatalf("Watch failed: %v", err)
		}
		time.Sleep(100 * time.Millisecond)

		if err := os.WriteFile(filepath.Join(store.Root(), "notes.txt"), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		select {
		case name := <-changes:
			t.Errorf("unexpected change %q for non-slot file", name)
		case <-time.After(500 * time.Millisecond):
		}
	})
}

// TestValidateName tests slot name validation.
func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		slot    string
		wantErr bool
	}{
		{"simple", "users", false},
		{"with dash", "user-events", false},
		{"with underscore", "user_events", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"dotdot", "..", true},
		{"hidden", ".env", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.slot)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.slot, err, tt.wantErr)
			}
		})
	}
}
