// Package testing provides a disposable Store for use in tests.
package testing

import (
	"testing"

	"github.com/dualcheck/surveil/db/kv"
)

// SetupDB instantiates a new Store under a temporary directory scoped to
// the test and registers its cleanup so the underlying file is closed and
// removed once the test finishes.
func SetupDB(t testing.TB) *kv.Store {
	db, err := kv.NewKVStore(t.TempDir())
	if err != nil {
		t.Fatalf("could not set up test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("could not close test database: %v", err)
		}
	})
	return db
}
