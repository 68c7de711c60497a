package dbtest

import (
	"sync"
	"testing"

	"gorm.io/gorm"

	dbpkg "github.com/KalilovM/topshopes-backend/pkg/db"
)

// LockedReads counts queries issued with a row-locking clause, per table.
// sqlite drops the clause when rendering SQL, so the count is taken from the
// statement instead of the query text.
type LockedReads struct {
	mu     sync.Mutex
	tables map[string]int
}

// TrackLockedReads registers a query callback on client that records every
// SELECT ... FOR UPDATE/SHARE it runs.
func TrackLockedReads(t *testing.T, client *dbpkg.Client) *LockedReads {
	t.Helper()
	reads := &LockedReads{tables: map[string]int{}}
	err := client.DB().Callback().Query().After("gorm:query").Register("dbtest:locked_reads", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; !ok {
			return
		}
		reads.mu.Lock()
		reads.tables[tx.Statement.Table]++
		reads.mu.Unlock()
	})
	if err != nil {
		t.Fatalf("register locked read callback: %v", err)
	}
	return reads
}

// Count returns how many locked reads hit table.
func (r *LockedReads) Count(table string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tables[table]
}
