package outbox

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForPublish applies FOR UPDATE SKIP LOCKED so concurrent relay instances
// never double-publish a row. SQLite has no row locks, so the clause is
// skipped there (single-writer semantics cover it).
func lockForPublish(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
