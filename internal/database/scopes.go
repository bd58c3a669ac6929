package database

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate row-locks the selected rows until the transaction ends.
// SQLite has no row locks (writers are serialized by the file lock), so the
// clause is only added on PostgreSQL.
func ForUpdate(db *gorm.DB) *gorm.DB {
	return lockScope(db, "UPDATE")
}

// ForShare takes a shared row lock: concurrent readers proceed, writers to
// the row wait for the transaction to finish.
func ForShare(db *gorm.DB) *gorm.DB {
	return lockScope(db, "SHARE")
}

// scheduleLockKey identifies the advisory lock guarding which elections are
// ONGOING.
const scheduleLockKey int64 = 0x627673_0001

// LockSchedule takes a transaction-scoped advisory lock on PostgreSQL. It is
// released at commit or rollback. SQLite serializes writers already.
func LockSchedule(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", scheduleLockKey).Error
}

func lockScope(db *gorm.DB, strength string) *gorm.DB {
	if db.Dialector.Name() != "postgres" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: strength})
}

// WithBallotTree preloads positions and their candidates in a stable order.
func WithBallotTree(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Positions", func(db *gorm.DB) *gorm.DB {
			return db.Order("positions.created_at ASC, positions.name ASC")
		}).
		Preload("Positions.Candidates", func(db *gorm.DB) *gorm.DB {
			return db.Order("candidates.created_at ASC, candidates.name ASC")
		})
}
