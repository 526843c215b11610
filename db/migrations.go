package db

import (
	"fmt"
	"log"

	"github.com/jinzhu/gorm"
	"gopkg.in/gormigrate.v1"
)

type MigrationContext struct {
	UploadsPath string
}

func (db *DB) Migrate(ctx MigrationContext) error {
	options := &gormigrate.Options{
		TableName:      "migrations",
		IDColumnName:   "id",
		IDColumnSize:   255,
		UseTransaction: false,
	}

	// $ date '+%Y%m%d%H%M'
	migrations := []*gormigrate.Migration{
		construct(ctx, "202604171200", migrateInitSchema),
		construct(ctx, "202605031433", migrateCoverSourceIDX),
		construct(ctx, "202606211009", migrateCoverSourceID),
	}

	return gormigrate.
		New(db.DB, options, migrations).
		Migrate()
}

func construct(ctx MigrationContext, id string, f func(*gorm.DB, MigrationContext) error) *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: id,
		Migrate: func(db *gorm.DB) error {
			tx := db.Begin()
			defer tx.Commit()
			if err := f(tx, ctx); err != nil {
				return fmt.Errorf("%q: %w", id, err)
			}
			log.Printf("migration '%s' finished", id)
			return nil
		},
		Rollback: func(*gorm.DB) error {
			return nil
		},
	}
}

func migrateInitSchema(tx *gorm.DB, _ MigrationContext) error {
	return tx.AutoMigrate(
		Setting{},
		Album{},
		AlbumCover{},
	).
		Error
}

func migrateCoverSourceIDX(tx *gorm.DB, _ MigrationContext) error {
	return tx.AutoMigrate(AlbumCover{}).Error
}

func migrateCoverSourceID(tx *gorm.DB, _ MigrationContext) error {
	if tx.Dialect().HasColumn("album_covers", "source_id") {
		return nil
	}
	return tx.AutoMigrate(AlbumCover{}).Error
}
