package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
)

func AutoMigrateAll(db *gorm.DB) error {
	models := append(batches.Models(), &audit.Entry{})
	return db.AutoMigrate(models...)
}

// EnsureBatchConstraints adds the owner exclusivity check. Postgres only;
// sqlite cannot add CHECK constraints to an existing table, and the domain
// constructor enforces the same rule there.
func EnsureBatchConstraints(db *gorm.DB) error {
	if err := db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_batches_owner_exclusive') THEN
				ALTER TABLE batches ADD CONSTRAINT chk_batches_owner_exclusive CHECK (
					(entity_id IS NOT NULL AND clinic_id IS NULL AND company_id IS NULL)
					OR (entity_id IS NULL AND clinic_id IS NOT NULL AND company_id IS NOT NULL)
				);
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("create chk_batches_owner_exclusive: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_assessments_batch_status ON assessments(batch_id, status);`).Error; err != nil {
		return fmt.Errorf("create idx_assessments_batch_status: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "dialect", s.dialect)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if s.dialect == "postgres" {
		if err := EnsureBatchConstraints(s.db); err != nil {
			s.log.Error("Batch constraint migration failed", "error", err)
			return err
		}
	}
	return nil
}
