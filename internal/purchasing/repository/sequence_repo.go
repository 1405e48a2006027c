package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/grupocyc/compras/internal/purchasing/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository issues requisition and purchase-order numbers.
// NextNumber must run inside the same transaction as the row it numbers:
// the sequence row is locked FOR UPDATE until that transaction commits,
// which is what serializes concurrent creations per scope.
type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// NextNumber resolves the prefix for the exact (company, project-or-null)
// scope, locks its sequence row inside tx, increments it and returns the
// formatted number, e.g. CB-001. Past 999 the number simply grows wider.
func (r *SequenceRepository) NextNumber(ctx context.Context, tx *gorm.DB, companyID uint, projectID *uint) (string, error) {
	var prefix entity.RequisitionPrefix
	q := tx.WithContext(ctx).Where("company_id = ?", companyID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	} else {
		q = q.Where("project_id IS NULL")
	}
	if err := q.First(&prefix).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: no requisition prefix configured for company=%d project=%v", ErrNotFound, companyID, projectID)
		}
		return "", err
	}

	var seq entity.RequisitionSequence
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix_id = ?", prefix.PrefixID).
		First(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: no sequence row for prefix %q", ErrNotFound, prefix.Prefix)
		}
		return "", err
	}

	seq.LastNumber++
	if err := tx.WithContext(ctx).Save(&seq).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%03d", prefix.Prefix, seq.LastNumber), nil
}

// NextOrderNumber increments the single purchase-order counter under the
// same lock discipline and returns e.g. OC-001.
func (r *SequenceRepository) NextOrderNumber(ctx context.Context, tx *gorm.DB) (string, error) {
	var seq entity.PurchaseOrderSequence
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&seq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: purchase order sequence not initialized", ErrNotFound)
		}
		return "", err
	}

	seq.LastNumber++
	if err := tx.WithContext(ctx).Save(&seq).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("OC-%03d", seq.LastNumber), nil
}

// CurrentNumber reads the last issued number for a prefix scope without
// locking. Used by tests and dashboards.
func (r *SequenceRepository) CurrentNumber(ctx context.Context, companyID uint, projectID *uint) (int, error) {
	var prefix entity.RequisitionPrefix
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	} else {
		q = q.Where("project_id IS NULL")
	}
	if err := q.First(&prefix).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	var seq entity.RequisitionSequence
	if err := r.db.WithContext(ctx).Where("prefix_id = ?", prefix.PrefixID).First(&seq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return seq.LastNumber, nil
}
