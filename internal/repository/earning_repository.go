package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EarningRepository is the commission ledger data access interface.
type EarningRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) EarningRepository

	GetByID(id uint) (*models.EarningEntry, error)
	GetByIDForUpdate(id uint) (*models.EarningEntry, error)
	GetByOrderEarnerLevel(orderNo string, earnerID uint, level int) (*models.EarningEntry, error)
	Create(entry *models.EarningEntry) error
	Update(entry *models.EarningEntry) error
	List(filter EarningListFilter) ([]models.EarningEntry, int64, error)
	SumByStatus(earnerID uint, statuses []string, unboundOnly bool) (decimal.Decimal, error)
	ListApprovedUnboundForUpdate(earnerID uint) ([]models.EarningEntry, error)
	ListByPayoutForUpdate(payoutID uint) ([]models.EarningEntry, error)
	BatchUpdate(ids []uint, updates map[string]interface{}) error
	ApproveDue(before, now time.Time) (int64, error)
}

// GormEarningRepository is the GORM implementation.
type GormEarningRepository struct {
	db *gorm.DB
}

// NewEarningRepository creates an earning repository.
func NewEarningRepository(db *gorm.DB) *GormEarningRepository {
	return &GormEarningRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormEarningRepository) WithTx(tx *gorm.DB) EarningRepository {
	if tx == nil {
		return r
	}
	return &GormEarningRepository{db: tx}
}

// Transaction runs fn inside a transaction.
func (r *GormEarningRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID fetches an entry by id.
func (r *GormEarningRepository) GetByID(id uint) (*models.EarningEntry, error) {
	if id == 0 {
		return nil, nil
	}
	var entry models.EarningEntry
	if err := r.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetByIDForUpdate fetches an entry by id with a row lock.
func (r *GormEarningRepository) GetByIDForUpdate(id uint) (*models.EarningEntry, error) {
	if id == 0 {
		return nil, nil
	}
	var entry models.EarningEntry
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetByOrderEarnerLevel fetches the entry keyed by the idempotency triple.
func (r *GormEarningRepository) GetByOrderEarnerLevel(orderNo string, earnerID uint, level int) (*models.EarningEntry, error) {
	normalized := strings.TrimSpace(orderNo)
	if normalized == "" || earnerID == 0 || level <= 0 {
		return nil, nil
	}
	var entry models.EarningEntry
	if err := r.db.Where("order_no = ? AND earner_user_id = ? AND referral_level = ?", normalized, earnerID, level).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Create inserts an entry.
func (r *GormEarningRepository) Create(entry *models.EarningEntry) error {
	return r.db.Create(entry).Error
}

// Update saves an entry.
func (r *GormEarningRepository) Update(entry *models.EarningEntry) error {
	return r.db.Save(entry).Error
}

// List queries ledger entries, newest first.
func (r *GormEarningRepository) List(filter EarningListFilter) ([]models.EarningEntry, int64, error) {
	query := r.db.Model(&models.EarningEntry{}).
		Preload("ReferredUser")
	if filter.EarnerID != 0 {
		query = query.Where("earning_entries.earner_user_id = ?", filter.EarnerID)
	}
	if orderNo := strings.TrimSpace(filter.OrderNo); orderNo != "" {
		query = query.Where("earning_entries.order_no LIKE ?", "%"+orderNo+"%")
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("earning_entries.status = ?", status)
	}
	if filter.Level > 0 {
		query = query.Where("earning_entries.referral_level = ?", filter.Level)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("earning_entries.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("earning_entries.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.EarningEntry
	if err := query.Order("earning_entries.created_at desc, earning_entries.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumByStatus sums commission amounts in the given statuses. With
// unboundOnly, rows earmarked by a payout request are excluded.
func (r *GormEarningRepository) SumByStatus(earnerID uint, statuses []string, unboundOnly bool) (decimal.Decimal, error) {
	if earnerID == 0 || len(statuses) == 0 {
		return decimal.Zero, nil
	}
	query := r.db.Model(&models.EarningEntry{}).
		Where("earner_user_id = ? AND status IN ?", earnerID, statuses)
	if unboundOnly {
		query = query.Where("payout_request_id IS NULL")
	}

	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := query.Select("COALESCE(SUM(commission_amount), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// ListApprovedUnboundForUpdate locks the approved entries available for
// earmarking, oldest first.
func (r *GormEarningRepository) ListApprovedUnboundForUpdate(earnerID uint) ([]models.EarningEntry, error) {
	if earnerID == 0 {
		return []models.EarningEntry{}, nil
	}
	var rows []models.EarningEntry
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("earner_user_id = ? AND status = ? AND payout_request_id IS NULL",
			earnerID, constants.EarningStatusApproved).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByPayoutForUpdate locks the entries earmarked by a payout request.
func (r *GormEarningRepository) ListByPayoutForUpdate(payoutID uint) ([]models.EarningEntry, error) {
	if payoutID == 0 {
		return []models.EarningEntry{}, nil
	}
	var rows []models.EarningEntry
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payout_request_id = ?", payoutID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// BatchUpdate applies column updates to a set of entries.
func (r *GormEarningRepository) BatchUpdate(ids []uint, updates map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.EarningEntry{}).Where("id IN ?", ids).Updates(updates).Error
}

// ApproveDue flips pending entries whose verification window has elapsed
// to approved.
func (r *GormEarningRepository) ApproveDue(before, now time.Time) (int64, error) {
	result := r.db.Model(&models.EarningEntry{}).
		Where("status = ? AND approvable_at IS NOT NULL AND approvable_at <= ?",
			constants.EarningStatusPending, before).
		Updates(map[string]interface{}{
			"status":      constants.EarningStatusApproved,
			"approved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
