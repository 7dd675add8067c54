package repository

import (
	"errors"

	"github.com/bidua-hosting/backend/internal/models"

	"gorm.io/gorm"
)

// ReferralRepository is the referral-graph data access interface.
type ReferralRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ReferralRepository

	GetEdgeByReferred(referredID uint) (*models.ReferralEdge, error)
	CreateEdge(edge *models.ReferralEdge) error
	CountByReferrer(referrerID uint) (int64, error)
	ListReferredIDs(referrerIDs []uint) ([]uint, error)
	ListEdgesByReferrer(filter ReferralEdgeListFilter) ([]models.ReferralEdge, int64, error)
}

// GormReferralRepository is the GORM implementation.
type GormReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository creates a referral repository.
func NewReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormReferralRepository) WithTx(tx *gorm.DB) ReferralRepository {
	if tx == nil {
		return r
	}
	return &GormReferralRepository{db: tx}
}

// Transaction runs fn inside a transaction.
func (r *GormReferralRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetEdgeByReferred fetches the edge pointing at a referred user.
func (r *GormReferralRepository) GetEdgeByReferred(referredID uint) (*models.ReferralEdge, error) {
	if referredID == 0 {
		return nil, nil
	}
	var edge models.ReferralEdge
	if err := r.db.Where("referred_id = ?", referredID).First(&edge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &edge, nil
}

// CreateEdge inserts a referral edge.
func (r *GormReferralRepository) CreateEdge(edge *models.ReferralEdge) error {
	return r.db.Create(edge).Error
}

// CountByReferrer counts direct referrals of a user.
func (r *GormReferralRepository) CountByReferrer(referrerID uint) (int64, error) {
	if referrerID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.ReferralEdge{}).
		Where("referrer_id = ?", referrerID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListEdgesByReferrer pages through the direct referrals of a user.
func (r *GormReferralRepository) ListEdgesByReferrer(filter ReferralEdgeListFilter) ([]models.ReferralEdge, int64, error) {
	query := r.db.Model(&models.ReferralEdge{}).Preload("Referred")
	if filter.ReferrerID != 0 {
		query = query.Where("referral_edges.referrer_id = ?", filter.ReferrerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ReferralEdge
	if err := query.Order("referral_edges.created_at desc, referral_edges.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListReferredIDs returns the ids referred by any of the given referrers.
func (r *GormReferralRepository) ListReferredIDs(referrerIDs []uint) ([]uint, error) {
	if len(referrerIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	if err := r.db.Model(&models.ReferralEdge{}).
		Where("referrer_id IN ?", referrerIDs).
		Order("id asc").
		Pluck("referred_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
