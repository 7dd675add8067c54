package repository

import (
	"errors"
	"strings"

	"github.com/bidua-hosting/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRepository is the payout request data access interface.
type PayoutRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PayoutRepository

	GetByID(id uint) (*models.PayoutRequest, error)
	GetByIDForUpdate(id uint) (*models.PayoutRequest, error)
	GetByPayoutNo(payoutNo string) (*models.PayoutRequest, error)
	Create(payout *models.PayoutRequest) error
	Update(payout *models.PayoutRequest) error
	List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error)
}

// GormPayoutRepository is the GORM implementation.
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository creates a payout repository.
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Transaction runs fn inside a transaction.
func (r *GormPayoutRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID fetches a payout request by id.
func (r *GormPayoutRepository) GetByID(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var payout models.PayoutRequest
	if err := r.db.Preload("User").First(&payout, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// GetByIDForUpdate fetches a payout request by id with a row lock.
func (r *GormPayoutRepository) GetByIDForUpdate(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var payout models.PayoutRequest
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payout, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// GetByPayoutNo fetches a payout request by its public number.
func (r *GormPayoutRepository) GetByPayoutNo(payoutNo string) (*models.PayoutRequest, error) {
	normalized := strings.TrimSpace(payoutNo)
	if normalized == "" {
		return nil, nil
	}
	var payout models.PayoutRequest
	if err := r.db.Where("payout_no = ?", normalized).First(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// Create inserts a payout request.
func (r *GormPayoutRepository) Create(payout *models.PayoutRequest) error {
	return r.db.Create(payout).Error
}

// Update saves a payout request.
func (r *GormPayoutRepository) Update(payout *models.PayoutRequest) error {
	return r.db.Save(payout).Error
}

// List queries payout requests, newest first.
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	query := r.db.Model(&models.PayoutRequest{}).Preload("User")
	if filter.UserID != 0 {
		query = query.Where("payout_requests.user_id = ?", filter.UserID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("payout_requests.status = ?", status)
	}
	if payoutNo := strings.TrimSpace(filter.PayoutNo); payoutNo != "" {
		query = query.Where("payout_requests.payout_no LIKE ?", "%"+payoutNo+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("payout_requests.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("payout_requests.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.PayoutRequest
	if err := query.Order("payout_requests.created_at desc, payout_requests.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
