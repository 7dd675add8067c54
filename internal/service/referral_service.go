package service

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
)

const referralCodeLength = 8

// ReferralService manages the referral graph.
type ReferralService struct {
	repo     repository.ReferralRepository
	userRepo repository.UserRepository
}

// NewReferralService creates a referral service.
func NewReferralService(repo repository.ReferralRepository, userRepo repository.UserRepository) *ReferralService {
	return &ReferralService{
		repo:     repo,
		userRepo: userRepo,
	}
}

// ReferralAncestor is one upline member with its distance from the buyer.
type ReferralAncestor struct {
	User  *models.User
	Level int
}

// ReferralOverview is the user-facing referral summary.
type ReferralOverview struct {
	ReferralCode  string `json:"referral_code"`
	PromotionPath string `json:"promotion_path"`
	Level1Count   int64  `json:"level1_count"`
	Level2Count   int64  `json:"level2_count"`
	Level3Count   int64  `json:"level3_count"`
}

// ApplyReferralCode records the referrer for a user. The edge is written
// once; a second application fails regardless of the code.
func (s *ReferralService) ApplyReferralCode(userID uint, rawCode string) (*models.ReferralEdge, error) {
	if userID == 0 || s.repo == nil || s.userRepo == nil {
		return nil, ErrNotFound
	}
	code := normalizeReferralCode(rawCode)
	if code == "" {
		return nil, ErrInvalidReferralCode
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	referrer, err := s.userRepo.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	// A code on a suspended account does not resolve.
	if referrer == nil || strings.ToLower(referrer.Status) != constants.UserStatusActive {
		return nil, ErrInvalidReferralCode
	}
	if referrer.ID == userID {
		return nil, ErrReferralSelf
	}

	existing, err := s.repo.GetEdgeByReferred(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrReferralExists
	}

	// Walk the referrer's upline; an edge that closes a loop back to the
	// applying user is rejected.
	cyclic, err := s.hasAncestor(referrer.ID, userID)
	if err != nil {
		return nil, err
	}
	if cyclic {
		return nil, ErrInvalidReferralCode
	}

	edge := &models.ReferralEdge{
		ReferrerID: referrer.ID,
		ReferredID: userID,
	}
	if err := s.repo.CreateEdge(edge); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrReferralExists
		}
		return nil, err
	}
	return s.repo.GetEdgeByReferred(userID)
}

// ResolveChain returns the buyer's upline, closest first, at most three
// members. The walk stops early when a user has no referrer.
func (s *ReferralService) ResolveChain(userID uint) ([]ReferralAncestor, error) {
	result := make([]ReferralAncestor, 0, constants.ReferralLevelMax)
	if userID == 0 || s.repo == nil || s.userRepo == nil {
		return nil, ErrNotFound
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	currentID := userID
	for level := constants.ReferralLevelOne; level <= constants.ReferralLevelMax; level++ {
		edge, err := s.repo.GetEdgeByReferred(currentID)
		if err != nil {
			return nil, err
		}
		if edge == nil {
			break
		}
		ancestor, err := s.userRepo.GetByID(edge.ReferrerID)
		if err != nil {
			return nil, err
		}
		if ancestor == nil {
			break
		}
		result = append(result, ReferralAncestor{User: ancestor, Level: level})
		currentID = ancestor.ID
	}
	return result, nil
}

// GetOverview builds the user's referral summary with per-level downline
// counts.
func (s *ReferralService) GetOverview(userID uint) (ReferralOverview, error) {
	overview := ReferralOverview{}
	if userID == 0 || s.repo == nil || s.userRepo == nil {
		return overview, nil
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return overview, err
	}
	if user == nil {
		return overview, ErrNotFound
	}
	overview.ReferralCode = user.ReferralCode
	overview.PromotionPath = "/register?ref=" + user.ReferralCode

	level1, err := s.repo.ListReferredIDs([]uint{userID})
	if err != nil {
		return overview, err
	}
	level2, err := s.repo.ListReferredIDs(level1)
	if err != nil {
		return overview, err
	}
	level3, err := s.repo.ListReferredIDs(level2)
	if err != nil {
		return overview, err
	}
	overview.Level1Count = int64(len(level1))
	overview.Level2Count = int64(len(level2))
	overview.Level3Count = int64(len(level3))
	return overview, nil
}

// ListDirectReferrals pages through the users referred directly.
func (s *ReferralService) ListDirectReferrals(userID uint, page, pageSize int) ([]models.ReferralEdge, int64, error) {
	if userID == 0 || s.repo == nil {
		return []models.ReferralEdge{}, 0, nil
	}
	return s.repo.ListEdgesByReferrer(repository.ReferralEdgeListFilter{
		Page:       page,
		PageSize:   pageSize,
		ReferrerID: userID,
	})
}

func (s *ReferralService) hasAncestor(startID, targetID uint) (bool, error) {
	const maxDepth = 64
	currentID := startID
	for i := 0; i < maxDepth; i++ {
		if currentID == targetID {
			return true, nil
		}
		edge, err := s.repo.GetEdgeByReferred(currentID)
		if err != nil {
			return false, err
		}
		if edge == nil {
			return false, nil
		}
		currentID = edge.ReferrerID
	}
	return false, nil
}

func normalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateReferralCode produces a new unambiguous referral code.
func GenerateReferralCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var builder strings.Builder
	builder.Grow(referralCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
