package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultVoterPageSize = 50
	maxVoterPageSize     = 200
	seedVoterPIN         = "1234"
)

type VoterService struct {
	db *gorm.DB
}

func NewVoterService(db *gorm.DB) *VoterService {
	return &VoterService{db: db}
}

// ImportVoters bulk-inserts voters. Rows whose identification number already
// exists are skipped, not updated.
func (s *VoterService) ImportVoters(ctx context.Context, items []dto.VoterImportItem) (*dto.ImportVotersResponse, error) {
	if len(items) == 0 {
		return nil, badRequest("no voters to import")
	}

	users := make([]models.User, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		user, err := voterFromItem(item)
		if err != nil {
			return nil, badRequest("voter %d: %s", i, err.Error())
		}
		if seen[user.IdentificationNumber] {
			continue
		}
		seen[user.IdentificationNumber] = true
		users = append(users, *user)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identification_number"}},
			DoNothing: true,
		}).
		CreateInBatches(&users, 200)
	if res.Error != nil {
		return nil, storeError("import voters", res.Error)
	}

	imported := res.RowsAffected
	slog.Info("voters imported", "imported", imported, "submitted", len(items))
	return &dto.ImportVotersResponse{
		Imported: imported,
		Skipped:  int64(len(items)) - imported,
	}, nil
}

func voterFromItem(item dto.VoterImportItem) (*models.User, error) {
	idNumber := strings.TrimSpace(item.IDNumber)
	if idNumber == "" {
		return nil, fmt.Errorf("id_num is required")
	}
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(item.Email))
	if err != nil {
		return nil, fmt.Errorf("invalid email")
	}

	userType := item.UserType
	if userType == "" {
		userType = models.UserTypeStudent
	}
	if !userType.Valid() {
		return nil, fmt.Errorf("invalid user_type %q", userType)
	}

	user := &models.User{
		IdentificationNumber: idNumber,
		Email:                strings.ToLower(addr.Address),
		Name:                 name,
		UserType:             userType,
		Role:                 models.RoleVoter,
	}
	if item.PIN != "" {
		hash, err := hashPIN(item.PIN)
		if err != nil {
			return nil, err
		}
		user.PinHash = &hash
	}
	return user, nil
}

// ListVoters pages through the voter directory with onboarding status.
func (s *VoterService) ListVoters(ctx context.Context, filter dto.VoterFilter) (*dto.VoterList, error) {
	if filter.UserType != "" && !filter.UserType.Valid() {
		return nil, badRequest("invalid user_type %q", filter.UserType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultVoterPageSize
	}
	if limit > maxVoterPageSize {
		limit = maxVoterPageSize
	}
	offset := max(filter.Offset, 0)

	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.User{})
		if filter.UserType != "" {
			q = q.Where("user_type = ?", filter.UserType)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, storeError("count voters", err)
	}

	var users []models.User
	if err := query().
		Preload("Authenticators", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "user_id")
		}).
		Order("identification_number ASC").
		Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		return nil, storeError("list voters", err)
	}

	list := &dto.VoterList{
		Voters: make([]dto.VoterSummary, 0, len(users)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, u := range users {
		list.Voters = append(list.Voters, dto.VoterSummary{
			ID:                   u.ID,
			IdentificationNumber: u.IdentificationNumber,
			Email:                u.Email,
			Name:                 u.Name,
			UserType:             u.UserType,
			Role:                 u.Role,
			HasPIN:               u.PinHash != nil,
			BiometricEnrolled:    len(u.Authenticators) > 0,
			Authenticators:       len(u.Authenticators),
		})
	}
	return list, nil
}

// Seed creates the demo voter and admin accounts if they are missing.
func (s *VoterService) Seed(ctx context.Context) ([]models.User, error) {
	hash, err := hashPIN(seedVoterPIN)
	if err != nil {
		return nil, err
	}

	seeds := []models.User{
		{
			IdentificationNumber: "22/0000",
			Email:                "test.student@university.edu",
			Name:                 "Test Student",
			UserType:             models.UserTypeStudent,
			Role:                 models.RoleVoter,
			PinHash:              &hash,
		},
		{
			IdentificationNumber: "ADMIN-001",
			Email:                "admin@university.edu",
			Name:                 "Election Administrator",
			UserType:             models.UserTypeStaff,
			Role:                 models.RoleAdmin,
			PinHash:              &hash,
		},
	}

	users := make([]models.User, 0, len(seeds))
	for _, seed := range seeds {
		var user models.User
		if err := s.db.WithContext(ctx).
			Where(models.User{IdentificationNumber: seed.IdentificationNumber}).
			Attrs(seed).
			FirstOrCreate(&user).Error; err != nil {
			return nil, storeError("seed user", err)
		}
		users = append(users, user)
	}
	return users, nil
}

func hashPIN(pin string) (string, error) {
	if !validPIN(pin) {
		return "", badRequest("PIN must be 4 to 12 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return string(hash), nil
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 12 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
