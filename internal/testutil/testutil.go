package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SetupTestDB returns a migrated in-memory SQLite database private to t.
// A single connection is used so that transactions serialize the same way
// row locks serialize them on PostgreSQL.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, uuid.NewString()[:8])
	db, err := database.Open(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// CreateTestUser inserts a user with the given identification number.
func CreateTestUser(t *testing.T, db *gorm.DB, idNumber string, userType models.UserType, role models.Role) *models.User {
	t.Helper()

	user := &models.User{
		IdentificationNumber: idNumber,
		Email:                strings.ToLower(strings.ReplaceAll(idNumber, "/", "")) + "@university.edu",
		Name:                 "Test " + idNumber,
		UserType:             userType,
		Role:                 role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// SetTestPIN stores a bcrypt hash of pin on the user.
func SetTestPIN(t *testing.T, db *gorm.DB, user *models.User, pin string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash pin: %v", err)
	}
	h := string(hash)
	if err := db.Model(user).Update("pin_hash", h).Error; err != nil {
		t.Fatalf("failed to set pin: %v", err)
	}
	user.PinHash = &h
}

// CreateTestElection inserts an election in the given status with one
// position per name and no candidates.
func CreateTestElection(t *testing.T, db *gorm.DB, status models.ElectionStatus, types []models.UserType, positions ...string) *models.Election {
	t.Helper()

	election := &models.Election{
		Title:         "Test Election " + uuid.NewString()[:8],
		Status:        status,
		EligibleTypes: types,
	}
	if status == models.StatusOngoing || status == models.StatusPaused || status == models.StatusCompleted {
		now := time.Now().UTC()
		election.StartDate = &now
	}
	for _, name := range positions {
		election.Positions = append(election.Positions, models.Position{Name: name})
	}
	if err := db.Create(election).Error; err != nil {
		t.Fatalf("failed to create test election: %v", err)
	}
	return election
}

// AddTestCandidate inserts a candidate for the given position.
func AddTestCandidate(t *testing.T, db *gorm.DB, position models.Position, name string) *models.Candidate {
	t.Helper()

	candidate := &models.Candidate{
		ElectionID: position.ElectionID,
		PositionID: position.ID,
		Name:       name,
		Manifesto:  name + " for progress",
	}
	if err := db.Create(candidate).Error; err != nil {
		t.Fatalf("failed to create test candidate: %v", err)
	}
	return candidate
}
