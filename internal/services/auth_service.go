package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/unibvs/bvs-backend/internal/config"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/dto"
	"github.com/unibvs/bvs-backend/internal/metrics"
	"github.com/unibvs/bvs-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	methodPIN       = "pin"
	methodBiometric = "biometric"
)

type AuthService struct {
	db         *gorm.DB
	cfg        *config.Config
	webAuthn   *webauthn.WebAuthn
	challenges ChallengeStore
}

func NewAuthService(db *gorm.DB, cfg *config.Config, challenges ChallengeStore) (*AuthService, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.Origins(),
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn config: %w", err)
	}
	return &AuthService{
		db:         db,
		cfg:        cfg,
		webAuthn:   wa,
		challenges: challenges,
	}, nil
}

// LoginWithPIN is the fallback for devices without a platform authenticator.
// Every failure returns the same message so callers cannot probe which
// identification numbers exist.
func (s *AuthService) LoginWithPIN(ctx context.Context, idNumber, pin string) (*dto.AuthResponse, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("identification_number = ?", strings.TrimSpace(idNumber)).First(&user).Error
	if err != nil && !database.IsNotFound(err) {
		return nil, storeError("load user", err)
	}
	if err != nil || user.PinHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.PinHash), []byte(pin)) != nil {
		metrics.AuthAttempts.WithLabelValues(methodPIN, "failure").Inc()
		return nil, unauthorized("invalid identification number or PIN")
	}

	metrics.AuthAttempts.WithLabelValues(methodPIN, "success").Inc()
	return s.authResponse(&user)
}

// SetPIN sets or replaces the user's PIN. An existing PIN must be confirmed.
func (s *AuthService) SetPIN(ctx context.Context, userID uuid.UUID, currentPIN, newPIN string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PinHash != nil &&
		bcrypt.CompareHashAndPassword([]byte(*user.PinHash), []byte(currentPIN)) != nil {
		return unauthorized("current PIN is incorrect")
	}

	hash, err := hashPIN(newPIN)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("pin_hash", hash).Error; err != nil {
		return storeError("update pin", err)
	}
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Authenticators").First(&user, "id = ?", userID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, storeError("load user", err)
	}
	return &user, nil
}

// BeginRegistration starts enrolling a platform authenticator for an
// authenticated user. Credentials already enrolled are excluded so the same
// device is not registered twice.
func (s *AuthService) BeginRegistration(ctx context.Context, userID uuid.UUID) (*protocol.CredentialCreation, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	wu := webauthnUser{user: user}

	creds := wu.WebAuthnCredentials()
	exclusions := make([]protocol.CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		exclusions = append(exclusions, c.Descriptor())
	}

	options, session, err := s.webAuthn.BeginRegistration(wu,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationPreferred,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}

	key := ChallengeKey(purposeRegister, user.ID.String(), session.Challenge)
	if err := s.challenges.Put(ctx, key, session, s.cfg.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("store registration session: %w", err)
	}
	return options, nil
}

// FinishRegistration verifies the attestation and stores the credential.
func (s *AuthService) FinishRegistration(ctx context.Context, userID uuid.UUID, body []byte, deviceLabel string) (*models.Authenticator, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, badRequest("malformed registration response")
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	wu := webauthnUser{user: user}

	session, err := s.takeSession(ctx, purposeRegister, user.ID, parsed.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, err
	}

	credential, err := s.webAuthn.CreateCredential(wu, *session, parsed)
	if err != nil {
		slog.Warn("registration verification failed", "user_id", user.ID.String(), "error", err)
		return nil, badRequest("registration verification failed")
	}

	transports := make([]string, 0, len(credential.Transport))
	for _, t := range credential.Transport {
		transports = append(transports, string(t))
	}
	authenticator := models.Authenticator{
		UserID:          user.ID,
		CredentialID:    credential.ID,
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		AAGUID:          credential.Authenticator.AAGUID,
		SignCount:       credential.Authenticator.SignCount,
		Transports:      transports,
		BackupEligible:  credential.Flags.BackupEligible,
		BackupState:     credential.Flags.BackupState,
		DeviceLabel:     deviceLabel,
	}
	if err := s.db.WithContext(ctx).Create(&authenticator).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, conflict("this authenticator is already registered")
		}
		return nil, storeError("create authenticator", err)
	}

	slog.Info("authenticator registered", "user_id", user.ID.String(), "device", deviceLabel)
	return &authenticator, nil
}

// BeginLogin issues an assertion challenge for the user's enrolled
// credentials.
func (s *AuthService) BeginLogin(ctx context.Context, idNumber string) (*protocol.CredentialAssertion, error) {
	user, err := s.userByIDNumber(ctx, idNumber)
	if err != nil {
		return nil, err
	}
	if user == nil || len(user.Authenticators) == 0 {
		return nil, badRequest("no biometric credentials registered for this user")
	}
	wu := webauthnUser{user: user}

	options, session, err := s.webAuthn.BeginLogin(wu, webauthn.WithUserVerification(protocol.VerificationPreferred))
	if err != nil {
		return nil, fmt.Errorf("begin login: %w", err)
	}

	key := ChallengeKey(purposeLogin, user.ID.String(), session.Challenge)
	if err := s.challenges.Put(ctx, key, session, s.cfg.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("store login session: %w", err)
	}
	return options, nil
}

// FinishLogin verifies the assertion, advances the stored sign counter and
// returns an access token.
func (s *AuthService) FinishLogin(ctx context.Context, idNumber string, body []byte) (*dto.AuthResponse, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, badRequest("malformed authentication response")
	}

	user, err := s.userByIDNumber(ctx, idNumber)
	if err != nil {
		return nil, err
	}
	if user == nil {
		metrics.AuthAttempts.WithLabelValues(methodBiometric, "failure").Inc()
		return nil, unauthorized("biometric authentication failed")
	}
	wu := webauthnUser{user: user}

	session, err := s.takeSession(ctx, purposeLogin, user.ID, parsed.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, err
	}

	credential, err := s.webAuthn.ValidateLogin(wu, *session, parsed)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(methodBiometric, "failure").Inc()
		slog.Warn("biometric assertion rejected", "user_id", user.ID.String(), "error", err)
		return nil, unauthorized("biometric authentication failed")
	}
	if credential.Authenticator.CloneWarning {
		metrics.AuthAttempts.WithLabelValues(methodBiometric, "clone_warning").Inc()
		slog.Warn("authenticator counter regression", "user_id", user.ID.String())
		return nil, unauthorized("authenticator counter regression detected")
	}

	err = s.recordAssertion(ctx, user.ID, credential.ID, credential.Authenticator.SignCount, credential.Flags.BackupState, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			metrics.AuthAttempts.WithLabelValues(methodBiometric, "failure").Inc()
		}
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues(methodBiometric, "success").Inc()
	return s.authResponse(user)
}

// recordAssertion stores the authenticator state from a verified assertion.
// The counter only moves forward: an older assertion finishing after a newer
// one matches no row and is rejected.
func (s *AuthService) recordAssertion(ctx context.Context, userID uuid.UUID, credentialID []byte, signCount uint32, backupState bool, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Authenticator{}).
			Where("user_id = ? AND credential_id = ? AND sign_count <= ?", userID, credentialID, signCount).
			Updates(map[string]any{
				"sign_count":   signCount,
				"backup_state": backupState,
				"last_used_at": at,
			})
		if res.Error != nil {
			return storeError("update authenticator", res.Error)
		}
		if res.RowsAffected == 0 {
			slog.Warn("authenticator update matched no row", "user_id", userID.String(), "sign_count", signCount)
			return unauthorized("biometric authentication failed")
		}
		return nil
	})
}

func (s *AuthService) takeSession(ctx context.Context, purpose string, userID uuid.UUID, challenge string) (*webauthn.SessionData, error) {
	session, err := s.challenges.Take(ctx, ChallengeKey(purpose, userID.String(), challenge))
	if errors.Is(err, ErrChallengeNotFound) {
		return nil, badRequest("challenge expired or already used; request new options")
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// userByIDNumber returns nil without error when no user matches.
func (s *AuthService) userByIDNumber(ctx context.Context, idNumber string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Authenticators").
		Where("identification_number = ?", strings.TrimSpace(idNumber)).
		First(&user).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("load user", err)
	}
	return &user, nil
}

func (s *AuthService) authResponse(user *models.User) (*dto.AuthResponse, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{
		AccessToken: token,
		User:        dto.NewUserResponse(user),
	}, nil
}

// IssueToken signs an HS256 access token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       user.ID.String(),
		"email":     user.Email,
		"role":      string(user.Role),
		"user_type": string(user.UserType),
		"iat":       now.Unix(),
		"exp":       now.Add(s.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// webauthnUser adapts a User with its authenticators to webauthn.User.
type webauthnUser struct {
	user *models.User
}

func (u webauthnUser) WebAuthnID() []byte {
	id := u.user.ID
	return id[:]
}

func (u webauthnUser) WebAuthnName() string { return u.user.IdentificationNumber }

func (u webauthnUser) WebAuthnDisplayName() string { return u.user.Name }

func (u webauthnUser) WebAuthnIcon() string { return "" }

func (u webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(u.user.Authenticators))
	for _, a := range u.user.Authenticators {
		transports := make([]protocol.AuthenticatorTransport, 0, len(a.Transports))
		for _, t := range a.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		creds = append(creds, webauthn.Credential{
			ID:              a.CredentialID,
			PublicKey:       a.PublicKey,
			AttestationType: a.AttestationType,
			Transport:       transports,
			Flags: webauthn.CredentialFlags{
				BackupEligible: a.BackupEligible,
				BackupState:    a.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				AAGUID:    a.AAGUID,
				SignCount: a.SignCount,
			},
		})
	}
	return creds
}
