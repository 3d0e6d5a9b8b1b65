package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	"github.com/medidesk/practice-api/internal/repository"
	"github.com/medidesk/practice-api/internal/service/audit"
	"github.com/medidesk/practice-api/internal/service/event"
	"github.com/medidesk/practice-api/internal/service/shared"
	"github.com/medidesk/practice-api/pkg/auth"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
	"github.com/medidesk/practice-api/pkg/logger"
	"github.com/medidesk/practice-api/pkg/metrics"
	"github.com/medidesk/practice-api/pkg/security"
	"github.com/medidesk/practice-api/pkg/tokenstore"
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

var errInvalidCredentials = apperrors.Unauthorized("invalid credentials", nil)

type Deps struct {
	Tx       repository.Transactor
	Users    repository.UserRepository
	Doctors  repository.DoctorRepository
	Patients repository.PatientRepository
	Hasher   security.PasswordHasher
	JWT      auth.JWTService
	Tokens   tokenstore.Store
	Auditor  *audit.Service
	Events   event.Emitter
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

type Service struct {
	Deps
	log *logger.Logger
	now func() time.Time
}

func NewService(deps Deps) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{Deps: deps, log: log.With("auth"), now: time.Now}
}

// Register creates a doctor or patient account together with its profile.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest, meta model.Actor) (*model.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if req.Role != model.RoleDoctor && req.Role != model.RolePatient {
		return nil, apperrors.Validation("role must be DOCTOR or PATIENT")
	}
	if req.Role == model.RoleDoctor && req.Doctor == nil {
		return nil, apperrors.Validation("doctor profile is required for role DOCTOR")
	}
	if req.Role == model.RolePatient && req.Doctor != nil {
		return nil, apperrors.Validation("doctor profile is only allowed for role DOCTOR")
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		Status:       model.UserStatusActive,
	}

	resp := &model.AuthResponse{User: user}
	var profileID uuid.UUID

	switch req.Role {
	case model.RoleDoctor:
		resp.Doctor, err = newDoctorProfile(req.Doctor)
	case model.RolePatient:
		resp.Patient, err = newPatientProfile(req.Patient)
	}
	if err != nil {
		return nil, err
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperrors.Conflict("email is already registered", err)
			}
			return shared.RepoError("user", err)
		}

		if resp.Doctor != nil {
			resp.Doctor.UserID = user.ID
			if err := s.Doctors.Create(ctx, resp.Doctor); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return apperrors.Conflict("license number is already registered", err)
				}
				return shared.RepoError("doctor", err)
			}
			resp.Doctor.FirstName, resp.Doctor.LastName, resp.Doctor.Email = user.FirstName, user.LastName, user.Email
			profileID = resp.Doctor.ID
		}
		if resp.Patient != nil {
			resp.Patient.UserID = user.ID
			if err := s.Patients.Create(ctx, resp.Patient); err != nil {
				return shared.RepoError("patient", err)
			}
			resp.Patient.FirstName, resp.Patient.LastName = user.FirstName, user.LastName
			resp.Patient.Email, resp.Patient.Phone = user.Email, user.Phone
			profileID = resp.Patient.ID
		}

		return s.Events.Emit(ctx, model.EventUserRegistered, user.ID, map[string]interface{}{
			"user_id":    user.ID,
			"role":       user.Role,
			"profile_id": profileID,
		})
	})
	if err != nil {
		return nil, err
	}

	resp.Tokens, err = s.issueTokens(user, profileID)
	if err != nil {
		return nil, err
	}

	meta.UserID, meta.Role, meta.ProfileID = user.ID, user.Role, profileID
	s.Auditor.Log(ctx, meta, model.AuditActionRegister, model.AuditEntityUser, user.ID, nil)
	s.log.Info("User registered", "user_id", user.ID.String(), "role", string(user.Role))
	return resp, nil
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password produce the same error.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest, meta model.Actor) (*model.AuthResponse, error) {
	now := s.now()

	user, err := s.Users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.countLogin("unknown_email")
			return nil, errInvalidCredentials
		}
		return nil, shared.RepoError("user", err)
	}

	passwordErr := s.Hasher.Compare(user.PasswordHash, req.Password)
	if user.IsLocked(now) {
		s.countLogin("locked")
		if passwordErr != nil {
			return nil, errInvalidCredentials
		}
		return nil, apperrors.Forbidden(fmt.Sprintf("account is locked until %s", user.LockedUntil.UTC().Format(time.RFC3339)))
	}

	if passwordErr != nil {
		locked, recErr := s.Users.RecordLoginFailure(ctx, user.ID, maxLoginAttempts, now.Add(lockoutDuration))
		if recErr != nil {
			s.log.Error(recErr, "Failed to record login failure", "user_id", user.ID.String())
		}
		if locked {
			s.log.Warn("Account locked after repeated login failures", "user_id", user.ID.String())
		}
		s.countLogin("bad_password")
		return nil, errInvalidCredentials
	}

	if user.Status != model.UserStatusActive {
		s.countLogin("inactive")
		return nil, apperrors.Forbidden("account is not active")
	}

	if err := s.Users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, shared.RepoError("user", err)
	}
	user.LastLoginAt = &now
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	resp, err := s.profileResponse(ctx, user)
	if err != nil {
		return nil, err
	}
	resp.Tokens, err = s.issueTokens(user, profileIDOf(resp))
	if err != nil {
		return nil, err
	}

	s.countLogin("success")
	meta.UserID, meta.Role, meta.ProfileID = user.ID, user.Role, profileIDOf(resp)
	s.Auditor.Log(ctx, meta, model.AuditActionLogin, model.AuditEntityUser, user.ID, nil)
	return resp, nil
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.JWT.Validate(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token", err)
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return nil, err
	}

	user, err := s.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token", err)
		}
		return nil, shared.RepoError("user", err)
	}
	if user.Status != model.UserStatusActive {
		return nil, apperrors.Forbidden("account is not active")
	}

	consumed, err := s.Tokens.Consume(ctx, claims.ID, claims.TTL(s.now()))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !consumed {
		return nil, apperrors.Unauthorized("token has been revoked", nil)
	}
	return s.issueTokens(user, claims.ProfileID)
}

// Logout revokes the access token and, when given, the refresh token.
// An unparsable refresh token is ignored.
func (s *Service) Logout(ctx context.Context, access *auth.Claims, refreshToken string, meta model.Actor) error {
	now := s.now()
	if err := s.Tokens.Revoke(ctx, access.ID, access.TTL(now)); err != nil {
		return apperrors.Internal(err)
	}

	if refreshToken != "" {
		refresh, err := s.JWT.Validate(refreshToken, auth.TokenTypeRefresh)
		if err == nil && refresh.UserID == access.UserID {
			if err := s.Tokens.Revoke(ctx, refresh.ID, refresh.TTL(now)); err != nil {
				return apperrors.Internal(err)
			}
		}
	}

	s.Auditor.Log(ctx, meta, model.AuditActionLogout, model.AuditEntityUser, access.UserID, nil)
	return nil
}

// VerifyAccessToken validates an access token and checks that it has not
// been revoked.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.JWT.Validate(token, auth.TokenTypeAccess)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token", err)
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Me returns the caller with their role profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.AuthResponse, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, shared.RepoError("user", err)
	}
	return s.profileResponse(ctx, user)
}

func (s *Service) ChangePassword(ctx context.Context, actor model.Actor, req *model.ChangePasswordRequest) error {
	user, err := s.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return shared.RepoError("user", err)
	}
	if err := s.Hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.Unauthorized("current password is incorrect", nil)
	}
	if req.CurrentPassword == req.NewPassword {
		return apperrors.Validation("new password must differ from the current password")
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return shared.RepoError("user", err)
	}

	s.Auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, user.ID, model.JSONMap{"field": "password"})
	return nil
}

// SeedAdmin creates an ADMIN account. It is only reachable from the CLI.
func (s *Service) SeedAdmin(ctx context.Context, email, password, firstName, lastName string) (*model.User, error) {
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         model.RoleAdmin,
		Status:       model.UserStatusActive,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.Conflict("email is already registered", err)
		}
		return nil, shared.RepoError("user", err)
	}
	s.log.Info("Admin account created", "user_id", user.ID.String(), "email", user.Email)
	return user, nil
}

func (s *Service) ensureNotRevoked(ctx context.Context, claims *auth.Claims) error {
	revoked, err := s.Tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if revoked {
		return apperrors.Unauthorized("token has been revoked", nil)
	}
	return nil
}

func (s *Service) issueTokens(user *model.User, profileID uuid.UUID) (*model.TokenPair, error) {
	subject := auth.Subject{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		ProfileID: profileID,
	}
	access, _, err := s.JWT.Generate(subject, auth.TokenTypeAccess)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, _, err := s.JWT.Generate(subject, auth.TokenTypeRefresh)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.JWT.AccessTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (s *Service) profileResponse(ctx context.Context, user *model.User) (*model.AuthResponse, error) {
	resp := &model.AuthResponse{User: user}
	var err error
	switch user.Role {
	case model.RoleDoctor:
		resp.Doctor, err = s.Doctors.GetByUserID(ctx, user.ID)
	case model.RolePatient:
		resp.Patient, err = s.Patients.GetByUserID(ctx, user.ID)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, shared.RepoError("profile", err)
	}
	return resp, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.Hasher.Hash(password)
	switch {
	case errors.Is(err, security.ErrPasswordTooShort):
		return "", apperrors.Validation(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen))
	case errors.Is(err, security.ErrPasswordTooLong):
		return "", apperrors.Validation(fmt.Sprintf("password must be at most %d characters", security.MaxPasswordLen))
	case err != nil:
		return "", apperrors.Internal(err)
	}
	return hash, nil
}

func (s *Service) countLogin(outcome string) {
	if s.Metrics != nil {
		s.Metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}

func profileIDOf(resp *model.AuthResponse) uuid.UUID {
	switch {
	case resp.Doctor != nil:
		return resp.Doctor.ID
	case resp.Patient != nil:
		return resp.Patient.ID
	}
	return uuid.Nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
