package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error)
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	// Authenticate resolves a session token to the calling actor.
	Authenticate(ctx context.Context, token string) (utils.Actor, error)
}

type authService struct {
	repo   *repository.Repository // users and sessions
	config *utils.Config
	clock  func() time.Time
	log    *zap.Logger
}

func NewAuthService(
	repo *repository.Repository,
	config *utils.Config,
	clock func() time.Time,
	log *zap.Logger,
) AuthService {
	return &authService{
		repo:   repo,
		config: config,
		clock:  clock,
		log:    log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error) {
	// 1. Validate input
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Register validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	// 2. Check the email is free
	existing, err := s.repo.User.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("Failed to check email", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}

	// 3. Hash password
	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// 4. Save user
	now := s.clock()
	user := &entity.User{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hashed,
		Phone:        req.Phone,
		Role:         entity.RolePatient,
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		s.log.Error("Failed to create user", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("create user: %w", err)
	}

	// 5. Log the new user in
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		s.log.Warn("Failed to create session after register",
			zap.Error(err), zap.String("user_id", user.ID.String()))
	}

	s.log.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email))

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Login validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.User.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("Failed to find user by email", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.log.Warn("Invalid login attempt", zap.String("email", email))
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if !user.IsActive {
		s.log.Warn("Inactive user tried to login", zap.String("user_id", user.ID.String()))
		return nil, fmt.Errorf("%w: account is deactivated", ErrForbidden)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		s.log.Error("Failed to create session", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("User logged in", zap.String("user_id", user.ID.String()))

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	tokenID, err := uuid.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: invalid token format", ErrUnauthorized)
	}

	if err := s.repo.Session.Revoke(ctx, tokenID, s.clock()); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return fmt.Errorf("%w: session already ended", ErrUnauthorized)
		}
		s.log.Error("Failed to revoke session", zap.Error(err))
		return fmt.Errorf("revoke session: %w", err)
	}

	s.log.Info("User logged out")
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (utils.Actor, error) {
	tokenID, err := uuid.Parse(token)
	if err != nil {
		return utils.Actor{}, fmt.Errorf("%w: invalid token format", ErrUnauthorized)
	}

	session, err := s.repo.Session.FindActive(ctx, tokenID)
	if err != nil {
		s.log.Error("Failed to find session", zap.Error(err))
		return utils.Actor{}, fmt.Errorf("find session: %w", err)
	}
	if session == nil || !session.Valid(s.clock()) {
		return utils.Actor{}, fmt.Errorf("%w: invalid or expired session", ErrUnauthorized)
	}

	user, err := s.repo.User.FindByID(ctx, session.UserID)
	if err != nil {
		return utils.Actor{}, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return utils.Actor{}, fmt.Errorf("%w: account is not active", ErrUnauthorized)
	}

	return utils.Actor{UserID: user.ID, Role: string(user.Role)}, nil
}

func (s *authService) createSession(ctx context.Context, userID uuid.UUID) (*entity.Session, error) {
	now := s.clock()
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: now,
		},
		UserID:    userID,
		Token:     uuid.New(),
		ExpiresAt: now.Add(time.Duration(s.config.Session.ExpiryHours) * time.Hour),
	}
	if info, ok := utils.GetClientInfo(ctx); ok {
		session.IPAddress = &info.IPAddress
		session.UserAgent = &info.UserAgent
	}

	if err := s.repo.Session.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
