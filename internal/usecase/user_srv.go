package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*response.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *request.UpdateProfileRequest) (*response.UserResponse, error)
	GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error)
	DeleteUser(ctx context.Context, userID string) error
}

type userService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	clock       func() time.Time
	log         *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, clock func() time.Time, log *zap.Logger) UserService {
	return &userService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		clock:       clock,
		log:         log.With(zap.String("service", "user")),
	}
}

func (us *userService) GetProfile(ctx context.Context, userID string) (*response.UserResponse, error) {
	id, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}

	user, err := us.userRepo.FindByID(ctx, id)
	if err != nil {
		us.log.Error("Failed to find user", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (us *userService) UpdateProfile(ctx context.Context, userID string, req *request.UpdateProfileRequest) (*response.UserResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		us.log.Warn("Update profile validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}
	id, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}

	user, err := us.userRepo.FindByID(ctx, id)
	if err != nil {
		us.log.Error("Failed to find user", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Password != nil {
		hashed, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hashed
	}
	user.UpdatedAt = us.clock()

	if err := us.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		us.log.Error("Failed to update user", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("update user: %w", err)
	}

	us.log.Info("Profile updated", zap.String("user_id", userID))
	resp := response.UserToResponse(user)
	return &resp, nil
}

func (us *userService) GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error) {
	normalizePage(req)

	users, err := us.userRepo.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		us.log.Error("Failed to get all users",
			zap.Error(err),
			zap.Int("page", req.Page),
			zap.Int("per_page", req.PerPage),
		)
		return nil, fmt.Errorf("list users: %w", err)
	}

	total, err := us.userRepo.CountAll(ctx)
	if err != nil {
		us.log.Error("Failed to count users", zap.Error(err))
		return nil, fmt.Errorf("count users: %w", err)
	}

	data := make([]response.UserResponse, len(users))
	for i, user := range users {
		data[i] = response.UserToResponse(user)
	}

	us.log.Debug("Users retrieved",
		zap.Int("count", len(users)),
		zap.Int64("total", total),
		zap.Int("page", req.Page),
	)

	return response.NewPaginatedResponse(data, req.Page, req.PerPage, total), nil
}

func (us *userService) DeleteUser(ctx context.Context, userID string) error {
	id, err := parseID("user", userID)
	if err != nil {
		return err
	}

	if err := us.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		us.log.Error("Failed to delete user", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("delete user: %w", err)
	}

	// Authenticate rejects inactive users anyway, revoking keeps the session
	// table honest.
	revoked, err := us.sessionRepo.RevokeForUser(ctx, id, us.clock())
	if err != nil {
		us.log.Warn("Failed to revoke sessions of deleted user", zap.Error(err), zap.String("user_id", userID))
	}

	us.log.Info("User deleted", zap.String("user_id", userID), zap.Int64("sessions_revoked", revoked))
	return nil
}
