package usecase

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/dto/response"
	"clinic-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WalletService interface {
	GetBalance(ctx context.Context, actor utils.Actor) (*response.WalletBalanceResponse, error)
	GetTransactions(ctx context.Context, actor utils.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.WalletTransactionResponse], error)
	// Credit tops up a user's wallet, e.g. after an approved recharge.
	Credit(ctx context.Context, actor utils.Actor, userID string, req *request.WalletCreditRequest) (*response.WalletTransactionResponse, error)
}

type walletService struct {
	repo     *repository.Repository
	clock    func() time.Time
	activity *activityRecorder
	log      *zap.Logger
}

func NewWalletService(repo *repository.Repository, clock func() time.Time, activity *activityRecorder, log *zap.Logger) WalletService {
	return &walletService{
		repo:     repo,
		clock:    clock,
		activity: activity,
		log:      log.With(zap.String("service", "wallet")),
	}
}

func (s *walletService) GetBalance(ctx context.Context, actor utils.Actor) (*response.WalletBalanceResponse, error) {
	balance, err := s.repo.Wallet.Balance(ctx, actor.UserID)
	if err != nil {
		s.log.Error("Failed to read wallet balance", zap.Error(err), zap.String("user_id", actor.UserID.String()))
		return nil, fmt.Errorf("wallet balance: %w", err)
	}

	return &response.WalletBalanceResponse{
		UserID:  actor.UserID.String(),
		Balance: balance,
	}, nil
}

func (s *walletService) GetTransactions(ctx context.Context, actor utils.Actor, req *request.PaginatedRequest) (*response.PaginatedResponse[response.WalletTransactionResponse], error) {
	normalizePage(req)

	txs, err := s.repo.Wallet.FindByUserID(ctx, actor.UserID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list wallet transactions", zap.Error(err), zap.String("user_id", actor.UserID.String()))
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	total, err := s.repo.Wallet.CountByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("count wallet transactions: %w", err)
	}

	data := make([]response.WalletTransactionResponse, len(txs))
	for i, tx := range txs {
		data[i] = response.WalletTxToResponse(tx)
	}
	return response.NewPaginatedResponse(data, req.Page, req.PerPage, total), nil
}

func (s *walletService) Credit(ctx context.Context, actor utils.Actor, userID string, req *request.WalletCreditRequest) (*response.WalletTransactionResponse, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Wallet credit validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	id, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.User.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	description := req.Description
	if description == "" {
		description = "Wallet top-up"
	}
	// Each top-up is its own reference, so two identical requests are two
	// credits.
	tx := &entity.WalletTransaction{
		BaseSimple:  entity.BaseSimple{ID: uuid.New(), CreatedAt: s.clock()},
		UserID:      user.ID,
		Type:        entity.WalletCredit,
		Amount:      req.Amount,
		Description: description,
		ReferenceID: uuid.New(),
	}
	if _, err := s.repo.Wallet.Credit(ctx, tx); err != nil {
		s.log.Error("Failed to credit wallet", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("credit wallet: %w", err)
	}

	s.activity.record(ctx, actor, "wallet.credit", "user", user.ID, fmt.Sprintf("%.2f", req.Amount))
	s.log.Info("Wallet credited",
		zap.String("user_id", userID),
		zap.Float64("amount", req.Amount),
	)

	resp := response.WalletTxToResponse(tx)
	return &resp, nil
}
