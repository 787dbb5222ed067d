package adaptor

import (
	"clinic-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Auth     *AuthHandler
	User     *UserHandler
	Slot     *SlotHandler
	Booking  *BookingHandler
	Provider *ProviderHandler
	Wallet   *WalletHandler
	Activity *ActivityHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(service.Auth, log),
		User:     NewUserHandler(service.User, log),
		Slot:     NewSlotHandler(service.Slot, log),
		Booking:  NewBookingHandler(service.Booking, log),
		Provider: NewProviderHandler(service.Provider, log),
		Wallet:   NewWalletHandler(service.Wallet, log),
		Activity: NewActivityHandler(service.Activity, log),
	}
}
