package wire

import (
	"clinic-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireWallet(r chi.Router, walletHandler *adaptor.WalletHandler, g guards) {
	r.Route("/api/wallet", func(r chi.Router) {
		r.Use(g.auth)

		r.Get("/balance", walletHandler.GetBalance)
		r.Get("/transactions", walletHandler.GetTransactions)
	})

	r.With(g.auth, g.admin).Post("/api/admin/wallet/{userId}/credit", walletHandler.Credit)
}
