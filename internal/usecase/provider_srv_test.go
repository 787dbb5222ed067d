package usecase_test

import (
	"testing"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProviderValidatesReception(t *testing.T) {
	h := newHarness(t)
	clinicID := h.clinic.ID.String()

	_, err := h.svc.Provider.CreateProvider(h.ctx, h.admin, &request.ProviderRequest{
		Name:          "Dr. Ines Duarte",
		ClinicID:      &clinicID,
		ReceptionMode: "limited",
	})
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = h.svc.Provider.CreateProvider(h.ctx, h.admin, &request.ProviderRequest{
		Name:     "Dr. Ines Duarte",
		ClinicID: strPtr("5f0c7a1e-8d7e-4c4a-9b57-3c2f1c0e9a11"),
	})
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	created, err := h.svc.Provider.CreateProvider(h.ctx, h.admin, &request.ProviderRequest{
		Name:              "Dr. Ines Duarte",
		Specialty:         "Dermatology",
		ClinicID:          &clinicID,
		ConsultationFee:   180,
		ReceptionMode:     "limited",
		ReceptionCapacity: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ReceptionLimited, created.ReceptionMode)
	assert.Zero(t, created.Rating)

	got, err := h.svc.Provider.GetProvider(h.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.ReceptionCapacity)

	list, err := h.svc.Provider.ListProviders(h.ctx, &request.ListProvidersRequest{Specialty: "derma"})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, created.ID, list.Data[0].ID)
}

func TestUpdateProviderKeepsAggregates(t *testing.T) {
	h := newHarness(t)
	slots := h.publishSunday(h.provider)
	patient := h.patient(0)

	b := h.mustBook(patient, slots["09:00"], "cash")
	h.complete(b.ID)
	_, err := h.svc.Booking.SubmitReview(h.ctx, patient, b.ID, &request.SubmitReviewRequest{Rating: 5})
	require.NoError(t, err)

	clinicID := h.clinic.ID.String()
	updated, err := h.svc.Provider.UpdateProvider(h.ctx, h.admin, h.provider.ID.String(), &request.ProviderRequest{
		Name:            "Dr. Amara Okafor-Reyes",
		ClinicID:        &clinicID,
		ConsultationFee: 220,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Amara Okafor-Reyes", updated.Name)

	p := h.reloadProvider(h.provider.ID)
	assert.Equal(t, 220.0, p.ConsultationFee)
	assert.Equal(t, 1, p.ReviewCount)
	assert.InDelta(t, 5.0, p.Rating, 1e-9)
	assert.Equal(t, 1, p.TotalPatients)
}

func TestClinicClosedDatesStopProjection(t *testing.T) {
	h := newHarness(t)

	updated, err := h.svc.Provider.UpdateClinic(h.ctx, h.admin, h.clinic.ID.String(), &request.ClinicRequest{
		Name:    h.clinic.Name,
		Address: h.clinic.Address,
		WorkingHours: []request.WorkingDayRequest{
			{Day: "sunday", IsOpen: true, OpenTime: strPtr("09:00"), CloseTime: strPtr("12:00")},
		},
		ClosedDates: []string{sunday.Format("2006-01-02")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-05"}, updated.ClosedDates)

	assert.Empty(t, h.listSunday(""))

	// The following Sunday is unaffected.
	slots, err := h.svc.Slot.ListSlots(h.ctx, &request.ListSlotsRequest{
		ProviderID: h.provider.ID.String(),
		Date:       "2025-01-12",
	})
	require.NoError(t, err)
	assert.Len(t, slots, 6)
}

func TestClinicWindowsMustBeWellFormed(t *testing.T) {
	h := newHarness(t)

	cases := map[string]*request.ClinicRequest{
		"default window inverted": {Name: "Eastside", DefaultOpenTime: "18:00", DefaultCloseTime: "08:00"},
		"day window inverted": {Name: "Eastside", WorkingHours: []request.WorkingDayRequest{
			{Day: "monday", IsOpen: true, OpenTime: strPtr("12:00"), CloseTime: strPtr("12:00")},
		}},
		"day listed twice": {Name: "Eastside", WorkingHours: []request.WorkingDayRequest{
			{Day: "monday", IsOpen: true},
			{Day: "monday", IsOpen: false},
		}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Provider.CreateClinic(h.ctx, h.admin, req)
			assert.ErrorIs(t, err, usecase.ErrValidation)
		})
	}

	created, err := h.svc.Provider.CreateClinic(h.ctx, h.admin, &request.ClinicRequest{Name: "Eastside"})
	require.NoError(t, err)
	assert.Equal(t, "09:00", created.DefaultOpenTime)
	assert.Equal(t, "21:00", created.DefaultCloseTime)
	assert.Equal(t, 30, created.SlotDurationMinutes)

	clinics, err := h.svc.Provider.ListClinics(h.ctx)
	require.NoError(t, err)
	assert.Len(t, clinics, 2)
}

func TestProviderWithoutClinicUsesFallbackWindow(t *testing.T) {
	h := newHarness(t)
	created, err := h.svc.Provider.CreateProvider(h.ctx, h.admin, &request.ProviderRequest{
		Name:            "Dr. Felix Brandt",
		ConsultationFee: 90,
	})
	require.NoError(t, err)

	slots, err := h.svc.Slot.ListSlots(h.ctx, &request.ListSlotsRequest{
		ProviderID: created.ID,
		Date:       friday.Format("2006-01-02"),
	})
	require.NoError(t, err)
	// 09:00 to 21:00 in 30 minute steps.
	require.Len(t, slots, 24)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "21:00", slots[23].EndTime)
	assert.Nil(t, slots[0].ClinicID)
}

func TestWalletCreditAndHistory(t *testing.T) {
	h := newHarness(t)
	patient := h.patient(0)
	req := &request.WalletCreditRequest{Amount: 150}

	_, err := h.svc.Wallet.Credit(h.ctx, patient, patient.UserID.String(), req)
	require.ErrorIs(t, err, usecase.ErrForbidden)

	_, err = h.svc.Wallet.Credit(h.ctx, h.admin, patient.UserID.String(), req)
	require.NoError(t, err)
	_, err = h.svc.Wallet.Credit(h.ctx, h.admin, patient.UserID.String(), req)
	require.NoError(t, err)

	balance, err := h.svc.Wallet.GetBalance(h.ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, 300.0, balance.Balance)

	slots := h.publishSunday(h.provider)
	h.mustBook(patient, slots["09:00"], "wallet")

	history, err := h.svc.Wallet.GetTransactions(h.ctx, patient, &request.PaginatedRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), history.Pagination.Total)

	var credits, debits int
	for _, tx := range history.Data {
		switch tx.Type {
		case entity.WalletCredit:
			credits++
		case entity.WalletDebit:
			debits++
			assert.Equal(t, 200.0, tx.Amount)
		}
	}
	assert.Equal(t, 2, credits)
	assert.Equal(t, 1, debits)

	_, err = h.svc.Wallet.Credit(h.ctx, h.admin, patient.UserID.String(), &request.WalletCreditRequest{Amount: -5})
	assert.ErrorIs(t, err, usecase.ErrValidation)
}

func TestAdminActionsAreLogged(t *testing.T) {
	h := newHarness(t)
	h.publishSunday(h.provider)

	logs, err := h.svc.Activity.GetActivityLogs(h.ctx, &request.PaginatedRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.NotEmpty(t, logs.Data)
	assert.Equal(t, "slot.publish", logs.Data[0].Action)
}
