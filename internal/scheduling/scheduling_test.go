package scheduling_test

import (
	"context"
	"testing"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/scheduling"
	"clinic-booking/pkg/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

type clinicMap map[uuid.UUID]*entity.Clinic

func (m clinicMap) FindByID(_ context.Context, id uuid.UUID) (*entity.Clinic, error) {
	return m[id], nil
}

func sundayClinic() *entity.Clinic {
	return &entity.Clinic{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()},
		WorkingHours: []entity.WorkingDay{
			{Day: "sunday", IsOpen: true, OpenTime: strPtr("09:00"), CloseTime: strPtr("12:00")},
			{Day: "monday", IsOpen: true},
			{Day: "friday", IsOpen: false},
		},
		DefaultOpenTime:     "08:00",
		DefaultCloseTime:    "10:00",
		SlotDurationMinutes: 30,
	}
}

// 2025-01-05 is a Sunday.
var sunday = time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := scheduling.ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, scheduling.TimeOfDay(570), tod)
	assert.Equal(t, "09:30", tod.String())

	end, err := scheduling.ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, "24:00", end.String())

	for _, bad := range []string{"9:30", "25:00", "10:60", "ab:cd", "", "24:01"} {
		_, err := scheduling.ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestResolveClinicUsesDayOverride(t *testing.T) {
	hours, err := scheduling.ResolveClinic(sundayClinic(), sunday)
	require.NoError(t, err)

	assert.False(t, hours.Closed)
	assert.Equal(t, "09:00", hours.Open.String())
	assert.Equal(t, "12:00", hours.Close.String())
	assert.Equal(t, 30, hours.SlotMinutes)
	assert.False(t, hours.Fallback)
}

func TestResolveClinicFallsBackToClinicDefaults(t *testing.T) {
	hours, err := scheduling.ResolveClinic(sundayClinic(), sunday.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "08:00", hours.Open.String())
	assert.Equal(t, "10:00", hours.Close.String())
}

func TestResolveClinicClosedDays(t *testing.T) {
	clinic := sundayClinic()

	friday := sunday.AddDate(0, 0, 5)
	hours, err := scheduling.ResolveClinic(clinic, friday)
	require.NoError(t, err)
	assert.True(t, hours.Closed, "marked closed")

	tuesday := sunday.AddDate(0, 0, 2)
	hours, err = scheduling.ResolveClinic(clinic, tuesday)
	require.NoError(t, err)
	assert.True(t, hours.Closed, "no entry")

	clinic.ClosedDates = []string{"2025-01-05"}
	hours, err = scheduling.ResolveClinic(clinic, sunday)
	require.NoError(t, err)
	assert.True(t, hours.Closed, "holiday")
}

func TestResolverFallbackIsFlagged(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := scheduling.NewResolver(clinicMap{}, scheduling.FallbackWindow{
		Open:        scheduling.MustTimeOfDay("09:00"),
		Close:       scheduling.MustTimeOfDay("21:00"),
		SlotMinutes: 30,
	}, m, zap.NewNop())

	hours, err := r.Resolve(context.Background(), nil, sunday)
	require.NoError(t, err)

	assert.True(t, hours.Fallback)
	assert.Equal(t, "09:00", hours.Open.String())
	assert.Equal(t, "21:00", hours.Close.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HoursResolved.WithLabelValues("fallback")))
}

func TestResolverUnknownClinic(t *testing.T) {
	r := scheduling.NewResolver(clinicMap{}, scheduling.FallbackWindow{}, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	id := uuid.New()

	_, err := r.Resolve(context.Background(), &id, sunday)
	assert.ErrorIs(t, err, scheduling.ErrUnknownClinic)
}

func TestGenerateSundayScenario(t *testing.T) {
	hours, err := scheduling.ResolveClinic(sundayClinic(), sunday)
	require.NoError(t, err)

	fees := entity.Fees{Consultation: 200, Online: floatPtr(150)}
	slots := scheduling.Generate(hours, entity.VisitClinic, fees, nil)

	require.Len(t, slots, 6)
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	for i, s := range slots {
		assert.Equal(t, want[i], s.Start.String())
		assert.Equal(t, 200.0, s.Price)
		assert.Equal(t, entity.VisitClinic, s.VisitType)
	}
	assert.Equal(t, "12:00", slots[5].End.String())
}

func TestGenerateDropsPartialTrailingSlot(t *testing.T) {
	hours := scheduling.Hours{
		Open:        scheduling.MustTimeOfDay("09:00"),
		Close:       scheduling.MustTimeOfDay("10:10"),
		SlotMinutes: 20,
	}
	slots := scheduling.Generate(hours, entity.VisitClinic, entity.Fees{Consultation: 50}, nil)

	require.Len(t, slots, 3)
	assert.Equal(t, "10:00", slots[2].End.String())
}

func TestGenerateSkipsBreak(t *testing.T) {
	hours := scheduling.Hours{
		Open:        scheduling.MustTimeOfDay("09:00"),
		Close:       scheduling.MustTimeOfDay("12:00"),
		SlotMinutes: 60,
	}
	brk := &scheduling.Break{Start: scheduling.MustTimeOfDay("10:00"), End: scheduling.MustTimeOfDay("11:00")}
	slots := scheduling.Generate(hours, entity.VisitClinic, entity.Fees{Consultation: 50}, brk)

	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].Start.String())
	assert.Equal(t, "11:00", slots[1].Start.String())
}

func TestGenerateClosedYieldsNothing(t *testing.T) {
	assert.Empty(t, scheduling.Generate(scheduling.Hours{Closed: true}, entity.VisitClinic, entity.Fees{}, nil))
}

func TestPriceFallsBackToConsultationFee(t *testing.T) {
	fees := entity.Fees{Consultation: 200, Online: floatPtr(150)}

	assert.Equal(t, 200.0, scheduling.Price(entity.VisitClinic, fees))
	assert.Equal(t, 150.0, scheduling.Price(entity.VisitOnline, fees))
	assert.Equal(t, 200.0, scheduling.Price(entity.VisitHome, fees))

	fees.HomeVisit = floatPtr(300)
	assert.Equal(t, 300.0, scheduling.Price(entity.VisitHome, fees))
}

func TestProjectedKeyRoundTrip(t *testing.T) {
	key := scheduling.ProjectedKey{
		ProviderID: uuid.New(),
		Date:       sunday,
		Start:      scheduling.MustTimeOfDay("10:30"),
		VisitType:  entity.VisitOnline,
	}

	s := key.String()
	assert.True(t, scheduling.IsProjectedKey(s))

	parsed, err := scheduling.ParseProjectedKey(s)
	require.NoError(t, err)
	assert.Equal(t, key.ProviderID, parsed.ProviderID)
	assert.True(t, key.Date.Equal(parsed.Date))
	assert.Equal(t, key.Start, parsed.Start)
	assert.Equal(t, key.VisitType, parsed.VisitType)
}

func TestParseProjectedKeyRejectsGarbage(t *testing.T) {
	for _, bad := range []string{
		uuid.NewString(),
		"v_nope",
		"v_" + uuid.NewString() + "_20250105_1030_spa",
		"v_" + uuid.NewString() + "_2025010_1030_clinic",
	} {
		_, err := scheduling.ParseProjectedKey(bad)
		assert.ErrorIs(t, err, scheduling.ErrMalformedSlotRef, bad)
	}
}

func TestProjectedSlotsReferToTheirKey(t *testing.T) {
	hours, err := scheduling.ResolveClinic(sundayClinic(), sunday)
	require.NoError(t, err)
	providerID := uuid.New()

	slots := scheduling.Project(providerID, hours, sunday,
		scheduling.Generate(hours, entity.VisitClinic, entity.Fees{Consultation: 200}, nil))

	require.Len(t, slots, 6)
	for _, s := range slots {
		assert.Equal(t, scheduling.Projected, s.Kind)
		assert.Equal(t, uuid.Nil, s.ID)
		assert.Equal(t, s.Key, s.Ref())
		assert.True(t, scheduling.IsProjectedKey(s.Ref()))
	}
}
