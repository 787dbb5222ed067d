package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"clinic-booking/internal/data/entity"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/dto/request"
	"clinic-booking/internal/usecase"
	"clinic-booking/internal/worker"
	"clinic-booking/pkg/database"
	"clinic-booking/pkg/lock"
	"clinic-booking/pkg/messaging"
	"clinic-booking/pkg/metrics"
	"clinic-booking/pkg/utils"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var specialties = []string{
	"General Practice",
	"Dermatology",
	"Cardiology",
	"Pediatrics",
	"Orthopedics",
	"Neurology",
	"Ophthalmology",
	"ENT",
}

func main() {
	clinics := flag.Int("clinics", 3, "number of clinics")
	providers := flag.Int("providers", 4, "providers per clinic")
	patients := flag.Int("patients", 50, "number of patients")
	days := flag.Int("days", 7, "days of availability to publish")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = godotenv.Load()

	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.InitDB(config.Database)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	repo := repository.NewRepository(db, logger)
	m := metrics.New(prometheus.NewRegistry())
	svc := usecase.NewService(repo, config, usecase.Dependencies{
		Locker:  lock.NewMemoryLocker(config.Lock.WaitTimeout),
		Broker:  messaging.NewMemoryBroker(),
		Queue:   worker.NewMemoryQueue(config.Retry, m, logger),
		Metrics: m,
	}, logger)

	gofakeit.Seed(time.Now().UnixNano())

	admin, err := seedAdmin(ctx, repo)
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	providerIDs, err := seedClinics(ctx, svc, admin, *clinics, *providers)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}

	if err := seedPatients(ctx, svc, *patients); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	if err := seedDiscounts(ctx, repo); err != nil {
		log.Fatalf("seed discounts: %v", err)
	}

	created, err := publishSlots(ctx, svc, admin, providerIDs, *days)
	if err != nil {
		log.Fatalf("publish slots: %v", err)
	}

	log.Printf("seed complete: %d providers, %d patients, %d slots", len(providerIDs), *patients, created)
}

// seedAdmin creates the admin account directly. Registration only hands out
// the patient role.
func seedAdmin(ctx context.Context, repo *repository.Repository) (utils.Actor, error) {
	const email = "admin@clinic.local"

	existing, err := repo.User.FindByEmail(ctx, email)
	if err != nil {
		return utils.Actor{}, err
	}
	if existing != nil {
		return utils.Actor{UserID: existing.ID, Role: string(entity.RoleAdmin)}, nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return utils.Actor{}, err
	}

	now := time.Now()
	admin := &entity.User{
		Base:         entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:         "Clinic Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         entity.RoleAdmin,
		IsActive:     true,
	}
	if err := repo.User.Create(ctx, admin); err != nil {
		return utils.Actor{}, err
	}

	log.Printf("admin created: %s / admin123", email)
	return utils.Actor{UserID: admin.ID, Role: string(entity.RoleAdmin)}, nil
}

func seedClinics(ctx context.Context, svc *usecase.Service, admin utils.Actor, clinics, perClinic int) ([]string, error) {
	log.Printf("seeding %d clinics with %d providers each", clinics, perClinic)

	weekdays := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	var providerIDs []string

	for i := 0; i < clinics; i++ {
		hours := make([]request.WorkingDayRequest, 0, 7)
		for _, day := range weekdays {
			hours = append(hours, request.WorkingDayRequest{Day: day, IsOpen: true})
		}
		hours = append(hours,
			request.WorkingDayRequest{Day: "saturday", IsOpen: true, OpenTime: strPtr("09:00"), CloseTime: strPtr("13:00")},
			request.WorkingDayRequest{Day: "sunday", IsOpen: false},
		)

		clinic, err := svc.Provider.CreateClinic(ctx, admin, &request.ClinicRequest{
			Name:                fmt.Sprintf("%s Clinic", gofakeit.City()),
			Address:             gofakeit.Street(),
			Phone:               gofakeit.Phone(),
			WorkingHours:        hours,
			DefaultOpenTime:     "08:00",
			DefaultCloseTime:    "17:00",
			SlotDurationMinutes: 30,
		})
		if err != nil {
			return nil, err
		}

		for j := 0; j < perClinic; j++ {
			fee := float64(gofakeit.Number(10, 40) * 10)
			online := fee * 0.8

			req := &request.ProviderRequest{
				Name:            "Dr. " + gofakeit.Name(),
				Specialty:       specialties[gofakeit.Number(0, len(specialties)-1)],
				ClinicID:        &clinic.ID,
				ConsultationFee: fee,
				OnlineFee:       &online,
				ReceptionMode:   string(entity.ReceptionOpen),
			}
			// Every third provider only admits a fixed number of patients a day
			if j%3 == 2 {
				req.ReceptionMode = string(entity.ReceptionLimited)
				req.ReceptionCapacity = gofakeit.Number(4, 10)
			}

			provider, err := svc.Provider.CreateProvider(ctx, admin, req)
			if err != nil {
				return nil, err
			}
			providerIDs = append(providerIDs, provider.ID)
		}
	}

	log.Println("clinics seeded")
	return providerIDs, nil
}

func seedPatients(ctx context.Context, svc *usecase.Service, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		first, last := gofakeit.FirstName(), gofakeit.LastName()
		email := strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, i))
		phone := gofakeit.Numerify("+1555#######")

		_, err := svc.Auth.Register(ctx, &request.RegisterRequest{
			Name:     first + " " + last,
			Email:    email,
			Password: "password123",
			Phone:    &phone,
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", email, err)
		}
	}

	log.Println("patients seeded")
	return nil
}

func seedDiscounts(ctx context.Context, repo *repository.Repository) error {
	existing, err := repo.Discount.FindByCode(ctx, "WELCOME10")
	if err != nil || existing != nil {
		return err
	}

	percent := 10.0
	return repo.Discount.Create(ctx, &entity.Discount{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: time.Now()},
		Code:       "WELCOME10",
		Percent:    &percent,
		IsActive:   true,
	})
}

func publishSlots(ctx context.Context, svc *usecase.Service, admin utils.Actor, providerIDs []string, days int) (int, error) {
	log.Printf("publishing %d days of slots", days)

	created := 0
	start := time.Now().AddDate(0, 0, 1)
	for _, providerID := range providerIDs {
		for d := 0; d < days; d++ {
			date := start.AddDate(0, 0, d).Format("2006-01-02")
			result, err := svc.Slot.PublishSlots(ctx, admin, &request.PublishSlotsRequest{
				ProviderID: providerID,
				Date:       date,
			})
			if err != nil {
				return created, fmt.Errorf("publish %s on %s: %w", providerID, date, err)
			}
			created += result.Created
		}
	}

	return created, nil
}

func strPtr(s string) *string { return &s }
