package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/bootstrap"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/fixture"
	"github.com/hackgods/clinic-slot-booking/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer app.Shutdown()

	if err := seedCatalog(ctx, app.Service, log); err != nil {
		log.Fatal("seed slot catalog", zap.Error(err))
	}

	days := getInt("SEED_DAYS", 14)
	perDay := getInt("SEED_BOOKINGS_PER_DAY", 40)
	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	booked, refused := seedBookings(ctx, app.Service, faker, days, perDay, log)
	log.Info("seed complete", zap.Int("booked", booked), zap.Int("refused", refused))
}

func seedCatalog(ctx context.Context, svc *appointment.Service, log *zap.Logger) error {
	for caseType, defs := range appointment.DefaultSlotCatalog() {
		stored, err := svc.UpsertSlotCatalog(ctx, caseType, defs, "seed")
		if err != nil {
			return fmt.Errorf("%s: %w", caseType, err)
		}
		log.Info("slot catalog installed", zap.String("case_type", string(caseType)), zap.Int("slots", len(stored)))
	}
	return nil
}

// seedBookings books random patients through the service so every clinic rule applies.
func seedBookings(ctx context.Context, svc *appointment.Service, f *gofakeit.Faker, days, perDay int, log *zap.Logger) (booked, refused int) {
	catalog := appointment.DefaultSlotCatalog()
	caseTypes := make([]appointment.CaseType, 0, len(catalog))
	for ct := range catalog {
		caseTypes = append(caseTypes, ct)
	}

	today := svc.Today()
	for d := 0; d < days; d++ {
		date := today.AddDays(d)
		for i := 0; i < perDay; i++ {
			caseType := caseTypes[f.Number(0, len(caseTypes)-1)]
			defs := catalog[caseType]
			slot := defs[f.Number(0, len(defs)-1)].Time
			if slot == appointment.AnyTime {
				slot = fmt.Sprintf("%02d:%02d", f.Number(8, 15), f.RandomInt([]int{0, 15, 30, 45}))
			}

			p := fixture.NewPatient(f)
			_, err := svc.Book(ctx, appointment.BookingRequest{
				PatientID:   p.ID,
				PatientName: p.Name,
				Phone:       p.Phone,
				CaseType:    caseType,
				Date:        date,
				TimeSlot:    slot,
				Notes:       f.RandomString(seedNotes),
				CreatedBy:   "seed",
			})
			if err == nil {
				booked++
				continue
			}
			if _, ok := appointment.AsPolicyError(err); ok || errors.Is(err, appointment.ErrSlotBeingBooked) {
				refused++
				continue
			}
			log.Error("seed booking failed", zap.Error(err))
		}
		log.Info("day seeded", zap.String("date", date.String()), zap.Int("booked_so_far", booked))
	}
	return booked, refused
}

var seedNotes = []string{
	"",
	"Follow-up review",
	"Bring previous results",
	"Fasting blood test",
	"Wound review",
	"Referred from OPD",
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
