package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/logger"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

var timezones = []string{"UTC", "Europe/London", "Asia/Kolkata", "America/New_York"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info", "seed")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(cfg.Env, cfg.LogLevel, "seed")
	log.Info().Msg("seed starting")

	if cfg.StorageDriver != config.StoragePostgres {
		log.Fatal().Msg("seed writes to Postgres, set STORAGE_DRIVER=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithMaxConns(cfg.PostgresMaxConns))
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	svc := availability.NewService(availability.NewPgRepository(pool), 0, log)

	count := 20
	if v, err := strconv.Atoi(os.Getenv("SEED_DOCTORS")); err == nil && v > 0 {
		count = v
	}

	if err := seedDoctors(ctx, svc, count, log); err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}

	log.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, svc *availability.Service, count int, log zerolog.Logger) error {
	log.Info().Int("count", count).Msg("seeding doctors")

	for i := 0; i < count; i++ {
		doctorID := uuid.New()
		cfg := randomConfig(time.Now().UTC())

		if _, err := svc.Set(ctx, doctorID, cfg); err != nil {
			return fmt.Errorf("doctor %d: %w", i, err)
		}

		log.Info().
			Str("doctor_id", doctorID.String()).
			Str("name", "Dr. "+gofakeit.LastName()).
			Int("duration_minutes", cfg.DurationMinutes).
			Int("session_capacity", cfg.SessionCapacity).
			Msg("doctor seeded")
	}
	return nil
}

// randomConfig builds weekday morning and afternoon sessions, an optional
// Saturday clinic, a lunch-hour break next week, and sometimes a leave block.
func randomConfig(now time.Time) availability.Config {
	durations := availability.AllowedDurations
	cfg := availability.Config{
		DurationMinutes: durations[gofakeit.Number(1, len(durations)-2)],
		SessionCapacity: gofakeit.Number(5, 30),
		Timezone:        gofakeit.RandomString(timezones),
		WeeklyHours:     make(map[string][]schedule.Range),
	}

	morning := schedule.Range{Start: gofakeit.RandomString([]string{"08:00", "08:30", "09:00"}), End: "12:00"}
	afternoon := schedule.Range{Start: "14:00", End: gofakeit.RandomString([]string{"16:00", "17:00", "18:00"})}
	for _, day := range []schedule.Weekday{schedule.Mon, schedule.Tue, schedule.Wed, schedule.Thu, schedule.Fri} {
		ranges := []schedule.Range{morning}
		if gofakeit.Bool() {
			ranges = append(ranges, afternoon)
		}
		cfg.WeeklyHours[string(day)] = ranges
	}
	if gofakeit.Bool() {
		cfg.WeeklyHours[string(schedule.Sat)] = []schedule.Range{{Start: "09:00", End: "13:00"}}
	}

	nextWeek := now.Truncate(24*time.Hour).AddDate(0, 0, 7)
	cfg.Breaks = append(cfg.Breaks, availability.ExceptionInput{
		Start:  nextWeek.Add(11 * time.Hour),
		End:    nextWeek.Add(11*time.Hour + 30*time.Minute),
		Reason: "staff meeting",
	})
	if gofakeit.Number(1, 4) == 1 {
		leave := nextWeek.AddDate(0, 0, gofakeit.Number(1, 14))
		cfg.Blocks = append(cfg.Blocks, availability.ExceptionInput{
			Start:  leave,
			End:    leave.AddDate(0, 0, gofakeit.Number(1, 3)),
			Reason: gofakeit.RandomString([]string{"conference", "annual leave", "training"}),
		})
	}
	return cfg
}
