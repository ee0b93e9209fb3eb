package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/logger"
	redisclient "github.com/hackgods/clinic-booking-engine/internal/redis"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	RescheduleRatio float64
	ReadRatio       float64
	DoctorLimit     int
	DaysAhead       int
	PostgresDSN     string
}

type booked struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
}

type DataPool struct {
	Doctors      []uuid.UUID
	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking    OperationMetrics
	Reschedule OperationMetrics
	Sessions   OperationMetrics
	FreeSlots  OperationMetrics
}

// EventTally counts messages seen on the events channel by type.
type EventTally struct {
	mu     sync.Mutex
	counts map[string]int
}

func (t *EventTally) Consume(msgs <-chan redisclient.Message) {
	for msg := range msgs {
		t.mu.Lock()
		if t.counts == nil {
			t.counts = make(map[string]int)
		}
		t.counts[msg.Type]++
		t.mu.Unlock()
	}
}

func (t *EventTally) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     zerolog.Logger
	metrics Metrics
	events  *EventTally
}

type slot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type session struct {
	Range struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"range"`
	ActiveAppointments int `json:"active_appointments"`
	Capacity           int `json:"capacity"`
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("dev", "info", "simulate")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logger.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithMaxConns(4))
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	if baseCfg.RedisEnabled {
		subCtx, stopSub := context.WithCancel(context.Background())
		defer stopSub()
		if tally, err := subscribeEvents(subCtx, baseCfg); err != nil {
			log.Warn().Err(err).Msg("event subscription unavailable")
		} else {
			sim.events = tally
		}
	}

	if err := sim.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}

	violations := sim.VerifyCapacity(context.Background())
	sim.PrintReport(violations)
	if violations > 0 {
		os.Exit(1)
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.4),
		DoctorLimit:     getInt("SIM_DOCTOR_LIMIT", 50),
		DaysAhead:       getInt("SIM_DAYS_AHEAD", 7),
		PostgresDSN:     base.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.RescheduleRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `SELECT doctor_id FROM availability LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	dataPool := &DataPool{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	return dataPool, nil
}

func subscribeEvents(ctx context.Context, cfg config.Config) (*EventTally, error) {
	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: 2,
	})
	if err != nil {
		return nil, err
	}
	msgs, err := redisclient.NewPublisher(rdb, cfg.EventsChannel).Subscribe(ctx)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	tally := &EventTally{}
	go func() {
		defer rdb.Close()
		tally.Consume(msgs)
	}()
	return tally, nil
}

func (s *Simulator) Run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(ctx, workerID)
			return nil
		})
	}
	err := g.Wait()
	s.log.Info().Msg("simulation complete")
	return err
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.RescheduleRatio:
				s.doReschedule(ctx, rng)
			case rng.Intn(2) == 0:
				s.doSessions(ctx, rng)
			default:
				s.doFreeSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomDoctor(rng *rand.Rand) uuid.UUID {
	return s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
}

func (s *Simulator) freeSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]slot, int, error) {
	var body struct {
		Slots []slot `json:"slots"`
	}
	status, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s", doctorID, date), nil, &body)
	return body.Slots, status, err
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.randomDoctor(rng)
	date := s.randomDate(rng)

	slots, _, err := s.freeSlots(ctx, doctorID, date)
	if err != nil || len(slots) == 0 {
		return
	}
	pick := slots[rng.Intn(len(slots))]

	req := map[string]any{
		"doctor_id":     doctorID.String(),
		"patient_id":    uuid.NewString(),
		"date":          date,
		"start_time":    pick.StartTime,
		"patient_name":  gofakeit.Name(),
		"patient_phone": gofakeit.Phone(),
		"patient_email": gofakeit.Email(),
	}

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.do(ctx, http.MethodPost, "/appointments", req, &appt)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && appt.ID != uuid.Nil {
		s.pool.AddAppointment(booked{ID: appt.ID, DoctorID: doctorID})
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	date := s.randomDate(rng)
	slots, _, err := s.freeSlots(ctx, b.DoctorID, date)
	if err != nil || len(slots) == 0 {
		return
	}
	pick := slots[rng.Intn(len(slots))]

	start := time.Now()
	status, err := s.do(ctx, http.MethodPost,
		fmt.Sprintf("/appointments/%s/reschedule", b.ID),
		map[string]string{"date": date, "start_time": pick.StartTime}, nil)
	latency := time.Since(start)

	s.metrics.Reschedule.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doSessions(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	status, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%s/sessions?date=%s", s.randomDoctor(rng), s.randomDate(rng)), nil, nil)
	s.metrics.Sessions.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doFreeSlots(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	_, status, err := s.freeSlots(ctx, s.randomDoctor(rng), s.randomDate(rng))
	s.metrics.FreeSlots.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// VerifyCapacity reads back every session in the simulated window and counts
// those holding more active appointments than their capacity.
func (s *Simulator) VerifyCapacity(ctx context.Context) int {
	violations := 0
	for _, doctorID := range s.pool.Doctors {
		for d := 1; d <= s.config.DaysAhead; d++ {
			date := time.Now().UTC().AddDate(0, 0, d).Format("2006-01-02")
			var body struct {
				Sessions []session `json:"sessions"`
			}
			status, err := s.do(ctx, http.MethodGet,
				fmt.Sprintf("/doctors/%s/sessions?date=%s", doctorID, date), nil, &body)
			if err != nil || status != http.StatusOK {
				s.log.Warn().Err(err).Int("status", status).Str("doctor_id", doctorID.String()).Msg("verify read failed")
				continue
			}
			for _, sess := range body.Sessions {
				if sess.ActiveAppointments > sess.Capacity {
					violations++
					s.log.Error().
						Str("doctor_id", doctorID.String()).
						Str("date", date).
						Str("session", sess.Range.Start+"-"+sess.Range.End).
						Int("active", sess.ActiveAppointments).
						Int("capacity", sess.Capacity).
						Msg("session over capacity")
				}
			}
		}
	}
	return violations
}

func (s *Simulator) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport(violations int) {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Doctors: %d\n", len(s.pool.Doctors))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Sessions", &s.metrics.Sessions)
	printOperationReport("Free slots", &s.metrics.FreeSlots)

	if s.events != nil {
		counts := s.events.Snapshot()
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Println("Events:")
		for _, t := range types {
			fmt.Printf("  %s: %d\n", t, counts[t])
		}
		fmt.Println()
	}

	if violations == 0 {
		fmt.Println("Capacity check: OK")
	} else {
		fmt.Printf("Capacity check: %d sessions over capacity\n", violations)
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
