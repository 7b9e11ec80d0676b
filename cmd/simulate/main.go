package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/fixture"
	"github.com/hackgods/clinic-slot-booking/internal/logger"
)

type SimConfig struct {
	APIBaseURL string
	Workers    int
	Requests   int
	Date       string
	CaseType   string
	TimeSlot   string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Full      int64
	Busy      int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFull
	outcomeBusy
	outcomeError
)

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeFull:
		atomic.AddInt64(&om.Full, 1)
	case outcomeBusy:
		atomic.AddInt64(&om.Busy, 1)
	default:
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

type Simulator struct {
	config  SimConfig
	client  *http.Client
	faker   *gofakeit.Faker
	fakerMu sync.Mutex
	metrics OperationMetrics
	log     *zap.Logger
}

func main() {
	log, err := logger.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.Named("simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		faker:  gofakeit.New(uint64(time.Now().UnixNano())),
		log:    log,
	}

	ctx := context.Background()

	before, err := sim.availability(ctx)
	if err != nil {
		log.Fatal("read availability", zap.Error(err))
	}
	slotBefore, ok := before.Slot(cfg.TimeSlot)
	if !ok {
		slotBefore, ok = before.Slot(appointment.AnyTime)
	}
	if !ok {
		log.Fatal("time slot not offered", zap.String("time_slot", cfg.TimeSlot))
	}

	log.Info("starting simulation",
		zap.String("date", cfg.Date),
		zap.String("case_type", cfg.CaseType),
		zap.String("time_slot", cfg.TimeSlot),
		zap.Int("available", slotBefore.Available),
		zap.Int("requests", cfg.Requests),
		zap.Int("workers", cfg.Workers),
	)

	sim.Run(ctx)
	sim.PrintReport()

	success := int(atomic.LoadInt64(&sim.metrics.Success))
	if success > slotBefore.Available {
		log.Fatal("capacity exceeded", zap.Int("success", success), zap.Int("available_before", slotBefore.Available))
	}

	after, err := sim.availability(ctx)
	if err != nil {
		log.Fatal("read availability", zap.Error(err))
	}
	slotAfter, _ := after.Slot(slotBefore.Time)
	if slotAfter.Booked != slotBefore.Booked+success {
		log.Fatal("ledger mismatch",
			zap.Int("booked_before", slotBefore.Booked),
			zap.Int("booked_after", slotAfter.Booked),
			zap.Int("success", success),
		)
	}

	log.Info("capacity held", zap.Int("success", success), zap.Int("capacity", slotAfter.Capacity))
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:    getInt("SIM_WORKERS", 20),
		Requests:   getInt("SIM_REQUESTS", 200),
		Date:       getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		CaseType:   getEnv("SIM_CASE_TYPE", "DM"),
		TimeSlot:   getEnv("SIM_TIME_SLOT", "08:00"),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Requests <= 0 {
		return fmt.Errorf("SIM_REQUESTS must be > 0")
	}
	if _, err := appointment.ParseDate(cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE: %w", err)
	}
	return nil
}

func (s *Simulator) availability(ctx context.Context) (*appointment.Availability, error) {
	url := fmt.Sprintf("%s/availability?date=%s&case_type=%s", s.config.APIBaseURL, s.config.Date, s.config.CaseType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("availability returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var avail appointment.Availability
	if err := json.Unmarshal(body, &avail); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	return &avail, nil
}

// Run fires every request through a fixed worker pool, all aimed at the same slot.
func (s *Simulator) Run(ctx context.Context) {
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				s.doBooking(ctx)
			}
		}()
	}

	for i := 0; i < s.config.Requests; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
}

func (s *Simulator) nextPatient() fixture.Patient {
	s.fakerMu.Lock()
	defer s.fakerMu.Unlock()
	return fixture.NewPatient(s.faker)
}

func (s *Simulator) doBooking(ctx context.Context) {
	p := s.nextPatient()

	body, _ := json.Marshal(map[string]string{
		"patient_id":   p.ID,
		"patient_name": p.Name,
		"phone":        p.Phone,
		"case_type":    s.config.CaseType,
		"date":         s.config.Date,
		"time_slot":    s.config.TimeSlot,
		"created_by":   "simulate",
	})

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Record(latency, outcomeError)
		return
	}
	defer resp.Body.Close()

	var errResp struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		s.metrics.Record(latency, outcomeSuccess)
	case http.StatusConflict:
		_ = json.Unmarshal(raw, &errResp)
		if errResp.Error == "slot_being_booked" {
			s.metrics.Record(latency, outcomeBusy)
			return
		}
		s.metrics.Record(latency, outcomeFull)
	default:
		s.log.Warn("unexpected booking response", zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
		s.metrics.Record(latency, outcomeError)
	}
}

func (s *Simulator) PrintReport() {
	om := &s.metrics
	total := atomic.LoadInt64(&om.Total)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Target: %s %s %s\n", s.config.Date, s.config.CaseType, s.config.TimeSlot)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	full := atomic.LoadInt64(&om.Full)
	busy := atomic.LoadInt64(&om.Busy)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("Booking:\n")
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Booked: %d (%.1f%%)\n", success, pct(success))
	fmt.Printf("  Slot full: %d (%.1f%%)\n", full, pct(full))
	if busy > 0 {
		fmt.Printf("  Lock busy: %d (%.1f%%)\n", busy, pct(busy))
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, pct(errs))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
