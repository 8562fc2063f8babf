package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hackgods/provider-appointment-booking/internal/api"
	"github.com/hackgods/provider-appointment-booking/internal/config"
	"github.com/hackgods/provider-appointment-booking/internal/db"
	"github.com/hackgods/provider-appointment-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	ReadRatio     float64
	PartyLimit    int
	WindowMinutes int // width of the booking window, in minutes
	PostgresDSN   string
}

type simParty struct {
	ID    uuid.UUID
	Login string
}

type booked struct {
	ID       uuid.UUID
	Provider simParty
	Client   simParty
}

type DataPool struct {
	Providers []simParty
	Clients   []simParty

	mu           sync.Mutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

// TakeAppointment removes a random appointment so two workers do not cancel
// the same one.
func (dp *DataPool) TakeAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	n := len(dp.appointments)
	if n == 0 {
		return booked{}, false
	}
	i := rng.Intn(n)
	b := dp.appointments[i]
	dp.appointments[i] = dp.appointments[n-1]
	dp.appointments = dp.appointments[:n-1]
	return b, true
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
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

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
	p50 = percentile(latencies, 50)
	p95 = percentile(latencies, 95)
	return avg, min, max, p50, p95
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Metrics struct {
	Booking  OperationMetrics
	Cancel   OperationMetrics
	ReadByID OperationMetrics
	ListMine OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *zap.Logger
	day     time.Time
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	logger, err := logging.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithApplicationName("simulate"))
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}

	logger.Info("data pool loaded",
		zap.Int("providers", len(dataPool.Providers)),
		zap.Int("clients", len(dataPool.Clients)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		// far enough ahead that seeded appointments are left alone
		day: time.Now().UTC().Truncate(24 * time.Hour).Add(30*24*time.Hour + 8*time.Hour),
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := checkNoOverlap(context.Background(), pgPool)
	if err != nil {
		logger.Fatal("invariant check", zap.Error(err))
	}
	if overlaps > 0 {
		logger.Fatal("provider calendar invariant violated", zap.Int("overlapping_pairs", overlaps))
	}
	logger.Info("invariant holds: no overlapping appointments per provider")
}

func loadConfig(base config.Config) SimConfig {
	v := viper.New()
	v.SetEnvPrefix("SIM")
	v.AutomaticEnv()

	v.SetDefault("api_base_url", "http://localhost:8080")
	v.SetDefault("duration", "30s")
	v.SetDefault("workers", 10)
	v.SetDefault("booking_ratio", 0.5)
	v.SetDefault("cancel_ratio", 0.2)
	v.SetDefault("read_ratio", 0.3)
	v.SetDefault("party_limit", 2000)
	v.SetDefault("window_minutes", 240)

	cfg := SimConfig{
		APIBaseURL:    strings.TrimRight(v.GetString("api_base_url"), "/"),
		Duration:      v.GetDuration("duration"),
		Workers:       v.GetInt("workers"),
		BookingRatio:  v.GetFloat64("booking_ratio"),
		CancelRatio:   v.GetFloat64("cancel_ratio"),
		ReadRatio:     v.GetFloat64("read_ratio"),
		PartyLimit:    v.GetInt("party_limit"),
		WindowMinutes: v.GetInt("window_minutes"),
		PostgresDSN:   base.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.WindowMinutes < 60 {
		return errors.New("SIM_WINDOW_MINUTES must be >= 60")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	if dataPool.Providers, err = loadParties(ctx, pool, "provider", cfg.PartyLimit); err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	if dataPool.Clients, err = loadParties(ctx, pool, "client", cfg.PartyLimit); err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}

	if len(dataPool.Providers) == 0 {
		return nil, errors.New("no providers loaded, run seed first")
	}
	if len(dataPool.Clients) == 0 {
		return nil, errors.New("no clients loaded, run seed first")
	}

	return dataPool, nil
}

func loadParties(ctx context.Context, pool *pgxpool.Pool, role string, limit int) ([]simParty, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, login FROM parties WHERE role = $1 LIMIT $2
	`, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []simParty
	for rows.Next() {
		var p simParty
		if err := rows.Scan(&p.ID, &p.Login); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// checkNoOverlap counts pairs of appointments of the same provider whose
// half-open intervals intersect.
func checkNoOverlap(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.provider_id = b.provider_id
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
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
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doListMine(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) do(ctx context.Context, method, path string, caller uuid.UUID, body any) (*http.Response, time.Duration, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.IdentityHeader, caller.String())

	start := time.Now()
	resp, err := s.client.Do(req)
	return resp, time.Since(start), err
}

// doBooking has a provider book its own calendar. Slots are drawn from a
// narrow window on 15 minute boundaries so concurrent bookings collide.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	client := s.pool.Clients[rng.Intn(len(s.pool.Clients))]

	start := s.day.Add(time.Duration(rng.Intn(s.config.WindowMinutes/15)) * 15 * time.Minute)
	end := start.Add(time.Duration(1+rng.Intn(4)) * 15 * time.Minute)

	resp, latency, err := s.do(ctx, http.MethodPost, "/appointments", provider.ID, api.CreateAppointmentRequest{
		ClientLogin: client.Login,
		Slot:        api.SlotRequest{Start: start, End: end},
	})
	if ctx.Err() != nil {
		return
	}

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			var appt api.AppointmentResponse
			if json.NewDecoder(resp.Body).Decode(&appt) == nil && appt.ID != uuid.Nil {
				success = true
				s.pool.AddAppointment(booked{ID: appt.ID, Provider: provider, Client: client})
			}
		case http.StatusConflict, http.StatusServiceUnavailable:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeAppointment(rng)
	if !ok {
		return
	}

	resp, latency, err := s.do(ctx, http.MethodDelete, "/appointments/"+b.ID.String(), b.Provider.ID, nil)
	if ctx.Err() != nil {
		return
	}

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusNotFound
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	resp, latency, err := s.do(ctx, http.MethodGet, "/appointments/"+b.ID.String(), b.Client.ID, nil)
	if ctx.Err() != nil {
		return
	}

	success, gone := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		gone = resp.StatusCode == http.StatusNotFound
	}

	s.metrics.ReadByID.Record(latency, success, gone)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	var caller simParty
	if rng.Intn(2) == 0 {
		caller = s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	} else {
		caller = s.pool.Clients[rng.Intn(len(s.pool.Clients))]
	}

	resp, latency, err := s.do(ctx, http.MethodGet, "/appointments/me?count=20", caller.ID, nil)
	if ctx.Err() != nil {
		return
	}

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ListMine.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List mine", &s.metrics.ListMine)
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
