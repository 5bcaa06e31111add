package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/emerald-details/internal/config"
	"github.com/hackgods/emerald-details/internal/db"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/logging"
)

// SimConfig drives a booking race: many signed-in customers competing for a
// handful of hot slots while others cancel and browse.
type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	BrowseRatio   float64
	CustomerLimit int
	HotSlots      int
	Password      string
}

type customer struct {
	Email     string
	VehicleID uuid.UUID
	Token     string
}

type hotSlot struct {
	ID   uuid.UUID
	Date string // YYYY-MM-DD in the business time zone
}

type DataPool struct {
	Customers []customer
	Slots     []hotSlot
	Services  []uuid.UUID

	mu     sync.Mutex
	booked map[uuid.UUID]string // appointment id -> customer token
}

func (dp *DataPool) AddAppointment(id uuid.UUID, token string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked[id] = token
}

// TakeAppointment removes and returns a random booked appointment.
func (dp *DataPool) TakeAppointment(rng *rand.Rand) (uuid.UUID, string, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.booked) == 0 {
		return uuid.Nil, "", false
	}
	n := rng.Intn(len(dp.booked))
	for id, token := range dp.booked {
		if n == 0 {
			delete(dp.booked, id)
			return id, token, true
		}
		n--
	}
	return uuid.Nil, "", false
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles(ps ...int) []time.Duration {
	om.mu.Lock()
	sorted := slices.Clone(om.latencies)
	om.mu.Unlock()

	out := make([]time.Duration, len(ps))
	if len(sorted) == 0 {
		return out
	}
	slices.Sort(sorted)
	for i, p := range ps {
		idx := min(len(sorted)*p/100, len(sorted)-1)
		out[i] = sorted[idx]
	}
	return out
}

type Metrics struct {
	Booking OperationMetrics
	Cancel  OperationMetrics
	Browse  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *slog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("simulate", baseCfg.Env)

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid simulator config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg, baseCfg.Location)
	if err != nil {
		logger.Error("load data pool", "err", err)
		os.Exit(1)
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	if err := sim.signIn(ctx); err != nil {
		logger.Error("sign in customers", "err", err)
		os.Exit(1)
	}
	logger.Info("data pool ready",
		"customers", len(dataPool.Customers),
		"hot_slots", len(dataPool.Slots),
		"services", len(dataPool.Services),
	)

	sim.Run()
	sim.PrintReport()

	doubles, err := countDoubleBookings(context.Background(), pgPool)
	if err != nil {
		logger.Error("double booking check", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Slots with more than one live appointment: %d\n", doubles)
	if doubles > 0 {
		os.Exit(2)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 20),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		BrowseRatio:   getFloat("SIM_BROWSE_RATIO", 0.3),
		CustomerLimit: getInt("SIM_CUSTOMER_LIMIT", 50),
		HotSlots:      getInt("SIM_HOT_SLOTS", 10),
		Password:      getEnv("SIM_PASSWORD", "detailing123"),
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.BrowseRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.BrowseRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HotSlots <= 0 {
		return fmt.Errorf("SIM_HOT_SLOTS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig, loc *time.Location) (*DataPool, error) {
	dp := &DataPool{booked: make(map[uuid.UUID]string)}

	// One vehicle per customer is enough to book.
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT ON (u.id) u.email, v.id
		FROM users u
		JOIN vehicles v ON v.owner_id = u.id
		WHERE u.role = 'customer'
		ORDER BY u.id, v.created_at
		LIMIT $1
	`, cfg.CustomerLimit)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	for rows.Next() {
		var c customer
		if err := rows.Scan(&c.Email, &c.VehicleID); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Customers = append(dp.Customers, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
		SELECT id, start_time
		FROM time_slots
		WHERE is_available AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, cfg.HotSlots)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	for rows.Next() {
		var (
			id    uuid.UUID
			start time.Time
		)
		if err := rows.Scan(&id, &start); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Slots = append(dp.Slots, hotSlot{ID: id, Date: start.In(loc).Format("2006-01-02")})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id FROM service_packages WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dp.Services = append(dp.Services, id)
	}
	rows.Close()

	switch {
	case len(dp.Customers) == 0:
		return nil, fmt.Errorf("no customers with vehicles, run cmd/seed first")
	case len(dp.Slots) == 0:
		return nil, fmt.Errorf("no open future slots")
	case len(dp.Services) == 0:
		return nil, fmt.Errorf("no active services")
	}
	return dp, rows.Err()
}

func (s *Simulator) signIn(ctx context.Context) error {
	for i := range s.pool.Customers {
		c := &s.pool.Customers[i]
		var sess struct {
			Token string `json:"token"`
		}
		status, err := s.call(ctx, http.MethodPost, "/auth/signin", "", map[string]string{
			"email":    c.Email,
			"password": s.config.Password,
		}, &sess)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("sign in %s: status %d", c.Email, status)
		}
		c.Token = sess.Token
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation", "duration", s.config.Duration, "workers", s.config.Workers)

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

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doBrowse(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Customers[rng.Intn(len(s.pool.Customers))]
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	body := map[string]any{
		"service_id": s.pool.Services[rng.Intn(len(s.pool.Services))].String(),
		"vehicle_id": c.VehicleID.String(),
		"date":       sl.Date,
		"slot_id":    sl.ID.String(),
		"location": geo.Location{
			Latitude:  40.7128 + rng.Float64()/100,
			Longitude: -74.0060 + rng.Float64()/100,
			Address:   fmt.Sprintf("%d Main St", rng.Intn(900)+100),
		},
	}

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/bookings", c.Token, body, &appt)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated && appt.ID != uuid.Nil {
		s.pool.AddAppointment(appt.ID, c.Token)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, token, ok := s.pool.TakeAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+id.String()+"/cancel", token, nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(start), status, err)
}

func (s *Simulator) doBrowse(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/slots?date="+sl.Date, "", nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Browse.Record(time.Since(start), status, err)
}

// call sends body as JSON and decodes a 2xx response into out when given.
func (s *Simulator) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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

func countDoubleBookings(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT slot_id FROM appointments
			WHERE status <> 'cancelled'
			GROUP BY slot_id
			HAVING count(*) > 1
		) dup
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BOOKING RACE REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d, customers: %d, hot slots: %d\n", s.config.Workers, len(s.pool.Customers), len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Browse slots", &s.metrics.Browse)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	p := om.Percentiles(50, 95, 99)

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: p50=%s p95=%s p99=%s\n",
		p[0].Round(time.Millisecond), p[1].Round(time.Millisecond), p[2].Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}
