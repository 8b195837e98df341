// README: Benchmark cases for the navigation API; includes HTTP, DB, Redis, reroute and performance checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// routeID is set by the route creation case and used by later cases.
	routeID string
	origin  []float64
	dest    []float64
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 20 * time.Second},
		origin: parsePair(cfg.Origin),
		dest:   parsePair(cfg.Destination),
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "route journal database reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "position mirror reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables from migrations/0001_init.sql exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},

		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),
		httpCaseMethod("Nav: command before any route", http.MethodGet, base+"/nav_cmd", nil, []int{200}, nil),

		// Route lifecycle
		{
			Name:  "Route: create origin/destination",
			Focus: "planner reachable and route stored",
			Run: func(ctx context.Context, r *Runner) Result {
				var out struct {
					RouteID string `json:"route_id"`
				}
				res, code := r.postJSON(ctx, base+"/route", map[string]any{
					"origin":      r.origin,
					"destination": r.dest,
				}, &out)
				if res.Status != "" {
					return res
				}
				switch {
				case code == http.StatusCreated && out.RouteID != "":
					r.routeID = out.RouteID
					return Result{Status: "PASS", Latency: res.Latency, Note: "route_id=" + out.RouteID}
				case code == http.StatusBadGateway:
					return Result{Status: "PENDING", Latency: res.Latency, Note: "planner unavailable"}
				default:
					return Result{Status: "FAIL", Latency: res.Latency, Note: fmt.Sprintf("status=%d", code)}
				}
			},
		},
		httpCase("Route: single waypoint -> 400", base+"/route", map[string]any{
			"waypoints": [][]float64{{121.5654, 25.0330}},
		}, []int{400}, nil),
		withRoute("Route: get", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, base+"/route/"+r.routeID, nil, []int{200})
		}),

		// Position updates
		withRoute("Position: fix at origin", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, base+"/position", map[string]any{
				"route_id": r.routeID,
				"position": r.origin,
				"heading":  90.0,
			}, []int{200})
		}),
		httpCase("Position: unknown route -> 404", base+"/position", map[string]any{
			"route_id": "does-not-exist",
			"position": []float64{121.5654, 25.0330},
		}, []int{404}, nil),
		httpCase("Position: malformed position -> 400", base+"/position", map[string]any{
			"route_id": "does-not-exist",
			"position": []float64{121.5654},
		}, []int{400}, nil),
		withRoute("Nav: command after fix", func(ctx context.Context, r *Runner) Result {
			var out struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			res, code := r.getJSON(ctx, base+"/nav_cmd", &out)
			if res.Status != "" {
				return res
			}
			if code != http.StatusOK || out.Status == "" {
				return Result{Status: "FAIL", Latency: res.Latency, Note: fmt.Sprintf("status=%d", code)}
			}
			return Result{Status: "PASS", Latency: res.Latency, Note: out.Status + ": " + out.Message}
		}),
		withRoute("Reroute: drift 100 m off route", func(ctx context.Context, r *Runner) Result {
			// ~100 m north of the origin is beyond the default 20 m threshold.
			drift := []float64{r.origin[0], r.origin[1] + 0.0009}
			var out struct {
				Rerouted     bool   `json:"rerouted"`
				Revision     int    `json:"revision"`
				RerouteError string `json:"reroute_error"`
			}
			res, code := r.postJSON(ctx, base+"/position", map[string]any{
				"route_id": r.routeID,
				"position": drift,
			}, &out)
			if res.Status != "" {
				return res
			}
			switch {
			case code != http.StatusOK:
				return Result{Status: "FAIL", Latency: res.Latency, Note: fmt.Sprintf("status=%d", code)}
			case out.Rerouted:
				return Result{Status: "PASS", Latency: res.Latency, Note: fmt.Sprintf("revision=%d", out.Revision)}
			case out.RerouteError != "":
				return Result{Status: "PENDING", Latency: res.Latency, Note: out.RerouteError}
			default:
				return Result{Status: "FAIL", Latency: res.Latency, Note: "no reroute triggered"}
			}
		}),
		manualCase("Reroute: stalled agent", "send the same fix five times and watch for rerouted=true on the last"),

		// GNSS
		httpCase("GNSS: update", base+"/update_gnss", map[string]any{
			"lat": 25.033,
			"lon": 121.565,
			"yaw": 87.5,
		}, []int{200}, nil),
		httpCase("GNSS: invalid coords -> 400", base+"/update_gnss", map[string]any{
			"lat": 123.0,
			"lon": 456.0,
		}, []int{400}, nil),
		httpCaseMethod("GNSS: latest position", http.MethodGet, base+"/latest_position", nil, []int{200}, nil),

		// Persistence
		withRoute("Journal: route events persisted", func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: "SKIP", Note: "db not configured"}
			}
			var n int
			err := r.db.QueryRow(ctx, "SELECT count(*) FROM route_events WHERE route_id=$1", r.routeID).Scan(&n)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if n == 0 {
				return Result{Status: "FAIL", Note: "no events for route"}
			}
			return Result{Status: "PASS", Note: fmt.Sprintf("events=%d", n)}
		}),
		withRoute("Journal: events endpoint", func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: "SKIP", Note: "db not configured"}
			}
			return r.expect(ctx, http.MethodGet, base+"/route/"+r.routeID+"/events?limit=10", nil, []int{200})
		}),
		{
			Name:  "Mirror: latest fix in Redis",
			Focus: "nav:latest hash written",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				n, err := r.redis.Exists(ctx, "nav:latest").Result()
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if n == 0 {
					return Result{Status: "FAIL", Note: "nav:latest missing"}
				}
				return Result{Status: "PASS"}
			},
		},

		// Concurrency
		withRoute("Concurrency: parallel fixes on one route", func(ctx context.Context, r *Runner) Result {
			return concurrentPositions(ctx, r, base+"/position")
		}),

		// Performance
		{
			Name:  "Perf: GNSS ingest throughput",
			Focus: "sustained raw fix ingestion",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/update_gnss", map[string]any{
					"lat": 25.033,
					"lon": 121.565,
				})
			},
		},
		withRoute("Perf: position update throughput", func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, base+"/position", map[string]any{
				"route_id": r.routeID,
				"position": r.origin,
			})
		}),

		withRoute("Route: clear", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, base+"/clear_route", map[string]any{"route_id": r.routeID}, []int{200})
		}),
		withRoute("Route: get after clear -> 404", func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, base+"/route/"+r.routeID, nil, []int{404})
		}),
	}
}

// withRoute skips the case when route creation did not succeed.
func withRoute(name string, run func(ctx context.Context, r *Runner) Result) TestCase {
	return TestCase{
		Name:  name,
		Focus: "needs a stored route",
		Run: func(ctx context.Context, r *Runner) Result {
			if r.routeID == "" {
				return Result{Status: "SKIP", Note: "no route created"}
			}
			return run(ctx, r)
		},
	}
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			res := r.expect(ctx, method, url, body, okStatuses)
			if res.Status == "FAIL" && contains(pendingStatuses, statusFromNote(res.Note)) {
				res.Status = "PENDING"
			}
			return res
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

// do sends one request and decodes a JSON body into out when out is non-nil.
// A non-empty Status in the returned Result means the transport failed.
func (r *Runner) do(ctx context.Context, method, url string, body any, out any) (Result, int) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}, 0
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}, 0
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return Result{Latency: time.Since(start)}, resp.StatusCode
}

func (r *Runner) postJSON(ctx context.Context, url string, body, out any) (Result, int) {
	return r.do(ctx, http.MethodPost, url, body, out)
}

func (r *Runner) getJSON(ctx context.Context, url string, out any) (Result, int) {
	return r.do(ctx, http.MethodGet, url, nil, out)
}

func (r *Runner) expect(ctx context.Context, method, url string, body any, okStatuses []int) Result {
	res, code := r.do(ctx, method, url, body, nil)
	if res.Status != "" {
		return res
	}
	res.Note = fmt.Sprintf("status=%d", code)
	if contains(okStatuses, code) {
		res.Status = "PASS"
	} else {
		res.Status = "FAIL"
	}
	return res
}

func concurrentPositions(ctx context.Context, r *Runner, url string) Result {
	payload := map[string]any{
		"route_id": r.routeID,
		"position": r.origin,
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, failed := 0, 0

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, code := r.do(ctx, http.MethodPost, url, payload, nil)
			mu.Lock()
			defer mu.Unlock()
			if code == http.StatusOK {
				ok++
			} else {
				failed++
			}
		}()
	}
	wg.Wait()

	if failed > 0 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("ok=%d failed=%d", ok, failed)}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("ok=%d", ok)}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func statusFromNote(note string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(note, "status="))
	return n
}

func parsePair(s string) []float64 {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return []float64{lon, lat}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
