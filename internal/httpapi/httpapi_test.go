package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cloudpico-station/internal/db/migrate"
	"cloudpico-station/internal/observer"
	"cloudpico-station/internal/weather"
	"cloudpico-station/internal/weather/archive"
	"cloudpico-station/internal/weather/display"
	"cloudpico-station/internal/weather/types"
)

type fixture struct {
	station    *weather.Station
	conditions *display.CurrentConditions
	statistics *display.Statistics
	forecast   *display.Forecast
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		station:    weather.NewStation("home", nil, slog.New(slog.NewTextHandler(io.Discard, nil))),
		conditions: display.NewCurrentConditions(),
		statistics: display.NewStatistics(),
		forecast:   display.NewForecast(),
	}
	for _, o := range []observer.Observer[types.Measurement]{f.conditions, f.statistics, f.forecast} {
		if err := f.station.RegisterObserver(o); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return f
}

func (f fixture) deps() Deps {
	return Deps{
		Station:    f.station,
		Conditions: f.conditions,
		Statistics: f.statistics,
		Forecast:   f.forecast,
	}
}

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()

	srv := NewServer(":0", NewMux(deps), nil)
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(ts.Close)
	return ts
}

func mustGetJSON[T any](t *testing.T, client *http.Client, url string, out *T) *http.Response {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return resp
}

func record(t *testing.T, s *weather.Station, temp, humidity, pressure float64) {
	t.Helper()
	m := types.Measurement{
		Time:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Temperature: temp,
		Humidity:    humidity,
		Pressure:    pressure,
	}
	if err := s.Record(m); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	ts := newTestServer(t, f.deps())

	var body map[string]any
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body["status"] != "ok" || body["station_id"] != "home" {
		t.Fatalf("body=%v", body)
	}
	if body["seeded"] != false {
		t.Fatalf("seeded=%v want=false", body["seeded"])
	}
	if body["observers"] != float64(3) {
		t.Fatalf("observers=%v want=3", body["observers"])
	}

	record(t, f.station, 20, 60, 30)
	resp = mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)
	if resp.StatusCode != http.StatusOK || body["seeded"] != true {
		t.Fatalf("status=%d seeded=%v", resp.StatusCode, body["seeded"])
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("db down") }

func TestHealthz_DatabaseDown(t *testing.T) {
	deps := newFixture(t).deps()
	deps.DB = failingPinger{}
	ts := newTestServer(t, deps)

	var body map[string]any
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusInternalServerError)
	}
	if _, ok := body["message"]; !ok {
		t.Fatalf("expected message field, got %v", body)
	}
}

func TestHealthz_DatabaseDownLogsToInjectedLogger(t *testing.T) {
	var logs bytes.Buffer
	deps := newFixture(t).deps()
	deps.DB = failingPinger{}
	deps.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	ts := newTestServer(t, deps)

	resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &map[string]any{})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusInternalServerError)
	}
	if !strings.Contains(logs.String(), "failed to check database connectivity") || !strings.Contains(logs.String(), "db down") {
		t.Fatalf("logs = %q; want database failure", logs.String())
	}
}

func TestEndpoints_BeforeFirstReading(t *testing.T) {
	ts := newTestServer(t, newFixture(t).deps())

	for _, path := range []string{"/api/station", "/api/conditions", "/api/statistics", "/api/forecast"} {
		t.Run(path, func(t *testing.T) {
			var body map[string]any
			resp := mustGetJSON(t, ts.Client(), ts.URL+path, &body)
			if resp.StatusCode != http.StatusServiceUnavailable {
				t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusServiceUnavailable)
			}
			if _, ok := body["error"]; !ok {
				t.Fatalf("expected error field, got %v", body)
			}
		})
	}
}

func TestConditions(t *testing.T) {
	f := newFixture(t)
	ts := newTestServer(t, f.deps())
	record(t, f.station, 21.5, 55, 30.1)

	var body reading
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/conditions", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body.Temperature != 21.5 || body.Humidity != 55 || body.Pressure != 30.1 {
		t.Fatalf("body=%+v", body)
	}
	if body.Time != "2026-01-02T03:04:05Z" {
		t.Fatalf("time=%q", body.Time)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ts := newTestServer(t, f.deps())
	record(t, f.station, 20, 60, 30)
	record(t, f.station, 30, 60, 30)
	record(t, f.station, 25, 60, 30)

	var stats display.Stats
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/statistics", &stats)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	want := display.Stats{Count: 3, Min: 20, Max: 30, Average: 25}
	if stats != want {
		t.Fatalf("stats=%+v want=%+v", stats, want)
	}
}

func TestForecast(t *testing.T) {
	f := newFixture(t)
	ts := newTestServer(t, f.deps())
	record(t, f.station, 20, 60, 30)
	record(t, f.station, 20, 60, 25)

	var body map[string]any
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/forecast", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body["trend"] != string(display.CoolingRain) {
		t.Fatalf("trend=%v want=%v", body["trend"], display.CoolingRain)
	}
	if body["previous_pressure"] != float64(30) || body["current_pressure"] != float64(25) {
		t.Fatalf("body=%v", body)
	}
}

func TestStation(t *testing.T) {
	f := newFixture(t)
	ts := newTestServer(t, f.deps())
	record(t, f.station, 19, 40, 29.5)

	var body struct {
		StationID string  `json:"station_id"`
		Latest    reading `json:"latest"`
	}
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/station", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body.StationID != "home" || body.Latest.Temperature != 19 {
		t.Fatalf("body=%+v", body)
	}
}

func TestDisabledViewsAreNotRouted(t *testing.T) {
	f := newFixture(t)
	ts := newTestServer(t, Deps{Station: f.station})

	for _, path := range []string{"/api/conditions", "/api/statistics", "/api/forecast", "/api/readings"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status=%d want=%d", path, resp.StatusCode, http.StatusNotFound)
		}
	}
}

func TestRouting_WrongMethod(t *testing.T) {
	ts := newTestServer(t, newFixture(t).deps())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func newArchive(t *testing.T) archive.Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := migrate.Run(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return archive.NewRepository(db, nil)
}

func TestReadings(t *testing.T) {
	f := newFixture(t)
	repo := newArchive(t)
	deps := f.deps()
	deps.Archive = repo
	ts := newTestServer(t, deps)

	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		m := types.Measurement{Time: base.Add(time.Duration(i) * time.Minute), Temperature: float64(20 + i), Humidity: 50, Pressure: 30}
		if err := repo.InsertReading(context.Background(), "home", m); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	var body struct {
		Limit int       `json:"limit"`
		Items []reading `json:"items"`
	}
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/readings?limit=2", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body.Limit != 2 || len(body.Items) != 2 {
		t.Fatalf("limit=%d items=%d", body.Limit, len(body.Items))
	}
	if body.Items[0].Temperature != 22 {
		t.Fatalf("first item temperature=%v want=22", body.Items[0].Temperature)
	}
}

type failingArchive struct{ archive.Repository }

func (failingArchive) LatestReadings(context.Context, string, int) ([]types.Measurement, error) {
	return nil, errors.New("disk I/O error")
}

func TestReadings_QueryFailureLogsToInjectedLogger(t *testing.T) {
	var logs bytes.Buffer
	deps := newFixture(t).deps()
	deps.Archive = failingArchive{}
	deps.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	ts := newTestServer(t, deps)

	var body map[string]any
	resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/readings", &body)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusInternalServerError)
	}
	if body["message"] != "failed to load readings" {
		t.Fatalf("message=%v", body["message"])
	}
	out := logs.String()
	if !strings.Contains(out, "readings: query failed") || !strings.Contains(out, "station_id=home") || !strings.Contains(out, "disk I/O error") {
		t.Fatalf("logs = %q; want query failure with station and cause", out)
	}
}

func TestReadings_InvalidLimit(t *testing.T) {
	deps := newFixture(t).deps()
	deps.Archive = newArchive(t)
	ts := newTestServer(t, deps)

	for _, q := range []string{"abc", "0", "-1", "501"} {
		t.Run(q, func(t *testing.T) {
			var body map[string]any
			resp := mustGetJSON(t, ts.Client(), ts.URL+"/api/readings?limit="+q, &body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "invalid input")

	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["error"] != http.StatusText(http.StatusBadRequest) || got["message"] != "invalid input" {
		t.Errorf("body = %v", got)
	}
}
