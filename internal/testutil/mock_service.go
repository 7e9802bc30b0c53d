// Package testutil provides a mock scoring service for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BasePath is where the mock mounts the service API.
const BasePath = "/api"

// VehicleFixture is a vehicle served by the mock.
type VehicleFixture struct {
	Year     int
	Make     string
	Model    string
	DealerID int
}

// Fixture is the dataset served by the mock.
type Fixture struct {
	DatasetID  string
	VehicleIDs []int
	// Vehicles missing from this map are answered with 404.
	Vehicles map[int]VehicleFixture
	// Dealers missing from this map are answered with 404.
	Dealers map[int]string
}

// DefaultFixture returns a dataset with vehicle IDs [1, 2, -1, 3]:
// vehicles 1 and 2 belong to dealer 10, vehicle 3 to dealer 20.
func DefaultFixture() Fixture {
	return Fixture{
		DatasetID:  "ds-test",
		VehicleIDs: []int{1, 2, -1, 3},
		Vehicles: map[int]VehicleFixture{
			1: {Year: 2014, Make: "Ford", Model: "F150", DealerID: 10},
			2: {Year: 2016, Make: "Honda", Model: "Accord", DealerID: 10},
			3: {Year: 2009, Make: "Toyota", Model: "Corolla", DealerID: 20},
		},
		Dealers: map[int]string{
			10: "Bob's Cars",
			20: "House of Wheels",
		},
	}
}

// MockResponse overrides the response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockService is a configurable in-process scoring service.
type MockService struct {
	server *httptest.Server

	mu           sync.Mutex
	fixture      Fixture
	overrides    map[string]MockResponse
	vehicleDelay time.Duration
	requests     map[string]int
	total        int
	inflight     int
	peakInflight int
	answers      []json.RawMessage
}

// NewMockService starts a mock serving f.
func NewMockService(f Fixture) *MockService {
	m := &MockService{
		fixture:   f,
		overrides: make(map[string]MockResponse),
		requests:  make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL to configure clients with.
func (m *MockService) URL() string {
	return m.server.URL + BasePath
}

// Close shuts down the mock server.
func (m *MockService) Close() {
	m.server.Close()
}

// SetResponse overrides the response for path (relative to BasePath, e.g.
// "/datasetId" or "/ds-test/dealers/10").
func (m *MockService) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = resp
}

// SetVehicleDelay makes every vehicle record request take at least d.
func (m *MockService) SetVehicleDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicleDelay = d
}

// RequestCount returns the number of requests made to path.
func (m *MockService) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests made to the mock.
func (m *MockService) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// RequestsWithPrefix sums requests whose path starts with prefix.
func (m *MockService) RequestsWithPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for path, count := range m.requests {
		if strings.HasPrefix(path, prefix) {
			n += count
		}
	}
	return n
}

// PeakVehicleInflight returns the most vehicle record requests observed in
// flight at once.
func (m *MockService) PeakVehicleInflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakInflight
}

// Answers returns the bodies of every POSTed answer.
func (m *MockService) Answers() []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]json.RawMessage, len(m.answers))
	copy(out, m.answers)
	return out
}

// Reset clears all tracking counters.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.total = 0
	m.inflight = 0
	m.peakInflight = 0
	m.answers = nil
}

func (m *MockService) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, BasePath)
	segments := strings.Split(strings.Trim(path, "/"), "/")
	isVehicle := len(segments) == 3 && segments[1] == "vehicles"

	m.mu.Lock()
	m.requests[path]++
	m.total++
	override, hasOverride := m.overrides[path]
	delay := time.Duration(0)
	if isVehicle {
		delay = m.vehicleDelay
		m.inflight++
		if m.inflight > m.peakInflight {
			m.peakInflight = m.inflight
		}
	}
	fixture := m.fixture
	m.mu.Unlock()

	if isVehicle {
		defer func() {
			m.mu.Lock()
			m.inflight--
			m.mu.Unlock()
		}()
	}

	if hasOverride && override.Delay > 0 {
		delay = override.Delay
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if hasOverride {
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			w.Write([]byte(override.Body))
		}
		return
	}

	switch {
	case r.Method == http.MethodGet && len(segments) == 1 && segments[0] == "datasetId":
		writeJSON(w, http.StatusOK, map[string]any{"datasetId": fixture.DatasetID})

	case segments[0] != fixture.DatasetID:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "unknown dataset"})

	case r.Method == http.MethodGet && len(segments) == 2 && segments[1] == "vehicles":
		writeJSON(w, http.StatusOK, map[string]any{"vehicleIds": fixture.VehicleIDs})

	case r.Method == http.MethodGet && isVehicle:
		id, _ := strconv.Atoi(segments[2])
		v, ok := fixture.Vehicles[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "vehicle not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"vehicleId": id,
			"year":      v.Year,
			"make":      v.Make,
			"model":     v.Model,
			"dealerId":  v.DealerID,
		})

	case r.Method == http.MethodGet && len(segments) == 3 && segments[1] == "dealers":
		id, _ := strconv.Atoi(segments[2])
		name, ok := fixture.Dealers[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "dealer not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dealerId": id, "name": name})

	case r.Method == http.MethodPost && len(segments) == 2 && segments[1] == "answer":
		m.handleAnswer(w, r, fixture)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "no route"})
	}
}

// AnswerDealer is the wire shape of one dealer in a submitted answer.
type AnswerDealer struct {
	DealerID int             `json:"dealerId"`
	Name     string          `json:"name"`
	Vehicles []AnswerVehicle `json:"vehicles"`
}

// AnswerVehicle is the wire shape of one vehicle in a submitted answer.
type AnswerVehicle struct {
	VehicleID int    `json:"vehicleId"`
	Year      int    `json:"year"`
	Make      string `json:"make"`
	Model     string `json:"model"`
}

func (m *MockService) handleAnswer(w http.ResponseWriter, r *http.Request, fixture Fixture) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid json"})
		return
	}

	m.mu.Lock()
	m.answers = append(m.answers, raw)
	m.mu.Unlock()

	var body struct {
		Dealers []AnswerDealer `json:"dealers"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid answer"})
		return
	}

	success := canonical(body.Dealers) == canonical(ExpectedAnswer(fixture))
	message := "Congratulations! You did it!"
	if !success {
		message = "Incorrect answer"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           success,
		"message":           message,
		"totalMilliseconds": 1234,
	})
}

// ExpectedAnswer computes the correct answer for f: vehicles with a valid
// listed ID and a valid dealer, grouped by dealer.
func ExpectedAnswer(f Fixture) []AnswerDealer {
	groups := make(map[int]*AnswerDealer)
	for _, id := range f.VehicleIDs {
		v, ok := f.Vehicles[id]
		if id <= 0 || !ok || v.DealerID <= 0 {
			continue
		}
		g, ok := groups[v.DealerID]
		if !ok {
			g = &AnswerDealer{DealerID: v.DealerID, Name: f.Dealers[v.DealerID]}
			groups[v.DealerID] = g
		}
		g.Vehicles = append(g.Vehicles, AnswerVehicle{
			VehicleID: id,
			Year:      v.Year,
			Make:      v.Make,
			Model:     v.Model,
		})
	}

	out := make([]AnswerDealer, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	return out
}

// canonical renders dealers in an order-independent form.
func canonical(dealers []AnswerDealer) string {
	sorted := make([]AnswerDealer, len(dealers))
	for i, d := range dealers {
		vehicles := append([]AnswerVehicle(nil), d.Vehicles...)
		sort.Slice(vehicles, func(a, b int) bool { return vehicles[a].VehicleID < vehicles[b].VehicleID })
		sorted[i] = AnswerDealer{DealerID: d.DealerID, Name: d.Name, Vehicles: vehicles}
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].DealerID < sorted[b].DealerID })

	var sb strings.Builder
	for _, d := range sorted {
		fmt.Fprintf(&sb, "%d|%s|", d.DealerID, d.Name)
		for _, v := range d.Vehicles {
			fmt.Fprintf(&sb, "%d,%d,%s,%s;", v.VehicleID, v.Year, v.Make, v.Model)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
