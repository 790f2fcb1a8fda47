package samsara

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"fleet-twin/dashboard/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, srv.URL, "test-token", 5*time.Second, zap.NewNop().Sugar())
	return c, srv
}

func TestFetchVehicleDetails(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vehicles/v1" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("missing bearer token, got %q", got)
		}
		fmt.Fprint(w, `{"data":{"id":"v1","name":"PR1889","make":"Kenworth","licensePlate":"ABC-123"}}`)
	}))

	details, err := c.FetchVehicleDetails(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	if details.Name != "PR1889" || details.Make != "Kenworth" {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestFetchVehicleDetailsNumericID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":281474986130035,"name":"PR1889"}}`)
	}))

	details, err := c.FetchVehicleDetails(context.Background(), "281474986130035")
	if err != nil {
		t.Fatal(err)
	}
	if details.ID != "281474986130035" {
		t.Fatalf("numeric id not normalized: %q", details.ID)
	}
}

func TestFetchVehicleDetailsNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"vehicle not found"}`, http.StatusNotFound)
	}))

	if _, err := c.FetchVehicleDetails(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestFetchLocationsMissingIDsAreAbsent(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "v1,v2" {
			t.Fatalf("ids param: got %q", got)
		}
		fmt.Fprint(w, `{"data":[
			{"id":"v1","location":{"latitude":25.6,"longitude":-100.3,"speed":40.5,
			 "reverseGeo":{"formattedLocation":"Monterrey"},"time":"2026-08-20T15:04:05Z"}}
		]}`)
	}))

	locs, err := c.FetchLocations(context.Background(), []string{"v1", "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}
	loc, ok := locs["v1"]
	if !ok || loc.Latitude == nil || *loc.Latitude != 25.6 {
		t.Fatalf("v1 location wrong: %+v", loc)
	}
	if _, ok := locs["v2"]; ok {
		t.Fatal("v2 should be absent, not zero-valued")
	}
}

func TestFetchLocationsNumericIDs(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":281474986130035,"location":{"latitude":1.5,"longitude":2.5}}]}`)
	}))

	locs, err := c.FetchLocations(context.Background(), []string{"281474986130035"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := locs["281474986130035"]; !ok {
		t.Fatalf("numeric id should map to its string form, got %v", locs)
	}
}

func TestFetchStatsBatchPrecondition(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	if _, err := c.FetchStats(context.Background(), "v1", nil); err == nil {
		t.Fatal("empty batch should be rejected")
	}
	five := []string{"a", "b", "c", "d", "e"}
	if _, err := c.FetchStats(context.Background(), "v1", five); err == nil {
		t.Fatal("oversized batch should be rejected")
	}
	if calls != 0 {
		t.Fatalf("precondition violations must not reach the network, got %d calls", calls)
	}
}

func TestFetchStatsEnvelopeAndRawValues(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"other","engineRpm":9999},
			{"id":"v1","engineRpm":1450,"obdEngineSeconds":{"value":7200},"engineOilPressureKPa":"bogus"}
		]}`)
	}))

	stats, err := c.FetchStats(context.Background(), "v1",
		[]string{domain.StatEngineRPM, domain.StatOBDEngineSeconds, domain.StatEngineOilPressureKPa})
	if err != nil {
		t.Fatal(err)
	}
	if stats[domain.StatEngineRPM] != 1450 {
		t.Fatalf("raw value: got %v", stats[domain.StatEngineRPM])
	}
	if stats[domain.StatOBDEngineSeconds] != 7200 {
		t.Fatalf("envelope value: got %v", stats[domain.StatOBDEngineSeconds])
	}
	if _, ok := stats[domain.StatEngineOilPressureKPa]; ok {
		t.Fatal("non-numeric values should be dropped")
	}
}

func TestFetchStatsVehicleNotInResponse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"other","engineRpm":500}]}`)
	}))

	stats, err := c.FetchStats(context.Background(), "v1", []string{domain.StatEngineRPM})
	if err != nil {
		t.Fatal(err)
	}
	if stats != nil {
		t.Fatalf("absence is not an error but yields no stats, got %v", stats)
	}
}

func TestFetchMaintenancePagination(t *testing.T) {
	pages := map[string]string{
		"": `{"vehicleMaintenance":[
				{"id":"a1"},{"id":"a2"}
			],"pagination":{"endCursor":"c1"}}`,
		"c1": `{"vehicleMaintenance":[
				{"id":"v1","j1939":{"checkEngineLight":{"warningIsOn":true},
					"diagnosticTroubleCodes":[{"spnId":100,"fmiId":3,"occurrenceCount":2}]}},
				{"id":"b2"}
			],"pagination":{"endCursor":"c2"}}`,
		"c2": `{"vehicleMaintenance":[{"id":"c1"},{"id":"c2"}],"pagination":{}}`,
	}
	requested := []string{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("after")
		requested = append(requested, cursor)
		fmt.Fprint(w, pages[cursor])
	}))

	record, err := c.FetchMaintenance(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(requested) != 3 {
		t.Fatalf("expected 3 pages, fetched %d (%v)", len(requested), requested)
	}
	if record == nil {
		t.Fatal("vehicle on page 2 should be found after the full scan")
	}
	if !record.J1939.CheckEngineLight.WarningIsOn {
		t.Fatal("warning light should be on")
	}
	if len(record.J1939.DiagnosticTroubleCodes) != 1 || record.J1939.DiagnosticTroubleCodes[0].SPNID != 100 {
		t.Fatalf("DTCs wrong: %+v", record.J1939.DiagnosticTroubleCodes)
	}
}

func TestFetchMaintenanceAbsentAfterFullScan(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vehicleMaintenance":[{"id":"other"}],"pagination":{"endCursor":""}}`)
	}))

	record, err := c.FetchMaintenance(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Fatalf("no active faults should yield nil, got %+v", record)
	}
}

func TestFetchMaintenanceFallbackKey(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vehicleMaintenance":[],"vehicles":[{"id":"v1"}],"pagination":{}}`)
	}))

	record, err := c.FetchMaintenance(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	if record == nil {
		t.Fatal("fallback 'vehicles' key should be used when the primary key is empty")
	}
}

func TestFetchMaintenanceTransportFailureAborts(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{"vehicleMaintenance":[{"id":"v1"}],"pagination":{"endCursor":"c1"}}`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if _, err := c.FetchMaintenance(context.Background(), "v1"); err == nil {
		t.Fatal("mid-pagination failure must abort the whole call")
	}
}
