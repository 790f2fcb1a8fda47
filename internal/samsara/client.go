// Package samsara fetches raw vehicle telemetry from the upstream
// telematics REST API. Transport failures are recovered here: callers see
// an error (or an absent entry) per sub-fetch, never a panic.
package samsara

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"fleet-twin/dashboard/internal/domain"
	"fleet-twin/dashboard/internal/metrics"
)

// VehicleDetails is the identity record from GET /vehicles/{id}. Absent
// fields stay empty; the builder substitutes sentinels. The id arrives as
// either a string or a number, like everywhere else in this API.
type VehicleDetails struct {
	ID           flexibleID `json:"id"`
	Name         string     `json:"name"`
	Make         string     `json:"make"`
	Model        string     `json:"model"`
	Year         string     `json:"year"`
	LicensePlate string     `json:"licensePlate"`
}

// Location is one vehicle's entry from GET /vehicles/locations.
type Location struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Speed      *float64 `json:"speed"`
	Time       string   `json:"time"`
	ReverseGeo struct {
		FormattedLocation string `json:"formattedLocation"`
	} `json:"reverseGeo"`
}

// flexibleID decodes a vehicle id that arrives as either a JSON string or
// a JSON number, depending on the endpoint version. Matching is always by
// string equality.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

// MaintenanceRecord is one vehicle's entry from the paginated maintenance
// listing.
type MaintenanceRecord struct {
	ID    flexibleID `json:"id"`
	J1939 struct {
		CheckEngineLight struct {
			WarningIsOn   bool `json:"warningIsOn"`
			EmissionsIsOn bool `json:"emissionsIsOn"`
			ProtectIsOn   bool `json:"protectIsOn"`
			StopIsOn      bool `json:"stopIsOn"`
		} `json:"checkEngineLight"`
		DiagnosticTroubleCodes []domain.DTC `json:"diagnosticTroubleCodes"`
	} `json:"j1939"`
}

type Client struct {
	baseURL            string
	maintenanceBaseURL string
	token              string
	httpClient         *http.Client
	log                *zap.SugaredLogger
}

func NewClient(baseURL, maintenanceBaseURL, token string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:            strings.TrimRight(baseURL, "/"),
		maintenanceBaseURL: strings.TrimRight(maintenanceBaseURL, "/"),
		token:              token,
		httpClient:         &http.Client{Timeout: timeout},
		log:                log,
	}
}

// FetchVehicleDetails returns identity data for one vehicle. Any transport
// failure or non-2xx status yields an error; the caller skips the vehicle.
func (c *Client) FetchVehicleDetails(ctx context.Context, id string) (*VehicleDetails, error) {
	var payload struct {
		Data VehicleDetails `json:"data"`
	}
	if err := c.get(ctx, c.baseURL+"/vehicles/"+url.PathEscape(id), nil, &payload); err != nil {
		metrics.FetchFailures.WithLabelValues("details").Inc()
		c.log.Warnw("vehicle details fetch failed", "vehicle_id", id, "error", err)
		return nil, fmt.Errorf("fetch details for vehicle %s: %w", id, err)
	}
	if payload.Data.ID == "" {
		payload.Data.ID = flexibleID(id)
	}
	return &payload.Data, nil
}

// FetchLocations returns locations for the requested ids in one batched
// call. Ids missing from the response are simply absent from the map.
func (c *Client) FetchLocations(ctx context.Context, ids []string) (map[string]Location, error) {
	var payload struct {
		Data []struct {
			ID       flexibleID `json:"id"`
			Location Location   `json:"location"`
		} `json:"data"`
	}
	params := url.Values{"ids": {strings.Join(ids, ",")}}
	if err := c.get(ctx, c.baseURL+"/vehicles/locations", params, &payload); err != nil {
		metrics.FetchFailures.WithLabelValues("locations").Inc()
		c.log.Warnw("locations fetch failed", "ids", len(ids), "error", err)
		return nil, fmt.Errorf("fetch locations: %w", err)
	}

	out := make(map[string]Location, len(payload.Data))
	for _, item := range payload.Data {
		out[string(item.ID)] = item.Location
	}
	return out, nil
}

// FetchStats requests the given stat types (between 1 and MaxStatTypesPerCall,
// an upstream constraint checked before any network call) and returns the
// values reported for the target vehicle. Values arrive either raw or
// wrapped in a {value: n} envelope; non-numeric values are dropped.
func (c *Client) FetchStats(ctx context.Context, id string, statTypes []string) (map[string]float64, error) {
	if len(statTypes) == 0 || len(statTypes) > domain.MaxStatTypesPerCall {
		return nil, fmt.Errorf("stats batch must hold between 1 and %d types, got %d",
			domain.MaxStatTypesPerCall, len(statTypes))
	}

	var payload struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	params := url.Values{"types": {strings.Join(statTypes, ",")}}
	if err := c.get(ctx, c.baseURL+"/vehicles/stats", params, &payload); err != nil {
		metrics.FetchFailures.WithLabelValues("stats").Inc()
		c.log.Warnw("stats fetch failed", "vehicle_id", id, "types", statTypes, "error", err)
		return nil, fmt.Errorf("fetch stats for vehicle %s: %w", id, err)
	}

	for _, item := range payload.Data {
		if !rawIDMatches(item["id"], id) {
			continue
		}
		out := make(map[string]float64, len(statTypes))
		for _, statType := range statTypes {
			raw, ok := item[statType]
			if !ok {
				continue
			}
			if v, ok := decodeStatValue(raw); ok {
				out[statType] = v
			}
		}
		return out, nil
	}

	// The vehicle is not in the bulk response: it does not report these
	// stats. Legitimate absence, not an error.
	return nil, nil
}

// FetchMaintenance pages through the upstream listing of all vehicles with
// active maintenance data and returns the record matching id, or nil when
// the vehicle has no active faults. A transport failure on any page aborts
// the whole call.
func (c *Client) FetchMaintenance(ctx context.Context, id string) (*MaintenanceRecord, error) {
	var items []MaintenanceRecord
	cursor := ""
	for page := 1; ; page++ {
		var payload struct {
			VehicleMaintenance []MaintenanceRecord `json:"vehicleMaintenance"`
			Vehicles           []MaintenanceRecord `json:"vehicles"`
			Pagination         struct {
				EndCursor string `json:"endCursor"`
			} `json:"pagination"`
		}
		params := url.Values{}
		if cursor != "" {
			params.Set("after", cursor)
		}
		if err := c.get(ctx, c.maintenanceBaseURL+"/maintenance/list", params, &payload); err != nil {
			metrics.FetchFailures.WithLabelValues("maintenance").Inc()
			c.log.Warnw("maintenance fetch failed mid-pagination",
				"vehicle_id", id, "page", page, "error", err)
			return nil, fmt.Errorf("fetch maintenance page %d: %w", page, err)
		}

		pageItems := payload.VehicleMaintenance
		if len(pageItems) == 0 {
			pageItems = payload.Vehicles
		}
		items = append(items, pageItems...)

		cursor = payload.Pagination.EndCursor
		if cursor == "" {
			break
		}
	}

	for i := range items {
		if string(items[i].ID) == id {
			return &items[i], nil
		}
	}

	// Full scan finished without a match: the vehicle has no active
	// faults. Distinct from the transport-failure path above.
	c.log.Debugw("vehicle absent from maintenance listing", "vehicle_id", id, "items", len(items))
	return nil, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, target any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(target)
}

func rawIDMatches(raw json.RawMessage, id string) bool {
	if raw == nil {
		return false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String() == id
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == id
	}
	return false
}

func decodeStatValue(raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}
	var envelope struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Value != nil {
		return *envelope.Value, true
	}
	return 0, false
}
