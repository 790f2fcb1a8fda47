// Package http serves the dashboard API: a tabular fleet summary, a
// per-vehicle twin detail view, a manual refresh trigger, and a WebSocket
// stream of fleet snapshots.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fleet-twin/dashboard/internal/cache"
	"fleet-twin/dashboard/internal/config"
	"fleet-twin/dashboard/internal/domain"
	"fleet-twin/dashboard/internal/dtc"
	"fleet-twin/dashboard/internal/metrics"
	"fleet-twin/dashboard/internal/store"
	"fleet-twin/dashboard/internal/twin"
)

// Server owns the dashboard's application state: the latest fleet state,
// replaced wholesale (or per vehicle) by each refresh.
type Server struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	refresher *twin.Refresher
	cache     *cache.SnapshotCache
	redis     *store.RedisStore    // nil when disabled
	db        *store.PostgresStore // nil when disabled
	dtcTable  *dtc.Table
	hub       *Hub

	mu    sync.RWMutex
	state twin.FleetState

	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log *zap.SugaredLogger,
	refresher *twin.Refresher,
	snapshotCache *cache.SnapshotCache,
	redis *store.RedisStore,
	db *store.PostgresStore,
	dtcTable *dtc.Table,
) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		refresher: refresher,
		cache:     snapshotCache,
		redis:     redis,
		db:        db,
		dtcTable:  dtcTable,
	}
	s.hub = newHub(log, s.summarySnapshot)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/ws", s.hub.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requestLogging(log))
	api.Use(NewAuthMiddleware(cfg.ValidAPIKeys).Wrap)
	api.HandleFunc("/fleet", s.handleFleet).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id}", s.handleVehicle).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.log.Infow("dashboard listening", "addr", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// RunPoller refreshes the whole fleet immediately and then once per cache
// TTL, so the dashboard always has data newer than one interval.
func (s *Server) RunPoller(ctx context.Context) error {
	s.refreshFleet(ctx, s.cfg.VehicleIDs, false)

	ticker := time.NewTicker(s.cfg.RefreshTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refreshFleet(ctx, s.cfg.VehicleIDs, true)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// refreshFleet runs (or serves from cache) one refresh cycle for ids and
// merges the result into the application state.
func (s *Server) refreshFleet(ctx context.Context, ids []string, force bool) twin.FleetState {
	if !force {
		if cached, ok := s.cache.Get(ids); ok {
			return cached
		}
	}

	state := s.refresher.Refresh(ctx, ids)
	s.cache.Put(ids, state)
	s.persist(ctx, state)

	s.mu.Lock()
	if s.state.Twins == nil {
		s.state.Twins = make(map[string]*domain.DigitalTwin, len(state.Twins))
	}
	// Each refreshed twin replaces its predecessor wholesale; vehicles
	// outside this cycle's id set keep their last record.
	for id, t := range state.Twins {
		s.state.Twins[id] = t
	}
	s.state.CycleID = state.CycleID
	s.state.RefreshedAt = state.RefreshedAt
	s.mu.Unlock()

	s.hub.broadcast(s.summarySnapshot())
	return state
}

func (s *Server) persist(ctx context.Context, state twin.FleetState) {
	twins := make([]*domain.DigitalTwin, 0, len(state.Twins))
	for _, t := range state.Twins {
		twins = append(twins, t)
	}

	if s.db != nil {
		if err := s.db.InsertSnapshots(ctx, state.CycleID, twins); err != nil {
			metrics.SnapshotWriteFailures.Inc()
			s.log.Errorw("snapshot write failed", "cycle_id", state.CycleID, "error", err)
		}
	}
	for _, t := range twins {
		if s.redis != nil {
			if err := s.redis.SaveTwin(ctx, t); err != nil {
				s.log.Errorw("redis twin update failed", "vehicle_id", t.VehicleID, "error", err)
			}
		}
		if t.AlertColor != domain.ColorRed {
			continue
		}
		if s.db != nil {
			if err := s.db.InsertAlert(ctx, state.CycleID, t); err != nil {
				s.log.Errorw("alert insert failed", "vehicle_id", t.VehicleID, "error", err)
			}
		}
		if s.redis != nil {
			if err := s.redis.PublishAlert(ctx, t); err != nil {
				s.log.Errorw("alert publish failed", "vehicle_id", t.VehicleID, "error", err)
			}
		}
	}
}

// fleetSummaryRow is the tabular projection of one twin.
type fleetSummaryRow struct {
	VehicleID          string            `json:"vehicle_id"`
	VehicleName        string            `json:"vehicle_name"`
	StatusAlert        string            `json:"status_alert"`
	AlertColor         domain.AlertColor `json:"alert_color"`
	FuelPercent        domain.Metric     `json:"fuel_perc_remaining"`
	EngineCoolantTempC domain.Metric     `json:"engine_coolant_temperature_c"`
	SpeedMPH           domain.Metric     `json:"speed_mph"`
	CurrentAddress     string            `json:"current_address"`
	LastDataSync       time.Time         `json:"last_data_sync"`
}

type fleetSummary struct {
	CycleID     string            `json:"cycle_id"`
	RefreshedAt time.Time         `json:"refreshed_at"`
	Vehicles    []fleetSummaryRow `json:"vehicles"`
}

func (s *Server) buildSummary() fleetSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := fleetSummary{
		CycleID:     s.state.CycleID,
		RefreshedAt: s.state.RefreshedAt,
		Vehicles:    make([]fleetSummaryRow, 0, len(s.state.Twins)),
	}
	for _, t := range s.state.Twins {
		summary.Vehicles = append(summary.Vehicles, fleetSummaryRow{
			VehicleID:          t.VehicleID,
			VehicleName:        t.VehicleName,
			StatusAlert:        t.StatusAlert,
			AlertColor:         t.AlertColor,
			FuelPercent:        t.FuelPercentRemaining,
			EngineCoolantTempC: t.EngineCoolantTempC,
			SpeedMPH:           t.SpeedMPH,
			CurrentAddress:     t.CurrentAddress,
			LastDataSync:       t.LastDataSync,
		})
	}
	sort.Slice(summary.Vehicles, func(i, j int) bool {
		return summary.Vehicles[i].VehicleID < summary.Vehicles[j].VehicleID
	})
	return summary
}

func (s *Server) summarySnapshot() []byte {
	data, err := json.Marshal(s.buildSummary())
	if err != nil {
		s.log.Errorw("summary marshal failed", "error", err)
		return nil
	}
	return data
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	// Serve from cache only; the poller keeps it warm.
	s.refreshFleet(r.Context(), s.cfg.VehicleIDs, false)
	writeJSON(w, http.StatusOK, s.buildSummary())
}

// dtcDetail is a trouble code annotated with its catalog description.
type dtcDetail struct {
	domain.DTC
	Description string `json:"description,omitempty"`
}

type vehicleDetail struct {
	Twin *domain.DigitalTwin `json:"twin"`
	DTCs []dtcDetail         `json:"dtc_details"`
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	t, ok := s.state.Twins[id]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown vehicle id"})
		return
	}

	detail := vehicleDetail{Twin: t, DTCs: make([]dtcDetail, 0, len(t.DiagnosticTroubleCodes))}
	for _, code := range t.DiagnosticTroubleCodes {
		detail.DTCs = append(detail.DTCs, dtcDetail{
			DTC:         code,
			Description: s.dtcTable.Describe(code.SPNID, code.FMIID),
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ids := s.cfg.VehicleIDs
	if id := r.URL.Query().Get("id"); id != "" {
		ids = []string{id}
	}

	// Manual refresh bypasses and invalidates the TTL cache.
	s.cache.Invalidate()
	state := s.refreshFleet(r.Context(), ids, true)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycle_id":     state.CycleID,
		"refreshed_at": state.RefreshedAt,
		"twins":        len(state.Twins),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
