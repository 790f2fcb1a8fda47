package twin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleet-twin/dashboard/internal/domain"
	"fleet-twin/dashboard/internal/metrics"
	"fleet-twin/dashboard/internal/samsara"
)

// Fetcher is the upstream surface the refresher depends on. *samsara.Client
// implements it; tests substitute a fake.
type Fetcher interface {
	FetchVehicleDetails(ctx context.Context, id string) (*samsara.VehicleDetails, error)
	FetchLocations(ctx context.Context, ids []string) (map[string]samsara.Location, error)
	FetchStats(ctx context.Context, id string, statTypes []string) (map[string]float64, error)
	FetchMaintenance(ctx context.Context, id string) (*samsara.MaintenanceRecord, error)
}

// FleetState is the result of one refresh cycle. It is handed to the
// caller whole; the refresher keeps no state between cycles.
type FleetState struct {
	CycleID     string
	RefreshedAt time.Time
	Twins       map[string]*domain.DigitalTwin
}

// Refresher runs one synchronous fetch-build-evaluate cycle over a set of
// vehicle ids. Fetching is sequential per vehicle: details, then stats
// batches, then maintenance, after one batched locations call up front.
type Refresher struct {
	fetcher     Fetcher
	builder     *Builder
	evaluator   *Evaluator
	statBatches [][]string
	log         *zap.SugaredLogger
}

func NewRefresher(fetcher Fetcher, builder *Builder, evaluator *Evaluator, log *zap.SugaredLogger) *Refresher {
	return &Refresher{
		fetcher:     fetcher,
		builder:     builder,
		evaluator:   evaluator,
		statBatches: domain.ChunkStatTypes(domain.DefaultStatTypes, domain.MaxStatTypesPerCall),
		log:         log,
	}
}

// Refresh builds a fresh twin for every id in ids, the whole fleet or a
// singleton set. A vehicle whose details fetch fails is omitted from the
// result; every other partial failure degrades that vehicle's fields to
// sentinels. Refresh never fails as a whole.
func (r *Refresher) Refresh(ctx context.Context, ids []string) FleetState {
	state := FleetState{
		CycleID: uuid.NewString(),
		Twins:   make(map[string]*domain.DigitalTwin, len(ids)),
	}
	log := r.log.With("cycle_id", state.CycleID)
	log.Infow("refresh cycle started", "vehicles", len(ids))

	locations, err := r.fetcher.FetchLocations(ctx, ids)
	if err != nil {
		// Every twin in this cycle falls back to sentinel positions.
		log.Warnw("locations unavailable for this cycle", "error", err)
		locations = map[string]samsara.Location{}
	}

	for _, id := range ids {
		details, err := r.fetcher.FetchVehicleDetails(ctx, id)
		if err != nil {
			metrics.VehiclesSkipped.Inc()
			log.Warnw("skipping vehicle, details unavailable", "vehicle_id", id, "error", err)
			continue
		}

		vehicleStats := make(map[string]float64)
		for _, batch := range r.statBatches {
			batchStats, err := r.fetcher.FetchStats(ctx, id, batch)
			if err != nil {
				log.Warnw("stats batch unavailable", "vehicle_id", id, "types", batch, "error", err)
				continue
			}
			for k, v := range batchStats {
				vehicleStats[k] = v
			}
		}

		maintenance, err := r.fetcher.FetchMaintenance(ctx, id)
		if err != nil {
			// Treated the same as "no maintenance data" downstream.
			log.Warnw("maintenance unavailable", "vehicle_id", id, "error", err)
			maintenance = nil
		}

		t := r.builder.Build(details,
			locations,
			map[string]map[string]float64{id: vehicleStats},
			map[string]*samsara.MaintenanceRecord{id: maintenance},
		)
		t.StatusAlert, t.AlertColor = r.evaluator.Evaluate(t)

		metrics.TwinsBuilt.Inc()
		if t.AlertColor == domain.ColorRed {
			metrics.AlertsRaised.Inc()
		}
		state.Twins[id] = t
	}

	state.RefreshedAt = time.Now()
	metrics.RefreshCycles.Inc()
	log.Infow("refresh cycle finished", "twins", len(state.Twins))
	return state
}
