package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-twin/dashboard/internal/config"
	"fleet-twin/dashboard/internal/domain"
)

// PostgresStore keeps the append-only history of built twins and raised
// alerts. The dashboard itself serves from memory; this is for later
// analysis.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var snapshotColumns = []string{
	"cycle_id",
	"vehicle_id",
	"vehicle_name",
	"make",
	"model",
	"year",
	"license_plate",
	"latitude",
	"longitude",
	"speed_mph",
	"current_address",
	"location_updated_at",
	"engine_hours",
	"fuel_perc_remaining",
	"engine_oil_pressure_kpa",
	"engine_coolant_temperature_c",
	"engine_rpm",
	"ambient_air_temperature_c",
	"check_light_warning",
	"check_light_emissions",
	"check_light_protect",
	"check_light_stop",
	"diagnostic_trouble_codes",
	"status_alert",
	"alert_color",
	"synced_at",
}

// InsertSnapshots appends one row per twin for a finished cycle. Invalid
// metrics become SQL NULLs, never zeroes.
func (s *PostgresStore) InsertSnapshots(ctx context.Context, cycleID string, twins []*domain.DigitalTwin) error {
	if len(twins) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(twins))
	for i, t := range twins {
		dtcs, err := json.Marshal(t.DiagnosticTroubleCodes)
		if err != nil {
			return fmt.Errorf("failed to marshal DTCs for %s: %w", t.VehicleID, err)
		}
		rows[i] = []interface{}{
			cycleID,
			t.VehicleID,
			t.VehicleName,
			t.Make,
			t.Model,
			t.Year,
			t.LicensePlate,
			nullable(t.Latitude),
			nullable(t.Longitude),
			nullable(t.SpeedMPH),
			t.CurrentAddress,
			t.LocationUpdatedAt,
			nullable(t.EngineHours),
			nullable(t.FuelPercentRemaining),
			nullable(t.EngineOilPressureKPA),
			nullable(t.EngineCoolantTempC),
			nullable(t.EngineRPM),
			nullable(t.AmbientAirTempC),
			t.CheckLightWarning,
			t.CheckLightEmissions,
			t.CheckLightProtect,
			t.CheckLightStop,
			string(dtcs),
			t.StatusAlert,
			string(t.AlertColor),
			t.LastDataSync,
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"twin_snapshots"},
		snapshotColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("CopyFrom failed for batch of %d: %w", len(twins), err)
	}
	return nil
}

// InsertAlert records one alerting twin. Re-raising the same status within
// a cycle is a no-op.
func (s *PostgresStore) InsertAlert(ctx context.Context, cycleID string, t *domain.DigitalTwin) error {
	query := `
		INSERT INTO twin_alerts
			(cycle_id, vehicle_id, vehicle_name, status_alert, alert_color, created_at)
		VALUES
			($1, $2, $3, $4, $5, NOW())
		ON CONFLICT DO NOTHING
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		cycleID,
		t.VehicleID,
		t.VehicleName,
		t.StatusAlert,
		string(t.AlertColor),
	)
	return err
}

func nullable(m domain.Metric) interface{} {
	if !m.Valid {
		return nil
	}
	return m.Value
}
