package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_twin"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_snapshots_table(ctx, conn)
	step2_alerts_table(ctx, conn)
	step3_indexes(ctx, conn)
	step4_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — twin_snapshots table
// ─────────────────────────────────────────────────────────────
func step1_snapshots_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: twin_snapshots table ────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS twin_snapshots (

			-- One row per vehicle per refresh cycle
			cycle_id                     TEXT             NOT NULL,
			vehicle_id                   TEXT             NOT NULL,

			-- Identity
			vehicle_name                 TEXT             NOT NULL,
			make                         TEXT             NOT NULL,
			model                        TEXT             NOT NULL,
			year                         TEXT             NOT NULL,
			license_plate                TEXT             NOT NULL,

			-- Position — NULL means the vehicle did not report it
			latitude                     DOUBLE PRECISION,
			longitude                    DOUBLE PRECISION,
			speed_mph                    DOUBLE PRECISION,
			current_address              TEXT             NOT NULL,
			location_updated_at          TEXT             NOT NULL,

			-- Engine readings — NULL means not reported
			engine_hours                 DOUBLE PRECISION,
			fuel_perc_remaining          DOUBLE PRECISION,
			engine_oil_pressure_kpa      DOUBLE PRECISION,
			engine_coolant_temperature_c DOUBLE PRECISION,
			engine_rpm                   DOUBLE PRECISION,
			ambient_air_temperature_c    DOUBLE PRECISION,

			-- Check-engine lights
			check_light_warning          BOOLEAN          NOT NULL DEFAULT false,
			check_light_emissions        BOOLEAN          NOT NULL DEFAULT false,
			check_light_protect          BOOLEAN          NOT NULL DEFAULT false,
			check_light_stop             BOOLEAN          NOT NULL DEFAULT false,

			-- Active trouble codes at build time
			diagnostic_trouble_codes     JSONB,

			-- Derived state
			status_alert                 TEXT             NOT NULL,
			alert_color                  TEXT             NOT NULL,
			synced_at                    TIMESTAMPTZ      NOT NULL
		);
	`, "twin_snapshots table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — twin_alerts table
// ─────────────────────────────────────────────────────────────
func step2_alerts_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: twin_alerts table ───────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS twin_alerts (
			cycle_id      TEXT        NOT NULL,
			vehicle_id    TEXT        NOT NULL,
			vehicle_name  TEXT        NOT NULL,
			status_alert  TEXT        NOT NULL,
			alert_color   TEXT        NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

			-- One alert per vehicle per cycle
			UNIQUE (cycle_id, vehicle_id)
		);
	`, "twin_alerts table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — Indexes
// ─────────────────────────────────────────────────────────────
func step3_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Indexes ─────────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE INDEX IF NOT EXISTS idx_snapshots_vehicle_time
		ON twin_snapshots (vehicle_id, synced_at DESC);
	`, "snapshot vehicle/time index")

	execOrFatal(ctx, conn, `
		CREATE INDEX IF NOT EXISTS idx_alerts_vehicle_time
		ON twin_alerts (vehicle_id, created_at DESC);
	`, "alert vehicle/time index")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Verify
// ─────────────────────────────────────────────────────────────
func step4_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Verify ──────────────────────────────")

	for _, table := range []string{"twin_snapshots", "twin_alerts"} {
		var count int
		err := conn.QueryRow(ctx,
			"SELECT count(*) FROM information_schema.tables WHERE table_name = $1",
			table,
		).Scan(&count)
		if err != nil || count == 0 {
			log.Fatalf("table %s missing after init: %v", table, err)
		}
		fmt.Printf("✓ %s exists\n", table)
	}
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	if _, err := conn.Exec(ctx, sql); err != nil {
		log.Fatalf("%s failed: %v", label, err)
	}
	fmt.Printf("✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
