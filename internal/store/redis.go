package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-twin/dashboard/internal/config"
	"fleet-twin/dashboard/internal/domain"
)

const (
	twinStateKey  = "twin:%s:state"
	fleetGeoKey   = "fleet:geo"
	twinChannel   = "fleet:twins"
	alertChannel  = "fleet:alerts"
	alertDedupKey = "alert:%s"
)

// RedisStore keeps the hot per-vehicle twin state other services read, and
// fans out twin updates and alert events over pub/sub.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Hot state outlives one refresh interval so readers never see a gap
	// between cycles.
	return &RedisStore{client: client, ttl: 2 * cfg.RefreshTTL}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SaveTwin writes one twin's hot state, updates the fleet geo set when the
// twin has a valid position, and publishes the full record.
func (r *RedisStore) SaveTwin(ctx context.Context, t *domain.DigitalTwin) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal twin: %w", err)
	}

	stateData := map[string]interface{}{
		"vehicle_id":   t.VehicleID,
		"vehicle_name": t.VehicleName,
		"status_alert": t.StatusAlert,
		"alert_color":  string(t.AlertColor),
		"twin":         string(payload),
		"synced_at":    t.LastDataSync.Unix(),
	}

	pipe := r.client.Pipeline()
	stateKey := fmt.Sprintf(twinStateKey, t.VehicleID)
	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, r.ttl)
	if t.Latitude.Valid && t.Longitude.Valid {
		pipe.GeoAdd(ctx, fleetGeoKey, &redis.GeoLocation{
			Name:      t.VehicleID,
			Longitude: t.Longitude.Value,
			Latitude:  t.Latitude.Value,
		})
	}
	pipe.Publish(ctx, twinChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// PublishAlert fans out one alerting twin, deduplicated so a twin stuck in
// the same alert state does not re-announce every cycle.
func (r *RedisStore) PublishAlert(ctx context.Context, t *domain.DigitalTwin) error {
	dedupKey := fmt.Sprintf(alertDedupKey, t.VehicleID)
	set, err := r.client.SetNX(ctx, dedupKey, t.StatusAlert, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("alert dedup failed: %w", err)
	}
	if !set {
		prev, err := r.client.Get(ctx, dedupKey).Result()
		if err == nil && prev == t.StatusAlert {
			return nil
		}
		if err := r.client.Set(ctx, dedupKey, t.StatusAlert, r.ttl).Err(); err != nil {
			return fmt.Errorf("alert dedup update failed: %w", err)
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"vehicle_id":   t.VehicleID,
		"vehicle_name": t.VehicleName,
		"status_alert": t.StatusAlert,
		"alert_color":  string(t.AlertColor),
		"triggered_at": time.Now().Unix(),
	})
	return r.client.Publish(ctx, alertChannel, payload).Err()
}
