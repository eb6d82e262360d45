package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/verdant-labs/growpod/internal/model"
)

var Rdb *redis.Client

func InitRedis(redisAddress string, redisUsername string, redisPassword string) {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     redisAddress,
		Username: redisUsername,
		Password: redisPassword,
		DB:       0,
	})
}

const schedulePrefix = "schedule:"

// ScheduleMirror keeps registered schedules mirrored into redis as JSON
// documents, one key per schedule. Postgres stays authoritative; the
// mirror exists so schedules survive a database outage at boot.
type ScheduleMirror struct {
	client *redis.Client
}

func NewScheduleMirror(client *redis.Client) *ScheduleMirror {
	return &ScheduleMirror{client: client}
}

func (m *ScheduleMirror) SaveSchedule(ctx context.Context, def model.ScheduleDefinition) error {
	payload, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, schedulePrefix+def.Name, payload, 0).Err()
}

func (m *ScheduleMirror) DeleteSchedule(ctx context.Context, name string) error {
	return m.client.Del(ctx, schedulePrefix+name).Err()
}

// ListSchedules reads every mirrored schedule back. Entries that no
// longer parse are skipped with a warning rather than failing the scan.
func (m *ScheduleMirror) ListSchedules(ctx context.Context) ([]model.ScheduleDefinition, error) {
	var out []model.ScheduleDefinition
	iter := m.client.Scan(ctx, 0, schedulePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := m.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var def model.ScheduleDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			log.Warn().Err(err).Str("key", iter.Val()).Msg("skipping unparseable schedule mirror entry")
			continue
		}
		out = append(out, def)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
