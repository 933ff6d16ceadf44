package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"clubattendance/internal/attendance"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

const settingsKey = "attendance:settings"

// SettingsStore shares engine settings between API instances.
type SettingsStore struct {
	client *redis.Client
	key    string
}

// NewSettingsStore stores settings under attendance:settings.
func NewSettingsStore(client *redis.Client) *SettingsStore {
	return &SettingsStore{client: client, key: settingsKey}
}

// Load returns the shared settings; ok is false when none were saved yet.
func (s *SettingsStore) Load(ctx context.Context) (attendance.Settings, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return attendance.Settings{}, false, nil
	}
	if err != nil {
		return attendance.Settings{}, false, err
	}
	var out attendance.Settings
	if err := json.Unmarshal(raw, &out); err != nil {
		return attendance.Settings{}, false, err
	}
	return out, true, nil
}

// Save overwrites the shared settings.
func (s *SettingsStore) Save(ctx context.Context, settings attendance.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, raw, 0).Err()
}

// WeekSummary aggregates check-ins for one week.
type WeekSummary struct {
	Week     int            `json:"week"`
	Sessions map[string]int `json:"sessions"`
	Students int64          `json:"students"`
}

// Tally keeps per-week check-in counters in redis hashes.
type Tally struct {
	client *redis.Client
}

// NewTally creates a tally over client.
func NewTally(client *redis.Client) *Tally {
	return &Tally{client: client}
}

func weekKey(week int) string {
	return "attendance:week:" + strconv.Itoa(week)
}

// Record counts one check-in.
func (t *Tally) Record(ctx context.Context, evt attendance.CheckInEvent) error {
	key := weekKey(evt.WeekNumber)
	pipe := t.client.TxPipeline()
	pipe.HIncrBy(ctx, key, evt.SessionTime, 1)
	pipe.SAdd(ctx, key+":students", evt.StudentID)
	_, err := pipe.Exec(ctx)
	return err
}

// Summary reads the counters for a week.
func (t *Tally) Summary(ctx context.Context, week int) (WeekSummary, error) {
	key := weekKey(week)
	counts, err := t.client.HGetAll(ctx, key).Result()
	if err != nil {
		return WeekSummary{}, err
	}
	students, err := t.client.SCard(ctx, key+":students").Result()
	if err != nil {
		return WeekSummary{}, err
	}
	out := WeekSummary{Week: week, Sessions: make(map[string]int, len(counts)), Students: students}
	for session, v := range counts {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		out.Sessions[session] = n
	}
	return out, nil
}
