package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/domain"
	"barberbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// RedisDraftRepository keeps booking drafts as JSON strings with a TTL.
type RedisDraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftRepository(client *redis.Client, ttl time.Duration) *RedisDraftRepository {
	return &RedisDraftRepository{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return "draft:" + id
}

func (r *RedisDraftRepository) GetDraft(ctx context.Context, id string) (*models.BookingDraft, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft from redis: %w", err)
	}

	var draft models.BookingDraft
	if err := json.Unmarshal(val, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

func (r *RedisDraftRepository) SetDraft(ctx context.Context, draft *models.BookingDraft) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := r.client.Set(ctx, draftKey(draft.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set draft in redis: %w", err)
	}
	return nil
}

func (r *RedisDraftRepository) ClearDraft(ctx context.Context, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts hits for key in a fixed window.
func (r *RedisDraftRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	rk := "rate_limit:" + key
	count, err := r.client.Incr(ctx, rk).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, rk, window)
	}
	return count <= int64(limit), nil
}

// RedisSlotCache stores slot lists in one hash per professional and date,
// one field per service, so a single DEL invalidates the whole day.
//
// Every invalidation also bumps a generation counter. A reader takes the
// generation before loading appointments and SetSlots refuses to write when
// it moved, so a list computed before a booking or cancellation never
// overwrites the invalidation.
type RedisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// generationTTL держит счетчик дольше любого чтения
const generationTTL = 24 * time.Hour

// setIfGeneration пишет поле, только если сумма счетчиков дня и бизнеса не изменилась
var setIfGeneration = redis.NewScript(`
local day = tonumber(redis.call('GET', KEYS[2]) or '0')
local biz = tonumber(redis.call('GET', KEYS[3]) or '0')
if day + biz ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

func NewRedisSlotCache(client *redis.Client, ttl time.Duration) *RedisSlotCache {
	return &RedisSlotCache{client: client, ttl: ttl}
}

func slotKey(businessID, professionalID, date string) string {
	return fmt.Sprintf("slots:%s:%s:%s", businessID, professionalID, date)
}

func dayGenerationKey(businessID, professionalID, date string) string {
	return fmt.Sprintf("slots:gen:%s:%s:%s", businessID, professionalID, date)
}

func businessGenerationKey(businessID string) string {
	return fmt.Sprintf("slots:gen:%s", businessID)
}

func (c *RedisSlotCache) GetSlots(ctx context.Context, businessID, professionalID, date, serviceID string) ([]string, bool, error) {
	val, err := c.client.HGet(ctx, slotKey(businessID, professionalID, date), serviceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot cache: %w", err)
	}
	var slots []string
	if err := json.Unmarshal(val, &slots); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached slots: %w", err)
	}
	return slots, true, nil
}

// Generation returns the current invalidation counter for the day. It must
// be read before the data the cached list is computed from.
func (c *RedisSlotCache) Generation(ctx context.Context, businessID, professionalID, date string) (int64, error) {
	vals, err := c.client.MGet(ctx, dayGenerationKey(businessID, professionalID, date), businessGenerationKey(businessID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read slot cache generation: %w", err)
	}
	var gen int64
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad slot cache generation %q: %w", s, err)
		}
		gen += n
	}
	return gen, nil
}

// SetSlots stores the list only if no invalidation happened since gen was
// read. A skipped write is not an error.
func (c *RedisSlotCache) SetSlots(ctx context.Context, businessID, professionalID, date, serviceID string, gen int64, slots []string) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	keys := []string{
		slotKey(businessID, professionalID, date),
		dayGenerationKey(businessID, professionalID, date),
		businessGenerationKey(businessID),
	}
	err = setIfGeneration.Run(ctx, c.client, keys, gen, serviceID, data, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to write slot cache: %w", err)
	}
	return nil
}

func (c *RedisSlotCache) Invalidate(ctx context.Context, businessID, professionalID, date string) error {
	genKey := dayGenerationKey(businessID, professionalID, date)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, slotKey(businessID, professionalID, date))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate slot cache: %w", err)
	}
	return nil
}

// InvalidateBusiness drops every cached day of the business, used after the
// catalog or working hours change.
func (c *RedisSlotCache) InvalidateBusiness(ctx context.Context, businessID string) error {
	genKey := businessGenerationKey(businessID)
	if err := c.client.Incr(ctx, genKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate slot cache: %w", err)
	}
	c.client.Expire(ctx, genKey, generationTTL)

	iter := c.client.Scan(ctx, 0, fmt.Sprintf("slots:%s:*", businessID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan slot cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate slot cache: %w", err)
	}
	return nil
}
