package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/manish3089/Token-Generator/pkg/config"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
)

const tokenKeyPrefix = "sharekhan:token:"

// RedisClient stores issued access tokens in Redis
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client and checks the connection
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewRedisClientFrom(client, cfg.TokenTTL, logger), nil
}

// NewRedisClientFrom wraps an existing go-redis client
func NewRedisClientFrom(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisClient {
	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		ttl:    ttl,
	}
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SaveToken stores the latest token record for its API key
func (rc *RedisClient) SaveToken(ctx context.Context, record models.TokenRecord) error {
	if err := rc.SetJSON(ctx, tokenKeyPrefix+record.APIKey, record, rc.ttl); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	rc.logger.WithField("api_key", record.APIKey).Debug("Cached token record")
	return nil
}

// GetToken returns the cached token record for apiKey, or nil when absent
func (rc *RedisClient) GetToken(ctx context.Context, apiKey string) (*models.TokenRecord, error) {
	var result models.TokenRecord
	found, err := rc.GetJSON(ctx, tokenKeyPrefix+apiKey, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached token: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &result, nil
}

// DeleteToken removes the cached token for apiKey
func (rc *RedisClient) DeleteToken(ctx context.Context, apiKey string) error {
	return rc.client.Del(ctx, tokenKeyPrefix+apiKey).Err()
}

// SetJSON stores a JSON-encoded value
func (rc *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return rc.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON retrieves and decodes a JSON value
func (rc *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}
