package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleToken(apiKey string) models.TokenRecord {
	result := &models.TokenResult{
		AccessTokenResponse: models.AccessTokenResponse{
			Status:  "success",
			Message: "ok",
			Data:    map[string]interface{}{"access_token": "SECRET-BEARER"},
		},
		APIKey:           apiKey,
		PayloadShape:     models.PayloadEncrypted,
		EncryptedPayload: "ENCRYPTED-CREDENTIALS",
		IssuedAt:         time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	return result.Record()
}

func exerciseStore(t *testing.T, store TokenStore) {
	ctx := context.Background()

	got, err := store.GetToken(ctx, "app")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.SaveToken(ctx, sampleToken("app")))

	got, err = store.GetToken(ctx, "app")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, "ok", got.Message)
	assert.Equal(t, models.PayloadEncrypted, got.PayloadShape)
	assert.True(t, got.IssuedAt.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)))

	require.NoError(t, store.DeleteToken(ctx, "app"))
	got, err = store.GetToken(ctx, "app")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rc := NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour, logger)
	defer rc.Close()

	require.NoError(t, rc.Health(context.Background()))
	exerciseStore(t, rc)
}

func TestRedisClient_StoresNoCredentials(t *testing.T) {
	mr := miniredis.RunT(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rc := NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour, logger)
	defer rc.Close()

	require.NoError(t, rc.SaveToken(context.Background(), sampleToken("app")))

	raw, err := mr.Get(tokenKeyPrefix + "app")
	require.NoError(t, err)
	assert.Contains(t, raw, `"api_key":"app"`)
	assert.NotContains(t, raw, "SECRET-BEARER")
	assert.NotContains(t, raw, "ENCRYPTED-CREDENTIALS")
	assert.NotContains(t, raw, "encrypted_payload")
}

func TestRedisClient_TokenExpires(t *testing.T) {
	mr := miniredis.RunT(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rc := NewRedisClientFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute, logger)
	defer rc.Close()

	ctx := context.Background()
	require.NoError(t, rc.SaveToken(ctx, sampleToken("app")))
	assert.True(t, mr.Exists(tokenKeyPrefix+"app"))

	mr.FastForward(2 * time.Minute)

	got, err := rc.GetToken(ctx, "app")
	require.NoError(t, err)
	assert.Nil(t, got)
}
