package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"talentflow/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CacheService fronts redis for the hot tenant-scoped reads: stage lists
// (consulted on every transition) and usage snapshots.
type CacheService interface {
	GetStages(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error)
	SetStages(ctx context.Context, tenantID uuid.UUID, stages []*models.StageDefinition, ttl time.Duration) error
	InvalidateStages(ctx context.Context, tenantID uuid.UUID) error

	GetUsage(ctx context.Context, tenantID uuid.UUID) (*models.TenantUsage, error)
	SetUsage(ctx context.Context, tenantID uuid.UUID, usage *models.TenantUsage, ttl time.Duration) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func stagesKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("talentflow:stages:%s", tenantID.String())
}

func usageKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("talentflow:usage:%s", tenantID.String())
}

func (r *redisCacheService) GetStages(ctx context.Context, tenantID uuid.UUID) ([]*models.StageDefinition, error) {
	data, err := r.client.Get(ctx, stagesKey(tenantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var stages []*models.StageDefinition
	if err := json.Unmarshal(data, &stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *redisCacheService) SetStages(ctx context.Context, tenantID uuid.UUID, stages []*models.StageDefinition, ttl time.Duration) error {
	data, err := json.Marshal(stages)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, stagesKey(tenantID), data, ttl).Err()
}

func (r *redisCacheService) InvalidateStages(ctx context.Context, tenantID uuid.UUID) error {
	return r.client.Del(ctx, stagesKey(tenantID)).Err()
}

func (r *redisCacheService) GetUsage(ctx context.Context, tenantID uuid.UUID) (*models.TenantUsage, error) {
	data, err := r.client.Get(ctx, usageKey(tenantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var usage models.TenantUsage
	if err := json.Unmarshal(data, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

func (r *redisCacheService) SetUsage(ctx context.Context, tenantID uuid.UUID, usage *models.TenantUsage, ttl time.Duration) error {
	data, err := json.Marshal(usage)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, usageKey(tenantID), data, ttl).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
