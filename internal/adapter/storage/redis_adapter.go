package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/km2209/onion-gateway/internal/core/domain"
)

const (
	resourceKeyPrefix = "resource:"
	orderKey          = "resources:order"
	tombstoneKey      = "resources:tombstones"
)

const (
	luaMissNotFound = -1
	luaMissConflict = -2
)

// updateResourceScript applies the version check and the field mutation in
// one atomic step and returns the committed hash, so the caller never
// observes a concurrent writer's fields.
var updateResourceScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 0 then
	return {-1}
end

local version = tonumber(redis.call('HGET', key, 'version'))
if version ~= tonumber(ARGV[1]) then
	return {-2}
end

if ARGV[2] == '1' then
	redis.call('HSET', key, 'title', ARGV[3])
end
if ARGV[4] == '1' then
	redis.call('HSET', key, 'description', ARGV[5])
end
redis.call('HSET', key, 'version', version + 1, 'updated_at', ARGV[6])

return redis.call('HGETALL', key)
`)

var deleteResourceScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 0 then
	return -1
end

local version = tonumber(redis.call('HGET', key, 'version'))
if version ~= tonumber(ARGV[1]) then
	return -2
end

redis.call('DEL', key)
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('LREM', KEYS[3], 1, ARGV[2])
return 1
`)

// RedisAdapter keeps each resource in a hash, live ids in a list preserving
// creation order, and deleted ids in a tombstone set.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Create(ctx context.Context, title, description string) (domain.Resource, error) {
	if err := domain.ValidateTitle(title); err != nil {
		return domain.Resource{}, err
	}

	now := time.Now().UTC()
	res := domain.Resource{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, resourceKeyPrefix+res.ID, map[string]interface{}{
			"title":       res.Title,
			"description": res.Description,
			"version":     res.Version,
			"created_at":  res.CreatedAt.Format(time.RFC3339Nano),
			"updated_at":  res.UpdatedAt.Format(time.RFC3339Nano),
		})
		pipe.RPush(ctx, orderKey, res.ID)
		return nil
	})
	if err != nil {
		return domain.Resource{}, fmt.Errorf("create resource: %w", err)
	}

	return res, nil
}

func (r *RedisAdapter) Get(ctx context.Context, id string) (domain.Resource, error) {
	fields, err := r.client.HGetAll(ctx, resourceKeyPrefix+id).Result()
	if err != nil {
		return domain.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	if len(fields) == 0 {
		return domain.Resource{}, domain.ErrNotFound
	}
	return resourceFromHash(id, fields)
}

func (r *RedisAdapter) List(ctx context.Context) ([]domain.Resource, error) {
	ids, err := r.client.LRange(ctx, orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list resource ids: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, resourceKeyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	out := make([]domain.Resource, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		if len(fields) == 0 {
			// Deleted between LRANGE and HGETALL.
			continue
		}
		res, err := resourceFromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *RedisAdapter) Update(ctx context.Context, id string, expectedVersion int64, title, description *string) (domain.Resource, error) {
	if title != nil {
		if err := domain.ValidateTitle(*title); err != nil {
			return domain.Resource{}, err
		}
	}

	hasTitle, titleArg := "0", ""
	if title != nil {
		hasTitle, titleArg = "1", *title
	}
	hasDesc, descArg := "0", ""
	if description != nil {
		hasDesc, descArg = "1", *description
	}

	raw, err := updateResourceScript.Run(ctx, r.client,
		[]string{resourceKeyPrefix + id},
		expectedVersion, hasTitle, titleArg, hasDesc, descArg,
		time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return domain.Resource{}, fmt.Errorf("update resource: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok {
		return domain.Resource{}, fmt.Errorf("update resource: unexpected reply %T", raw)
	}
	if len(reply) == 1 {
		switch code, _ := reply[0].(int64); code {
		case luaMissNotFound:
			return domain.Resource{}, domain.ErrNotFound
		case luaMissConflict:
			return domain.Resource{}, domain.ErrVersionConflict
		default:
			return domain.Resource{}, fmt.Errorf("update resource: unexpected code %v", reply[0])
		}
	}

	fields := make(map[string]string, len(reply)/2)
	for i := 0; i+1 < len(reply); i += 2 {
		k, _ := reply[i].(string)
		v, _ := reply[i+1].(string)
		fields[k] = v
	}
	return resourceFromHash(id, fields)
}

func (r *RedisAdapter) Delete(ctx context.Context, id string, expectedVersion int64) error {
	code, err := deleteResourceScript.Run(ctx, r.client,
		[]string{resourceKeyPrefix + id, tombstoneKey, orderKey},
		expectedVersion, id,
	).Int()
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	switch code {
	case 1:
		return nil
	case luaMissNotFound:
		return domain.ErrNotFound
	case luaMissConflict:
		return domain.ErrVersionConflict
	default:
		return fmt.Errorf("delete resource: unexpected code %d", code)
	}
}

func (r *RedisAdapter) Close(ctx context.Context) error {
	return r.client.Close()
}

func resourceFromHash(id string, fields map[string]string) (domain.Resource, error) {
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("parse version for %s: %w", id, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return domain.Resource{}, fmt.Errorf("parse created_at for %s: %w", id, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return domain.Resource{}, fmt.Errorf("parse updated_at for %s: %w", id, err)
	}

	if _, ok := fields["title"]; !ok {
		return domain.Resource{}, errors.New("resource hash missing title")
	}

	return domain.Resource{
		ID:          id,
		Title:       fields["title"],
		Description: fields["description"],
		Version:     version,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}
