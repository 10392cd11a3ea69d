package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
)

var ErrGroupNotFound = errors.New("group not found")

const (
	groupOwnerAddressField = "owner_address"
	groupPeerIDField       = "peer_id"
)

// GroupRepository stores the group a device is connected to.
type GroupRepository interface {
	Set(ctx context.Context, deviceID string, group entity.Group) error
	Get(ctx context.Context, deviceID string) (entity.Group, error)
	Clear(ctx context.Context, deviceID string) error
}

type dbGroup struct {
	client *redis.Client
}

func NewGroupRepository(client *redis.Client) GroupRepository {
	return &dbGroup{
		client: client,
	}
}

func groupKey(deviceID string) string {
	return "group:" + deviceID
}

func (that *dbGroup) Set(ctx context.Context, deviceID string, group entity.Group) error {
	err := that.client.HSet(ctx, groupKey(deviceID),
		groupOwnerAddressField, group.OwnerAddress,
		groupPeerIDField, group.PeerID,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set group: %w", err)
	}

	return nil
}

func (that *dbGroup) Get(ctx context.Context, deviceID string) (entity.Group, error) {
	fields, err := that.client.HGetAll(ctx, groupKey(deviceID)).Result()
	if err != nil {
		return entity.Group{}, fmt.Errorf("failed to get group: %w", err)
	}

	// HGETALL answers a missing key with an empty hash
	if len(fields) == 0 {
		return entity.Group{}, ErrGroupNotFound
	}

	return entity.Group{
		OwnerAddress: fields[groupOwnerAddressField],
		PeerID:       fields[groupPeerIDField],
	}, nil
}

func (that *dbGroup) Clear(ctx context.Context, deviceID string) error {
	if err := that.client.Del(ctx, groupKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to clear group: %w", err)
	}

	return nil
}
