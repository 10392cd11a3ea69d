package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-direct/internal/entity"
)

var ErrPeerNotFound = errors.New("peer not found")

const (
	peerKeyPrefix = "peer:"
	scanBatch     = 100
)

// PeerRepository keeps device presence. Entries expire unless they are announced again.
type PeerRepository interface {
	Announce(ctx context.Context, peer entity.Peer, ttl time.Duration) error
	GetByID(ctx context.Context, id string) (entity.Peer, error)
	List(ctx context.Context, excludeID string) ([]entity.Peer, error)
	Remove(ctx context.Context, id string) error
}

type dbPeer struct {
	client *redis.Client
}

func NewPeerRepository(client *redis.Client) PeerRepository {
	return &dbPeer{
		client: client,
	}
}

func peerKey(id string) string {
	return peerKeyPrefix + id
}

func (that *dbPeer) Announce(ctx context.Context, peer entity.Peer, ttl time.Duration) error {
	peerJSON, err := json.Marshal(peer)
	if err != nil {
		return fmt.Errorf("failed to marshal peer: %w", err)
	}

	if err = that.client.Set(ctx, peerKey(peer.ID), peerJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set peer: %w", err)
	}

	return nil
}

func (that *dbPeer) GetByID(ctx context.Context, id string) (entity.Peer, error) {
	response, err := that.client.Get(ctx, peerKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return entity.Peer{}, ErrPeerNotFound
	}

	if err != nil {
		return entity.Peer{}, fmt.Errorf("failed to get peer by ID: %w", err)
	}

	var peer entity.Peer
	if err = json.Unmarshal([]byte(response), &peer); err != nil {
		return entity.Peer{}, fmt.Errorf("failed to unmarshal peer: %w", err)
	}

	return peer, nil
}

// List returns every announced peer except excludeID, ordered by id.
func (that *dbPeer) List(ctx context.Context, excludeID string) ([]entity.Peer, error) {
	var keys []string

	iter := that.client.Scan(ctx, 0, peerKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.TrimPrefix(key, peerKeyPrefix) == excludeID {
			continue
		}
		keys = append(keys, key)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan peers: %w", err)
	}

	peers := make([]entity.Peer, 0, len(keys))
	if len(keys) == 0 {
		return peers, nil
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get peers: %w", err)
	}

	for _, value := range values {
		// expired between SCAN and MGET
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var peer entity.Peer
		if err = json.Unmarshal([]byte(raw), &peer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal peer: %w", err)
		}
		peers = append(peers, peer)
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].ID < peers[j].ID
	})

	return peers, nil
}

func (that *dbPeer) Remove(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, peerKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove peer: %w", err)
	}

	return nil
}
