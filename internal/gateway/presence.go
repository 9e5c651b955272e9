package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 5 * time.Minute

// Presence tracks who holds an open socket, in redis so other processes can
// read it. A nil Presence is a no-op; the gateway works without redis.
type Presence struct {
	rdb    *redis.Client
	prefix string
}

func NewPresence(rdb *redis.Client, prefix string) *Presence {
	if rdb == nil {
		return nil
	}
	return &Presence{rdb: rdb, prefix: prefix}
}

type presenceRecord struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func (p *Presence) key(profileID string) string {
	return p.prefix + ":presence:" + profileID
}

func (p *Presence) set(profileID, status string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, _ := json.Marshal(presenceRecord{Status: status, LastSeen: time.Now().Unix()})
	_ = p.rdb.Set(ctx, p.key(profileID), b, presenceTTL).Err()
}

func (p *Presence) Online(profileID string)  { p.set(profileID, "online") }
func (p *Presence) Offline(profileID string) { p.set(profileID, "offline") }

// Get returns the raw presence record for a profile.
func (p *Presence) Get(ctx context.Context, profileID string) (map[string]any, error) {
	if p == nil {
		return nil, redis.Nil
	}
	b, err := p.rdb.Get(ctx, p.key(profileID)).Bytes()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
