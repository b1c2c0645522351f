package risk

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Blocklist is the fast lookup the HTTP layer consults on every request.
// It satisfies the auth middleware's BlockChecker.
type Blocklist interface {
	Publish(ctx context.Context, b BlockEntry) error
	IsBlocked(ctx context.Context, principal id.PrincipalID, facility id.FacilityID) (bool, error)
}

// anyFacility is the set member for org-wide blocks.
const anyFacility = "*"

func member(b BlockEntry) string {
	if b.Scope == ScopeOrg {
		return anyFacility
	}
	return b.Facility.String()
}

// MemoryBlocklist keeps blocks in process.
type MemoryBlocklist struct {
	mu      sync.RWMutex
	blocked map[id.PrincipalID]map[string]struct{}
}

func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{blocked: make(map[id.PrincipalID]map[string]struct{})}
}

func (m *MemoryBlocklist) Publish(_ context.Context, b BlockEntry) error {
	m.add(b.Principal, member(b))
	return nil
}

func (m *MemoryBlocklist) add(principal id.PrincipalID, facility string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.blocked[principal]
	if !ok {
		set = make(map[string]struct{})
		m.blocked[principal] = set
	}
	set[facility] = struct{}{}
}

func (m *MemoryBlocklist) IsBlocked(_ context.Context, principal id.PrincipalID, facility id.FacilityID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.blocked[principal]
	_, org := set[anyFacility]
	_, here := set[facility.String()]
	return org || here, nil
}

// BlockChannel carries newly published blocks to every replica.
const BlockChannel = "principal_blocklist"

type blockMessage struct {
	Principal string `json:"principal"`
	Member    string `json:"member"`
}

// RedisBlocklist stores one set per principal ("blocklist:<id>") holding
// blocked facility ids or "*", and broadcasts each publish so replicas can
// warm their local copy through Listen.
type RedisBlocklist struct {
	rdb    *redis.Client
	local  *MemoryBlocklist
	logger *slog.Logger
}

func NewRedisBlocklist(rdb *redis.Client, logger *slog.Logger) *RedisBlocklist {
	return &RedisBlocklist{rdb: rdb, local: NewMemoryBlocklist(), logger: logger}
}

func blockKey(principal id.PrincipalID) string {
	return "blocklist:" + principal.String()
}

func (r *RedisBlocklist) Publish(ctx context.Context, b BlockEntry) error {
	msg, err := json.Marshal(blockMessage{Principal: b.Principal.String(), Member: member(b)})
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, blockKey(b.Principal), member(b))
	pipe.Publish(ctx, BlockChannel, msg)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	r.local.add(b.Principal, member(b))
	return nil
}

// IsBlocked answers from the local copy when it knows the principal is
// blocked, and asks redis otherwise.
func (r *RedisBlocklist) IsBlocked(ctx context.Context, principal id.PrincipalID, facility id.FacilityID) (bool, error) {
	if blocked, _ := r.local.IsBlocked(ctx, principal, facility); blocked {
		return true, nil
	}
	hits, err := r.rdb.SMIsMember(ctx, blockKey(principal), facility.String(), anyFacility).Result()
	if err != nil {
		return false, err
	}
	for _, hit := range hits {
		if hit {
			return true, nil
		}
	}
	return false, nil
}

// Listen applies broadcasts from other replicas until ctx is done.
func (r *RedisBlocklist) Listen(ctx context.Context) {
	sub := r.rdb.Subscribe(ctx, BlockChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m blockMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				r.logger.WarnContext(ctx, "unreadable blocklist broadcast", "error", err)
				continue
			}
			r.local.add(id.PrincipalID(m.Principal), m.Member)
		}
	}
}
