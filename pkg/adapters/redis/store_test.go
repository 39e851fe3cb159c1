package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceops/conveyor/pkg/adapters/redis"
	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/ports/tests"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStore_Contract(t *testing.T) {
	_, client := newTestClient(t)
	tests.RunInstanceStoreContract(t, redis.NewFromClient(client))
}

func TestStore_KeyPrefix(t *testing.T) {
	mr, client := newTestClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:"))

	inst := domain.NewInstance("inst-1", domain.StageLead, domain.ChannelWeb, nil)
	require.NoError(t, store.Save(context.Background(), inst))

	assert.True(t, mr.Exists("custom:inst-1"))
	assert.False(t, mr.Exists("conveyor:instance:inst-1"))
}

func TestStore_TTLPruning(t *testing.T) {
	mr, client := newTestClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(10*time.Second))
	ctx := context.Background()

	inst := domain.NewInstance("inst-1", domain.StageLead, domain.ChannelWeb, nil)
	require.NoError(t, store.Save(ctx, inst))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "inst-1")

	// Past the TTL the value expires.
	mr.FastForward(15 * time.Second)

	_, err = store.Load(ctx, "inst-1")
	require.ErrorIs(t, err, domain.ErrInstanceNotFound)

	// Index entries whose expiry score has passed are pruned lazily on List.
	mr.ZAdd("conveyor:instance:index", 1.0, "stale-id")
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "stale-id")
}

func TestStore_HistorySurvivesRoundtrip(t *testing.T) {
	_, client := newTestClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	inst := domain.NewInstance("inst-1", domain.StageLead, domain.ChannelWeb, nil)
	inst.History = append(inst.History, domain.TransitionRecord{
		Timestamp: time.Now().UTC(),
		From:      domain.StageLead,
		To:        domain.StageRFQ,
		Action:    "QUALIFY",
		ActorRole: domain.RoleSales,
		Outcome:   domain.OutcomeCommitted,
	})
	inst.CurrentStage = domain.StageRFQ
	require.NoError(t, store.Save(ctx, inst))

	got, err := store.Load(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, domain.OutcomeCommitted, got.History[1].Outcome)
	assert.Equal(t, domain.StageRFQ, got.CurrentStage)
}
