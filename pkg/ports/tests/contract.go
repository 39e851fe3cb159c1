package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/ports"
)

// RunInstanceStoreContract is a reusable suite verifying that a store
// complies with ports.InstanceStore. Adapter tests call it against a fresh,
// empty store.
func RunInstanceStoreContract(t *testing.T, store ports.InstanceStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})

	t.Run("Save_Load_Roundtrip", func(t *testing.T) {
		inst := domain.NewInstance("inst-1", domain.StageLead, domain.ChannelWeb, map[string]any{
			"customer": "Acme Corp",
		})
		require.NoError(t, store.Save(ctx, inst))

		got, err := store.Load(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, "inst-1", got.ID)
		assert.Equal(t, domain.StageLead, got.CurrentStage)
		assert.Equal(t, domain.ChannelWeb, got.Origin)
		assert.Equal(t, "Acme Corp", got.Payload["customer"])
		assert.Len(t, got.History, 1)
	})

	t.Run("Load_Isolation", func(t *testing.T) {
		inst := domain.NewInstance("inst-2", domain.StageLead, domain.ChannelEmail, nil)
		require.NoError(t, store.Save(ctx, inst))

		first, err := store.Load(ctx, "inst-2")
		require.NoError(t, err)
		first.Payload["tampered"] = true
		first.CurrentStage = domain.StageShip

		second, err := store.Load(ctx, "inst-2")
		require.NoError(t, err)
		assert.NotContains(t, second.Payload, "tampered",
			"mutating a loaded instance must not leak into the store")
		assert.Equal(t, domain.StageLead, second.CurrentStage)
	})

	t.Run("Save_Overwrites", func(t *testing.T) {
		inst := domain.NewInstance("inst-3", domain.StageLead, domain.ChannelPhone, nil)
		require.NoError(t, store.Save(ctx, inst))

		inst.CurrentStage = domain.StageRFQ
		inst.MergePayload(map[string]any{"qualified": true})
		require.NoError(t, store.Save(ctx, inst))

		got, err := store.Load(ctx, "inst-3")
		require.NoError(t, err)
		assert.Equal(t, domain.StageRFQ, got.CurrentStage)
		assert.Equal(t, true, got.Payload["qualified"])
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Subset(t, ids, []string{"inst-1", "inst-2", "inst-3"})
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "inst-3"))
		_, err := store.Load(ctx, "inst-3")
		require.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})
}
