package datastore

import (
	"testing"

	"github.com/launchdarkly/go-server-sdk-core/internal/sharedtest"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeInMemoryStore() subsystems.DataStore {
	return NewInMemoryDataStore(ldlog.NewDisabledLoggers())
}

func TestInMemoryDataStoreIsNotInitializedByDefault(t *testing.T) {
	store := makeInMemoryStore()
	assert.False(t, store.IsInitialized())
}

func TestInMemoryDataStoreInit(t *testing.T) {
	t.Run("makes store initialized", func(t *testing.T) {
		store := makeInMemoryStore()

		require.NoError(t, store.Init(sharedtest.MakeMockDataSet()))

		assert.True(t, store.IsInitialized())
	})

	t.Run("completely replaces previous data", func(t *testing.T) {
		store := makeInMemoryStore()
		item1 := sharedtest.MockDataItem{Key: "first", Version: 1}
		item2 := sharedtest.MockDataItem{Key: "second", Version: 1, IsOtherKind: true}
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1, item2)))

		item1a := sharedtest.MockDataItem{Key: "new-first", Version: 2}
		item2a := sharedtest.MockDataItem{Key: "new-second", Version: 2, IsOtherKind: true}
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1a, item2a)))

		item, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, ldstoretypes.ItemDescriptor{}.NotFound(), item)

		items, err := store.GetAll(sharedtest.MockData)
		require.NoError(t, err)
		assert.Equal(t, []ldstoretypes.KeyedItemDescriptor{item1a.ToKeyedItemDescriptor()}, items)

		otherItems, err := store.GetAll(sharedtest.MockOtherData)
		require.NoError(t, err)
		assert.Equal(t, []ldstoretypes.KeyedItemDescriptor{item2a.ToKeyedItemDescriptor()}, otherItems)
	})
}

func TestInMemoryDataStoreGet(t *testing.T) {
	t.Run("existing item", func(t *testing.T) {
		store := makeInMemoryStore()
		item1 := sharedtest.MockDataItem{Key: "feature", Version: 1}
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1)))

		result, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, item1.ToItemDescriptor(), result)
	})

	t.Run("unknown key", func(t *testing.T) {
		store := makeInMemoryStore()
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet()))

		result, err := store.Get(sharedtest.MockData, "no-such-key")
		require.NoError(t, err)
		assert.Equal(t, ldstoretypes.ItemDescriptor{}.NotFound(), result)
	})

	t.Run("unknown kind", func(t *testing.T) {
		store := makeInMemoryStore()

		result, err := store.Get(sharedtest.MockData, "key")
		require.NoError(t, err)
		assert.Equal(t, ldstoretypes.ItemDescriptor{}.NotFound(), result)
	})

	t.Run("logs debug message for missing item", func(t *testing.T) {
		mockLog := ldlogtest.NewMockLog()
		mockLog.Loggers.SetMinLevel(ldlog.Debug)
		store := NewInMemoryDataStore(mockLog.Loggers)
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet()))

		_, err := store.Get(sharedtest.MockData, "no-such-key")
		require.NoError(t, err)
		mockLog.AssertMessageMatch(t, true, ldlog.Debug, `Key no-such-key not found in "mock1"`)
	})
}

func TestInMemoryDataStoreGetAll(t *testing.T) {
	store := makeInMemoryStore()
	require.NoError(t, store.Init(sharedtest.MakeMockDataSet()))

	items, err := store.GetAll(sharedtest.MockData)
	require.NoError(t, err)
	assert.Len(t, items, 0)

	item1 := sharedtest.MockDataItem{Key: "first", Version: 1}
	item2 := sharedtest.MockDataItem{Key: "second", Version: 1}
	otherItem := sharedtest.MockDataItem{Key: "other", Version: 1, IsOtherKind: true}
	require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1, item2, otherItem)))

	items, err = store.GetAll(sharedtest.MockData)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ldstoretypes.KeyedItemDescriptor{
		item1.ToKeyedItemDescriptor(), item2.ToKeyedItemDescriptor(),
	}, items)
}

func TestInMemoryDataStoreUpsert(t *testing.T) {
	t.Run("newer version updates item", func(t *testing.T) {
		store := makeInMemoryStore()
		item1 := sharedtest.MockDataItem{Key: "feature", Version: 10}
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1)))

		item1a := sharedtest.MockDataItem{Key: item1.Key, Version: 11}
		updated, err := store.Upsert(sharedtest.MockData, item1.Key, item1a.ToItemDescriptor())
		require.NoError(t, err)
		assert.True(t, updated)

		result, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, item1a.ToItemDescriptor(), result)
	})

	t.Run("equal version does not update item", func(t *testing.T) {
		store := makeInMemoryStore()
		item1 := sharedtest.MockDataItem{Key: "feature", Version: 10}
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1)))

		item1a := sharedtest.MockDataItem{Key: item1.Key, Version: 10, Name: "modified"}
		updated, err := store.Upsert(sharedtest.MockData, item1.Key, item1a.ToItemDescriptor())
		require.NoError(t, err)
		assert.False(t, updated)

		result, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, item1.ToItemDescriptor(), result)
	})

	t.Run("older version does not update item", func(t *testing.T) {
		store := makeInMemoryStore()
		item1 := sharedtest.MockDataItem{Key: "feature", Version: 10}
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1)))

		item1a := sharedtest.MockDataItem{Key: item1.Key, Version: 9, Name: "modified"}
		updated, err := store.Upsert(sharedtest.MockData, item1.Key, item1a.ToItemDescriptor())
		require.NoError(t, err)
		assert.False(t, updated)

		result, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, item1.ToItemDescriptor(), result)
	})

	t.Run("new item is inserted", func(t *testing.T) {
		store := makeInMemoryStore()
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet()))

		item1 := sharedtest.MockDataItem{Key: "feature", Version: 1}
		updated, err := store.Upsert(sharedtest.MockData, item1.Key, item1.ToItemDescriptor())
		require.NoError(t, err)
		assert.True(t, updated)

		result, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, item1.ToItemDescriptor(), result)
	})

	t.Run("insert into kind that was not in init data", func(t *testing.T) {
		store := makeInMemoryStore()
		require.NoError(t, store.Init(nil))

		item1 := sharedtest.MockDataItem{Key: "feature", Version: 1}
		updated, err := store.Upsert(sharedtest.MockData, item1.Key, item1.ToItemDescriptor())
		require.NoError(t, err)
		assert.True(t, updated)

		result, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, item1.ToItemDescriptor(), result)
	})

	t.Run("deleted item placeholder is stored and queryable", func(t *testing.T) {
		store := makeInMemoryStore()
		item1 := sharedtest.MockDataItem{Key: "feature", Version: 10}
		require.NoError(t, store.Init(sharedtest.MakeMockDataSet(item1)))

		tombstone := ldstoretypes.ItemDescriptor{Version: 11, Item: nil}
		updated, err := store.Upsert(sharedtest.MockData, item1.Key, tombstone)
		require.NoError(t, err)
		assert.True(t, updated)

		result, err := store.Get(sharedtest.MockData, item1.Key)
		require.NoError(t, err)
		assert.Equal(t, tombstone, result)

		// an older update must not resurrect the item
		updated, err = store.Upsert(sharedtest.MockData, item1.Key, item1.ToItemDescriptor())
		require.NoError(t, err)
		assert.False(t, updated)
	})
}

func TestInMemoryDataStoreStatusMonitoringIsNotEnabled(t *testing.T) {
	store := makeInMemoryStore()
	assert.False(t, store.IsStatusMonitoringEnabled())
}

func TestInMemoryDataStoreCloseIsNoOp(t *testing.T) {
	store := makeInMemoryStore()
	assert.NoError(t, store.Close())
}
