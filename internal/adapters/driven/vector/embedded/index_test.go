package embedded

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/core/ports/driven"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(3)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func record(register string, vector []float32) driven.Record {
	return driven.Record{
		ID:     domain.ChunkID("STM32F407", "GPIOA", register),
		Vector: vector,
		Metadata: domain.ChunkMetadata{
			Vendor:     "STMicro",
			Device:     "STM32F407",
			Peripheral: "GPIOA",
			Register:   register,
			SourceFile: "data/STMicro/f407.svd",
		},
	}
}

func TestSearchReturnsNearestFirst(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []driven.Record{
		record("IDR", []float32{1, 0, 0}),
		record("ODR", []float32{0, 1, 0}),
		record("MODER", []float32{0.9, 0.1, 0}),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, domain.SearchFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "STM32F407/GPIOA/IDR", hits[0].ID)
	assert.Equal(t, "STM32F407/GPIOA/MODER", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "GPIOA", hits[0].Metadata.Peripheral)
}

func TestUpsertReplacesExistingVector(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []driven.Record{record("IDR", []float32{1, 0, 0})}))
	require.NoError(t, idx.Upsert(ctx, []driven.Record{record("IDR", []float32{0, 0, 1})}))

	count, err := idx.CountBySource(ctx, "data/STMicro/f407.svd")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := idx.Search(ctx, []float32{0, 0, 1}, domain.SearchFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "STM32F407/GPIOA/IDR", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 0.01)
}

func TestUpsertValidates(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	bad := record("IDR", []float32{1, 0, 0})
	bad.ID = ""
	assert.Error(t, idx.Upsert(ctx, []driven.Record{bad}))

	short := record("IDR", []float32{1})
	assert.Error(t, idx.Upsert(ctx, []driven.Record{short}))
}

func TestSearchAppliesFilter(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	nordic := driven.Record{
		ID:     domain.ChunkID("NRF52", "UART0", "BAUDRATE"),
		Vector: []float32{1, 0, 0},
		Metadata: domain.ChunkMetadata{
			Vendor:     "Nordic",
			Device:     "NRF52",
			Peripheral: "UART0",
			Register:   "BAUDRATE",
			SourceFile: "data/Nordic/nrf52.svd",
		},
	}
	require.NoError(t, idx.Upsert(ctx, []driven.Record{
		record("IDR", []float32{1, 0, 0}),
		nordic,
	}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, domain.SearchFilter{Vendor: "Nordic"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "NRF52/UART0/BAUDRATE", hits[0].ID)
}

func TestSearchRequiresVector(t *testing.T) {
	idx := newTestIndex(t)

	_, err := idx.Search(context.Background(), nil, domain.SearchFilter{}, 5)
	assert.Error(t, err)
}

func TestDeleteBySource(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []driven.Record{
		record("IDR", []float32{1, 0, 0}),
		record("ODR", []float32{0, 1, 0}),
	}))
	require.NoError(t, idx.DeleteBySource(ctx, "data/STMicro/f407.svd"))

	count, err := idx.CountBySource(ctx, "data/STMicro/f407.svd")
	require.NoError(t, err)
	assert.Zero(t, count)

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, domain.SearchFilter{}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLoadSkipsChunksWithoutEmbeddings(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	chunks := []domain.Chunk{
		{
			ID:        domain.ChunkID("STM32F407", "GPIOA", "IDR"),
			Embedding: []float32{1, 0, 0},
			Metadata: domain.ChunkMetadata{
				Device:     "STM32F407",
				Peripheral: "GPIOA",
				Register:   "IDR",
				SourceFile: "data/STMicro/f407.svd",
			},
		},
		{ID: domain.ChunkID("STM32F407", "GPIOA", "ODR")},
	}
	require.NoError(t, idx.Load(ctx, chunks))

	count, err := idx.CountBySource(ctx, "data/STMicro/f407.svd")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
