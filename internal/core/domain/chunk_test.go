package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validChunk() Chunk {
	return Chunk{
		ID:   ChunkID("STM32F407", "GPIOA", "IDR"),
		Text: "GPIOA input data register",
		Metadata: ChunkMetadata{
			Vendor:     "STMicro",
			Device:     "STM32F407",
			Peripheral: "GPIOA",
			Register:   "IDR",
			Address:    0x40020010,
			SourceFile: "STMicro/STM32F407.svd",
		},
	}
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "STM32F407/GPIOA/IDR", ChunkID("STM32F407", "GPIOA", "IDR"))
}

func TestChunkValidate(t *testing.T) {
	require.NoError(t, validChunk().Validate())

	broken := validChunk()
	broken.Text = ""
	assert.Error(t, broken.Validate())

	broken = validChunk()
	broken.Metadata.Register = ""
	assert.Error(t, broken.Validate())
}

func TestSearchFilterMatches(t *testing.T) {
	m := validChunk().Metadata

	assert.True(t, SearchFilter{}.Matches(m))
	assert.True(t, SearchFilter{Vendor: "STMicro"}.Matches(m))
	assert.True(t, SearchFilter{Vendor: "STMicro", Device: "STM32F407"}.Matches(m))
	assert.False(t, SearchFilter{Vendor: "Nordic"}.Matches(m))
	assert.False(t, SearchFilter{Device: "STM32F103"}.Matches(m))
}
