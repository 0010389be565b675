package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeripheralAbsoluteAddress(t *testing.T) {
	p := Peripheral{Name: "GPIOA", BaseAddress: 0x40020000}
	r := Register{Name: "IDR", Offset: 0x10}

	assert.Equal(t, uint64(0x40020010), p.AbsoluteAddress(r))
}

func TestFieldBitRange(t *testing.T) {
	tests := []struct {
		name     string
		field    Field
		expected string
	}{
		{"single bit", Field{BitOffset: 0, BitWidth: 1}, "[0:0]"},
		{"multi bit", Field{BitOffset: 4, BitWidth: 12}, "[4:15]"},
		{"zero width collapses", Field{BitOffset: 7, BitWidth: 0}, "[7:7]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.field.BitRange())
		})
	}
}
