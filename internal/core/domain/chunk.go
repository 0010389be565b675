package domain

import (
	"errors"
	"fmt"
)

// Chunk is one retrievable unit of text: the rendered description of
// exactly one register, enriched with its ancestor context so the text is
// semantically standalone. Text and metadata are immutable after
// construction.
type Chunk struct {
	// ID uniquely identifies the chunk within an indexing run:
	// "device/peripheral/register". Derived deterministically from the
	// metadata so re-indexing the same content yields the same ID.
	ID string

	// Text is the searchable rendering of the register.
	Text string

	// Metadata is the structured record carried alongside the text.
	Metadata ChunkMetadata

	// Embedding is the vector representation; populated by the
	// ingestion pipeline, empty until then.
	Embedding []float32
}

// ChunkMetadata is the structured payload stored with every chunk.
type ChunkMetadata struct {
	Vendor     string `json:"vendor"`
	Device     string `json:"device"`
	Peripheral string `json:"peripheral"`
	Register   string `json:"register"`

	// Address is the absolute register address.
	Address uint64 `json:"address"`

	// SourceFile is the description file this chunk came from.
	SourceFile string `json:"source_file"`
}

// ChunkID derives the deterministic chunk identifier for a register.
func ChunkID(device, peripheral, register string) string {
	return device + "/" + peripheral + "/" + register
}

// Triple returns the identifying (device, peripheral, register) key.
func (m ChunkMetadata) Triple() string {
	return ChunkID(m.Device, m.Peripheral, m.Register)
}

// Validate reports the first violated chunk invariant, if any:
// non-empty text and identifying metadata fields.
func (c Chunk) Validate() error {
	switch {
	case c.ID == "":
		return errors.New("chunk id is empty")
	case c.Text == "":
		return fmt.Errorf("chunk %s: text is empty", c.ID)
	case c.Metadata.Vendor == "":
		return fmt.Errorf("chunk %s: vendor is empty", c.ID)
	case c.Metadata.Device == "":
		return fmt.Errorf("chunk %s: device is empty", c.ID)
	case c.Metadata.Peripheral == "":
		return fmt.Errorf("chunk %s: peripheral is empty", c.ID)
	case c.Metadata.Register == "":
		return fmt.Errorf("chunk %s: register is empty", c.ID)
	case c.Metadata.SourceFile == "":
		return fmt.Errorf("chunk %s: source file is empty", c.ID)
	}
	return nil
}
