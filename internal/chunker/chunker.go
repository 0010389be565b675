// Package chunker renders parsed devices into retrievable text chunks,
// one per register. Chunk text carries everything a search result
// needs: device, vendor, peripheral, register, absolute address and
// the field list.
package chunker

import (
	"fmt"
	"strings"

	"github.com/regsift/regsift/internal/core/domain"
	"github.com/regsift/regsift/internal/logger"
)

// Build renders one chunk per register in deterministic order
// (peripherals by name, registers by offset). Registers whose
// (device, peripheral, register) triple repeats within the device keep
// the first occurrence; later duplicates are dropped with a warning.
func Build(dev domain.Device, vendor, sourceFile string) []domain.Chunk {
	if vendor == "" {
		vendor = dev.Vendor
	}

	seen := make(map[string]struct{})
	chunks := make([]domain.Chunk, 0, registerCount(dev))

	for _, p := range dev.Peripherals {
		for _, r := range p.Registers {
			id := domain.ChunkID(dev.Name, p.Name, r.Name)
			if _, dup := seen[id]; dup {
				logger.Warn("duplicate register %s, keeping first occurrence", id)
				continue
			}
			seen[id] = struct{}{}

			chunks = append(chunks, domain.Chunk{
				ID:   id,
				Text: renderRegister(dev, vendor, p, r),
				Metadata: domain.ChunkMetadata{
					Vendor:     vendor,
					Device:     dev.Name,
					Peripheral: p.Name,
					Register:   r.Name,
					Address:    p.AbsoluteAddress(r),
					SourceFile: sourceFile,
				},
			})
		}
	}
	return chunks
}

func registerCount(dev domain.Device) int {
	n := 0
	for _, p := range dev.Peripherals {
		n += len(p.Registers)
	}
	return n
}

func renderRegister(dev domain.Device, vendor string, p domain.Peripheral, r domain.Register) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Device: %s", dev.Name)
	if vendor != "" {
		fmt.Fprintf(&b, " (%s)", vendor)
	}
	if dev.Series != "" {
		fmt.Fprintf(&b, ", series %s", dev.Series)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "Peripheral: %s", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, " - %s", p.Description)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "Register: %s", r.Name)
	if r.Description != "" {
		fmt.Fprintf(&b, " - %s", r.Description)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "Address: 0x%08X\n", p.AbsoluteAddress(r))
	fmt.Fprintf(&b, "Size: %d bits", r.Size)
	if r.Access != "" {
		fmt.Fprintf(&b, ", Access: %s", r.Access)
	}
	if r.ResetValue != nil {
		fmt.Fprintf(&b, ", Reset: 0x%X", *r.ResetValue)
	}
	b.WriteByte('\n')

	if len(r.Fields) > 0 {
		parts := make([]string, 0, len(r.Fields))
		for _, f := range r.Fields {
			parts = append(parts, renderField(f))
		}
		fmt.Fprintf(&b, "Fields: %s\n", strings.Join(parts, ", "))
	}
	return b.String()
}

func renderField(f domain.Field) string {
	s := f.Name + f.BitRange()
	if f.Access != "" {
		s += " (" + f.Access + ")"
	}
	if f.Description != "" {
		s += " - " + f.Description
	}
	if len(f.Enums) > 0 {
		vals := make([]string, 0, len(f.Enums))
		for _, e := range f.Enums {
			vals = append(vals, e.Name)
		}
		s += " [values: " + strings.Join(vals, "/") + "]"
	}
	return s
}
