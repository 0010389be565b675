package domain

import "fmt"

// Device is the parsed root of one hardware description file: an ordered
// sequence of peripherals, each holding registers and bit fields.
// The tree is built once by the parser and never mutated afterwards;
// everything downstream treats it as read-only.
type Device struct {
	// Name is the device identifier, e.g. "STM32F407".
	Name string

	// Vendor is the chip vendor, derived from the file when present and
	// from the directory layout otherwise.
	Vendor string

	// Series is the optional device family, e.g. "STM32F4".
	Series string

	// Version is the optional description-file version string.
	Version string

	// Peripherals sorted by name.
	Peripherals []Peripheral
}

// Peripheral groups the registers sharing one base address.
type Peripheral struct {
	// Name is the peripheral instance name, e.g. "GPIOA".
	Name string

	// Description is optional human-readable text.
	Description string

	// GroupName is the optional peripheral family, e.g. "GPIO".
	GroupName string

	// BaseAddress is the absolute bus address of the peripheral.
	BaseAddress uint64

	// Registers sorted by offset, then name.
	Registers []Register
}

// Register is one addressable register within a peripheral.
type Register struct {
	// Name is the register mnemonic, e.g. "IDR".
	Name string

	// Description is optional human-readable text.
	Description string

	// Offset is the byte offset from the peripheral base address.
	Offset uint64

	// Size is the register width in bits (8, 16 or 32).
	Size int

	// Access is the optional access mode ("read-only", "read-write", ...).
	Access string

	// ResetValue is the optional power-on value.
	ResetValue *uint64

	// Fields sorted by bit offset.
	Fields []Field
}

// Field is one bit field within a register.
type Field struct {
	// Name is the field mnemonic, e.g. "IDR0".
	Name string

	// Description is optional human-readable text.
	Description string

	// BitOffset is the position of the least significant bit.
	BitOffset int

	// BitWidth is the number of bits; zero when the vendor omitted it.
	BitWidth int

	// Access is the optional access mode, overriding the register's.
	Access string

	// Enums are the optional named values for this field.
	Enums []EnumeratedValue
}

// EnumeratedValue names one legal value of a field.
type EnumeratedValue struct {
	Name        string
	Value       string
	Description string
}

// AbsoluteAddress returns the bus address of a register within this
// peripheral: base address plus register offset.
func (p Peripheral) AbsoluteAddress(r Register) uint64 {
	return p.BaseAddress + r.Offset
}

// BitRange renders the field position in the CMSIS convention,
// "[lsb:msb]", e.g. "[0:0]" for a single bit at position zero.
// Fields with an unknown width collapse to their offset bit.
func (f Field) BitRange() string {
	msb := f.BitOffset + f.BitWidth - 1
	if msb < f.BitOffset {
		msb = f.BitOffset
	}
	return fmt.Sprintf("[%d:%d]", f.BitOffset, msb)
}
