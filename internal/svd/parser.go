package svd

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/regsift/regsift/internal/core/domain"
)

const defaultRegisterSize = 32

type xmlDevice struct {
	Vendor      string          `xml:"vendor"`
	Name        string          `xml:"name"`
	Series      string          `xml:"series"`
	Version     string          `xml:"version"`
	Size        string          `xml:"size"`
	Peripherals []xmlPeripheral `xml:"peripherals>peripheral"`
}

type xmlPeripheral struct {
	DerivedFrom string        `xml:"derivedFrom,attr"`
	Name        string        `xml:"name"`
	Description string        `xml:"description"`
	GroupName   string        `xml:"groupName"`
	BaseAddress string        `xml:"baseAddress"`
	Registers   []xmlRegister `xml:"registers>register"`
	Clusters    []xmlCluster  `xml:"registers>cluster"`
}

type xmlCluster struct {
	Name          string        `xml:"name"`
	AddressOffset string        `xml:"addressOffset"`
	Registers     []xmlRegister `xml:"register"`
	Clusters      []xmlCluster  `xml:"cluster"`
}

type xmlRegister struct {
	Name          string     `xml:"name"`
	Description   string     `xml:"description"`
	AddressOffset string     `xml:"addressOffset"`
	Size          string     `xml:"size"`
	Access        string     `xml:"access"`
	ResetValue    string     `xml:"resetValue"`
	Dim           string     `xml:"dim"`
	DimIncrement  string     `xml:"dimIncrement"`
	DimIndex      string     `xml:"dimIndex"`
	Fields        []xmlField `xml:"fields>field"`
}

type xmlField struct {
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
	BitOffset   string   `xml:"bitOffset"`
	BitWidth    string   `xml:"bitWidth"`
	Lsb         string   `xml:"lsb"`
	Msb         string   `xml:"msb"`
	BitRange    string   `xml:"bitRange"`
	Access      string   `xml:"access"`
	Enums       []xmlEnu `xml:"enumeratedValues>enumeratedValue"`
}

type xmlEnu struct {
	Name        string `xml:"name"`
	Value       string `xml:"value"`
	Description string `xml:"description"`
}

// ParseFile parses the SVD file at path. Errors are wrapped in a
// *domain.ParseError carrying the path.
func ParseFile(path string) ([]domain.Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.NewParseError(path, err)
	}
	defer f.Close()

	devices, err := Parse(f)
	if err != nil {
		return nil, domain.NewParseError(path, err)
	}
	return devices, nil
}

// Parse parses SVD XML from r. A file usually holds one device but may
// describe several variants; every <device> element found becomes one
// domain device. Peripherals without registers are dropped, derivedFrom
// peripherals inherit from their base, and fields named "reserved" are
// skipped.
func Parse(r io.Reader) ([]domain.Device, error) {
	dec := xml.NewDecoder(r)
	var devices []domain.Device

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode svd xml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "device" {
			continue
		}

		var raw xmlDevice
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return nil, fmt.Errorf("decode device element: %w", err)
		}
		dev, err := buildDevice(raw)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no device element found")
	}
	return devices, nil
}

func buildDevice(raw xmlDevice) (domain.Device, error) {
	if strings.TrimSpace(raw.Name) == "" {
		return domain.Device{}, fmt.Errorf("device has no name")
	}

	defaultSize := defaultRegisterSize
	if n, err := parseNumber(raw.Size); err == nil && n > 0 {
		defaultSize = int(n)
	}

	resolveDerived(raw.Peripherals)

	dev := domain.Device{
		Name:    strings.TrimSpace(raw.Name),
		Vendor:  strings.TrimSpace(raw.Vendor),
		Series:  strings.TrimSpace(raw.Series),
		Version: strings.TrimSpace(raw.Version),
	}

	for _, xp := range raw.Peripherals {
		regs := collectRegisters(xp, defaultSize)
		if len(regs) == 0 {
			continue
		}
		base, err := parseNumber(xp.BaseAddress)
		if err != nil {
			return domain.Device{}, fmt.Errorf("peripheral %s: bad baseAddress %q: %w", xp.Name, xp.BaseAddress, err)
		}
		dev.Peripherals = append(dev.Peripherals, domain.Peripheral{
			Name:        strings.TrimSpace(xp.Name),
			Description: cleanText(xp.Description),
			GroupName:   strings.TrimSpace(xp.GroupName),
			BaseAddress: base,
			Registers:   regs,
		})
	}

	sort.Slice(dev.Peripherals, func(i, j int) bool {
		return dev.Peripherals[i].Name < dev.Peripherals[j].Name
	})
	return dev, nil
}

// resolveDerived copies registers, description and group from the base
// peripheral into peripherals that declare derivedFrom and do not
// override the section themselves.
func resolveDerived(peripherals []xmlPeripheral) {
	byName := make(map[string]*xmlPeripheral, len(peripherals))
	for i := range peripherals {
		byName[peripherals[i].Name] = &peripherals[i]
	}
	for i := range peripherals {
		p := &peripherals[i]
		if p.DerivedFrom == "" {
			continue
		}
		base, ok := byName[p.DerivedFrom]
		if !ok || base == p {
			continue
		}
		if len(p.Registers) == 0 && len(p.Clusters) == 0 {
			p.Registers = base.Registers
			p.Clusters = base.Clusters
		}
		if p.Description == "" {
			p.Description = base.Description
		}
		if p.GroupName == "" {
			p.GroupName = base.GroupName
		}
	}
}

func collectRegisters(p xmlPeripheral, defaultSize int) []domain.Register {
	var out []domain.Register
	out = appendRegisters(out, p.Registers, "", 0, defaultSize)
	for _, c := range p.Clusters {
		out = appendCluster(out, c, "", 0, defaultSize)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func appendCluster(out []domain.Register, c xmlCluster, prefix string, baseOffset uint64, defaultSize int) []domain.Register {
	off, err := parseNumber(c.AddressOffset)
	if err != nil {
		off = 0
	}
	name := strings.TrimSpace(c.Name)
	if prefix != "" {
		name = prefix + "_" + name
	}
	out = appendRegisters(out, c.Registers, name, baseOffset+off, defaultSize)
	for _, sub := range c.Clusters {
		out = appendCluster(out, sub, name, baseOffset+off, defaultSize)
	}
	return out
}

func appendRegisters(out []domain.Register, regs []xmlRegister, prefix string, baseOffset uint64, defaultSize int) []domain.Register {
	for _, xr := range regs {
		for _, inst := range expandDim(xr) {
			reg, ok := buildRegister(inst, prefix, baseOffset, defaultSize)
			if ok {
				out = append(out, reg)
			}
		}
	}
	return out
}

// expandDim expands a register array declaration into its concrete
// instances. "%s" in the name is substituted with the dim index.
func expandDim(xr xmlRegister) []xmlRegister {
	dim, err := parseNumber(xr.Dim)
	if err != nil || dim == 0 {
		return []xmlRegister{xr}
	}
	inc, err := parseNumber(xr.DimIncrement)
	if err != nil {
		return []xmlRegister{xr}
	}
	indices := dimIndices(xr.DimIndex, int(dim))

	offset, err := parseNumber(xr.AddressOffset)
	if err != nil {
		return []xmlRegister{xr}
	}

	out := make([]xmlRegister, 0, dim)
	for i := 0; i < int(dim); i++ {
		inst := xr
		inst.Dim, inst.DimIncrement, inst.DimIndex = "", "", ""
		inst.Name = substituteIndex(xr.Name, indices[i])
		inst.AddressOffset = fmt.Sprintf("0x%X", offset+uint64(i)*inc)
		out = append(out, inst)
	}
	return out
}

func dimIndices(spec string, dim int) []string {
	out := make([]string, 0, dim)
	spec = strings.TrimSpace(spec)
	if spec != "" {
		if lo, hi, ok := strings.Cut(spec, "-"); ok && !strings.Contains(spec, ",") {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 == nil && err2 == nil && end >= start {
				for i := start; i <= end && len(out) < dim; i++ {
					out = append(out, strconv.Itoa(i))
				}
			}
		} else {
			for _, part := range strings.Split(spec, ",") {
				out = append(out, strings.TrimSpace(part))
			}
		}
	}
	for len(out) < dim {
		out = append(out, strconv.Itoa(len(out)))
	}
	return out[:dim]
}

func substituteIndex(name, index string) string {
	if strings.Contains(name, "%s") {
		return strings.ReplaceAll(name, "%s", index)
	}
	return name + index
}

func buildRegister(xr xmlRegister, prefix string, baseOffset uint64, defaultSize int) (domain.Register, bool) {
	name := strings.TrimSpace(xr.Name)
	if name == "" {
		return domain.Register{}, false
	}
	if prefix != "" {
		name = prefix + "_" + name
	}
	offset, err := parseNumber(xr.AddressOffset)
	if err != nil {
		return domain.Register{}, false
	}

	size := defaultSize
	if n, err := parseNumber(xr.Size); err == nil && n > 0 {
		size = int(n)
	}

	reg := domain.Register{
		Name:        name,
		Description: cleanText(xr.Description),
		Offset:      baseOffset + offset,
		Size:        size,
		Access:      strings.TrimSpace(xr.Access),
	}
	if rv, err := parseNumber(xr.ResetValue); err == nil && strings.TrimSpace(xr.ResetValue) != "" {
		v := rv
		reg.ResetValue = &v
	}

	for _, xf := range xr.Fields {
		f, ok := buildField(xf)
		if ok {
			reg.Fields = append(reg.Fields, f)
		}
	}
	sort.Slice(reg.Fields, func(i, j int) bool {
		return reg.Fields[i].BitOffset < reg.Fields[j].BitOffset
	})
	return reg, true
}

func buildField(xf xmlField) (domain.Field, bool) {
	name := strings.TrimSpace(xf.Name)
	if name == "" || strings.EqualFold(name, "reserved") {
		return domain.Field{}, false
	}

	offset, width, ok := fieldBits(xf)
	if !ok {
		return domain.Field{}, false
	}

	f := domain.Field{
		Name:        name,
		Description: cleanText(xf.Description),
		BitOffset:   offset,
		BitWidth:    width,
		Access:      strings.TrimSpace(xf.Access),
	}
	for _, xe := range xf.Enums {
		ev := domain.EnumeratedValue{
			Name:        strings.TrimSpace(xe.Name),
			Value:       strings.TrimSpace(xe.Value),
			Description: cleanText(xe.Description),
		}
		if ev.Name != "" {
			f.Enums = append(f.Enums, ev)
		}
	}
	return f, true
}

// fieldBits resolves the three SVD bit position styles: bitOffset plus
// bitWidth, lsb plus msb, or a bitRange like "[7:0]".
func fieldBits(xf xmlField) (offset, width int, ok bool) {
	if xf.BitOffset != "" {
		o, err := parseNumber(xf.BitOffset)
		if err != nil {
			return 0, 0, false
		}
		w := uint64(1)
		if xf.BitWidth != "" {
			if n, err := parseNumber(xf.BitWidth); err == nil && n > 0 {
				w = n
			}
		}
		return int(o), int(w), true
	}
	if xf.Lsb != "" && xf.Msb != "" {
		lsb, err1 := parseNumber(xf.Lsb)
		msb, err2 := parseNumber(xf.Msb)
		if err1 != nil || err2 != nil || msb < lsb {
			return 0, 0, false
		}
		return int(lsb), int(msb-lsb) + 1, true
	}
	if br := strings.TrimSpace(xf.BitRange); br != "" {
		br = strings.TrimPrefix(br, "[")
		br = strings.TrimSuffix(br, "]")
		hi, lo, found := strings.Cut(br, ":")
		if !found {
			return 0, 0, false
		}
		msb, err1 := parseNumber(strings.TrimSpace(hi))
		lsb, err2 := parseNumber(strings.TrimSpace(lo))
		if err1 != nil || err2 != nil || msb < lsb {
			return 0, 0, false
		}
		return int(lsb), int(msb-lsb) + 1, true
	}
	return 0, 0, false
}

// parseNumber parses an SVD numeric literal. Accepted forms are
// hexadecimal (0x1F), decimal (31), binary with a hash (#11111) and
// binary with a 0b prefix. Binary don't-care bits written as x count
// as zero.
func parseNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "0x"):
		return strconv.ParseUint(lower[2:], 16, 64)
	case strings.HasPrefix(lower, "#"):
		return parseBinary(lower[1:])
	case strings.HasPrefix(lower, "0b"):
		return parseBinary(lower[2:])
	default:
		return strconv.ParseUint(lower, 10, 64)
	}
}

func parseBinary(s string) (uint64, error) {
	s = strings.ReplaceAll(s, "x", "0")
	if s == "" {
		return 0, fmt.Errorf("empty binary number")
	}
	return strconv.ParseUint(s, 2, 64)
}

// cleanText collapses the multi-line, multi-space descriptions common
// in SVD files into single-line text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
