// Package svd models CMSIS-SVD device descriptions.
//
// The tree is owned top down: a Device owns its Peripherals, which own
// their registers and clusters, which own fields. Cross references such
// as DerivedFrom are names, never pointers. Optional strings use the
// empty string for absent; optional numbers are pointers.
package svd

import "slices"

type Device struct {
	Name                    string
	Vendor                  string
	VendorID                string
	Series                  string
	Version                 string
	Description             string
	LicenseText             string
	SchemaVersion           string
	HeaderSystemFilename    string
	HeaderDefinitionsPrefix string
	CPU                     *CPU
	AddressUnitBits         *uint32
	Width                   *uint32
	RegisterProperties
	Peripherals []*Peripheral
}

type CPU struct {
	Name                string
	Revision            string
	Endian              string
	MPUPresent          *bool
	FPUPresent          *bool
	FPUDP               *bool
	ICachePresent       *bool
	DCachePresent       *bool
	VTORPresent         *bool
	NVICPrioBits        *uint32
	VendorSystickConfig *bool
	DeviceNumInterrupts *uint32
}

// RegisterProperties are inherited down the tree when unset.
type RegisterProperties struct {
	Size       *uint32
	Access     Access
	Protection string
	ResetValue *uint64
	ResetMask  *uint64
}

// DimElement turns a register, cluster, field or peripheral into an array.
type DimElement struct {
	Dim          uint32
	DimIncrement uint32
	DimIndex     []string
	DimName      string
}

type Peripheral struct {
	Name                string
	Version             string
	DerivedFrom         string
	Description         string
	DisplayName         string
	AlternatePeripheral string
	GroupName           string
	PrependToName       string
	AppendToName        string
	HeaderStructName    string
	BaseAddress         uint64
	Dim                 *DimElement
	RegisterProperties
	AddressBlocks []AddressBlock
	Interrupts    []Interrupt
	Registers     []RegisterCluster
}

type AddressBlock struct {
	Offset     uint64
	Size       uint64
	Usage      string
	Protection string
}

type Interrupt struct {
	Name        string
	Description string
	Value       uint32
}

// RegisterCluster is either a *Register or a *Cluster.
type RegisterCluster interface {
	Ident() string
	SetIdent(string)
	Offset() uint64
	SetOffset(uint64)
	Array() *DimElement
	CloneRC() RegisterCluster
}

type Cluster struct {
	Name             string
	Description      string
	DerivedFrom      string
	AlternateCluster string
	HeaderStructName string
	AddressOffset    uint64
	Dim              *DimElement
	RegisterProperties
	Children []RegisterCluster
}

type Register struct {
	Name              string
	DisplayName       string
	Description       string
	DerivedFrom       string
	AlternateGroup    string
	AlternateRegister string
	DataType          string
	AddressOffset     uint64
	Dim               *DimElement
	RegisterProperties
	ModifiedWriteValues ModifiedWriteValues
	WriteConstraint     *WriteConstraint
	ReadAction          ReadAction
	Fields              []*Field
}

type Field struct {
	Name                string
	Description         string
	DerivedFrom         string
	BitOffset           uint32
	BitWidth            uint32
	Access              Access
	ModifiedWriteValues ModifiedWriteValues
	WriteConstraint     *WriteConstraint
	ReadAction          ReadAction
	EnumeratedValues    []*EnumeratedValues
	Dim                 *DimElement
}

type EnumeratedValues struct {
	Name           string
	HeaderEnumName string
	DerivedFrom    string
	Usage          Usage
	Values         []*EnumeratedValue
}

// EnumeratedValue has either a Value or IsDefault set.
type EnumeratedValue struct {
	Name        string
	Description string
	Value       *uint64
	IsDefault   bool
}

func (r *Register) Ident() string            { return r.Name }
func (r *Register) SetIdent(n string)        { r.Name = n }
func (r *Register) Offset() uint64           { return r.AddressOffset }
func (r *Register) SetOffset(o uint64)       { r.AddressOffset = o }
func (r *Register) Array() *DimElement       { return r.Dim }
func (r *Register) CloneRC() RegisterCluster { return r.Clone() }

func (c *Cluster) Ident() string            { return c.Name }
func (c *Cluster) SetIdent(n string)        { c.Name = n }
func (c *Cluster) Offset() uint64           { return c.AddressOffset }
func (c *Cluster) SetOffset(o uint64)       { c.AddressOffset = o }
func (c *Cluster) Array() *DimElement       { return c.Dim }
func (c *Cluster) CloneRC() RegisterCluster { return c.Clone() }

// Indices returns the per-instance labels of the array.
func (d *DimElement) Indices() []string {
	if len(d.DimIndex) != 0 {
		return d.DimIndex
	}
	res := make([]string, d.Dim)
	for i := range res {
		res[i] = uitoa(uint64(i))
	}
	return res
}

func (d *DimElement) Clone() *DimElement {
	if d == nil {
		return nil
	}
	res := *d
	res.DimIndex = slices.Clone(d.DimIndex)
	return &res
}

func (p *Peripheral) GetInterrupt(name string) *Interrupt {
	for i := range p.Interrupts {
		if p.Interrupts[i].Name == name {
			return &p.Interrupts[i]
		}
	}
	return nil
}

func (d *Device) GetPeripheral(name string) *Peripheral {
	for _, p := range d.Peripherals {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (r *Register) GetField(name string) *Field {
	for _, f := range r.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Bitmask is the union of the bits covered by the fields of r.
func (r *Register) Bitmask() uint64 {
	var mask uint64
	for _, f := range r.Fields {
		mask |= f.Bitmask()
	}
	return mask
}

// Bitmask covers every instance of a field array.
func (f *Field) Bitmask() uint64 {
	if f.Dim == nil {
		return widthMask(f.BitWidth) << f.BitOffset
	}
	var mask uint64
	for i := range f.Dim.Dim {
		mask |= widthMask(f.BitWidth) << (f.BitOffset + i*f.Dim.DimIncrement)
	}
	return mask
}

func widthMask(w uint32) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// Registers returns every register under rcs, depth first.
func Registers(rcs []RegisterCluster) []*Register {
	var res []*Register
	for _, rc := range rcs {
		switch x := rc.(type) {
		case *Register:
			res = append(res, x)
		case *Cluster:
			res = append(res, Registers(x.Children)...)
		}
	}
	return res
}

// Fields returns every field of every register under rcs.
func Fields(rcs []RegisterCluster) []*Field {
	var res []*Field
	for _, r := range Registers(rcs) {
		res = append(res, r.Fields...)
	}
	return res
}
