package patch

import (
	"fmt"
	"strings"

	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/svd"
)

// applyIfSet copies *v onto *dst when the patch carries a value.
func applyIfSet[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// applyPtrIfSet is applyIfSet for optional target fields.
func applyPtrIfSet[T any](dst **T, v *T) {
	if v != nil {
		x := *v
		*dst = &x
	}
}

type regPropsPatch struct {
	Size       *uint32
	Access     *svd.Access
	Protection *string
	ResetValue *uint64
	ResetMask  *uint64
}

func (p regPropsPatch) apply(rp *svd.RegisterProperties) {
	applyPtrIfSet(&rp.Size, p.Size)
	applyIfSet(&rp.Access, p.Access)
	applyIfSet(&rp.Protection, p.Protection)
	applyPtrIfSet(&rp.ResetValue, p.ResetValue)
	applyPtrIfSet(&rp.ResetMask, p.ResetMask)
}

type dimPatch struct {
	Dim          *uint32
	DimIncrement *uint32
	DimIndex     []string
	DimName      *string
}

func (p *dimPatch) apply(dst **svd.DimElement) {
	if p == nil {
		return
	}
	if *dst == nil {
		*dst = &svd.DimElement{}
	}
	d := *dst
	applyIfSet(&d.Dim, p.Dim)
	applyIfSet(&d.DimIncrement, p.DimIncrement)
	applyIfSet(&d.DimName, p.DimName)
	if p.DimIndex != nil {
		d.DimIndex = p.DimIndex
		if p.Dim == nil {
			d.Dim = uint32(len(p.DimIndex))
		}
	}
}

type fieldPatch struct {
	Name                *string
	Description         *string
	DerivedFrom         *string
	BitOffset           *uint32
	BitWidth            *uint32
	Access              *svd.Access
	ModifiedWriteValues *svd.ModifiedWriteValues
	ReadAction          *svd.ReadAction
	WriteConstraint     **svd.WriteConstraint
	Dim                 *dimPatch
}

func makeField(node *ir.Node, env eval.Env) (*fieldPatch, error) {
	r := newReader(node, env)
	p := &fieldPatch{
		Name:                r.str("name"),
		Description:         r.desc("description"),
		DerivedFrom:         r.str("derivedFrom"),
		BitOffset:           r.u32("bitOffset"),
		BitWidth:            r.u32("bitWidth"),
		Access:              r.access("access"),
		ModifiedWriteValues: r.mwv("modifiedWriteValues"),
		ReadAction:          r.readAction("readAction"),
		WriteConstraint:     r.writeConstraint("writeConstraint"),
		Dim:                 r.dim(),
	}
	lsb, msb := r.u32("lsb"), r.u32("msb")
	if lsb != nil && msb != nil {
		w := *msb - *lsb + 1
		p.BitOffset, p.BitWidth = lsb, &w
	}
	if br := r.str("bitRange"); br != nil {
		hi, lo, ok := strings.Cut(strings.Trim(*br, "[]"), ":")
		hv, herr := ir.ParseInt(hi)
		lv, lerr := ir.ParseInt(lo)
		if !ok || herr != nil || lerr != nil || hv < lv {
			r.fail(fmt.Errorf("%w: bad bitRange %q", ir.ErrDocumentType, *br))
		} else {
			off, w := uint32(lv), uint32(hv-lv+1)
			p.BitOffset, p.BitWidth = &off, &w
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (p *fieldPatch) apply(f *svd.Field) {
	applyIfSet(&f.Name, p.Name)
	applyIfSet(&f.Description, p.Description)
	applyIfSet(&f.DerivedFrom, p.DerivedFrom)
	applyIfSet(&f.BitOffset, p.BitOffset)
	applyIfSet(&f.BitWidth, p.BitWidth)
	applyIfSet(&f.Access, p.Access)
	applyIfSet(&f.ModifiedWriteValues, p.ModifiedWriteValues)
	applyIfSet(&f.ReadAction, p.ReadAction)
	applyIfSet(&f.WriteConstraint, p.WriteConstraint)
	p.Dim.apply(&f.Dim)
}

// build creates a new field; bit position is required.
func (p *fieldPatch) build(name string) (*svd.Field, error) {
	if p.BitOffset == nil || p.BitWidth == nil {
		return nil, fmt.Errorf("field %s: bitOffset and bitWidth (or bitRange) required", name)
	}
	f := &svd.Field{Name: name}
	p.apply(f)
	return f, nil
}

type registerPatch struct {
	Name                *string
	DisplayName         *string
	Description         *string
	DerivedFrom         *string
	AlternateGroup      *string
	AlternateRegister   *string
	DataType            *string
	AddressOffset       *uint64
	Props               regPropsPatch
	ModifiedWriteValues *svd.ModifiedWriteValues
	ReadAction          *svd.ReadAction
	WriteConstraint     **svd.WriteConstraint
	Dim                 *dimPatch
	Fields              *ir.Node
}

func makeRegister(node *ir.Node, env eval.Env) (*registerPatch, error) {
	r := newReader(node, env)
	p := &registerPatch{
		Name:                r.str("name"),
		DisplayName:         r.str("displayName"),
		Description:         r.desc("description"),
		DerivedFrom:         r.str("derivedFrom"),
		AlternateGroup:      r.str("alternateGroup"),
		AlternateRegister:   r.str("alternateRegister"),
		DataType:            r.str("dataType"),
		AddressOffset:       r.u64("addressOffset"),
		Props:               r.regProps(),
		ModifiedWriteValues: r.mwv("modifiedWriteValues"),
		ReadAction:          r.readAction("readAction"),
		WriteConstraint:     r.writeConstraint("writeConstraint"),
		Dim:                 r.dim(),
		Fields:              ir.Get(node, "fields"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (p *registerPatch) apply(reg *svd.Register, env eval.Env) error {
	applyIfSet(&reg.Name, p.Name)
	applyIfSet(&reg.DisplayName, p.DisplayName)
	applyIfSet(&reg.Description, p.Description)
	applyIfSet(&reg.DerivedFrom, p.DerivedFrom)
	applyIfSet(&reg.AlternateGroup, p.AlternateGroup)
	applyIfSet(&reg.AlternateRegister, p.AlternateRegister)
	applyIfSet(&reg.DataType, p.DataType)
	applyIfSet(&reg.AddressOffset, p.AddressOffset)
	p.Props.apply(&reg.RegisterProperties)
	applyIfSet(&reg.ModifiedWriteValues, p.ModifiedWriteValues)
	applyIfSet(&reg.ReadAction, p.ReadAction)
	applyIfSet(&reg.WriteConstraint, p.WriteConstraint)
	p.Dim.apply(&reg.Dim)
	if p.Fields == nil {
		return nil
	}
	return ir.Entries(p.Fields, func(fname string, fnode *ir.Node) error {
		fp, err := makeField(fnode, env)
		if err != nil {
			return inField(fname, err)
		}
		if f := reg.GetField(fname); f != nil {
			fp.apply(f)
			return nil
		}
		f, err := fp.build(fname)
		if err != nil {
			return err
		}
		reg.Fields = append(reg.Fields, f)
		return nil
	})
}

// build creates a new register; the address offset is required.
func (p *registerPatch) build(name string, env eval.Env) (*svd.Register, error) {
	if p.AddressOffset == nil {
		return nil, fmt.Errorf("register %s: addressOffset required", name)
	}
	reg := &svd.Register{Name: name}
	if err := p.apply(reg, env); err != nil {
		return nil, err
	}
	return reg, nil
}

type clusterPatch struct {
	Name             *string
	Description      *string
	DerivedFrom      *string
	AlternateCluster *string
	HeaderStructName *string
	AddressOffset    *uint64
	Props            regPropsPatch
	Dim              *dimPatch
	Registers        *ir.Node
}

func makeCluster(node *ir.Node, env eval.Env) (*clusterPatch, error) {
	r := newReader(node, env)
	p := &clusterPatch{
		Name:             r.str("name"),
		Description:      r.desc("description"),
		DerivedFrom:      r.str("derivedFrom"),
		AlternateCluster: r.str("alternateCluster"),
		HeaderStructName: r.str("headerStructName"),
		AddressOffset:    r.u64("addressOffset"),
		Props:            r.regProps(),
		Dim:              r.dim(),
		Registers:        ir.Get(node, "registers"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (p *clusterPatch) apply(c *svd.Cluster, env eval.Env) error {
	applyIfSet(&c.Name, p.Name)
	applyIfSet(&c.Description, p.Description)
	applyIfSet(&c.DerivedFrom, p.DerivedFrom)
	applyIfSet(&c.AlternateCluster, p.AlternateCluster)
	applyIfSet(&c.HeaderStructName, p.HeaderStructName)
	applyIfSet(&c.AddressOffset, p.AddressOffset)
	p.Props.apply(&c.RegisterProperties)
	p.Dim.apply(&c.Dim)
	return addRegisters(&c.Children, p.Registers, env)
}

func (p *clusterPatch) build(name string, env eval.Env) (*svd.Cluster, error) {
	if p.AddressOffset == nil {
		return nil, fmt.Errorf("cluster %s: addressOffset required", name)
	}
	c := &svd.Cluster{Name: name}
	if err := p.apply(c, env); err != nil {
		return nil, err
	}
	return c, nil
}

// addRegisters merges a `registers:` map of register documents into rcs.
func addRegisters(rcs *[]svd.RegisterCluster, regs *ir.Node, env eval.Env) error {
	if regs == nil {
		return nil
	}
	return ir.Entries(regs, func(rname string, rnode *ir.Node) error {
		rp, err := makeRegister(rnode, env)
		if err != nil {
			return inRegister(rname, err)
		}
		for _, rc := range *rcs {
			if reg, ok := rc.(*svd.Register); ok && reg.Name == rname {
				return inRegister(rname, rp.apply(reg, env))
			}
		}
		reg, err := rp.build(rname, env)
		if err != nil {
			return err
		}
		*rcs = append(*rcs, reg)
		return nil
	})
}

type interruptPatch struct {
	Name        *string
	Description *string
	Value       *uint32
}

func makeInterrupt(node *ir.Node, env eval.Env) (*interruptPatch, error) {
	r := newReader(node, env)
	p := &interruptPatch{
		Name:        r.str("name"),
		Description: r.desc("description"),
		Value:       r.u32("value"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (p *interruptPatch) apply(irq *svd.Interrupt) {
	applyIfSet(&irq.Name, p.Name)
	applyIfSet(&irq.Description, p.Description)
	applyIfSet(&irq.Value, p.Value)
}

type peripheralPatch struct {
	Name                *string
	Version             *string
	DerivedFrom         *string
	Description         *string
	DisplayName         *string
	AlternatePeripheral *string
	GroupName           *string
	PrependToName       *string
	AppendToName        *string
	HeaderStructName    *string
	BaseAddress         *uint64
	Props               regPropsPatch
	Dim                 *dimPatch
	AddressBlocks       []svd.AddressBlock
	Interrupts          *ir.Node
	Registers           *ir.Node
}

func makePeripheral(node *ir.Node, env eval.Env) (*peripheralPatch, error) {
	r := newReader(node, env)
	p := &peripheralPatch{
		Name:                r.str("name"),
		Version:             r.str("version"),
		DerivedFrom:         r.str("derivedFrom"),
		Description:         r.desc("description"),
		DisplayName:         r.str("displayName"),
		AlternatePeripheral: r.str("alternatePeripheral"),
		GroupName:           r.str("groupName"),
		PrependToName:       r.str("prependToName"),
		AppendToName:        r.str("appendToName"),
		HeaderStructName:    r.str("headerStructName"),
		BaseAddress:         r.u64("baseAddress"),
		Props:               r.regProps(),
		Dim:                 r.dim(),
		Interrupts:          ir.Get(node, "interrupts"),
		Registers:           ir.Get(node, "registers"),
	}
	blocks := ir.Get(node, "addressBlocks")
	if ab := ir.Get(node, "addressBlock"); ab != nil {
		blocks = ir.FromSlice([]*ir.Node{ab.Clone()})
	}
	if blocks != nil {
		if blocks.Type != ir.ArrayType {
			r.fail(fmt.Errorf("%w: %s: expected list of address blocks", ir.ErrDocumentType, blocks.Path()))
		}
		for _, b := range blocks.Values {
			br := newReader(b, env)
			ab := svd.AddressBlock{}
			applyIfSet(&ab.Offset, br.u64("offset"))
			applyIfSet(&ab.Size, br.u64("size"))
			applyIfSet(&ab.Usage, br.str("usage"))
			applyIfSet(&ab.Protection, br.str("protection"))
			r.fail(br.err)
			p.AddressBlocks = append(p.AddressBlocks, ab)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (p *peripheralPatch) apply(per *svd.Peripheral, env eval.Env) error {
	applyIfSet(&per.Name, p.Name)
	applyIfSet(&per.Version, p.Version)
	applyIfSet(&per.DerivedFrom, p.DerivedFrom)
	applyIfSet(&per.Description, p.Description)
	applyIfSet(&per.DisplayName, p.DisplayName)
	applyIfSet(&per.AlternatePeripheral, p.AlternatePeripheral)
	applyIfSet(&per.GroupName, p.GroupName)
	applyIfSet(&per.PrependToName, p.PrependToName)
	applyIfSet(&per.AppendToName, p.AppendToName)
	applyIfSet(&per.HeaderStructName, p.HeaderStructName)
	applyIfSet(&per.BaseAddress, p.BaseAddress)
	p.Props.apply(&per.RegisterProperties)
	p.Dim.apply(&per.Dim)
	if p.AddressBlocks != nil {
		per.AddressBlocks = p.AddressBlocks
	}
	err := ir.Entries(p.Interrupts, func(iname string, inode *ir.Node) error {
		ip, err := makeInterrupt(inode, env)
		if err != nil {
			return err
		}
		if irq := per.GetInterrupt(iname); irq != nil {
			ip.apply(irq)
			return nil
		}
		if ip.Value == nil {
			return fmt.Errorf("interrupt %s: value required", iname)
		}
		irq := svd.Interrupt{Name: iname}
		ip.apply(&irq)
		per.Interrupts = append(per.Interrupts, irq)
		return nil
	})
	if err != nil {
		return err
	}
	return addRegisters(&per.Registers, p.Registers, env)
}

func (p *peripheralPatch) build(name string, env eval.Env) (*svd.Peripheral, error) {
	if p.BaseAddress == nil {
		return nil, fmt.Errorf("peripheral %s: baseAddress required", name)
	}
	per := &svd.Peripheral{Name: name}
	if err := p.apply(per, env); err != nil {
		return nil, err
	}
	return per, nil
}

type cpuPatch struct {
	Name                *string
	Revision            *string
	Endian              *string
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

func makeCPU(node *ir.Node, env eval.Env) (*cpuPatch, error) {
	r := newReader(node, env)
	p := &cpuPatch{
		Name:                r.str("name"),
		Revision:            r.str("revision"),
		Endian:              r.str("endian"),
		MPUPresent:          r.bool("mpuPresent"),
		FPUPresent:          r.bool("fpuPresent"),
		FPUDP:               r.bool("fpuDP"),
		ICachePresent:       r.bool("icachePresent"),
		DCachePresent:       r.bool("dcachePresent"),
		VTORPresent:         r.bool("vtorPresent"),
		NVICPrioBits:        r.u32("nvicPrioBits"),
		VendorSystickConfig: r.bool("vendorSystickConfig"),
		DeviceNumInterrupts: r.u32("deviceNumInterrupts"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (p *cpuPatch) apply(c *svd.CPU) {
	applyIfSet(&c.Name, p.Name)
	applyIfSet(&c.Revision, p.Revision)
	applyIfSet(&c.Endian, p.Endian)
	applyPtrIfSet(&c.MPUPresent, p.MPUPresent)
	applyPtrIfSet(&c.FPUPresent, p.FPUPresent)
	applyPtrIfSet(&c.FPUDP, p.FPUDP)
	applyPtrIfSet(&c.ICachePresent, p.ICachePresent)
	applyPtrIfSet(&c.DCachePresent, p.DCachePresent)
	applyPtrIfSet(&c.VTORPresent, p.VTORPresent)
	applyPtrIfSet(&c.NVICPrioBits, p.NVICPrioBits)
	applyPtrIfSet(&c.VendorSystickConfig, p.VendorSystickConfig)
	applyPtrIfSet(&c.DeviceNumInterrupts, p.DeviceNumInterrupts)
}

// deviceScalars are the device keys `_modify` changes in place; any other
// non-directive key is a peripheral spec.
var deviceScalars = map[string]bool{
	"name": true, "vendor": true, "vendorID": true, "series": true,
	"version": true, "description": true, "licenseText": true,
	"headerSystemFilename": true, "headerDefinitionsPrefix": true,
	"addressUnitBits": true, "width": true, "size": true, "access": true,
	"protection": true, "resetValue": true, "resetMask": true,
}

func modifyDeviceScalar(dev *svd.Device, key string, val *ir.Node, env eval.Env) error {
	node := ir.FromPairs(key, val.Clone())
	r := newReader(node, env)
	switch key {
	case "name":
		applyIfSet(&dev.Name, r.str(key))
	case "vendor":
		applyIfSet(&dev.Vendor, r.str(key))
	case "vendorID":
		applyIfSet(&dev.VendorID, r.str(key))
	case "series":
		applyIfSet(&dev.Series, r.str(key))
	case "version":
		applyIfSet(&dev.Version, r.str(key))
	case "description":
		applyIfSet(&dev.Description, r.desc(key))
	case "licenseText":
		applyIfSet(&dev.LicenseText, r.desc(key))
	case "headerSystemFilename":
		applyIfSet(&dev.HeaderSystemFilename, r.str(key))
	case "headerDefinitionsPrefix":
		applyIfSet(&dev.HeaderDefinitionsPrefix, r.str(key))
	case "addressUnitBits":
		applyPtrIfSet(&dev.AddressUnitBits, r.u32(key))
	case "width":
		applyPtrIfSet(&dev.Width, r.u32(key))
	default:
		r.regProps().apply(&dev.RegisterProperties)
	}
	return r.err
}
