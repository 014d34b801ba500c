package svd

import "slices"

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (d *Device) Clone() *Device {
	res := *d
	if d.CPU != nil {
		cpu := *d.CPU
		res.CPU = &cpu
	}
	res.AddressUnitBits = clonePtr(d.AddressUnitBits)
	res.Width = clonePtr(d.Width)
	res.RegisterProperties = d.RegisterProperties.Clone()
	res.Peripherals = make([]*Peripheral, len(d.Peripherals))
	for i, p := range d.Peripherals {
		res.Peripherals[i] = p.Clone()
	}
	return &res
}

func (rp RegisterProperties) Clone() RegisterProperties {
	rp.Size = clonePtr(rp.Size)
	rp.ResetValue = clonePtr(rp.ResetValue)
	rp.ResetMask = clonePtr(rp.ResetMask)
	return rp
}

func (p *Peripheral) Clone() *Peripheral {
	res := *p
	res.Dim = p.Dim.Clone()
	res.RegisterProperties = p.RegisterProperties.Clone()
	res.AddressBlocks = slices.Clone(p.AddressBlocks)
	res.Interrupts = slices.Clone(p.Interrupts)
	res.Registers = cloneRCs(p.Registers)
	return &res
}

func cloneRCs(rcs []RegisterCluster) []RegisterCluster {
	if rcs == nil {
		return nil
	}
	res := make([]RegisterCluster, len(rcs))
	for i, rc := range rcs {
		res[i] = rc.CloneRC()
	}
	return res
}

func (c *Cluster) Clone() *Cluster {
	res := *c
	res.Dim = c.Dim.Clone()
	res.RegisterProperties = c.RegisterProperties.Clone()
	res.Children = cloneRCs(c.Children)
	return &res
}

func (r *Register) Clone() *Register {
	res := *r
	res.Dim = r.Dim.Clone()
	res.RegisterProperties = r.RegisterProperties.Clone()
	res.WriteConstraint = clonePtr(r.WriteConstraint)
	if r.Fields != nil {
		res.Fields = make([]*Field, len(r.Fields))
		for i, f := range r.Fields {
			res.Fields[i] = f.Clone()
		}
	}
	return &res
}

func (f *Field) Clone() *Field {
	res := *f
	res.Dim = f.Dim.Clone()
	res.WriteConstraint = clonePtr(f.WriteConstraint)
	if f.EnumeratedValues != nil {
		res.EnumeratedValues = make([]*EnumeratedValues, len(f.EnumeratedValues))
		for i, ev := range f.EnumeratedValues {
			res.EnumeratedValues[i] = ev.Clone()
		}
	}
	return &res
}

func (ev *EnumeratedValues) Clone() *EnumeratedValues {
	res := *ev
	if ev.Values != nil {
		res.Values = make([]*EnumeratedValue, len(ev.Values))
		for i, v := range ev.Values {
			vv := *v
			vv.Value = clonePtr(v.Value)
			res.Values[i] = &vv
		}
	}
	return &res
}
