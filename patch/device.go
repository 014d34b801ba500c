package patch

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tony-format/svdpatch"
	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/svd"
)

// SVDKey names the base description in a device document.
const SVDKey = "_svd"

var deviceDirectives = map[string]bool{
	SVDKey: true, "_path": true, "_include": true, "_env": true,
	"_delete": true, "_copy": true, "_modify": true, "_clear_fields": true,
	"_add": true, "_derive": true, "_rebase": true,
}

type deviceTransform struct {
	cfg *Config
	dev *svd.Device
	doc *ir.Node
	env eval.Env
}

// ProcessDevice applies an include-resolved device document to dev and
// validates the result at c.ValidateLevel.
func (c *Config) ProcessDevice(dev *svd.Device, doc *ir.Node) error {
	env, err := eval.UpdateEnv(c.Env.Clone(), doc)
	if err != nil {
		return err
	}
	for _, key := range doc.Keys() {
		if strings.HasPrefix(key, "_") && !deviceDirectives[key] {
			return fmt.Errorf("%w: %s", ErrUnknownDirective, key)
		}
	}
	dt := &deviceTransform{cfg: c, dev: dev, doc: doc, env: env}
	steps := []struct {
		key string
		f   func(*ir.Node) error
	}{
		{"_delete", dt.delete},
		{"_copy", dt.copy},
		{"_modify", dt.modify},
		{"_clear_fields", dt.clearFields},
		{"_add", dt.add},
		{"_derive", dt.derive},
		{"_rebase", dt.rebase},
	}
	for _, step := range steps {
		v := ir.Get(doc, step.key)
		if v == nil {
			continue
		}
		if debug.Patch() {
			debug.Logf("device %s\n", step.key)
		}
		if err := step.f(v); err != nil {
			return err
		}
	}
	err = ir.Entries(doc, func(pspec string, pdoc *ir.Node) error {
		if strings.HasPrefix(pspec, "_") {
			return nil
		}
		return dt.processPeripherals(pspec, pdoc)
	})
	if err != nil {
		return err
	}
	return svd.Validate(dev, c.ValidateLevel)
}

func (dt *deviceTransform) matchPeripherals(spec string) []*svd.Peripheral {
	var res []*svd.Peripheral
	for _, p := range dt.dev.Peripherals {
		if svdpatch.Matches(p.Name, spec) {
			res = append(res, p)
		}
	}
	return res
}

func (dt *deviceTransform) requirePeripherals(spec string) ([]*svd.Peripheral, error) {
	s, ignore := svdpatch.ParseSpec(spec)
	ps := dt.matchPeripherals(s)
	if len(ps) == 0 {
		if !ignore {
			return nil, notFound("peripheral", spec, "device "+dt.dev.Name)
		}
		dt.cfg.logger().Debug("optional spec matched nothing", "kind", "peripheral", "key", spec)
	}
	return ps, nil
}

func (dt *deviceTransform) index(name string) int {
	return slices.IndexFunc(dt.dev.Peripherals, func(p *svd.Peripheral) bool { return p.Name == name })
}

func (dt *deviceTransform) delete(v *ir.Node) error {
	specs, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		spec, _ = svdpatch.ParseSpec(spec)
		dt.dev.Peripherals = slices.DeleteFunc(dt.dev.Peripherals, func(p *svd.Peripheral) bool {
			return svdpatch.Matches(p.Name, spec)
		})
	}
	return nil
}

// copy handles `NAME: {_from: SRC}` where SRC is a peripheral of this
// device or `file.svd:PERIPHERAL` relative to the document.
func (dt *deviceTransform) copy(v *ir.Node) error {
	return ir.Entries(v, func(name string, val *ir.Node) error {
		from, mod, err := deriveSource(val)
		if err != nil {
			return err
		}
		var src *svd.Peripheral
		if path, pname, ok := strings.Cut(from, ":"); ok {
			if !filepath.IsAbs(path) {
				path = filepath.Join(filepath.Dir(DocumentPath(dt.doc)), path)
			}
			other, err := dt.cfg.loader().LoadDevice(path)
			if err != nil {
				return fmt.Errorf("_copy %s: %w", name, err)
			}
			if src = copySource(other, pname); src == nil {
				return notFound("peripheral", pname, path)
			}
			src.Interrupts = nil
		} else if src = copySource(dt.dev, from); src == nil {
			return notFound("peripheral", from, "device "+dt.dev.Name)
		}
		src.Name = name
		env := dt.env.With("peripheral", name)
		pp, err := makePeripheral(mod, env)
		if err != nil {
			return inPeripheral(name, err)
		}
		if i := dt.index(name); i >= 0 {
			old := dt.dev.Peripherals[i]
			src.BaseAddress = old.BaseAddress
			src.Interrupts = old.Interrupts
			if err := pp.apply(src, env); err != nil {
				return inPeripheral(name, err)
			}
			dt.dev.Peripherals[i] = src
			return nil
		}
		if err := pp.apply(src, env); err != nil {
			return inPeripheral(name, err)
		}
		dt.dev.Peripherals = append(dt.dev.Peripherals, src)
		return nil
	})
}

// copySource clones peripheral name of dev as a standalone peripheral. A
// derived source takes the registers and address blocks it inherits.
func copySource(dev *svd.Device, name string) *svd.Peripheral {
	p := dev.GetPeripheral(name)
	if p == nil {
		return nil
	}
	res := p.Clone()
	if base := dev.GetPeripheral(p.DerivedFrom); base != nil && base != p {
		base = base.Clone()
		if len(res.Registers) == 0 {
			res.Registers = base.Registers
		}
		if len(res.AddressBlocks) == 0 {
			res.AddressBlocks = base.AddressBlocks
		}
	}
	res.DerivedFrom = ""
	return res
}

func (dt *deviceTransform) modify(v *ir.Node) error {
	return ir.Entries(v, func(key string, val *ir.Node) error {
		switch {
		case key == "cpu":
			cp, err := makeCPU(val, dt.env)
			if err != nil {
				return fmt.Errorf("cpu: %w", err)
			}
			if dt.dev.CPU == nil {
				dt.dev.CPU = &svd.CPU{}
			}
			cp.apply(dt.dev.CPU)
			return nil
		case key == "_peripherals":
			return ir.Entries(val, dt.modifyPeripheral)
		case deviceScalars[key]:
			return modifyDeviceScalar(dt.dev, key, val, dt.env)
		}
		return dt.modifyPeripheral(key, val)
	})
}

func (dt *deviceTransform) modifyPeripheral(spec string, val *ir.Node) error {
	ps, err := dt.requirePeripherals(spec)
	if err != nil {
		return err
	}
	for _, p := range ps {
		env := dt.env.With("peripheral", p.Name)
		pp, err := makePeripheral(val, env)
		if err != nil {
			return inPeripheral(p.Name, err)
		}
		if err := pp.apply(p, env); err != nil {
			return inPeripheral(p.Name, err)
		}
	}
	return nil
}

func (dt *deviceTransform) clearFields(v *ir.Node) error {
	specs, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		ps, err := dt.requirePeripherals(spec)
		if err != nil {
			return err
		}
		for _, p := range ps {
			for _, f := range svd.Fields(p.Registers) {
				clearField(f)
			}
		}
	}
	return nil
}

func (dt *deviceTransform) add(v *ir.Node) error {
	return ir.Entries(v, func(name string, val *ir.Node) error {
		if dt.index(name) >= 0 {
			return duplicate("peripheral", name, "device "+dt.dev.Name)
		}
		env := dt.env.With("peripheral", name)
		pp, err := makePeripheral(val, env)
		if err != nil {
			return inPeripheral(name, err)
		}
		p, err := pp.build(name, env)
		if err != nil {
			return err
		}
		for _, r := range svd.Registers(p.Registers) {
			if err := checkRegister(r, dt.cfg.ValidateLevel); err != nil {
				return inPeripheral(name, err)
			}
		}
		dt.dev.Peripherals = append(dt.dev.Peripherals, p)
		return nil
	})
}

// repoint keeps derivation one level deep after from is redirected to to.
func (dt *deviceTransform) repoint(from, to string) {
	for _, p := range dt.dev.Peripherals {
		if p.DerivedFrom == from && p.Name != to {
			p.DerivedFrom = to
		}
	}
}

func (dt *deviceTransform) derive(v *ir.Node) error {
	return ir.Entries(v, func(name string, val *ir.Node) error {
		from, mod, err := deriveSource(val)
		if err != nil {
			return err
		}
		src := dt.dev.GetPeripheral(from)
		if src == nil {
			return notFound("peripheral", from, "device "+dt.dev.Name)
		}
		if src.DerivedFrom != "" {
			return fmt.Errorf("%w: peripheral %s is derived from %s", ErrMultilevelDerive, from, src.DerivedFrom)
		}
		env := dt.env.With("peripheral", name)
		pp, err := makePeripheral(mod, env)
		if err != nil {
			return inPeripheral(name, err)
		}
		if i := dt.index(name); i >= 0 {
			old := dt.dev.Peripherals[i]
			p := &svd.Peripheral{
				Name:        old.Name,
				BaseAddress: old.BaseAddress,
				Interrupts:  old.Interrupts,
			}
			if err := pp.apply(p, env); err != nil {
				return inPeripheral(name, err)
			}
			p.DerivedFrom = from
			dt.dev.Peripherals[i] = p
		} else {
			p, err := pp.build(name, env)
			if err != nil {
				return err
			}
			p.DerivedFrom = from
			dt.dev.Peripherals = append(dt.dev.Peripherals, p)
		}
		dt.repoint(name, from)
		return nil
	})
}

// rebase moves the content of OLD onto NEW. NEW keeps its identity and
// OLD becomes derived from NEW.
func (dt *deviceTransform) rebase(v *ir.Node) error {
	return ir.Entries(v, func(name string, val *ir.Node) error {
		from, err := ir.AsString(val)
		if err != nil {
			return err
		}
		ni, oi := dt.index(name), dt.index(from)
		if ni < 0 {
			return notFound("peripheral", name, "device "+dt.dev.Name)
		}
		if oi < 0 {
			return notFound("peripheral", from, "device "+dt.dev.Name)
		}
		cur, old := dt.dev.Peripherals[ni], dt.dev.Peripherals[oi]
		p := old.Clone()
		p.Name = cur.Name
		p.BaseAddress = cur.BaseAddress
		p.Interrupts = cur.Interrupts
		p.DerivedFrom = ""
		dt.dev.Peripherals[ni] = p
		dt.dev.Peripherals[oi] = &svd.Peripheral{
			Name:        old.Name,
			Description: old.Description,
			BaseAddress: old.BaseAddress,
			Interrupts:  old.Interrupts,
			DerivedFrom: name,
		}
		dt.repoint(from, name)
		return nil
	})
}

func (dt *deviceTransform) processPeripherals(spec string, pdoc *ir.Node) error {
	ps, err := dt.requirePeripherals(spec)
	if err != nil {
		return err
	}
	doc, err := ir.AsObject(pdoc)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if err := inPeripheral(p.Name, dt.processPeripheral(p, doc)); err != nil {
			return err
		}
	}
	return nil
}

func (dt *deviceTransform) processPeripheral(p *svd.Peripheral, doc *ir.Node) error {
	env := dt.env.With("peripheral", p.Name)
	if p.DerivedFrom != "" {
		return dt.processDerived(p, doc, env)
	}
	b := &block{
		cfg:   dt.cfg,
		env:   env,
		path:  p.Name,
		rcs:   &p.Registers,
		root:  &p.Registers,
		per:   p,
		props: inherit(dt.dev.RegisterProperties, p.RegisterProperties),
	}
	return b.process(doc)
}

// processDerived honors only the interrupt directives: a derived
// peripheral has no registers of its own.
func (dt *deviceTransform) processDerived(p *svd.Peripheral, doc *ir.Node, env eval.Env) error {
	env, err := eval.UpdateEnv(env, doc)
	if err != nil {
		return err
	}
	interrupts := func(key string) *ir.Node {
		return ir.Get(ir.Get(doc, key), "_interrupts")
	}
	if v := interrupts("_delete"); v != nil {
		specs, err := ir.AsStrings(v)
		if err != nil {
			return err
		}
		for _, spec := range specs {
			spec, _ = svdpatch.ParseSpec(spec)
			deleteInterrupts(p, spec)
		}
	}
	err = ir.Entries(interrupts("_modify"), func(spec string, val *ir.Node) error {
		return modifyInterrupt(p, spec, val, env)
	})
	if err != nil {
		return err
	}
	err = ir.Entries(interrupts("_add"), func(name string, val *ir.Node) error {
		return addInterrupt(p, name, val, env)
	})
	if err != nil {
		return err
	}
	for _, key := range doc.Keys() {
		switch key {
		case "_delete", "_modify", "_add", "_env", "_path", "_include":
			continue
		}
		dt.cfg.logger().Debug("skipping directive on derived peripheral", "key", key, "path", p.Name)
	}
	return nil
}
