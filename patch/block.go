package patch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tony-format/svdpatch"
	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/svd"
)

// block is the register list of a peripheral or of a cluster, addressed by
// one level of the patch document.
type block struct {
	cfg *Config
	env eval.Env
	// path is the dotted location from the peripheral, e.g. "TIM2.CH%s".
	path string
	rcs  *[]svd.RegisterCluster
	// root holds every register of the enclosing peripheral.
	root *[]svd.RegisterCluster
	// per is set for peripheral blocks, which also own interrupts.
	per   *svd.Peripheral
	props svd.RegisterProperties
}

var blockDirectives = map[string]bool{
	"_path": true, "_include": true, "_env": true,
	"_delete": true, "_copy": true, "_strip": true, "_strip_end": true,
	"_prefix": true, "_suffix": true, "_modify": true, "_clear_fields": true,
	"_add": true, "_derive": true, "_clusters": true, "_array": true, "_cluster": true,
}

func (b *block) process(doc *ir.Node) error {
	env, err := eval.UpdateEnv(b.env, doc)
	if err != nil {
		return err
	}
	b.env = env
	for _, key := range doc.Keys() {
		if strings.HasPrefix(key, "_") && !blockDirectives[key] {
			return fmt.Errorf("%w: %s", ErrUnknownDirective, key)
		}
	}
	steps := []struct {
		key string
		f   func(*ir.Node) error
	}{
		{"_delete", b.delete},
		{"_copy", b.copy},
		{"_strip", b.stripStart},
		{"_strip_end", b.stripEnd},
		{"_prefix", b.prefix},
		{"_suffix", b.suffix},
		{"_modify", b.modify},
		{"_clear_fields", b.clearFields},
		{"_add", b.add},
		{"_derive", b.derive},
	}
	for _, step := range steps {
		v := ir.Get(doc, step.key)
		if v == nil {
			continue
		}
		if debug.Patch() {
			debug.Logf("%s %s\n", b.path, step.key)
		}
		if err := step.f(v); err != nil {
			return err
		}
	}
	err = ir.Entries(doc, func(rspec string, rdoc *ir.Node) error {
		if strings.HasPrefix(rspec, "_") {
			return nil
		}
		return b.processRegisters(rspec, rdoc)
	})
	if err != nil {
		return err
	}
	if v := ir.Get(doc, "_clusters"); v != nil {
		if err := b.processClusters(v); err != nil {
			return err
		}
	}
	if v := ir.Get(doc, "_array"); v != nil {
		err := specEntries(v, func(spec string, mod *ir.Node) error {
			return b.collectArray(spec, mod)
		})
		if err != nil {
			return err
		}
	}
	if v := ir.Get(doc, "_cluster"); v != nil {
		return ir.Entries(v, func(cname string, cmod *ir.Node) error {
			return b.collectCluster(cname, cmod)
		})
	}
	return nil
}

// specEntries accepts a spec string, a list of specs or a map of spec to
// options, and calls f with a (possibly empty) options object.
func specEntries(v *ir.Node, f func(spec string, mod *ir.Node) error) error {
	if v.Type == ir.ObjectType {
		return ir.Entries(v, func(spec string, mod *ir.Node) error {
			m, err := ir.AsObject(mod)
			if err != nil {
				return err
			}
			return f(spec, m)
		})
	}
	specs, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := f(spec, ir.FromPairs()); err != nil {
			return err
		}
	}
	return nil
}

func (b *block) logSkip(kind, spec string) {
	b.cfg.logger().Debug("optional spec matched nothing", "kind", kind, "key", spec, "path", b.path)
}

func (b *block) registers() []*svd.Register {
	var res []*svd.Register
	for _, rc := range *b.rcs {
		if r, ok := rc.(*svd.Register); ok {
			res = append(res, r)
		}
	}
	return res
}

func (b *block) matchRegisters(spec string) []*svd.Register {
	var res []*svd.Register
	for _, r := range b.registers() {
		if svdpatch.Matches(r.Name, spec) {
			res = append(res, r)
		}
	}
	return res
}

func (b *block) matchClusters(spec string) []*svd.Cluster {
	var res []*svd.Cluster
	for _, rc := range *b.rcs {
		if c, ok := rc.(*svd.Cluster); ok && svdpatch.Matches(c.Name, spec) {
			res = append(res, c)
		}
	}
	return res
}

func (b *block) find(name string) (int, svd.RegisterCluster) {
	for i, rc := range *b.rcs {
		if rc.Ident() == name {
			return i, rc
		}
	}
	return -1, nil
}

func (b *block) getRegister(name string) *svd.Register {
	for _, r := range b.registers() {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (b *block) getCluster(name string) *svd.Cluster {
	for _, rc := range *b.rcs {
		if c, ok := rc.(*svd.Cluster); ok && c.Name == name {
			return c
		}
	}
	return nil
}

func (b *block) delete(v *ir.Node) error {
	switch v.Type {
	case ir.NullType:
		return nil
	case ir.ObjectType:
		return ir.Entries(v, func(key string, val *ir.Node) error {
			specs, err := ir.AsStrings(val)
			if err != nil {
				return err
			}
			for _, spec := range specs {
				spec, _ = svdpatch.ParseSpec(spec)
				switch key {
				case "_registers":
					b.deleteRCs(spec, func(rc svd.RegisterCluster) bool { _, ok := rc.(*svd.Register); return ok })
				case "_clusters":
					b.deleteRCs(spec, func(rc svd.RegisterCluster) bool { _, ok := rc.(*svd.Cluster); return ok })
				case "_interrupts":
					if b.per == nil {
						return fmt.Errorf("%w: _interrupts in cluster", ErrUnknownDirective)
					}
					deleteInterrupts(b.per, spec)
				default:
					return fmt.Errorf("%w: _delete: %s", ErrUnknownDirective, key)
				}
			}
			return nil
		})
	}
	specs, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		spec, _ = svdpatch.ParseSpec(spec)
		b.deleteRCs(spec, func(rc svd.RegisterCluster) bool { _, ok := rc.(*svd.Register); return ok })
	}
	return nil
}

func (b *block) deleteRCs(spec string, kind func(svd.RegisterCluster) bool) {
	*b.rcs = slices.DeleteFunc(*b.rcs, func(rc svd.RegisterCluster) bool {
		return kind(rc) && svdpatch.Matches(rc.Ident(), spec)
	})
}

func deleteInterrupts(per *svd.Peripheral, spec string) {
	per.Interrupts = slices.DeleteFunc(per.Interrupts, func(irq svd.Interrupt) bool {
		return svdpatch.Matches(irq.Name, spec)
	})
}

func withoutKeys(node *ir.Node, keys ...string) *ir.Node {
	res := node.Clone()
	res.Parent = nil
	for _, k := range keys {
		res.Delete(k)
	}
	return res
}

func (b *block) copy(v *ir.Node) error {
	return ir.Entries(v, func(name string, val *ir.Node) error {
		obj, err := ir.AsObject(val)
		if err != nil {
			return err
		}
		from, ok, err := ir.GetString(obj, "_from")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s: _copy requires _from", ir.ErrDocumentType, val.Path())
		}
		mod := withoutKeys(obj, "_from")
		_, src := b.find(from)
		if src == nil {
			return notFound("register or cluster", from, b.path)
		}
		dst := src.CloneRC()
		dst.SetIdent(name)
		switch x := dst.(type) {
		case *svd.Register:
			rp, err := makeRegister(mod, b.env.With("register", name))
			if err != nil {
				return inRegister(name, err)
			}
			if err := rp.apply(x, b.env); err != nil {
				return inRegister(name, err)
			}
		case *svd.Cluster:
			cp, err := makeCluster(mod, b.env.With("cluster", name))
			if err != nil {
				return inCluster(name, err)
			}
			if err := cp.apply(x, b.env); err != nil {
				return inCluster(name, err)
			}
		}
		if i, existing := b.find(name); existing != nil {
			dst.SetOffset(existing.Offset())
			(*b.rcs)[i] = dst
			return nil
		}
		*b.rcs = append(*b.rcs, dst)
		return nil
	})
}

// stripName removes the shortest leading part of name matching prefix.
func stripName(name, prefix string) string {
	if !svdpatch.Matches(name, prefix+"*") {
		return name
	}
	for k := 0; k <= len(name); k++ {
		if svdpatch.Matches(name[:k], prefix) {
			return name[k:]
		}
	}
	return name
}

// stripNameEnd removes the shortest trailing part of name matching suffix.
func stripNameEnd(name, suffix string) string {
	if !svdpatch.Matches(name, "*"+suffix) {
		return name
	}
	for k := len(name); k >= 0; k-- {
		if svdpatch.Matches(name[k:], suffix) {
			return name[:k]
		}
	}
	return name
}

func (b *block) renameAll(v *ir.Node, f func(name, arg string) string) error {
	args, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, arg := range args {
		for _, rc := range *b.rcs {
			rc.SetIdent(f(rc.Ident(), arg))
			if r, ok := rc.(*svd.Register); ok && r.DisplayName != "" {
				r.DisplayName = f(r.DisplayName, arg)
			}
		}
	}
	return nil
}

func (b *block) stripStart(v *ir.Node) error {
	return b.renameAll(v, stripName)
}

func (b *block) stripEnd(v *ir.Node) error {
	return b.renameAll(v, stripNameEnd)
}

// affix handles `_prefix`/`_suffix`: a string applies to every register,
// a map of spec to string applies to matching registers.
func (b *block) affix(v *ir.Node, f func(name, s string) string) error {
	if v.Type != ir.ObjectType {
		s, err := ir.AsString(v)
		if err != nil {
			return err
		}
		for _, rc := range *b.rcs {
			rc.SetIdent(f(rc.Ident(), s))
		}
		return nil
	}
	return ir.Entries(v, func(spec string, val *ir.Node) error {
		s, err := ir.AsString(val)
		if err != nil {
			return err
		}
		for _, rc := range *b.rcs {
			if svdpatch.Matches(rc.Ident(), spec) {
				rc.SetIdent(f(rc.Ident(), s))
			}
		}
		return nil
	})
}

func (b *block) prefix(v *ir.Node) error {
	return b.affix(v, func(name, s string) string { return s + name })
}

func (b *block) suffix(v *ir.Node) error {
	return b.affix(v, func(name, s string) string { return name + s })
}

func (b *block) modify(v *ir.Node) error {
	return ir.Entries(v, func(key string, val *ir.Node) error {
		switch key {
		case "_registers":
			return ir.Entries(val, b.modifyRegister)
		case "_clusters":
			return ir.Entries(val, b.modifyCluster)
		case "_interrupts":
			if b.per == nil {
				return fmt.Errorf("%w: _interrupts in cluster", ErrUnknownDirective)
			}
			return ir.Entries(val, func(spec string, imod *ir.Node) error {
				return modifyInterrupt(b.per, spec, imod, b.env)
			})
		}
		return b.modifyRegister(key, val)
	})
}

func (b *block) modifyRegister(spec string, val *ir.Node) error {
	s, ignore := svdpatch.ParseSpec(spec)
	regs := b.matchRegisters(s)
	if len(regs) == 0 {
		if ignore {
			b.logSkip("register", spec)
			return nil
		}
		return notFound("register", spec, b.path)
	}
	for _, reg := range regs {
		env := b.env.With("register", reg.Name)
		rp, err := makeRegister(val, env)
		if err != nil {
			return inRegister(reg.Name, err)
		}
		if err := rp.apply(reg, env); err != nil {
			return inRegister(reg.Name, err)
		}
	}
	return nil
}

func (b *block) modifyCluster(spec string, val *ir.Node) error {
	s, ignore := svdpatch.ParseSpec(spec)
	cls := b.matchClusters(s)
	if len(cls) == 0 {
		if ignore {
			b.logSkip("cluster", spec)
			return nil
		}
		return notFound("cluster", spec, b.path)
	}
	for _, c := range cls {
		env := b.env.With("cluster", c.Name)
		cp, err := makeCluster(val, env)
		if err != nil {
			return inCluster(c.Name, err)
		}
		if err := cp.apply(c, env); err != nil {
			return inCluster(c.Name, err)
		}
	}
	return nil
}

func modifyInterrupt(per *svd.Peripheral, spec string, val *ir.Node, env eval.Env) error {
	s, ignore := svdpatch.ParseSpec(spec)
	ip, err := makeInterrupt(val, env)
	if err != nil {
		return err
	}
	n := 0
	for i := range per.Interrupts {
		if svdpatch.Matches(per.Interrupts[i].Name, s) {
			ip.apply(&per.Interrupts[i])
			n++
		}
	}
	if n == 0 && !ignore {
		return notFound("interrupt", spec, per.Name)
	}
	return nil
}

func addInterrupt(per *svd.Peripheral, name string, val *ir.Node, env eval.Env) error {
	if per.GetInterrupt(name) != nil {
		return duplicate("interrupt", name, per.Name)
	}
	ip, err := makeInterrupt(val, env)
	if err != nil {
		return err
	}
	if ip.Value == nil {
		return fmt.Errorf("interrupt %s: value required", name)
	}
	irq := svd.Interrupt{Name: name}
	ip.apply(&irq)
	per.Interrupts = append(per.Interrupts, irq)
	return nil
}

func clearField(f *svd.Field) {
	f.EnumeratedValues = nil
	f.WriteConstraint = nil
}

func (b *block) clearFields(v *ir.Node) error {
	specs, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		s, ignore := svdpatch.ParseSpec(spec)
		regs := b.matchRegisters(s)
		if len(regs) == 0 && !ignore {
			return notFound("register", spec, b.path)
		}
		for _, reg := range regs {
			for _, f := range reg.Fields {
				clearField(f)
			}
		}
	}
	return nil
}

func (b *block) add(v *ir.Node) error {
	return ir.Entries(v, func(key string, val *ir.Node) error {
		switch key {
		case "_registers":
			return ir.Entries(val, b.addRegister)
		case "_clusters":
			return ir.Entries(val, b.addCluster)
		case "_interrupts":
			if b.per == nil {
				return fmt.Errorf("%w: _interrupts in cluster", ErrUnknownDirective)
			}
			return ir.Entries(val, func(name string, iadd *ir.Node) error {
				return addInterrupt(b.per, name, iadd, b.env)
			})
		}
		return b.addRegister(key, val)
	})
}

func (b *block) addRegister(name string, val *ir.Node) error {
	if _, rc := b.find(name); rc != nil {
		return duplicate("register", name, b.path)
	}
	env := b.env.With("register", name)
	rp, err := makeRegister(val, env)
	if err != nil {
		return inRegister(name, err)
	}
	reg, err := rp.build(name, env)
	if err != nil {
		return err
	}
	if err := checkRegister(reg, b.cfg.ValidateLevel); err != nil {
		return err
	}
	*b.rcs = append(*b.rcs, reg)
	return nil
}

func (b *block) addCluster(name string, val *ir.Node) error {
	if _, rc := b.find(name); rc != nil {
		return duplicate("cluster", name, b.path)
	}
	env := b.env.With("cluster", name)
	cp, err := makeCluster(val, env)
	if err != nil {
		return inCluster(name, err)
	}
	c, err := cp.build(name, env)
	if err != nil {
		return err
	}
	*b.rcs = append(*b.rcs, c)
	return nil
}

// deriveSource splits `NAME: SRC` and `NAME: {_from: SRC, ...}`.
func deriveSource(val *ir.Node) (string, *ir.Node, error) {
	if val.Type != ir.ObjectType {
		from, err := ir.AsString(val)
		return from, ir.FromPairs(), err
	}
	from, ok, err := ir.GetString(val, "_from")
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, fmt.Errorf("%w: %s: derive requires _from", ir.ErrDocumentType, val.Path())
	}
	return from, withoutKeys(val, "_from"), nil
}

func (b *block) derive(v *ir.Node) error {
	return ir.Entries(v, func(key string, val *ir.Node) error {
		switch key {
		case "_registers":
			return ir.Entries(val, b.deriveRegister)
		case "_clusters":
			return ir.Entries(val, b.deriveCluster)
		case "_interrupts":
			return fmt.Errorf("%w: deriving interrupts", ErrUnknownDirective)
		}
		return b.deriveRegister(key, val)
	})
}

func (b *block) deriveRegister(name string, val *ir.Node) error {
	from, mod, err := deriveSource(val)
	if err != nil {
		return err
	}
	src := b.getRegister(from)
	if src == nil {
		return notFound("register", from, b.path)
	}
	if src.DerivedFrom != "" {
		return fmt.Errorf("%w: register %s is derived from %s", ErrMultilevelDerive, from, src.DerivedFrom)
	}
	env := b.env.With("register", name)
	rp, err := makeRegister(mod, env)
	if err != nil {
		return inRegister(name, err)
	}
	if i, rc := b.find(name); rc != nil {
		old, ok := rc.(*svd.Register)
		if !ok {
			return duplicate("cluster", name, b.path)
		}
		reg := &svd.Register{
			Name:          old.Name,
			Description:   old.Description,
			AddressOffset: old.AddressOffset,
			Dim:           old.Dim,
		}
		if err := rp.apply(reg, env); err != nil {
			return inRegister(name, err)
		}
		reg.DerivedFrom = from
		(*b.rcs)[i] = reg
		return nil
	}
	reg, err := rp.build(name, env)
	if err != nil {
		return err
	}
	reg.DerivedFrom = from
	*b.rcs = append(*b.rcs, reg)
	return nil
}

func (b *block) deriveCluster(name string, val *ir.Node) error {
	from, mod, err := deriveSource(val)
	if err != nil {
		return err
	}
	src := b.getCluster(from)
	if src == nil {
		return notFound("cluster", from, b.path)
	}
	if src.DerivedFrom != "" {
		return fmt.Errorf("%w: cluster %s is derived from %s", ErrMultilevelDerive, from, src.DerivedFrom)
	}
	env := b.env.With("cluster", name)
	cp, err := makeCluster(mod, env)
	if err != nil {
		return inCluster(name, err)
	}
	if i, rc := b.find(name); rc != nil {
		old, ok := rc.(*svd.Cluster)
		if !ok {
			return duplicate("register", name, b.path)
		}
		c := &svd.Cluster{
			Name:          old.Name,
			Description:   old.Description,
			AddressOffset: old.AddressOffset,
			Dim:           old.Dim,
		}
		if err := cp.apply(c, env); err != nil {
			return inCluster(name, err)
		}
		c.DerivedFrom = from
		(*b.rcs)[i] = c
		return nil
	}
	c, err := cp.build(name, env)
	if err != nil {
		return err
	}
	c.DerivedFrom = from
	*b.rcs = append(*b.rcs, c)
	return nil
}

func (b *block) processRegisters(spec string, rdoc *ir.Node) error {
	s, ignore := svdpatch.ParseSpec(spec)
	regs := b.matchRegisters(s)
	if len(regs) == 0 {
		if ignore {
			b.logSkip("register", spec)
			return nil
		}
		return notFound("register", spec, b.path)
	}
	doc, err := ir.AsObject(rdoc)
	if err != nil {
		return err
	}
	for _, reg := range regs {
		if err := inRegister(reg.Name, b.processRegister(reg, doc)); err != nil {
			return err
		}
	}
	return nil
}

func (b *block) processClusters(v *ir.Node) error {
	return ir.Entries(v, func(spec string, cdoc *ir.Node) error {
		s, ignore := svdpatch.ParseSpec(spec)
		cls := b.matchClusters(s)
		if len(cls) == 0 {
			if ignore {
				b.logSkip("cluster", spec)
				return nil
			}
			return notFound("cluster", spec, b.path)
		}
		doc, err := ir.AsObject(cdoc)
		if err != nil {
			return err
		}
		for _, c := range cls {
			sub := &block{
				cfg:   b.cfg,
				env:   b.env.With("cluster", c.Name),
				path:  b.path + "." + c.Name,
				rcs:   &c.Children,
				root:  b.root,
				props: inherit(b.props, c.RegisterProperties),
			}
			if err := inCluster(c.Name, sub.process(doc)); err != nil {
				return err
			}
		}
		return nil
	})
}

// inherit overlays the properties set on child onto parent.
func inherit(parent, child svd.RegisterProperties) svd.RegisterProperties {
	res := parent
	if child.Size != nil {
		res.Size = child.Size
	}
	if child.Access != svd.AccessUnset {
		res.Access = child.Access
	}
	if child.Protection != "" {
		res.Protection = child.Protection
	}
	if child.ResetValue != nil {
		res.ResetValue = child.ResetValue
	}
	if child.ResetMask != nil {
		res.ResetMask = child.ResetMask
	}
	return res
}

func checkRegister(reg *svd.Register, level svd.ValidateLevel) error {
	if level == svd.ValidateDisabled {
		return nil
	}
	if reg.Name == "" {
		return fmt.Errorf("%w: register without name", svd.ErrValidation)
	}
	for _, f := range reg.Fields {
		if err := checkField(f, level); err != nil {
			return inRegister(reg.Name, err)
		}
	}
	return nil
}

func checkField(f *svd.Field, level svd.ValidateLevel) error {
	if level == svd.ValidateDisabled {
		return nil
	}
	if f.Name == "" || f.BitWidth == 0 {
		return fmt.Errorf("%w: field %q has no name or zero width", svd.ErrValidation, f.Name)
	}
	if level >= svd.ValidateStrict && f.BitOffset+f.BitWidth > 64 {
		return fmt.Errorf("%w: field %s exceeds 64 bits", svd.ErrValidation, f.Name)
	}
	return nil
}
