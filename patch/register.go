package patch

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tony-format/svdpatch"
	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/svd"
)

// regTransform applies one register document to one register.
type regTransform struct {
	b   *block
	reg *svd.Register
	env eval.Env
}

var registerDirectives = map[string]bool{
	"_path": true, "_include": true, "_env": true,
	"_delete": true, "_strip": true, "_strip_end": true,
	"_prefix": true, "_suffix": true, "_clear": true, "_modify": true,
	"_add": true, "_derive": true, "_merge": true, "_split": true, "_array": true,
}

func (b *block) processRegister(reg *svd.Register, doc *ir.Node) error {
	env, err := eval.UpdateEnv(b.env.With("register", reg.Name), doc)
	if err != nil {
		return err
	}
	for _, key := range doc.Keys() {
		if strings.HasPrefix(key, "_") && !registerDirectives[key] {
			return fmt.Errorf("%w: %s", ErrUnknownDirective, key)
		}
	}
	rt := &regTransform{b: b, reg: reg, env: env}
	steps := []struct {
		key string
		f   func(*ir.Node) error
	}{
		{"_delete", rt.delete},
		{"_strip", rt.stripStart},
		{"_strip_end", rt.stripEnd},
		{"_prefix", rt.prefix},
		{"_suffix", rt.suffix},
		{"_clear", rt.clear},
		{"_modify", rt.modify},
		{"_add", rt.add},
		{"_derive", rt.derive},
		{"_merge", rt.merge},
		{"_split", rt.split},
	}
	for _, step := range steps {
		v := ir.Get(doc, step.key)
		if v == nil {
			continue
		}
		if debug.Patch() {
			debug.Logf("%s.%s %s\n", b.path, reg.Name, step.key)
		}
		if err := step.f(v); err != nil {
			return err
		}
	}
	if b.cfg.UpdateFields {
		err := ir.Entries(doc, func(fspec string, fdoc *ir.Node) error {
			if strings.HasPrefix(fspec, "_") {
				return nil
			}
			return rt.processField(fspec, fdoc)
		})
		if err != nil {
			return err
		}
	}
	if v := ir.Get(doc, "_array"); v != nil {
		return specEntries(v, rt.collectArray)
	}
	return nil
}

// matchFields returns the fields matching spec ordered by bit offset.
func (rt *regTransform) matchFields(spec string) []*svd.Field {
	var res []*svd.Field
	for _, f := range rt.reg.Fields {
		if svdpatch.Matches(f.Name, spec) {
			res = append(res, f)
		}
	}
	slices.SortStableFunc(res, func(a, b *svd.Field) int {
		return cmp.Compare(a.BitOffset, b.BitOffset)
	})
	return res
}

// requireFields is matchFields that fails on an empty match unless the
// spec carries `?~`.
func (rt *regTransform) requireFields(spec string) ([]*svd.Field, error) {
	s, ignore := svdpatch.ParseSpec(spec)
	fields := rt.matchFields(s)
	if len(fields) == 0 && !ignore {
		return nil, notFound("field", spec, rt.reg.Name)
	}
	if len(fields) == 0 {
		rt.b.logSkip("field", spec)
	}
	return fields, nil
}

func (rt *regTransform) fieldIndex(f *svd.Field) int {
	return slices.Index(rt.reg.Fields, f)
}

func (rt *regTransform) delete(v *ir.Node) error {
	specs, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		spec, _ = svdpatch.ParseSpec(spec)
		rt.reg.Fields = slices.DeleteFunc(rt.reg.Fields, func(f *svd.Field) bool {
			return svdpatch.Matches(f.Name, spec)
		})
	}
	return nil
}

func (rt *regTransform) stripStart(v *ir.Node) error {
	return rt.renameAll(v, stripName)
}

func (rt *regTransform) stripEnd(v *ir.Node) error {
	return rt.renameAll(v, stripNameEnd)
}

func (rt *regTransform) renameAll(v *ir.Node, f func(name, arg string) string) error {
	args, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, arg := range args {
		for _, fld := range rt.reg.Fields {
			fld.Name = f(fld.Name, arg)
		}
	}
	return nil
}

func (rt *regTransform) affix(v *ir.Node, f func(name, s string) string) error {
	if v.Type != ir.ObjectType {
		s, err := ir.AsString(v)
		if err != nil {
			return err
		}
		for _, fld := range rt.reg.Fields {
			fld.Name = f(fld.Name, s)
		}
		return nil
	}
	return ir.Entries(v, func(spec string, val *ir.Node) error {
		s, err := ir.AsString(val)
		if err != nil {
			return err
		}
		for _, fld := range rt.reg.Fields {
			if svdpatch.Matches(fld.Name, spec) {
				fld.Name = f(fld.Name, s)
			}
		}
		return nil
	})
}

func (rt *regTransform) prefix(v *ir.Node) error {
	return rt.affix(v, func(name, s string) string { return s + name })
}

func (rt *regTransform) suffix(v *ir.Node) error {
	return rt.affix(v, func(name, s string) string { return name + s })
}

func (rt *regTransform) clear(v *ir.Node) error {
	specs, err := ir.AsStrings(v)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		fields, err := rt.requireFields(spec)
		if err != nil {
			return err
		}
		for _, f := range fields {
			clearField(f)
		}
	}
	return nil
}

func (rt *regTransform) modify(v *ir.Node) error {
	return ir.Entries(v, func(spec string, val *ir.Node) error {
		fields, err := rt.requireFields(spec)
		if err != nil {
			return err
		}
		fp, err := makeField(val, rt.env)
		if err != nil {
			return inField(spec, err)
		}
		for _, f := range fields {
			fp.apply(f)
			if err := checkField(f, rt.b.cfg.ValidateLevel); err != nil {
				return err
			}
		}
		return nil
	})
}

func (rt *regTransform) add(v *ir.Node) error {
	return ir.Entries(v, func(name string, val *ir.Node) error {
		if rt.reg.GetField(name) != nil {
			return duplicate("field", name, rt.reg.Name)
		}
		fp, err := makeField(val, rt.env)
		if err != nil {
			return inField(name, err)
		}
		f, err := fp.build(name)
		if err != nil {
			return err
		}
		if err := checkField(f, rt.b.cfg.ValidateLevel); err != nil {
			return err
		}
		rt.reg.Fields = append(rt.reg.Fields, f)
		return nil
	})
}

// derive makes fields derive from another field. The source is a field of
// this register, or `REG.FIELD` / `CLUSTER.REG.FIELD` relative to the
// enclosing block.
func (rt *regTransform) derive(v *ir.Node) error {
	return ir.Entries(v, func(name string, val *ir.Node) error {
		from, mod, err := deriveSource(val)
		if err != nil {
			return err
		}
		src, ref, err := rt.resolveField(from)
		if err != nil {
			return err
		}
		if src.DerivedFrom != "" {
			return fmt.Errorf("%w: field %s is derived from %s", ErrMultilevelDerive, from, src.DerivedFrom)
		}
		fp, err := makeField(mod, rt.env)
		if err != nil {
			return inField(name, err)
		}
		if i := slices.IndexFunc(rt.reg.Fields, func(f *svd.Field) bool { return f.Name == name }); i >= 0 {
			old := rt.reg.Fields[i]
			f := &svd.Field{
				Name:        old.Name,
				Description: old.Description,
				BitOffset:   old.BitOffset,
				BitWidth:    old.BitWidth,
				Dim:         old.Dim,
			}
			fp.apply(f)
			f.DerivedFrom = ref
			rt.reg.Fields[i] = f
			return nil
		}
		f := &svd.Field{Name: name, BitOffset: src.BitOffset, BitWidth: src.BitWidth}
		fp.apply(f)
		f.DerivedFrom = ref
		rt.reg.Fields = append(rt.reg.Fields, f)
		return nil
	})
}

// resolveField looks up a derive source and returns it with the reference
// stored in derivedFrom.
func (rt *regTransform) resolveField(from string) (*svd.Field, string, error) {
	parts := strings.Split(from, ".")
	if len(parts) == 1 {
		f := rt.reg.GetField(from)
		if f == nil {
			return nil, "", notFound("field", from, rt.reg.Name)
		}
		return f, from, nil
	}
	rcs := *rt.b.rcs
	for _, part := range parts[:len(parts)-2] {
		i := slices.IndexFunc(rcs, func(rc svd.RegisterCluster) bool {
			_, ok := rc.(*svd.Cluster)
			return ok && rc.Ident() == part
		})
		if i < 0 {
			return nil, "", notFound("cluster", part, rt.b.path)
		}
		rcs = rcs[i].(*svd.Cluster).Children
	}
	rname := parts[len(parts)-2]
	for _, rc := range rcs {
		if r, ok := rc.(*svd.Register); ok && r.Name == rname {
			if f := r.GetField(parts[len(parts)-1]); f != nil {
				return f, rt.b.path + "." + from, nil
			}
		}
	}
	return nil, "", notFound("field", from, rt.b.path)
}

// merge replaces groups of fields with one field spanning them.
func (rt *regTransform) merge(v *ir.Node) error {
	if v.Type != ir.ObjectType {
		specs, err := ir.AsStrings(v)
		if err != nil {
			return err
		}
		for _, spec := range specs {
			if err := rt.mergeFields(spec, nil); err != nil {
				return err
			}
		}
		return nil
	}
	return ir.Entries(v, rt.mergeFields)
}

func (rt *regTransform) mergeFields(key string, val *ir.Node) error {
	var name string
	var fields []*svd.Field
	if val == nil || val.Type == ir.NullType {
		fs, err := rt.requireFields(key)
		if err != nil {
			return err
		}
		fields = fs
		names := make([]string, len(fs))
		for i, f := range fs {
			names[i] = f.Name
		}
		name = commonPrefix(names)
	} else {
		specs, err := ir.AsStrings(val)
		if err != nil {
			return err
		}
		for _, spec := range specs {
			fs, err := rt.requireFields(spec)
			if err != nil {
				return err
			}
			for _, f := range fs {
				if !slices.Contains(fields, f) {
					fields = append(fields, f)
				}
			}
		}
		name = key
	}
	if len(fields) == 0 {
		return nil
	}
	if name == "" {
		name = fields[0].Name
	}
	first := fields[0]
	place := len(rt.reg.Fields)
	lo, width := first.BitOffset, uint32(0)
	access := first.Access
	for _, f := range fields {
		place = min(place, rt.fieldIndex(f))
		lo = min(lo, f.BitOffset)
		width += f.BitWidth
		if f.Access != access {
			access = svd.AccessUnset
		}
	}
	merged := &svd.Field{
		Name:        name,
		Description: first.Description,
		BitOffset:   lo,
		BitWidth:    width,
		Access:      access,
	}
	rt.reg.Fields = slices.DeleteFunc(rt.reg.Fields, func(f *svd.Field) bool {
		return slices.Contains(fields, f)
	})
	rt.reg.Fields = slices.Insert(rt.reg.Fields, min(place, len(rt.reg.Fields)), merged)
	return nil
}

func commonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, n := range names[1:] {
		i := 0
		for i < len(prefix) && i < len(n) && prefix[i] == n[i] {
			i++
		}
		prefix = prefix[:i]
	}
	return prefix
}

// split turns one field into one-bit fields. `name` and `description` may
// carry a `%s` replaced by the bit index.
func (rt *regTransform) split(v *ir.Node) error {
	return specEntries(v, func(spec string, mod *ir.Node) error {
		fields, err := rt.requireFields(spec)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if len(fields) > 1 {
			return fmt.Errorf("%w: split of %q matched %d fields", ErrInconsistentShape, spec, len(fields))
		}
		f := fields[0]
		r := newReader(mod, rt.env)
		nameTmpl := f.Name + "%s"
		applyIfSet(&nameTmpl, r.str("name"))
		descTmpl := f.Description
		applyIfSet(&descTmpl, r.desc("description"))
		if r.err != nil {
			return r.err
		}
		parts := make([]*svd.Field, f.BitWidth)
		for i := range f.BitWidth {
			idx := strconv.FormatUint(uint64(i), 10)
			parts[i] = &svd.Field{
				Name:        strings.ReplaceAll(nameTmpl, "%s", idx),
				Description: strings.ReplaceAll(descTmpl, "%s", idx),
				BitOffset:   f.BitOffset + i,
				BitWidth:    1,
				Access:      f.Access,
			}
		}
		place := rt.fieldIndex(f)
		rt.reg.Fields = slices.Delete(rt.reg.Fields, place, place+1)
		rt.reg.Fields = slices.Insert(rt.reg.Fields, place, parts...)
		return nil
	})
}
