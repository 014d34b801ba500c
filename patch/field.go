package patch

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/svd"
)

var readActionKeys = map[string]svd.ReadAction{
	"_RM":  svd.ReadModify,
	"_RS":  svd.ReadSet,
	"_RC":  svd.ReadClear,
	"_RME": svd.ReadModifyExternal,
}

var writeValueKeys = map[string]svd.ModifiedWriteValues{
	"_WM":  svd.MWVModify,
	"_WS":  svd.MWVSet,
	"_WC":  svd.MWVClear,
	"_W1S": svd.OneToSet,
	"_W0C": svd.ZeroToClear,
	"_W1C": svd.OneToClear,
	"_W0S": svd.ZeroToSet,
	"_W1T": svd.OneToToggle,
	"_W0T": svd.ZeroToToggle,
}

// processField handles a field spec: an object of enumerated values and
// access directives, or a `[min, max]` write range.
func (rt *regTransform) processField(spec string, val *ir.Node) error {
	fields, err := rt.requireFields(spec)
	if err != nil || len(fields) == 0 {
		return err
	}
	switch val.Type {
	case ir.NullType:
		return nil
	case ir.ObjectType:
		return inField(spec, rt.processEnum(fields, val, svd.UsageReadWrite, false))
	case ir.ArrayType:
		return inField(spec, rt.processRange(fields, val))
	}
	return fmt.Errorf("%w: %s: expected enumerated values or range, got %s", ir.ErrDocumentType, val.Path(), val.Type)
}

func (rt *regTransform) processRange(fields []*svd.Field, val *ir.Node) error {
	lo, hi, err := rangePair(val)
	if err != nil {
		return err
	}
	wc := &svd.WriteConstraint{Kind: svd.WriteRange, Min: lo, Max: hi}
	for _, f := range fields {
		if f.WriteConstraint != nil && !f.WriteConstraint.Equal(wc) {
			return fmt.Errorf("%w: field %s already has a write constraint", ErrOccupiedSlot, f.Name)
		}
		c := *wc
		f.WriteConstraint = &c
	}
	return nil
}

func (rt *regTransform) processEnum(fields []*svd.Field, doc *ir.Node, usage svd.Usage, replace bool) error {
	if v := ir.Get(doc, "_replace_enum"); v != nil {
		obj, err := ir.AsObject(v)
		if err != nil {
			return err
		}
		doc, replace = obj, true
	}
	var name, derivedFrom string
	err := ir.Entries(doc, func(key string, val *ir.Node) error {
		if !strings.HasPrefix(key, "_") {
			return nil
		}
		switch key {
		case "_replace_enum":
			return nil
		case "_name":
			s, err := ir.AsString(val)
			name = s
			return err
		case "_derivedFrom":
			s, err := ir.AsString(val)
			derivedFrom = s
			return err
		case "_read":
			return rt.processSubEnum(fields, val, svd.UsageRead, replace)
		case "_write":
			return rt.processSubEnum(fields, val, svd.UsageWrite, replace)
		}
		if ra, ok := readActionKeys[key]; ok {
			for _, f := range fields {
				f.ReadAction = ra
			}
			return rt.processSubEnum(fields, val, svd.UsageRead, replace)
		}
		if mwv, ok := writeValueKeys[key]; ok {
			for _, f := range fields {
				f.ModifiedWriteValues = mwv
			}
			return rt.processSubEnum(fields, val, svd.UsageWrite, replace)
		}
		return fmt.Errorf("%w: %s", ErrUnknownDirective, key)
	})
	if err != nil {
		return err
	}
	if derivedFrom != "" {
		return rt.deriveEnum(fields, derivedFrom, usage, replace)
	}
	values, err := rt.makeEnumValues(doc)
	if err != nil || len(values) == 0 {
		return err
	}
	for i, f := range fields {
		access := rt.access(f)
		checked, err := checkUsage(access, usage)
		if err != nil {
			return inField(f.Name, err)
		}
		ev := &svd.EnumeratedValues{}
		if i == 0 {
			ev.Name = name
			if ev.Name == "" && len(fields) > 1 {
				ev.Name = f.Name + usageSuffix(usage)
			}
			name = ev.Name
			ev.Values = values
		} else {
			ev.DerivedFrom = name
		}
		if err := setEnum(f, ev, checked, access, replace); err != nil {
			return err
		}
	}
	return nil
}

// usageSuffix keeps the read and write sets of one field apart when
// they are named after it.
func usageSuffix(u svd.Usage) string {
	switch u {
	case svd.UsageRead:
		return "_R"
	case svd.UsageWrite:
		return "_W"
	}
	return ""
}

func (rt *regTransform) processSubEnum(fields []*svd.Field, val *ir.Node, usage svd.Usage, replace bool) error {
	if val.Type != ir.ObjectType {
		return nil
	}
	return rt.processEnum(fields, val, usage, replace)
}

// access is the effective access of f, inherited from the register and
// the enclosing blocks.
func (rt *regTransform) access(f *svd.Field) svd.Access {
	switch {
	case f.Access != svd.AccessUnset:
		return f.Access
	case rt.reg.Access != svd.AccessUnset:
		return rt.reg.Access
	case rt.b.props.Access != svd.AccessUnset:
		return rt.b.props.Access
	}
	return svd.ReadWrite
}

// checkUsage narrows the requested usage to what a field with access a
// supports.
func checkUsage(a svd.Access, usage svd.Usage) (svd.Usage, error) {
	switch a {
	case svd.ReadWrite, svd.ReadWriteOnce, svd.AccessUnset:
		return usage, nil
	case svd.ReadOnly:
		if usage == svd.UsageRead || usage == svd.UsageReadWrite {
			return svd.UsageRead, nil
		}
	case svd.WriteOnly, svd.WriteOnce:
		if usage == svd.UsageWrite || usage == svd.UsageReadWrite {
			return svd.UsageWrite, nil
		}
	}
	return usage, fmt.Errorf("%w: %s values on %s field", ErrIncompatibleUsage, usage, a)
}

// defaultUsage is the usage an unlabeled set has on a field with access a.
func defaultUsage(a svd.Access) svd.Usage {
	switch a {
	case svd.ReadOnly:
		return svd.UsageRead
	case svd.WriteOnly, svd.WriteOnce:
		return svd.UsageWrite
	}
	return svd.UsageReadWrite
}

// slotOf is the usage slot ev occupies on a field whose default usage is def.
func slotOf(ev *svd.EnumeratedValues, def svd.Usage) svd.Usage {
	if ev.Usage == svd.UsageUnset {
		return def
	}
	return ev.Usage
}

// setEnum places ev into the slot for usage on f. A set whose usage is the
// access default is stored unlabeled. An unlabeled set on a read-write
// field is relabeled to the other direction when a one-way set arrives.
func setEnum(f *svd.Field, ev *svd.EnumeratedValues, usage svd.Usage, access svd.Access, replace bool) error {
	def := defaultUsage(access)
	ev.Usage = usage
	if usage == def {
		ev.Usage = svd.UsageUnset
	}
	occupied := func() error {
		return fmt.Errorf("%w: field %s already has %s enumerated values", ErrOccupiedSlot, f.Name, usage)
	}
	if usage == svd.UsageReadWrite || len(f.EnumeratedValues) == 0 {
		if len(f.EnumeratedValues) == 0 || replace {
			f.EnumeratedValues = []*svd.EnumeratedValues{ev}
			return nil
		}
		return occupied()
	}
	for i, cur := range f.EnumeratedValues {
		switch slotOf(cur, def) {
		case usage:
			if !replace {
				return occupied()
			}
			f.EnumeratedValues[i] = ev
			return nil
		case svd.UsageReadWrite:
			if def != svd.UsageReadWrite {
				if !replace {
					return occupied()
				}
				f.EnumeratedValues = []*svd.EnumeratedValues{ev}
				return nil
			}
			cur.Usage = usage.Complement()
		}
	}
	if len(f.EnumeratedValues) > 1 {
		return occupied()
	}
	f.EnumeratedValues = append(f.EnumeratedValues, ev)
	return nil
}

// deriveEnum points every field at a named set defined elsewhere in the
// register or peripheral.
func (rt *regTransform) deriveEnum(fields []*svd.Field, name string, usage svd.Usage, replace bool) error {
	src, err := rt.lookupEnum(name)
	if err != nil {
		return err
	}
	for _, f := range fields {
		u := src.Usage.Effective()
		if usage != svd.UsageReadWrite {
			u = usage
		}
		access := rt.access(f)
		checked, err := checkUsage(access, u)
		if err != nil {
			return inField(f.Name, err)
		}
		ev := &svd.EnumeratedValues{DerivedFrom: name}
		if err := setEnum(f, ev, checked, access, replace); err != nil {
			return err
		}
	}
	return nil
}

func (rt *regTransform) lookupEnum(name string) (*svd.EnumeratedValues, error) {
	find := func(fields []*svd.Field) (*svd.EnumeratedValues, *svd.Field, int) {
		var res *svd.EnumeratedValues
		var owner *svd.Field
		n := 0
		for _, f := range fields {
			for _, ev := range f.EnumeratedValues {
				if ev.Name == name {
					res, owner = ev, f
					n++
				}
			}
		}
		return res, owner, n
	}
	src, owner, n := find(rt.reg.Fields)
	if n == 0 {
		src, owner, n = find(svd.Fields(*rt.b.root))
	}
	switch {
	case n == 0:
		return nil, notFound("enumeratedValues", name, rt.reg.Name)
	case n > 1:
		return nil, fmt.Errorf("%w: enumeratedValues %s is defined %d times", ErrMultilevelDerive, name, n)
	case src.DerivedFrom != "":
		return nil, fmt.Errorf("%w: enumeratedValues %s is derived from %s", ErrMultilevelDerive, name, src.DerivedFrom)
	case len(owner.EnumeratedValues) > 1:
		return nil, fmt.Errorf("%w: enumeratedValues %s belongs to split field %s", ErrMultilevelDerive, name, owner.Name)
	}
	return src, nil
}

// makeEnumValues reads `NAME: [value, description]` entries, sorted by
// value with the default last.
func (rt *regTransform) makeEnumValues(doc *ir.Node) ([]*svd.EnumeratedValue, error) {
	var res []*svd.EnumeratedValue
	seen := map[uint64]string{}
	hasDefault := false
	err := ir.Entries(doc, func(name string, val *ir.Node) error {
		if strings.HasPrefix(name, "_") {
			return nil
		}
		if name != "" && name[0] >= '0' && name[0] <= '9' {
			return fmt.Errorf("%w: enumerated value name %q starts with a digit", ir.ErrDocumentType, name)
		}
		vnode, dnode := val, (*ir.Node)(nil)
		if val.Type == ir.ArrayType {
			if len(val.Values) == 0 || len(val.Values) > 2 {
				return fmt.Errorf("%w: %s: expected [value, description]", ir.ErrDocumentType, val.Path())
			}
			vnode = val.Values[0]
			if len(val.Values) == 2 {
				dnode = val.Values[1]
			}
		}
		ev := &svd.EnumeratedValue{Name: name}
		if dnode != nil {
			d, err := ir.AsString(dnode)
			if err != nil {
				return err
			}
			if ev.Description, err = expand(d, rt.env); err != nil {
				return err
			}
		}
		if isDefaultValue(vnode) {
			if hasDefault {
				return fmt.Errorf("%w: %s: second default enumerated value", ErrDuplicateEntity, name)
			}
			hasDefault = true
			ev.IsDefault = true
			res = append(res, ev)
			return nil
		}
		v, err := ir.AsUint(vnode)
		if err != nil {
			return err
		}
		if prev, ok := seen[v]; ok {
			return fmt.Errorf("%w: enumerated values %s and %s share value %d", ErrDuplicateEntity, prev, name, v)
		}
		seen[v] = name
		ev.Value = &v
		res = append(res, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(res, func(a, b *svd.EnumeratedValue) int {
		switch {
		case a.IsDefault || b.IsDefault:
			return cmp.Compare(boolInt(a.IsDefault), boolInt(b.IsDefault))
		}
		return cmp.Compare(*a.Value, *b.Value)
	})
	return res, nil
}

func isDefaultValue(v *ir.Node) bool {
	if v.Type == ir.StringType {
		return v.String == "default"
	}
	i, err := ir.AsInt(v)
	return err == nil && i == -1
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
