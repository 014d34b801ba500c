package patch

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tony-format/svdpatch"
	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/svd"
)

// arrayShape is the dim group shared by a run of equally spaced
// elements.
type arrayShape struct {
	labels    []string
	increment uint64
}

func (s arrayShape) dim() *svd.DimElement {
	return &svd.DimElement{
		Dim:          uint32(len(s.labels)),
		DimIncrement: uint32(s.increment),
		DimIndex:     s.labels,
	}
}

// shapeOf computes labels and stride for names sorted by offset.
func shapeOf(spec string, names []string, offsets []uint64, fromZero bool) (arrayShape, error) {
	var shape arrayShape
	if fromZero {
		for i := range names {
			shape.labels = append(shape.labels, strconv.Itoa(i))
		}
	} else {
		left, right, err := svdpatch.LocateToken(spec)
		if err != nil {
			return shape, err
		}
		for _, n := range names {
			shape.labels = append(shape.labels, svdpatch.IndexLabel(n, left, right))
		}
	}
	if len(offsets) > 1 {
		shape.increment = offsets[1] - offsets[0]
		for i := 2; i < len(offsets); i++ {
			if offsets[i]-offsets[i-1] != shape.increment {
				return shape, fmt.Errorf("%w: %s: elements are not equally spaced", ErrInconsistentShape, spec)
			}
		}
	}
	return shape, nil
}

// inferDescription finds a template in the first description that yields
// every description when the first label is replaced per element.
func inferDescription(descs, labels []string) (string, bool) {
	if len(descs) == 0 {
		return "", false
	}
	if !slices.ContainsFunc(descs, func(d string) bool { return d != descs[0] }) {
		return descs[0], true
	}
	first, label := descs[0], labels[0]
	if label == "" {
		return "", false
	}
	candidates := []string{strings.ReplaceAll(first, label, "%s")}
	for i := 0; ; {
		j := strings.Index(first[i:], label)
		if j < 0 {
			break
		}
		p := i + j
		candidates = append(candidates, first[:p]+"%s"+first[p+len(label):])
		i = p + 1
	}
	for _, tmpl := range candidates {
		ok := true
		for i, d := range descs {
			if strings.ReplaceAll(tmpl, "%s", labels[i]) != d {
				ok = false
				break
			}
		}
		if ok {
			return tmpl, true
		}
	}
	return "", false
}

func arrayOptions(mod *ir.Node) (name, desc *string, fromZero bool, rest *ir.Node, err error) {
	r := newReader(mod, nil)
	name = r.str("name")
	desc = r.str("description")
	if z := r.bool("_start_from_zero"); z != nil {
		fromZero = *z
	}
	return name, desc, fromZero, withoutKeys(mod, "name", "description", "_start_from_zero"), r.err
}

// collectArray folds the registers matching spec into one register array.
func (b *block) collectArray(spec string, mod *ir.Node) error {
	s, ignore := svdpatch.ParseSpec(spec)
	var regs []*svd.Register
	place := -1
	for i, rc := range *b.rcs {
		if r, ok := rc.(*svd.Register); ok && svdpatch.Matches(r.Name, s) {
			regs = append(regs, r)
			if place < 0 {
				place = i
			}
		}
	}
	if len(regs) == 0 {
		if ignore {
			b.logSkip("register", spec)
			return nil
		}
		return notFound("register", spec, b.path)
	}
	if len(regs) == 1 && regs[0].Dim != nil {
		return nil
	}
	slices.SortStableFunc(regs, func(x, y *svd.Register) int { return cmp.Compare(x.AddressOffset, y.AddressOffset) })
	names := make([]string, len(regs))
	offsets := make([]uint64, len(regs))
	descs := make([]string, len(regs))
	for i, r := range regs {
		if r.Dim != nil {
			return fmt.Errorf("%w: register %s is already an array", ErrInconsistentShape, r.Name)
		}
		if r.Bitmask() != regs[0].Bitmask() {
			return fmt.Errorf("%w: registers %s and %s have different fields", ErrInconsistentShape, regs[0].Name, r.Name)
		}
		names[i], offsets[i], descs[i] = r.Name, r.AddressOffset, r.Description
	}
	name, desc, fromZero, rest, err := arrayOptions(mod)
	if err != nil {
		return err
	}
	shape, err := shapeOf(s, names, offsets, fromZero)
	if err != nil {
		return err
	}
	arr := regs[0].Clone()
	arr.Name, _, _ = strings.Cut(s, ",")
	if left, right, err := svdpatch.LocateToken(s); err == nil {
		arr.Name = svdpatch.ReplaceToken(s, left, right, "%s")
	}
	applyIfSet(&arr.Name, name)
	if desc != nil {
		arr.Description, err = expand(*desc, b.env)
		if err != nil {
			return err
		}
	} else if d, ok := inferDescription(descs, shape.labels); ok {
		arr.Description = d
	}
	arr.Dim = shape.dim()
	if debug.Collect() {
		debug.Logf("array %s: %d elements, increment %#x\n", arr.Name, len(regs), shape.increment)
	}
	rp, err := makeRegister(rest, b.env.With("register", arr.Name))
	if err != nil {
		return err
	}
	if err := rp.apply(arr, b.env); err != nil {
		return err
	}
	b.replace(place, func(rc svd.RegisterCluster) bool {
		r, ok := rc.(*svd.Register)
		return ok && slices.Contains(regs, r)
	}, arr)
	return nil
}

// replace removes the elements matching drop and inserts rc at place, the
// index of the first removed element.
func (b *block) replace(place int, drop func(svd.RegisterCluster) bool, rc svd.RegisterCluster) {
	*b.rcs = slices.DeleteFunc(*b.rcs, drop)
	*b.rcs = slices.Insert(*b.rcs, min(place, len(*b.rcs)), rc)
}

// collectArray folds the fields matching spec into one field array.
func (rt *regTransform) collectArray(spec string, mod *ir.Node) error {
	s, ignore := svdpatch.ParseSpec(spec)
	var fields []*svd.Field
	place := -1
	for i, f := range rt.reg.Fields {
		if svdpatch.Matches(f.Name, s) {
			fields = append(fields, f)
			if place < 0 {
				place = i
			}
		}
	}
	if len(fields) == 0 {
		if ignore {
			rt.b.logSkip("field", spec)
			return nil
		}
		return notFound("field", spec, rt.reg.Name)
	}
	if len(fields) == 1 && fields[0].Dim != nil {
		return nil
	}
	slices.SortStableFunc(fields, func(x, y *svd.Field) int { return cmp.Compare(x.BitOffset, y.BitOffset) })
	names := make([]string, len(fields))
	offsets := make([]uint64, len(fields))
	descs := make([]string, len(fields))
	for i, f := range fields {
		if f.Dim != nil {
			return fmt.Errorf("%w: field %s is already an array", ErrInconsistentShape, f.Name)
		}
		if f.BitWidth != fields[0].BitWidth {
			return fmt.Errorf("%w: fields %s and %s differ in width", ErrInconsistentShape, fields[0].Name, f.Name)
		}
		names[i], offsets[i], descs[i] = f.Name, uint64(f.BitOffset), f.Description
	}
	name, desc, fromZero, rest, err := arrayOptions(mod)
	if err != nil {
		return err
	}
	shape, err := shapeOf(s, names, offsets, fromZero)
	if err != nil {
		return err
	}
	arr := fields[0].Clone()
	arr.Name, _, _ = strings.Cut(s, ",")
	if left, right, err := svdpatch.LocateToken(s); err == nil {
		arr.Name = svdpatch.ReplaceToken(s, left, right, "%s")
	}
	applyIfSet(&arr.Name, name)
	switch d, ok := inferDescription(descs, shape.labels); {
	case desc != nil:
		if arr.Description, err = expand(*desc, rt.env); err != nil {
			return err
		}
	case ok:
		arr.Description = d
	default:
		return fmt.Errorf("%w: cannot infer a description for %s, give one explicitly", ErrInconsistentShape, arr.Name)
	}
	arr.Dim = shape.dim()
	fp, err := makeField(rest, rt.env)
	if err != nil {
		return err
	}
	fp.apply(arr)
	rt.reg.Fields = slices.DeleteFunc(rt.reg.Fields, func(f *svd.Field) bool { return slices.Contains(fields, f) })
	rt.reg.Fields = slices.Insert(rt.reg.Fields, min(place, len(rt.reg.Fields)), arr)
	return nil
}

// clusterRole is one register kind of a collected cluster.
type clusterRole struct {
	spec  string
	opts  *ir.Node
	regs  []*svd.Register
	shape arrayShape
}

// collectCluster groups registers into a cluster. Without `%s` in cname
// every role matches exactly one register; otherwise each role matches one
// register per cluster instance and the result is a cluster array.
func (b *block) collectCluster(cname string, cmod *ir.Node) error {
	mod, err := ir.AsObject(cmod)
	if err != nil {
		return err
	}
	single := !strings.Contains(cname, "%s")
	fromZero := false
	if z, err := ir.GetBool(mod, "_start_from_zero"); err != nil {
		return err
	} else if z != nil {
		fromZero = *z
	}
	var roles []*clusterRole
	place := len(*b.rcs)
	err = ir.Entries(mod, func(spec string, opts *ir.Node) error {
		if strings.HasPrefix(spec, "_") || spec == "description" {
			return nil
		}
		o, err := ir.AsObject(opts)
		if err != nil {
			return err
		}
		role := &clusterRole{spec: spec, opts: o}
		for i, rc := range *b.rcs {
			if r, ok := rc.(*svd.Register); ok && svdpatch.Matches(r.Name, spec) {
				role.regs = append(role.regs, r)
				place = min(place, i)
			}
		}
		if len(role.regs) == 0 {
			return notFound("register", spec, b.path)
		}
		slices.SortStableFunc(role.regs, func(x, y *svd.Register) int { return cmp.Compare(x.AddressOffset, y.AddressOffset) })
		if single {
			if len(role.regs) != 1 {
				return fmt.Errorf("%w: %s matched %d registers in single cluster %s", ErrInconsistentShape, spec, len(role.regs), cname)
			}
			roles = append(roles, role)
			return nil
		}
		names := make([]string, len(role.regs))
		offsets := make([]uint64, len(role.regs))
		for i, r := range role.regs {
			if r.Bitmask() != role.regs[0].Bitmask() {
				return fmt.Errorf("%w: registers %s and %s have different fields", ErrInconsistentShape, role.regs[0].Name, r.Name)
			}
			names[i], offsets[i] = r.Name, r.AddressOffset
		}
		role.shape, err = shapeOf(spec, names, offsets, fromZero)
		if err != nil {
			return err
		}
		roles = append(roles, role)
		return nil
	})
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return fmt.Errorf("%w: cluster %s has no registers", ErrInconsistentShape, cname)
	}
	first := roles[0]
	base := first.regs[0].AddressOffset
	for _, role := range roles[1:] {
		base = min(base, role.regs[0].AddressOffset)
		if single {
			continue
		}
		switch {
		case len(role.regs) != len(first.regs):
			return fmt.Errorf("%w: %s matched %d registers, %s matched %d", ErrInconsistentShape, first.spec, len(first.regs), role.spec, len(role.regs))
		case !slices.Equal(role.shape.labels, first.shape.labels):
			return fmt.Errorf("%w: %s and %s have different indices", ErrInconsistentShape, first.spec, role.spec)
		case role.shape.increment != first.shape.increment:
			return fmt.Errorf("%w: %s and %s have different strides", ErrInconsistentShape, first.spec, role.spec)
		}
	}
	c := &svd.Cluster{Name: cname, AddressOffset: base}
	var childNames []string
	for _, role := range roles {
		child := role.regs[0].Clone()
		child.Dim = nil
		child.AddressOffset -= base
		if !single {
			left, right, err := svdpatch.LocateToken(role.spec)
			if err != nil {
				return err
			}
			child.Name = svdpatch.ReplaceToken(role.spec, left, right, "")
			descs := make([]string, len(role.regs))
			for i, r := range role.regs {
				descs[i] = r.Description
			}
			if d, ok := inferDescription(descs, role.shape.labels); ok {
				child.Description = d
			}
		}
		name, desc, _, rest, err := arrayOptions(role.opts)
		if err != nil {
			return err
		}
		applyIfSet(&child.Name, name)
		if desc != nil {
			if child.Description, err = expand(*desc, b.env); err != nil {
				return err
			}
		}
		rp, err := makeRegister(rest, b.env.With("register", child.Name))
		if err != nil {
			return err
		}
		if err := rp.apply(child, b.env); err != nil {
			return err
		}
		childNames = append(childNames, child.Name)
		c.Children = append(c.Children, child)
	}
	c.Description = fmt.Sprintf("Cluster %s, containing %s", cname, strings.Join(childNames, ", "))
	if d, ok, err := ir.GetString(mod, "description"); err != nil {
		return err
	} else if ok {
		if c.Description, err = expand(d, b.env.With("cluster", cname)); err != nil {
			return err
		}
	}
	if !single {
		c.Dim = first.shape.dim()
	}
	if debug.Collect() {
		debug.Logf("cluster %s at %#x: %s\n", cname, base, strings.Join(childNames, ", "))
	}
	var matched []*svd.Register
	for _, role := range roles {
		matched = append(matched, role.regs...)
	}
	b.replace(place, func(rc svd.RegisterCluster) bool {
		r, ok := rc.(*svd.Register)
		return ok && slices.Contains(matched, r)
	}, c)
	return nil
}
