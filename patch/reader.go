package patch

import (
	"fmt"
	"strings"

	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/svd"
)

// reader pulls optional values out of a document object, keeping the
// first error so builders read as flat lists of assignments.
type reader struct {
	node *ir.Node
	env  eval.Env
	err  error
}

func newReader(node *ir.Node, env eval.Env) *reader {
	return &reader{node: node, env: env}
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) has(key string) bool {
	return ir.Get(r.node, key) != nil
}

func (r *reader) str(key string) *string {
	s, ok, err := ir.GetString(r.node, key)
	if err != nil {
		r.fail(err)
		return nil
	}
	if !ok {
		return nil
	}
	return &s
}

// desc reads a string and expands it against the env table.
func (r *reader) desc(key string) *string {
	s := r.str(key)
	if s == nil {
		return nil
	}
	xs, err := expand(*s, r.env)
	if err != nil {
		r.fail(fmt.Errorf("%s: %w", key, err))
		return nil
	}
	return &xs
}

func (r *reader) u64(key string) *uint64 {
	v, err := ir.GetUint(r.node, key)
	if err != nil {
		r.fail(err)
		return nil
	}
	return v
}

func (r *reader) u32(key string) *uint32 {
	v := r.u64(key)
	if v == nil {
		return nil
	}
	u := uint32(*v)
	return &u
}

func (r *reader) bool(key string) *bool {
	v, err := ir.GetBool(r.node, key)
	if err != nil {
		r.fail(err)
		return nil
	}
	return v
}

func (r *reader) access(key string) *svd.Access {
	s := r.str(key)
	if s == nil {
		return nil
	}
	a, err := svd.ParseAccess(*s)
	if err != nil {
		r.fail(err)
		return nil
	}
	return &a
}

func (r *reader) mwv(key string) *svd.ModifiedWriteValues {
	s := r.str(key)
	if s == nil {
		return nil
	}
	m, err := svd.ParseModifiedWriteValues(*s)
	if err != nil {
		r.fail(err)
		return nil
	}
	return &m
}

func (r *reader) readAction(key string) *svd.ReadAction {
	s := r.str(key)
	if s == nil {
		return nil
	}
	a, err := svd.ParseReadAction(*s)
	if err != nil {
		r.fail(err)
		return nil
	}
	return &a
}

// writeConstraint reads `{range: [min, max]}`, `{writeAsRead: true}`,
// `{useEnumeratedValues: true}` or null to clear.
func (r *reader) writeConstraint(key string) **svd.WriteConstraint {
	v := ir.Get(r.node, key)
	if v == nil {
		return nil
	}
	var wc *svd.WriteConstraint
	switch v.Type {
	case ir.NullType:
	case ir.StringType:
		switch v.String {
		case "none":
		case "writeAsRead":
			wc = &svd.WriteConstraint{Kind: svd.WriteAsRead}
		case "useEnumeratedValues":
			wc = &svd.WriteConstraint{Kind: svd.UseEnumeratedValues}
		default:
			r.fail(fmt.Errorf("%s: unknown write constraint %q", v.Path(), v.String))
			return nil
		}
	case ir.ObjectType:
		sub := newReader(v, r.env)
		switch {
		case sub.has("range"):
			lo, hi, err := rangePair(ir.Get(v, "range"))
			if err != nil {
				r.fail(err)
				return nil
			}
			wc = &svd.WriteConstraint{Kind: svd.WriteRange, Min: lo, Max: hi}
		case sub.bool("writeAsRead") != nil:
			wc = &svd.WriteConstraint{Kind: svd.WriteAsRead}
		case sub.bool("useEnumeratedValues") != nil:
			wc = &svd.WriteConstraint{Kind: svd.UseEnumeratedValues}
		}
		r.fail(sub.err)
	case ir.ArrayType:
		lo, hi, err := rangePair(v)
		if err != nil {
			r.fail(err)
			return nil
		}
		wc = &svd.WriteConstraint{Kind: svd.WriteRange, Min: lo, Max: hi}
	default:
		r.fail(fmt.Errorf("%s: expected write constraint, got %s", v.Path(), v.Type))
		return nil
	}
	return &wc
}

func rangePair(v *ir.Node) (uint64, uint64, error) {
	if v.Type != ir.ArrayType || len(v.Values) != 2 {
		return 0, 0, fmt.Errorf("%w: %s: expected [min, max]", ir.ErrDocumentType, v.Path())
	}
	lo, err := ir.AsUint(v.Values[0])
	if err != nil {
		return 0, 0, err
	}
	hi, err := ir.AsUint(v.Values[1])
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// dim reads the dim group keys. Absent keys leave the target unchanged.
func (r *reader) dim() *dimPatch {
	if !r.has("dim") && !r.has("dimIncrement") && !r.has("dimIndex") && !r.has("dimName") {
		return nil
	}
	p := &dimPatch{
		Dim:          r.u32("dim"),
		DimIncrement: r.u32("dimIncrement"),
		DimName:      r.str("dimName"),
	}
	if v := ir.Get(r.node, "dimIndex"); v != nil {
		var idx []string
		var err error
		if v.Type == ir.ArrayType {
			idx, err = ir.AsStrings(v)
		} else {
			var s string
			s, err = ir.AsString(v)
			if err == nil {
				idx, err = svd.ParseDimIndex(s)
			}
		}
		if err != nil {
			r.fail(err)
		}
		p.DimIndex = idx
	}
	return p
}

func (r *reader) regProps() regPropsPatch {
	return regPropsPatch{
		Size:       r.u32("size"),
		Access:     r.access("access"),
		Protection: r.str("protection"),
		ResetValue: r.u64("resetValue"),
		ResetMask:  r.u64("resetMask"),
	}
}

func expand(s string, env eval.Env) (string, error) {
	if !strings.ContainsAny(s, "`$") {
		return s, nil
	}
	return eval.ExpandString(s, env)
}
