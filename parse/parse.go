package parse

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/tony-format/svdpatch/ir"
)

// Parse reads a YAML document into an ir.Node tree. Mapping keys keep
// their document order. An empty document parses to null.
func Parse(d []byte, opts ...ParseOption) (*ir.Node, error) {
	pOpts := &parseOpts{}
	for _, f := range opts {
		f(pOpts)
	}
	var v any
	if err := yaml.UnmarshalWithOptions(d, &v, pOpts.decodeOptions()...); err != nil {
		return nil, fmt.Errorf("%w: %w", ir.ErrParse, err)
	}
	return FromAny(v)
}

// ParseFile parses the YAML file at path.
func ParseFile(path string, opts ...ParseOption) (*ir.Node, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	node, err := Parse(d, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return node, nil
}

// FromAny converts decoded YAML values into nodes.
func FromAny(v any) (*ir.Node, error) {
	switch x := v.(type) {
	case nil:
		return ir.Null(), nil
	case yaml.MapSlice:
		res := &ir.Node{Type: ir.ObjectType}
		for _, item := range x {
			val, err := FromAny(item.Value)
			if err != nil {
				return nil, err
			}
			res.Set(keyString(item.Key), val)
		}
		return res, nil
	case map[string]any:
		return nil, fmt.Errorf("%w: unordered mapping", ir.ErrParse)
	case []any:
		vals := make([]*ir.Node, len(x))
		for i, elt := range x {
			val, err := FromAny(elt)
			if err != nil {
				return nil, err
			}
			vals[i] = val
		}
		return ir.FromSlice(vals), nil
	case string:
		return ir.FromString(x), nil
	case bool:
		return ir.FromBool(x), nil
	case int:
		return ir.FromInt(int64(x)), nil
	case int64:
		return ir.FromInt(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer %d out of range", ir.ErrParse, x)
		}
		return ir.FromInt(int64(x)), nil
	case float64:
		return ir.FromFloat(x), nil
	case time.Time:
		return ir.FromString(x.Format(time.RFC3339)), nil
	default:
		return ir.FromString(fmt.Sprint(x)), nil
	}
}

func keyString(k any) string {
	switch x := k.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
