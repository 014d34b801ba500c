package encode

import (
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml/token"
	"github.com/tony-format/svdpatch/ir"
)

type EncState struct {
	col           int
	depth, indent int
	inline        bool

	Color func(ir.Type, ColorAttr, string) string
}

// Encode writes node as block style YAML.
func Encode(node *ir.Node, w io.Writer, opts ...EncodeOption) error {
	es := &EncState{
		indent: 2,
	}
	for _, opt := range opts {
		opt(es)
	}
	if err := encode(node, w, es); err != nil {
		return err
	}
	return writeString(w, "\n", es)
}

func writeNL(w io.Writer, es *EncState) error {
	if es.col == 0 {
		return nil
	}
	if _, err := io.WriteString(w, "\n"+strings.Repeat(" ", es.indent*es.depth)); err != nil {
		return err
	}
	es.col = es.indent * es.depth
	return nil
}

func writeString(w io.Writer, s string, es *EncState) error {
	_, err := io.WriteString(w, s)
	es.col += len(s)
	return err
}

func applyColor(es *EncState, nodeType ir.Type, attr ColorAttr, v string) string {
	if es.Color == nil {
		return v
	}
	return es.Color(nodeType, attr, v)
}

func isBlock(node *ir.Node) bool {
	switch node.Type {
	case ir.ObjectType, ir.ArrayType:
		return len(node.Values) != 0
	}
	return false
}

func encode(node *ir.Node, w io.Writer, es *EncState) error {
	switch node.Type {
	case ir.ObjectType:
		return encodeObject(node, w, es)
	case ir.ArrayType:
		return encodeArray(node, w, es)
	case ir.StringType:
		return writeString(w, applyColor(es, ir.StringType, ValueColor, quoteString(node.String)), es)
	case ir.NumberType:
		return writeString(w, applyColor(es, ir.NumberType, ValueColor, formatNumber(node)), es)
	case ir.BoolType:
		return writeString(w, applyColor(es, ir.BoolType, ValueColor, strconv.FormatBool(node.Bool)), es)
	case ir.NullType:
		return writeString(w, applyColor(es, ir.NullType, ValueColor, "null"), es)
	default:
		panic("type")
	}
}

func encodeObject(node *ir.Node, w io.Writer, es *EncState) error {
	if len(node.Fields) == 0 {
		return writeString(w, applyColor(es, ir.ObjectType, SepColor, "{}"), es)
	}
	for i, field := range node.Fields {
		if i > 0 || !es.inline {
			if err := writeNL(w, es); err != nil {
				return err
			}
		}
		es.inline = false
		key := applyColor(es, ir.ObjectType, FieldColor, quoteString(field.String))
		if err := writeString(w, key+applyColor(es, ir.ObjectType, SepColor, ":"), es); err != nil {
			return err
		}
		if err := encodeChild(node.Values[i], w, es, " "); err != nil {
			return err
		}
	}
	return nil
}

func encodeArray(node *ir.Node, w io.Writer, es *EncState) error {
	if len(node.Values) == 0 {
		return writeString(w, applyColor(es, ir.ArrayType, SepColor, "[]"), es)
	}
	for i, val := range node.Values {
		if i > 0 || !es.inline {
			if err := writeNL(w, es); err != nil {
				return err
			}
		}
		es.inline = false
		if err := writeString(w, applyColor(es, ir.ArrayType, SepColor, "-"), es); err != nil {
			return err
		}
		if isBlock(val) {
			if err := writeString(w, " ", es); err != nil {
				return err
			}
			es.depth++
			es.inline = true
			err := encode(val, w, es)
			es.depth--
			if err != nil {
				return err
			}
			continue
		}
		if err := encodeChild(val, w, es, " "); err != nil {
			return err
		}
	}
	return nil
}

func encodeChild(val *ir.Node, w io.Writer, es *EncState, sep string) error {
	if !isBlock(val) {
		if err := writeString(w, sep, es); err != nil {
			return err
		}
		return encode(val, w, es)
	}
	es.depth++
	defer func() { es.depth-- }()
	return encode(val, w, es)
}

func formatNumber(node *ir.Node) string {
	switch {
	case node.Int64 != nil:
		return strconv.FormatInt(*node.Int64, 10)
	case node.Float64 != nil:
		return strconv.FormatFloat(*node.Float64, 'g', -1, 64)
	}
	return "0"
}

// quoteString leaves plain scalars alone and quotes anything YAML would
// read back as something other than the same string.
func quoteString(v string) string {
	if strings.ContainsAny(v, "\n\r\t") || token.IsNeedQuoted(v) {
		return strconv.Quote(v)
	}
	return v
}
