package ir

import (
	"math"
	"strconv"
	"strings"
)

// AsObject returns y when it is an object. A null or absent node is an
// empty object so that `KEY:` with no value behaves as `KEY: {}`.
func AsObject(y *Node) (*Node, error) {
	if y == nil || y.Type == NullType {
		return &Node{Type: ObjectType}, nil
	}
	if y.Type != ObjectType {
		return nil, typeError(y, "object")
	}
	return y, nil
}

func AsString(y *Node) (string, error) {
	if y == nil {
		return "", nil
	}
	switch y.Type {
	case StringType:
		return y.String, nil
	case NumberType:
		// numeric-looking names such as `0` are still names
		if y.Int64 != nil {
			return strconv.FormatInt(*y.Int64, 10), nil
		}
	case BoolType:
		return strconv.FormatBool(y.Bool), nil
	}
	return "", typeError(y, "string")
}

// AsInt accepts integer numbers and numeric strings, including 0x and 0b
// prefixed forms.
func AsInt(y *Node) (int64, error) {
	switch y.Type {
	case NumberType:
		if y.Int64 != nil {
			return *y.Int64, nil
		}
		if y.Float64 != nil && *y.Float64 == math.Trunc(*y.Float64) {
			return int64(*y.Float64), nil
		}
	case StringType:
		if v, err := ParseInt(y.String); err == nil {
			return v, nil
		}
	}
	return 0, typeError(y, "integer")
}

func AsUint(y *Node) (uint64, error) {
	v, err := AsInt(y)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, typeError(y, "unsigned integer")
	}
	return uint64(v), nil
}

func AsBool(y *Node) (bool, error) {
	switch y.Type {
	case BoolType:
		return y.Bool, nil
	case StringType:
		if b, err := strconv.ParseBool(y.String); err == nil {
			return b, nil
		}
	}
	return false, typeError(y, "bool")
}

// AsStrings accepts either a single string or a list of strings.
func AsStrings(y *Node) ([]string, error) {
	if y == nil || y.Type == NullType {
		return nil, nil
	}
	if y.Type != ArrayType {
		s, err := AsString(y)
		if err != nil {
			return nil, typeError(y, "string or list of strings")
		}
		return []string{s}, nil
	}
	res := make([]string, 0, len(y.Values))
	for _, v := range y.Values {
		s, err := AsString(v)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

// ParseInt parses decimal, 0x hex, and 0b or #-prefixed binary integers.
func ParseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 64)
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		v, err = strconv.ParseUint(s[2:], 2, 64)
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseUint(s[1:], 2, 64)
	default:
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

func GetObject(y *Node, field string) (*Node, error) {
	v := Get(y, field)
	if v == nil {
		return nil, nil
	}
	return AsObject(v)
}

func GetString(y *Node, field string) (string, bool, error) {
	v := Get(y, field)
	if v == nil {
		return "", false, nil
	}
	s, err := AsString(v)
	return s, err == nil, err
}

func GetInt(y *Node, field string) (*int64, error) {
	v := Get(y, field)
	if v == nil || v.Type == NullType {
		return nil, nil
	}
	i, err := AsInt(v)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func GetUint(y *Node, field string) (*uint64, error) {
	v := Get(y, field)
	if v == nil || v.Type == NullType {
		return nil, nil
	}
	u, err := AsUint(v)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetBool(y *Node, field string) (*bool, error) {
	v := Get(y, field)
	if v == nil || v.Type == NullType {
		return nil, nil
	}
	b, err := AsBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func GetStrings(y *Node, field string) ([]string, error) {
	return AsStrings(Get(y, field))
}

// Entries calls f for each key/value of an object in document order.
func Entries(y *Node, f func(key string, val *Node) error) error {
	if y == nil || y.Type == NullType {
		return nil
	}
	if y.Type != ObjectType {
		return typeError(y, "object")
	}
	for i := range y.Fields {
		if err := f(y.Fields[i].String, y.Values[i]); err != nil {
			return err
		}
	}
	return nil
}
