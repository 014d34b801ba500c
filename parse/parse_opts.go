package parse

import "github.com/goccy/go-yaml"

type parseOpts struct {
	strict bool
}

func (o *parseOpts) decodeOptions() []yaml.DecodeOption {
	res := []yaml.DecodeOption{yaml.UseOrderedMap()}
	if o.strict {
		res = append(res, yaml.Strict())
	}
	return res
}

type ParseOption func(*parseOpts)

func ParseStrict(v bool) ParseOption {
	return func(o *parseOpts) { o.strict = v }
}
