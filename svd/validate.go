package svd

import (
	"errors"
	"fmt"
)

type ValidateLevel int

const (
	ValidateDisabled ValidateLevel = iota
	ValidateWeak
	ValidateStrict
)

func (l ValidateLevel) String() string {
	switch l {
	case ValidateDisabled:
		return "disabled"
	case ValidateWeak:
		return "weak"
	case ValidateStrict:
		return "strict"
	}
	return "unknown"
}

func ParseValidateLevel(s string) (ValidateLevel, error) {
	for _, l := range []ValidateLevel{ValidateDisabled, ValidateWeak, ValidateStrict} {
		if l.String() == s {
			return l, nil
		}
	}
	return ValidateDisabled, fmt.Errorf("unknown validation level %q", s)
}

type validator struct {
	level ValidateLevel
	errs  []error
}

func (v *validator) errorf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

// Validate checks dev at the given level. All problems found are joined
// into one error wrapping ErrValidation.
func Validate(dev *Device, level ValidateLevel) error {
	if level == ValidateDisabled {
		return nil
	}
	v := &validator{level: level}
	names := map[string]bool{}
	for _, p := range dev.Peripherals {
		if names[p.Name] {
			v.errorf("peripheral %s: duplicate name", p.Name)
		}
		names[p.Name] = true
		v.dim("peripheral "+p.Name, p.Dim)
		size := uint32(32)
		if dev.Size != nil {
			size = *dev.Size
		}
		if p.Size != nil {
			size = *p.Size
		}
		v.block("peripheral "+p.Name, p.Registers, size)
	}
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(v.errs...))
}

func (v *validator) dim(where string, d *DimElement) {
	if d == nil {
		return
	}
	if len(d.DimIndex) != 0 && uint32(len(d.DimIndex)) != d.Dim {
		v.errorf("%s: dim is %d but dimIndex has %d entries", where, d.Dim, len(d.DimIndex))
	}
}

func (v *validator) block(where string, rcs []RegisterCluster, size uint32) {
	names := map[string]bool{}
	for _, rc := range rcs {
		if v.level >= ValidateStrict {
			if names[rc.Ident()] {
				v.errorf("%s: duplicate register %s", where, rc.Ident())
			}
			names[rc.Ident()] = true
		}
		v.dim(where+": "+rc.Ident(), rc.Array())
		switch x := rc.(type) {
		case *Cluster:
			csize := size
			if x.Size != nil {
				csize = *x.Size
			}
			v.block(where+": cluster "+x.Name, x.Children, csize)
		case *Register:
			rsize := size
			if x.Size != nil {
				rsize = *x.Size
			}
			v.register(where+": register "+x.Name, x, rsize)
		}
	}
}

func (v *validator) register(where string, r *Register, size uint32) {
	for i, f := range r.Fields {
		fw := where + ": field " + f.Name
		v.dim(fw, f.Dim)
		v.field(fw, f)
		if v.level < ValidateStrict {
			continue
		}
		if f.Bitmask()>>size != 0 && size < 64 {
			v.errorf("%s: bits [%d:%d] exceed register size %d", fw, f.BitOffset+f.BitWidth-1, f.BitOffset, size)
		}
		for _, g := range r.Fields[:i] {
			if f.Bitmask()&g.Bitmask() == 0 {
				continue
			}
			if isReadWritePair(f.Access, g.Access) {
				continue
			}
			v.errorf("%s: overlaps field %s", fw, g.Name)
		}
	}
}

func isReadWritePair(a, b Access) bool {
	return (a == ReadOnly && (b == WriteOnly || b == WriteOnce)) ||
		(b == ReadOnly && (a == WriteOnly || a == WriteOnce))
}

func (v *validator) field(where string, f *Field) {
	if len(f.EnumeratedValues) > 2 {
		v.errorf("%s: %d enumeratedValues sets", where, len(f.EnumeratedValues))
	}
	usages := map[Usage]bool{}
	for _, ev := range f.EnumeratedValues {
		if ev.DerivedFrom != "" {
			continue
		}
		u := ev.Usage.Effective()
		if usages[u] {
			v.errorf("%s: two enumeratedValues sets with usage %s", where, u)
		}
		usages[u] = true
		seen := map[uint64]string{}
		defaults := 0
		for _, e := range ev.Values {
			if e.IsDefault {
				defaults++
				continue
			}
			if e.Value == nil {
				continue
			}
			if *e.Value > widthMask(f.BitWidth) {
				v.errorf("%s: enumerated value %s=%d does not fit in %d bits", where, e.Name, *e.Value, f.BitWidth)
			}
			if prev, ok := seen[*e.Value]; ok {
				v.errorf("%s: enumerated values %s and %s share value %d", where, prev, e.Name, *e.Value)
			}
			seen[*e.Value] = e.Name
		}
		if defaults > 1 {
			v.errorf("%s: %d default enumerated values", where, defaults)
		}
	}
}
