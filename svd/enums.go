package svd

import "fmt"

// Access is the access type of a register or field. The zero value means
// unset, in which case access is inherited.
type Access int

const (
	AccessUnset Access = iota
	ReadOnly
	WriteOnly
	ReadWrite
	WriteOnce
	ReadWriteOnce
)

var accessNames = map[Access]string{
	ReadOnly:      "read-only",
	WriteOnly:     "write-only",
	ReadWrite:     "read-write",
	WriteOnce:     "writeOnce",
	ReadWriteOnce: "read-writeOnce",
}

func (a Access) String() string {
	if s, ok := accessNames[a]; ok {
		return s
	}
	return ""
}

func ParseAccess(s string) (Access, error) {
	for a, name := range accessNames {
		if name == s {
			return a, nil
		}
	}
	return AccessUnset, fmt.Errorf("unknown access %q", s)
}

func (a Access) CanRead() bool {
	return a != WriteOnly && a != WriteOnce
}

func (a Access) CanWrite() bool {
	return a != ReadOnly
}

type ModifiedWriteValues int

const (
	MWVUnset ModifiedWriteValues = iota
	OneToClear
	OneToSet
	OneToToggle
	ZeroToClear
	ZeroToSet
	ZeroToToggle
	MWVClear
	MWVSet
	MWVModify
)

var mwvNames = map[ModifiedWriteValues]string{
	OneToClear:   "oneToClear",
	OneToSet:     "oneToSet",
	OneToToggle:  "oneToToggle",
	ZeroToClear:  "zeroToClear",
	ZeroToSet:    "zeroToSet",
	ZeroToToggle: "zeroToToggle",
	MWVClear:     "clear",
	MWVSet:       "set",
	MWVModify:    "modify",
}

func (m ModifiedWriteValues) String() string {
	return mwvNames[m]
}

func ParseModifiedWriteValues(s string) (ModifiedWriteValues, error) {
	for m, name := range mwvNames {
		if name == s {
			return m, nil
		}
	}
	return MWVUnset, fmt.Errorf("unknown modifiedWriteValues %q", s)
}

type ReadAction int

const (
	ReadActionUnset ReadAction = iota
	ReadClear
	ReadSet
	ReadModify
	ReadModifyExternal
)

var readActionNames = map[ReadAction]string{
	ReadClear:          "clear",
	ReadSet:            "set",
	ReadModify:         "modify",
	ReadModifyExternal: "modifyExternal",
}

func (r ReadAction) String() string {
	return readActionNames[r]
}

func ParseReadAction(s string) (ReadAction, error) {
	for r, name := range readActionNames {
		if name == s {
			return r, nil
		}
	}
	return ReadActionUnset, fmt.Errorf("unknown readAction %q", s)
}

// Usage scopes a set of enumerated values. An unset usage is an unlabeled
// set, which behaves as ReadWrite.
type Usage int

const (
	UsageUnset Usage = iota
	UsageRead
	UsageWrite
	UsageReadWrite
)

var usageNames = map[Usage]string{
	UsageRead:      "read",
	UsageWrite:     "write",
	UsageReadWrite: "read-write",
}

func (u Usage) String() string {
	return usageNames[u]
}

func ParseUsage(s string) (Usage, error) {
	for u, name := range usageNames {
		if name == s {
			return u, nil
		}
	}
	return UsageUnset, fmt.Errorf("unknown usage %q", s)
}

func (u Usage) Effective() Usage {
	if u == UsageUnset {
		return UsageReadWrite
	}
	return u
}

// Complement returns the usage that covers the other direction.
func (u Usage) Complement() Usage {
	switch u {
	case UsageRead:
		return UsageWrite
	case UsageWrite:
		return UsageRead
	}
	return UsageReadWrite
}

type WriteConstraintKind int

const (
	WriteAsRead WriteConstraintKind = iota + 1
	UseEnumeratedValues
	WriteRange
)

type WriteConstraint struct {
	Kind     WriteConstraintKind
	Min, Max uint64
}

func (w *WriteConstraint) Equal(o *WriteConstraint) bool {
	if w == nil || o == nil {
		return w == o
	}
	return *w == *o
}
