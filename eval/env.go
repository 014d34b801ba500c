package eval

import (
	"fmt"
	"maps"

	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/ir"
)

// Env is the substitution table threaded through a patch run. Each level
// of the device tree works on its own copy.
type Env map[string]any

func NewEnv() Env {
	return Env{}
}

func (e Env) Clone() Env {
	res := make(Env, len(e)+3)
	maps.Copy(res, e)
	return res
}

// With returns a copy of e with key bound to value.
func (e Env) With(key string, value any) Env {
	res := e.Clone()
	res[key] = value
	return res
}

// UpdateEnv returns a copy of env extended with the `_env` entries of doc.
// Values are strings expanded against the outer table.
func UpdateEnv(env Env, doc *ir.Node) (Env, error) {
	res := env.Clone()
	envNode := ir.Get(doc, "_env")
	if envNode == nil {
		return res, nil
	}
	err := ir.Entries(envNode, func(key string, val *ir.Node) error {
		s, err := ir.AsString(val)
		if err != nil {
			return fmt.Errorf("_env %s: %w", key, err)
		}
		xs, err := ExpandString(s, env)
		if err != nil {
			return fmt.Errorf("_env %s: %w", key, err)
		}
		if debug.Env() {
			debug.Logf("env %s=%q\n", key, xs)
		}
		res[key] = xs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
