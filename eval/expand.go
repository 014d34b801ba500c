package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tony-format/svdpatch/debug"
)

// ExpandString substitutes `KEY` references and $[...] expressions.
//
// Backtick references are replaced when KEY is bound in env and left as
// written otherwise. Expressions are evaluated with expr-lang against env.
// Within expressions, backslash escaping is supported:
//   - \] → literal ] (does not close the expression)
//   - \x → x (for any character x)
//
// An expression not closed with an unescaped ] is kept literally.
func ExpandString(v string, env Env) (string, error) {
	v = expandTicks(v, env)
	if len(v) < 3 || !strings.Contains(v, "$[") {
		return v, nil
	}
	var (
		out, key []byte
		start    = -1
	)
	for i := 0; i < len(v); i++ {
		c := v[i]
		if start == -1 {
			if c == '$' && i+1 < len(v) && v[i+1] == '[' {
				start = i
				key = key[:0]
				i++
				continue
			}
			out = append(out, c)
			continue
		}
		switch c {
		case '\\':
			if i+1 < len(v) {
				i++
				key = append(key, v[i])
			}
		case ']':
			s, err := eval(strings.TrimSpace(string(key)), env)
			if err != nil {
				return "", err
			}
			out = append(out, s...)
			start = -1
		default:
			key = append(key, c)
		}
	}
	if start != -1 {
		out = append(out, v[start:]...)
	}
	return string(out), nil
}

func expandTicks(v string, env Env) string {
	if !strings.Contains(v, "`") {
		return v
	}
	var b strings.Builder
	for {
		i := strings.IndexByte(v, '`')
		if i == -1 {
			break
		}
		j := strings.IndexByte(v[i+1:], '`')
		if j == -1 {
			break
		}
		name := v[i+1 : i+1+j]
		val, ok := env[name]
		if !ok {
			b.WriteString(v[:i+1])
			v = v[i+1:]
			continue
		}
		b.WriteString(v[:i])
		b.WriteString(toString(val))
		v = v[i+j+2:]
	}
	b.WriteString(v)
	return b.String()
}

func eval(input string, env Env) (string, error) {
	program, err := expr.Compile(input, expr.Env(map[string]any(env)), expr.AllowUndefinedVariables())
	if err != nil {
		return "", fmt.Errorf("error compiling %q: %w", input, err)
	}
	x, err := vm.Run(program, map[string]any(env))
	if err != nil {
		return "", fmt.Errorf("error evaluating %q: %w", input, err)
	}
	if debug.Env() {
		debug.Logf("eval %q gave %#v\n", input, x)
	}
	return toString(x), nil
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
