package build

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/parse"
)

const (
	EnvEnv = "SVDPATCH_ENV"
)

// LoadEnv reads an object of `_env` seeds from $SVDPATCH_ENV.
func LoadEnv() (eval.Env, error) {
	envEnv := os.Getenv(EnvEnv)
	if envEnv == "" {
		return nil, nil
	}
	yEnv, err := parse.Parse([]byte(envEnv))
	if err != nil {
		return nil, fmt.Errorf("error decoding env $%s: %w", EnvEnv, err)
	}
	env := eval.NewEnv()
	err = ir.Entries(yEnv, func(key string, val *ir.Node) error {
		s, err := ir.AsString(val)
		if err != nil {
			return err
		}
		env[key] = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error decoding env $%s: %w", EnvEnv, err)
	}
	if debug.Env() {
		debug.Logf("\nloaded env from $%s: %v\n", EnvEnv, env)
	}
	return env, nil
}

// LoadEnvFile reads `_env` seeds from a dotenv file.
func LoadEnvFile(path string) (eval.Env, error) {
	vals, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("could not read env file %s: %w", path, err)
	}
	env := make(eval.Env, len(vals))
	for k, v := range vals {
		env[k] = v
	}
	if debug.Env() {
		debug.Logf("loaded env from %s: %v\n", path, env)
	}
	return env, nil
}

// mergeEnv returns dst overlaid with p.
func mergeEnv(dst, p eval.Env) eval.Env {
	res := dst.Clone()
	for k, v := range p {
		res[k] = v
	}
	return res
}
