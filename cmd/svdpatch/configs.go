package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	"github.com/tony-format/svdpatch/build"
	"github.com/tony-format/svdpatch/encode"
	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/patch"
	"github.com/tony-format/svdpatch/svd"
)

type MainConfig struct {
	Color   bool   `cli:"name=color desc='color output and logs'"`
	Verbose bool   `cli:"name=v aliases=verbose desc='log informational messages'"`
	EnvFile string `cli:"name=env-file desc='dotenv file seeding the _env table'"`

	Env eval.Env

	Main *cli.Command
}

func envOptTypeFunc(env eval.Env) func(cc *cli.Context, a string) (any, error) {
	return func(cc *cli.Context, a string) (any, error) {
		key, val, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: argument %q expected key=val", cli.ErrUsage, a)
		}
		env[key] = val
		return 0, nil
	}
}

// colorSet reports whether -color was given explicitly.
func (cfg *MainConfig) colorSet() bool {
	for _, opt := range cfg.Main.Opts {
		if opt.Name == "color" {
			return opt.Value != nil
		}
	}
	return false
}

func (cfg *MainConfig) useColor(w io.Writer) bool {
	if cfg.Color || cfg.colorSet() {
		return cfg.Color
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

func (cfg *MainConfig) encOpts(w io.Writer) []encode.EncodeOption {
	if cfg.useColor(w) {
		return []encode.EncodeOption{encode.EncodeColors(encode.NewColors())}
	}
	return nil
}

func (cfg *MainConfig) logger() *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelInfo
	}
	return newLogger(os.Stderr, level, cfg.useColor(os.Stderr))
}

func (cfg *MainConfig) options() *build.Options {
	pCfg := patch.DefaultConfig()
	pCfg.Logger = cfg.logger()
	pCfg.Env = cfg.Env
	return &build.Options{
		Config:  *pCfg,
		EnvFile: cfg.EnvFile,
	}
}

type PatchConfig struct {
	*MainConfig
	Out      string `cli:"name=o desc='output file (default <svd>.patched, - for stdout)'"`
	Validate string `cli:"name=validate desc='validation level: disabled, weak, strict'"`
	NoFields bool   `cli:"name=no-fields desc='skip enumerated value and write constraint updates'"`
	Cache    int    `cli:"name=cache desc='number of parsed devices kept for _copy'"`

	Patch *cli.Command
}

func (cfg *PatchConfig) options() (*build.Options, error) {
	opts := cfg.MainConfig.options()
	if cfg.Validate != "" {
		level, err := svd.ParseValidateLevel(cfg.Validate)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cli.ErrUsage, err)
		}
		opts.Config.ValidateLevel = level
	}
	opts.Config.UpdateFields = !cfg.NoFields
	opts.Out = cfg.Out
	opts.CacheSize = cfg.Cache
	return opts, nil
}

type ResolveConfig struct {
	*MainConfig

	Resolve *cli.Command
}

type IncludesConfig struct {
	*MainConfig

	Includes *cli.Command
}
