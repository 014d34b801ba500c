package main

import (
	"github.com/scott-cotton/cli"
	"github.com/tony-format/svdpatch/eval"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{Env: eval.NewEnv()}
	sOpts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	opts := append(sOpts,
		&cli.Opt{
			Name:        "e",
			Description: "seed the _env table (repeatable)",
			Type:        cli.NamedFuncOpt(cli.FuncOpt(envOptTypeFunc(cfg.Env)), "(key=val)"),
		})

	return cli.NewCommandAt(&cfg.Main, "svdpatch").
		WithSynopsis("svdpatch [opts] command [opts]").
		WithDescription("svdpatch applies patch documents to SVD device descriptions.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return svdpatchMain(cfg, cc, args)
		}).
		WithSubs(
			PatchCommand(cfg),
			ResolveCommand(cfg),
			IncludesCommand(cfg))
}

func PatchCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &PatchConfig{MainConfig: mainCfg, Validate: "weak"}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Patch, "patch").
		WithAliases("p").
		WithSynopsis("patch [-o out.svd] [-validate level] [-no-fields] patch.yaml").
		WithDescription("apply a patch document to the device named by its _svd entry").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return patchMain(cfg, cc, args)
		})
}

func ResolveCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ResolveConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Resolve, "resolve").
		WithAliases("r").
		WithSynopsis("resolve [-color] patch.yaml").
		WithDescription("print a patch document with its includes merged in").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return resolve(cfg, cc, args)
		})
}

func IncludesCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &IncludesConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Includes, "includes").
		WithAliases("i").
		WithSynopsis("includes patch.yaml").
		WithDescription("list the files included by a patch document").
		WithRun(func(cc *cli.Context, args []string) error {
			return includes(cfg, cc, args)
		})
}
