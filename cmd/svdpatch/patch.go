package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
	"github.com/tony-format/svdpatch/build"
)

func patchMain(cfg *PatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Patch.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: patch requires 1 argument, a patch document", cli.ErrUsage)
	}
	opts, err := cfg.options()
	if err != nil {
		return err
	}
	res, err := build.Run(args[0], opts)
	if err != nil {
		return err
	}
	if res.Output == "" {
		_, err = cc.Out.Write(res.SVD)
		return err
	}
	opts.Config.Logger.Info("wrote device", "path", res.Output, "includes", len(res.Included))
	return nil
}
