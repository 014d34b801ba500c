package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
	"github.com/tony-format/svdpatch/build"
	"github.com/tony-format/svdpatch/encode"
)

func resolve(cfg *ResolveConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Resolve.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: resolve requires 1 argument, a patch document", cli.ErrUsage)
	}
	doc, _, err := build.Resolve(args[0], cfg.options())
	if err != nil {
		return err
	}
	if err := encode.Encode(doc, cc.Out, cfg.encOpts(cc.Out)...); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

func includes(cfg *IncludesConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Includes.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: includes requires 1 argument, a patch document", cli.ErrUsage)
	}
	_, included, err := build.Resolve(args[0], cfg.options())
	if err != nil {
		return err
	}
	for _, path := range included {
		fmt.Fprintln(cc.Out, path)
	}
	return nil
}
