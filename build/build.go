// Package build runs a patch document end to end: it loads the document
// and its includes, reads the base description named by `_svd`, applies
// the patch and writes the result.
package build

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/patch"
	"github.com/tony-format/svdpatch/svd"
)

const (
	DefaultSuffix    = ".patched"
	DefaultCacheSize = 16
)

type Options struct {
	Config patch.Config
	// Out is the output path. Empty means the `_svd` path plus
	// DefaultSuffix; "-" means no file is written.
	Out string
	// EnvFile is a dotenv file whose entries seed the `_env` table.
	EnvFile string
	// CacheSize bounds the number of parsed devices kept for `_copy`.
	CacheSize int
}

type Result struct {
	Device   *svd.Device
	Included []string
	// Output is the path written, empty when nothing was written.
	Output string
	// SVD is the encoded device.
	SVD []byte
}

// Run applies the patch document at patchPath.
func Run(patchPath string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{Config: *patch.DefaultConfig()}
	}
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}
	doc, err := patch.LoadDocument(patchPath)
	if err != nil {
		return nil, err
	}
	included, err := cfg.ResolveIncludes(doc)
	if err != nil {
		return nil, fmt.Errorf("could not resolve includes of %s: %w", patchPath, err)
	}
	svdRel, ok, err := ir.GetString(doc, patch.SVDKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: no %s entry", patchPath, patch.SVDKey)
	}
	svdPath := filepath.Join(filepath.Dir(patch.DocumentPath(doc)), svdRel)
	dev, err := cfg.Loader.LoadDevice(svdPath)
	if err != nil {
		return nil, fmt.Errorf("could not load %s: %w", svdPath, err)
	}
	if err := cfg.ProcessDevice(dev, doc); err != nil {
		return nil, fmt.Errorf("%s: %w", patchPath, err)
	}
	buf := bytes.NewBuffer(nil)
	if err := svd.Encode(buf, dev); err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", dev.Name, err)
	}
	res := &Result{
		Device:   dev,
		Included: included,
		SVD:      buf.Bytes(),
	}
	switch opts.Out {
	case "-":
		return res, nil
	case "":
		res.Output = svdPath + DefaultSuffix
	default:
		res.Output = opts.Out
	}
	if debug.Patch() {
		debug.Logf("writing %s\n", res.Output)
	}
	if err := os.WriteFile(res.Output, res.SVD, 0o644); err != nil {
		return nil, err
	}
	return res, nil
}

// Apply resolves the includes of doc and applies it to dev in place.
func Apply(dev *svd.Device, doc *ir.Node, opts *Options) ([]string, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, err
	}
	included, err := cfg.ResolveIncludes(doc)
	if err != nil {
		return nil, err
	}
	return included, cfg.ProcessDevice(dev, doc)
}

// Resolve loads the document at path with its includes merged in.
func Resolve(path string, opts *Options) (*ir.Node, []string, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, nil, err
	}
	doc, err := patch.LoadDocument(path)
	if err != nil {
		return nil, nil, err
	}
	included, err := cfg.ResolveIncludes(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, included, nil
}

func (o *Options) config() (*patch.Config, error) {
	if o == nil {
		o = &Options{Config: *patch.DefaultConfig()}
	}
	cfg := o.Config
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	if o.EnvFile != "" {
		fileEnv, err := LoadEnvFile(o.EnvFile)
		if err != nil {
			return nil, err
		}
		env = mergeEnv(env, fileEnv)
	}
	cfg.Env = mergeEnv(env, o.Config.Env)
	if cfg.Loader == nil {
		size := o.CacheSize
		if size <= 0 {
			size = DefaultCacheSize
		}
		loader, err := NewCachedLoader(size)
		if err != nil {
			return nil, err
		}
		cfg.Loader = loader
	}
	return &cfg, nil
}
