package build

import (
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/svd"
)

// CachedLoader parses device files once and hands out copies.
type CachedLoader struct {
	cache *lru.Cache[string, *svd.Device]
}

func NewCachedLoader(size int) (*CachedLoader, error) {
	cache, err := lru.New[string, *svd.Device](size)
	if err != nil {
		return nil, err
	}
	return &CachedLoader{cache: cache}, nil
}

func (l *CachedLoader) LoadDevice(path string) (*svd.Device, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if dev, ok := l.cache.Get(abs); ok {
		return dev.Clone(), nil
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dev, err := svd.Parse(f)
	if err != nil {
		return nil, err
	}
	if debug.Patch() {
		debug.Logf("parsed %s\n", abs)
	}
	l.cache.Add(abs, dev)
	return dev.Clone(), nil
}

func (l *CachedLoader) Len() int {
	return l.cache.Len()
}
