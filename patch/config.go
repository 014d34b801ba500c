package patch

import (
	"log/slog"
	"os"

	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/svd"
)

// DeviceLoader reads the external device files named by `_copy`.
type DeviceLoader interface {
	LoadDevice(path string) (*svd.Device, error)
}

type Config struct {
	// ValidateLevel applies to nodes built from the document and to the
	// final device.
	ValidateLevel svd.ValidateLevel
	// UpdateFields enables enumerated value and write constraint
	// directives under field specs.
	UpdateFields bool
	Logger       *slog.Logger
	// Env seeds the `_env` table.
	Env    eval.Env
	Loader DeviceLoader
}

func DefaultConfig() *Config {
	return &Config{
		ValidateLevel: svd.ValidateWeak,
		UpdateFields:  true,
	}
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Config) loader() DeviceLoader {
	if c.Loader == nil {
		return fileLoader{}
	}
	return c.Loader
}

type fileLoader struct{}

func (fileLoader) LoadDevice(path string) (*svd.Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return svd.Parse(f)
}
