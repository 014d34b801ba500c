package build

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tony-format/svdpatch/eval"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/parse"
	"github.com/tony-format/svdpatch/patch"
	"github.com/tony-format/svdpatch/svd"
)

const deviceSVD = `<?xml version="1.0" encoding="utf-8"?>
<device schemaVersion="1.1">
  <name>ACME1</name>
  <size>32</size>
  <access>read-write</access>
  <peripherals>
    <peripheral>
      <name>USART1</name>
      <baseAddress>0x40011000</baseAddress>
      <interrupt>
        <name>USART1</name>
        <value>37</value>
      </interrupt>
      <registers>
        <register>
          <name>SR</name>
          <description>Status register</description>
          <addressOffset>0x0</addressOffset>
          <fields>
            <field>
              <name>TXE</name>
              <description>Transmit data register empty</description>
              <bitOffset>7</bitOffset>
              <bitWidth>1</bitWidth>
            </field>
          </fields>
        </register>
      </registers>
    </peripheral>
  </peripherals>
</device>
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func testOptions() *Options {
	return &Options{Config: *patch.DefaultConfig()}
}

func TestRun(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"svd/acme1.svd": deviceSVD,
		"patches/acme1.yaml": `
_svd: ../svd/acme1.svd
_include: [common/usart.yaml]
USART1:
  _modify:
    SR:
      description: "Status of ` + "`peripheral`" + ` (` + "`board`" + `)"
`,
		"patches/common/usart.yaml": `
USART1:
  SR:
    TXE:
      Busy: [0, "Data not yet transferred"]
      Empty: [1, "Data transferred"]
`,
		"board.env": "board=nucleo\n",
	})
	opts := testOptions()
	opts.EnvFile = filepath.Join(dir, "board.env")
	res, err := Run(filepath.Join(dir, "patches/acme1.yaml"), opts)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "patches/common/usart.yaml")}, res.Included)
	require.Equal(t, filepath.Join(dir, "svd/acme1.svd.patched"), res.Output)

	f, err := os.Open(res.Output)
	require.NoError(t, err)
	defer f.Close()
	dev, err := svd.Parse(f)
	require.NoError(t, err)
	u1 := dev.GetPeripheral("USART1")
	require.NotNil(t, u1)
	sr, ok := u1.Registers[0].(*svd.Register)
	require.True(t, ok)
	require.Equal(t, "Status of USART1 (nucleo)", sr.Description)
	txe := sr.Fields[0]
	require.Len(t, txe.EnumeratedValues, 1)
	require.Equal(t, []string{"Busy", "Empty"}, []string{
		txe.EnumeratedValues[0].Values[0].Name,
		txe.EnumeratedValues[0].Values[1].Name,
	})
}

func TestRunOutput(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"acme1.svd":  deviceSVD,
		"acme1.yaml": "_svd: acme1.svd\nUSART1:\n  _delete: [SR]\n",
	})
	opts := testOptions()
	opts.Out = "-"
	res, err := Run(filepath.Join(dir, "acme1.yaml"), opts)
	require.NoError(t, err)
	require.Empty(t, res.Output)
	require.Empty(t, res.Device.GetPeripheral("USART1").Registers)
	_, err = os.Stat(filepath.Join(dir, "acme1.svd.patched"))
	require.True(t, os.IsNotExist(err))

	dev, err := svd.Parse(bytes.NewReader(res.SVD))
	require.NoError(t, err)
	require.Equal(t, "ACME1", dev.Name)

	opts.Out = filepath.Join(dir, "out.svd")
	res, err = Run(filepath.Join(dir, "acme1.yaml"), opts)
	require.NoError(t, err)
	require.Equal(t, opts.Out, res.Output)
	require.FileExists(t, opts.Out)
}

func TestRunErrors(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"acme1.svd":    deviceSVD,
		"nosvd.yaml":   "USART1:\n  _delete: [SR]\n",
		"missing.yaml": "_svd: acme1.svd\nUSART1:\n  _modify:\n    CR: {description: x}\n",
	})
	_, err := Run(filepath.Join(dir, "nosvd.yaml"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), patch.SVDKey)

	_, err = Run(filepath.Join(dir, "missing.yaml"), nil)
	require.ErrorIs(t, err, patch.ErrSpecNotFound)
	require.Contains(t, err.Error(), "In peripheral USART1")
}

func TestRunCopyFromFile(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"acme1.svd":  deviceSVD,
		"acme2.svd":  deviceSVD,
		"acme2.yaml": "_svd: acme2.svd\n_copy:\n  LPUART1:\n    _from: acme1.svd:USART1\n    baseAddress: 0x40008000\n",
	})
	opts := testOptions()
	opts.Out = "-"
	res, err := Run(filepath.Join(dir, "acme2.yaml"), opts)
	require.NoError(t, err)
	lp := res.Device.GetPeripheral("LPUART1")
	require.NotNil(t, lp)
	require.Equal(t, uint64(0x40008000), lp.BaseAddress)
	require.Empty(t, lp.Interrupts)
	require.Len(t, lp.Registers, 1)
}

func TestApply(t *testing.T) {
	f, err := os.Open(writeTree(t, map[string]string{"acme1.svd": deviceSVD}) + "/acme1.svd")
	require.NoError(t, err)
	defer f.Close()
	dev, err := svd.Parse(f)
	require.NoError(t, err)
	node, err := parse.Parse([]byte("USART1:\n  _modify:\n    SR: {description: \"`where`\"}\n"))
	require.NoError(t, err)
	doc, err := ir.AsObject(node)
	require.NoError(t, err)
	opts := testOptions()
	opts.Config.Env = eval.Env{"where": "here"}
	included, err := Apply(dev, doc, opts)
	require.NoError(t, err)
	require.Empty(t, included)
	require.Equal(t, "here", dev.GetPeripheral("USART1").Registers[0].(*svd.Register).Description)
}

func TestResolve(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.yaml": "_include: [b.yaml]\nX: 1\n",
		"b.yaml": "X: 2\nY: 3\n",
	})
	doc, included, err := Resolve(filepath.Join(dir, "a.yaml"), nil)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "b.yaml")}, included)
	x, err := ir.AsInt(ir.Get(doc, "X"))
	require.NoError(t, err)
	require.Equal(t, int64(1), x)
	require.True(t, doc.Has("Y"))
}

func TestCachedLoader(t *testing.T) {
	path := filepath.Join(writeTree(t, map[string]string{"acme1.svd": deviceSVD}), "acme1.svd")
	loader, err := NewCachedLoader(2)
	require.NoError(t, err)
	first, err := loader.LoadDevice(path)
	require.NoError(t, err)
	first.Peripherals = nil
	second, err := loader.LoadDevice(path)
	require.NoError(t, err)
	require.Len(t, second.Peripherals, 1)
	require.Equal(t, 1, loader.Len())

	_, err = loader.LoadDevice(path + ".missing")
	require.Error(t, err)
	require.Equal(t, 1, loader.Len())

	_, err = NewCachedLoader(0)
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(EnvEnv, "{board: nucleo, rev: c}")
	env, err := LoadEnv()
	require.NoError(t, err)
	require.Equal(t, eval.Env{"board": "nucleo", "rev": "c"}, env)

	t.Setenv(EnvEnv, "[a, b]")
	_, err = LoadEnv()
	require.ErrorIs(t, err, ir.ErrDocumentType)

	t.Setenv(EnvEnv, "")
	env, err = LoadEnv()
	require.NoError(t, err)
	require.Nil(t, env)
}

func TestEnvPrecedence(t *testing.T) {
	dir := writeTree(t, map[string]string{"x.env": "board=file\nrev=b\n"})
	t.Setenv(EnvEnv, "{board: env, chip: stm32}")
	opts := testOptions()
	opts.EnvFile = filepath.Join(dir, "x.env")
	opts.Config.Env = eval.Env{"rev": "c"}
	cfg, err := opts.config()
	require.NoError(t, err)
	require.Equal(t, eval.Env{"board": "file", "chip": "stm32", "rev": "c"}, cfg.Env)
	require.IsType(t, &CachedLoader{}, cfg.Loader)

	opts.EnvFile = filepath.Join(dir, "missing.env")
	_, err = opts.config()
	require.Error(t, err)
}
