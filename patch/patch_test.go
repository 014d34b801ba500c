package patch

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tony-format/svdpatch"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/parse"
	"github.com/tony-format/svdpatch/svd"
)

func u32(v uint32) *uint32 { return &v }
func u64(v uint64) *uint64 { return &v }

func field(name string, off, width uint32) *svd.Field {
	return &svd.Field{Name: name, Description: name + " field", BitOffset: off, BitWidth: width}
}

func register(name string, off uint64, fields ...*svd.Field) *svd.Register {
	return &svd.Register{Name: name, Description: name + " register", AddressOffset: off, Fields: fields}
}

func testDevice() *svd.Device {
	return &svd.Device{
		Name: "ACME1",
		RegisterProperties: svd.RegisterProperties{
			Size:   u32(32),
			Access: svd.ReadWrite,
		},
		Peripherals: []*svd.Peripheral{
			{
				Name:        "TIM2",
				BaseAddress: 0x40000000,
				Interrupts:  []svd.Interrupt{{Name: "TIM2", Value: 28}},
				Registers: []svd.RegisterCluster{
					register("CR1", 0x0, field("CEN", 0, 1)),
					&svd.Register{Name: "TIM2_CH1", Description: "Channel 1", AddressOffset: 0x10, Fields: []*svd.Field{field("VAL", 0, 8)}},
					&svd.Register{Name: "TIM2_CH2", Description: "Channel 2", AddressOffset: 0x14, Fields: []*svd.Field{field("VAL", 0, 8)}},
					&svd.Register{Name: "TIM2_CH3", Description: "Channel 3", AddressOffset: 0x18, Fields: []*svd.Field{field("VAL", 0, 8)}},
				},
			},
			{
				Name:        "USART1",
				BaseAddress: 0x40011000,
				Interrupts:  []svd.Interrupt{{Name: "USART1", Value: 37}},
				Registers: []svd.RegisterCluster{
					register("SR", 0x0, field("TXE", 7, 1), field("RXNE", 5, 1)),
					register("CR", 0x4, field("CTRL", 0, 8), field("MODE", 8, 2)),
				},
			},
			{
				Name:        "USART2",
				BaseAddress: 0x40004400,
				Interrupts:  []svd.Interrupt{{Name: "USART2", Value: 38}},
				Registers: []svd.RegisterCluster{
					register("SR", 0x0, field("TXE", 7, 1)),
				},
			},
			{
				Name:        "USART3",
				DerivedFrom: "USART2",
				BaseAddress: 0x40004800,
				Interrupts:  []svd.Interrupt{{Name: "USART3", Value: 39}},
			},
		},
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func parseDoc(t *testing.T, doc string) *ir.Node {
	t.Helper()
	node, err := parse.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj, err := ir.AsObject(node)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	return obj
}

func applyDoc(t *testing.T, dev *svd.Device, doc string) error {
	t.Helper()
	return testConfig().ProcessDevice(dev, parseDoc(t, doc))
}

func mustApply(t *testing.T, dev *svd.Device, doc string) {
	t.Helper()
	if err := applyDoc(t, dev, doc); err != nil {
		t.Fatal(err)
	}
}

func getRegister(t *testing.T, dev *svd.Device, per, name string) *svd.Register {
	t.Helper()
	p := dev.GetPeripheral(per)
	if p == nil {
		t.Fatalf("no peripheral %s", per)
	}
	for _, r := range svd.Registers(p.Registers) {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no register %s in %s", name, per)
	return nil
}

type errTest struct {
	name string
	doc  string
	err  error
}

func TestErrors(t *testing.T) {
	tests := []errTest{
		{
			name: "delete is tolerant",
			doc:  "USART1:\n  _delete: [FOO]\n",
		},
		{
			name: "modify requires a match",
			doc:  "USART1:\n  _modify:\n    FOO: {description: x}\n",
			err:  ErrSpecNotFound,
		},
		{
			name: "optional modify",
			doc:  "USART1:\n  _modify:\n    \"?~FOO\": {description: x}\n",
		},
		{
			name: "peripheral spec requires a match",
			doc:  "NOPE:\n  _delete: [SR]\n",
			err:  ErrSpecNotFound,
		},
		{
			name: "optional peripheral spec",
			doc:  "\"?~NOPE\":\n  _delete: [SR]\n",
		},
		{
			name: "add existing register",
			doc:  "USART1:\n  _add:\n    SR: {addressOffset: 0x8}\n",
			err:  ErrDuplicateEntity,
		},
		{
			name: "add existing field",
			doc:  "USART1:\n  SR:\n    _add:\n      TXE: {bitOffset: 0, bitWidth: 1}\n",
			err:  ErrDuplicateEntity,
		},
		{
			name: "add existing peripheral",
			doc:  "_add:\n  TIM2: {baseAddress: 0x1000}\n",
			err:  ErrDuplicateEntity,
		},
		{
			name: "derive from derived peripheral",
			doc:  "_derive:\n  USART1: USART3\n",
			err:  ErrMultilevelDerive,
		},
		{
			name: "unknown directive",
			doc:  "USART1:\n  _frobnicate: [SR]\n",
			err:  ErrUnknownDirective,
		},
		{
			name: "write values on read-only field",
			doc:  "USART1:\n  SR:\n    _modify:\n      TXE: {access: read-only}\n    TXE:\n      _write:\n        A: [1, \"a\"]\n",
			err:  ErrIncompatibleUsage,
		},
		{
			name: "array of unequal registers",
			doc:  "USART1:\n  _array: \"?R\"\n",
			err:  ErrInconsistentShape,
		},
		{
			name: "array spec without token",
			doc:  "USART1:\n  _array: [CR]\n",
			err:  svdpatch.ErrMalformedSpec,
		},
		{
			name: "enum name starting with digit",
			doc:  "USART1:\n  CR:\n    CTRL:\n      1A: [1, \"a\"]\n",
			err:  ir.ErrDocumentType,
		},
		{
			name: "duplicate enum value",
			doc:  "USART1:\n  CR:\n    CTRL:\n      A: [1, \"a\"]\n      B: [1, \"b\"]\n",
			err:  ErrDuplicateEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyDoc(t, testDevice(), tt.doc)
			if tt.err == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("got %v, want %v", err, tt.err)
			}
		})
	}
}

func TestErrorContext(t *testing.T) {
	err := applyDoc(t, testDevice(), "USART1:\n  CR:\n    _modify:\n      NOPE: {bitWidth: 2}\n")
	if err == nil {
		t.Fatal("expected error")
	}
	want := "In peripheral USART1: In register CR: "
	if !strings.HasPrefix(err.Error(), want) {
		t.Errorf("error %q lacks context %q", err, want)
	}
}

func TestDeriveRepoint(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, "_derive:\n  USART2: USART1\n")
	u2 := dev.GetPeripheral("USART2")
	if u2.DerivedFrom != "USART1" {
		t.Errorf("USART2 derivedFrom %q", u2.DerivedFrom)
	}
	if len(u2.Registers) != 0 {
		t.Errorf("derived USART2 kept %d registers", len(u2.Registers))
	}
	if u2.BaseAddress != 0x40004400 || len(u2.Interrupts) != 1 {
		t.Errorf("USART2 lost identity: %#x %v", u2.BaseAddress, u2.Interrupts)
	}
	if got := dev.GetPeripheral("USART3").DerivedFrom; got != "USART1" {
		t.Errorf("USART3 derivedFrom %q, want USART1", got)
	}
}

func TestDeriveCreates(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, "_derive:\n  USART6:\n    _from: USART1\n    baseAddress: 0x40011400\n")
	u6 := dev.GetPeripheral("USART6")
	if u6 == nil || u6.DerivedFrom != "USART1" || u6.BaseAddress != 0x40011400 {
		t.Fatalf("got %+v", u6)
	}
}

func TestRebase(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, "_rebase:\n  USART2: USART1\n")
	u1, u2 := dev.GetPeripheral("USART1"), dev.GetPeripheral("USART2")
	if u1.DerivedFrom != "USART2" || len(u1.Registers) != 0 {
		t.Errorf("USART1: derivedFrom %q, %d registers", u1.DerivedFrom, len(u1.Registers))
	}
	if u1.BaseAddress != 0x40011000 {
		t.Errorf("USART1 base %#x", u1.BaseAddress)
	}
	if u2.DerivedFrom != "" || len(u2.Registers) != 2 || u2.BaseAddress != 0x40004400 {
		t.Errorf("USART2: derivedFrom %q, %d registers, base %#x", u2.DerivedFrom, len(u2.Registers), u2.BaseAddress)
	}
	if diff := cmp.Diff([]svd.Interrupt{{Name: "USART2", Value: 38}}, u2.Interrupts); diff != "" {
		t.Errorf("USART2 interrupts (-want +got):\n%s", diff)
	}
	if got := dev.GetPeripheral("USART3").DerivedFrom; got != "USART2" {
		t.Errorf("USART3 derivedFrom %q", got)
	}
}

func TestCopyPeripheral(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, `
_copy:
  USART2:
    _from: USART1
  USART9:
    _from: USART1
    baseAddress: 0x50000000
`)
	u2 := dev.GetPeripheral("USART2")
	if u2.BaseAddress != 0x40004400 || len(u2.Registers) != 2 {
		t.Errorf("USART2 base %#x, %d registers", u2.BaseAddress, len(u2.Registers))
	}
	if diff := cmp.Diff([]svd.Interrupt{{Name: "USART2", Value: 38}}, u2.Interrupts); diff != "" {
		t.Errorf("USART2 interrupts (-want +got):\n%s", diff)
	}
	u9 := dev.GetPeripheral("USART9")
	if u9 == nil || u9.BaseAddress != 0x50000000 {
		t.Fatalf("USART9: %+v", u9)
	}
	u9.Registers[0].SetIdent("CHANGED")
	if getRegister(t, dev, "USART1", "SR") == nil {
		t.Error("copy shares registers with its source")
	}
}

type fakeLoader map[string]*svd.Device

func (l fakeLoader) LoadDevice(path string) (*svd.Device, error) {
	for suffix, dev := range l {
		if strings.HasSuffix(path, suffix) {
			return dev.Clone(), nil
		}
	}
	return nil, errors.New("no such device " + path)
}

func TestCopyFromFile(t *testing.T) {
	dev := testDevice()
	node := parseDoc(t, "_copy:\n  LPUART:\n    _from: other.svd:USART1\n    baseAddress: 0x40008000\n")
	node.Set(pathKey, ir.FromString("/patches/dev.yaml"))
	cfg := testConfig()
	cfg.Loader = fakeLoader{"/patches/other.svd": testDevice()}
	if err := cfg.ProcessDevice(dev, node); err != nil {
		t.Fatal(err)
	}
	lp := dev.GetPeripheral("LPUART")
	if lp == nil || lp.BaseAddress != 0x40008000 || len(lp.Interrupts) != 0 {
		t.Fatalf("LPUART: %+v", lp)
	}
}

func TestCopyDerivedPeripheral(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, `
_copy:
  USART4:
    _from: USART3
    baseAddress: 0x40004c00
`)
	u4 := dev.GetPeripheral("USART4")
	if u4 == nil {
		t.Fatal("USART4 not added")
	}
	if u4.DerivedFrom != "" {
		t.Errorf("USART4 derivedFrom %q", u4.DerivedFrom)
	}
	if got := fieldNames(getRegister(t, dev, "USART4", "SR")); !cmp.Equal(got, []string{"TXE"}) {
		t.Errorf("USART4 SR fields %v", got)
	}
	if u3 := dev.GetPeripheral("USART3"); u3.DerivedFrom != "USART2" || len(u3.Registers) != 0 {
		t.Errorf("USART3 changed: %+v", u3)
	}
}

func TestDerivedPeripheralInterrupts(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, `
USART3:
  _delete:
    _interrupts: [USART3]
  _add:
    _interrupts:
      USART3_WKUP: {value: 40, description: wakeup}
  SR:
    _delete: [TXE]
`)
	u3 := dev.GetPeripheral("USART3")
	want := []svd.Interrupt{{Name: "USART3_WKUP", Description: "wakeup", Value: 40}}
	if diff := cmp.Diff(want, u3.Interrupts); diff != "" {
		t.Errorf("interrupts (-want +got):\n%s", diff)
	}
}

func TestDeviceModify(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, `
_modify:
  name: ACME2
  version: "2.0"
  width: 32
  cpu:
    name: CM7
    fpuPresent: true
  _peripherals:
    TIM2:
      description: General purpose timer
  USART*:
    groupName: USART
`)
	if dev.Name != "ACME2" || dev.Version != "2.0" {
		t.Errorf("device scalars: %q %q", dev.Name, dev.Version)
	}
	if dev.CPU == nil || dev.CPU.Name != "CM7" || dev.CPU.FPUPresent == nil || !*dev.CPU.FPUPresent {
		t.Errorf("cpu: %+v", dev.CPU)
	}
	if got := dev.GetPeripheral("TIM2").Description; got != "General purpose timer" {
		t.Errorf("TIM2 description %q", got)
	}
	for _, name := range []string{"USART1", "USART2", "USART3"} {
		if got := dev.GetPeripheral(name).GroupName; got != "USART" {
			t.Errorf("%s groupName %q", name, got)
		}
	}
}

func TestDeviceDeleteAndAdd(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, `
_delete: [USART2, NOPE]
_add:
  GPIOA:
    baseAddress: 0x48000000
    description: GPIO port A
    interrupts:
      EXTI0: {value: 6}
    registers:
      MODER:
        addressOffset: 0x0
        resetValue: 0xABFFFFFF
        fields:
          MODER0: {bitOffset: 0, bitWidth: 2}
`)
	if dev.GetPeripheral("USART2") != nil {
		t.Error("USART2 not deleted")
	}
	moder := getRegister(t, dev, "GPIOA", "MODER")
	if moder.ResetValue == nil || *moder.ResetValue != 0xABFFFFFF {
		t.Errorf("MODER resetValue %v", moder.ResetValue)
	}
	if diff := cmp.Diff([]*svd.Field{{Name: "MODER0", BitWidth: 2}}, moder.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
}

func TestEnv(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, "_env:\n  KIND: Serial\nUSART1:\n  _env:\n    PORT: \"`peripheral` port\"\n  _modify:\n    CR:\n      description: \"`KIND` `register` of `PORT`, $[1 + 2] bits\"\n")
	got := getRegister(t, dev, "USART1", "CR").Description
	if want := "Serial CR of USART1 port, 3 bits"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestValidationAfterPatch(t *testing.T) {
	dev := testDevice()
	err := applyDoc(t, dev, "USART1:\n  CR:\n    _modify:\n      CTRL: {dim: 2, dimIndex: \"A,B,C\"}\n")
	if !errors.Is(err, svd.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
}
