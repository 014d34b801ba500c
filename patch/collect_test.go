package patch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tony-format/svdpatch/svd"
)

func TestRegisterArray(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, "TIM2:\n  _array: \"TIM2_CH[1-3]\"\n")
	want := []svd.RegisterCluster{
		register("CR1", 0x0, field("CEN", 0, 1)),
		&svd.Register{
			Name:          "TIM2_CH%s",
			Description:   "Channel %s",
			AddressOffset: 0x10,
			Dim:           &svd.DimElement{Dim: 3, DimIncrement: 4, DimIndex: []string{"1", "2", "3"}},
			Fields:        []*svd.Field{field("VAL", 0, 8)},
		},
	}
	regs := dev.GetPeripheral("TIM2").Registers
	if diff := cmp.Diff(want, regs); diff != "" {
		t.Fatalf("registers (-want +got):\n%s", diff)
	}

	before := dev.Clone()
	mustApply(t, dev, "TIM2:\n  _array: \"TIM2_CH*\"\n")
	if diff := cmp.Diff(before, dev); diff != "" {
		t.Errorf("second collection changed the device (-before +after):\n%s", diff)
	}
}

func TestRegisterArrayOptions(t *testing.T) {
	dev := testDevice()
	mustApply(t, dev, `
TIM2:
  _array:
    TIM2_CH?:
      name: CCR%s
      description: "Capture/compare `+"`peripheral`"+` %s"
      _start_from_zero: true
      resetValue: 0x10
`)
	reg := getRegister(t, dev, "TIM2", "CCR%s")
	if reg.Description != "Capture/compare TIM2 %s" {
		t.Errorf("description %q", reg.Description)
	}
	if diff := cmp.Diff(&svd.DimElement{Dim: 3, DimIncrement: 4, DimIndex: []string{"0", "1", "2"}}, reg.Dim); diff != "" {
		t.Errorf("dim (-want +got):\n%s", diff)
	}
	if reg.ResetValue == nil || *reg.ResetValue != 0x10 {
		t.Errorf("resetValue %v", reg.ResetValue)
	}
}

func TestRegisterArrayStride(t *testing.T) {
	dev := testDevice()
	tim := dev.GetPeripheral("TIM2")
	tim.Registers[3].SetOffset(0x20)
	err := applyDoc(t, dev, "TIM2:\n  _array: \"TIM2_CH?\"\n")
	if !errors.Is(err, ErrInconsistentShape) {
		t.Fatalf("got %v, want %v", err, ErrInconsistentShape)
	}
}

func clusterDevice() *svd.Device {
	dev := testDevice()
	dev.Peripherals = append(dev.Peripherals, &svd.Peripheral{
		Name:        "DMA1",
		BaseAddress: 0x40020000,
		Registers: []svd.RegisterCluster{
			register("ISR", 0x0),
			register("CH1_CR", 0x10, field("EN", 0, 1)),
			register("CH1_NDTR", 0x14, field("NDT", 0, 16)),
			register("CH2_CR", 0x20, field("EN", 0, 1)),
			register("CH2_NDTR", 0x24, field("NDT", 0, 16)),
			register("IFCR", 0x40),
		},
	})
	return dev
}

func TestClusterArray(t *testing.T) {
	dev := clusterDevice()
	mustApply(t, dev, `
DMA1:
  _cluster:
    CH%s:
      description: DMA channel
      CH?_CR: {name: CR}
      CH?_NDTR: {name: NDTR}
`)
	want := []svd.RegisterCluster{
		register("ISR", 0x0),
		&svd.Cluster{
			Name:          "CH%s",
			Description:   "DMA channel",
			AddressOffset: 0x10,
			Dim:           &svd.DimElement{Dim: 2, DimIncrement: 0x10, DimIndex: []string{"1", "2"}},
			Children: []svd.RegisterCluster{
				&svd.Register{Name: "CR", Description: "CH%s_CR register", AddressOffset: 0x0, Fields: []*svd.Field{field("EN", 0, 1)}},
				&svd.Register{Name: "NDTR", Description: "CH%s_NDTR register", AddressOffset: 0x4, Fields: []*svd.Field{field("NDT", 0, 16)}},
			},
		},
		register("IFCR", 0x40),
	}
	if diff := cmp.Diff(want, dev.GetPeripheral("DMA1").Registers); diff != "" {
		t.Errorf("registers (-want +got):\n%s", diff)
	}
}

func TestClusterSingle(t *testing.T) {
	dev := clusterDevice()
	mustApply(t, dev, "DMA1:\n  _cluster:\n    FLAGS:\n      ISR: {}\n      IFCR: {}\n")
	regs := dev.GetPeripheral("DMA1").Registers
	c, ok := regs[0].(*svd.Cluster)
	if !ok {
		t.Fatalf("first entry is %T", regs[0])
	}
	if c.Description != "Cluster FLAGS, containing ISR, IFCR" || c.Dim != nil || c.AddressOffset != 0 {
		t.Errorf("cluster %+v", c)
	}
	if got := c.Children[1].Offset(); got != 0x40 {
		t.Errorf("IFCR offset %#x", got)
	}
	if len(regs) != 5 {
		t.Errorf("%d entries after collection", len(regs))
	}
}

func TestClusterMismatch(t *testing.T) {
	dev := clusterDevice()
	err := applyDoc(t, dev, "DMA1:\n  _delete: [CH2_NDTR]\n  _cluster:\n    CH%s:\n      CH?_CR: {}\n      CH?_NDTR: {}\n")
	if !errors.Is(err, ErrInconsistentShape) {
		t.Fatalf("got %v, want %v", err, ErrInconsistentShape)
	}
}

func TestClustersBlock(t *testing.T) {
	dev := clusterDevice()
	mustApply(t, dev, `
DMA1:
  _cluster:
    CH%s:
      CH?_CR: {name: CR}
      CH?_NDTR: {name: NDTR}
`)
	mustApply(t, dev, `
DMA1:
  _clusters:
    CH%s:
      _modify:
        CR:
          description: "Channel configuration in `+"`cluster`"+`"
      CR:
        EN:
          Disabled: [0, "channel off"]
          Enabled: [1, "channel on"]
`)
	cr := getRegister(t, dev, "DMA1", "CR")
	if cr.Description != "Channel configuration in CH%s" {
		t.Errorf("description %q", cr.Description)
	}
	if n := len(cr.Fields[0].EnumeratedValues); n != 1 {
		t.Errorf("%d enumerated value sets", n)
	}
}

func TestFieldArray(t *testing.T) {
	dev := testDevice()
	cr := getRegister(t, dev, "TIM2", "CR1")
	cr.Fields = []*svd.Field{
		{Name: "CC1E", Description: "Capture 1 enable", BitOffset: 0, BitWidth: 1},
		{Name: "CC2E", Description: "Capture 2 enable", BitOffset: 4, BitWidth: 1},
		{Name: "CC3E", Description: "Capture 3 enable", BitOffset: 8, BitWidth: 1},
	}
	mustApply(t, dev, "TIM2:\n  CR1:\n    _array: \"CC?E\"\n")
	want := []*svd.Field{{
		Name:        "CC%sE",
		Description: "Capture %s enable",
		BitWidth:    1,
		Dim:         &svd.DimElement{Dim: 3, DimIncrement: 4, DimIndex: []string{"1", "2", "3"}},
	}}
	if diff := cmp.Diff(want, cr.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
}

func TestFieldArrayDescription(t *testing.T) {
	dev := testDevice()
	cr := getRegister(t, dev, "TIM2", "CR1")
	cr.Fields = []*svd.Field{
		{Name: "CC1E", Description: "First", BitOffset: 0, BitWidth: 1},
		{Name: "CC2E", Description: "Second", BitOffset: 1, BitWidth: 1},
	}
	err := applyDoc(t, dev, "TIM2:\n  CR1:\n    _array: \"CC?E\"\n")
	if !errors.Is(err, ErrInconsistentShape) {
		t.Fatalf("got %v, want %v", err, ErrInconsistentShape)
	}
	mustApply(t, dev, "TIM2:\n  CR1:\n    _array:\n      CC?E: {description: Channel %s enable}\n")
	if got := cr.Fields[0].Description; got != "Channel %s enable" {
		t.Errorf("description %q", got)
	}
}

func TestInferDescription(t *testing.T) {
	tests := []struct {
		descs, labels []string
		want          string
		ok            bool
	}{
		{[]string{"a", "a"}, []string{"1", "2"}, "a", true},
		{[]string{"Channel 1", "Channel 2"}, []string{"1", "2"}, "Channel %s", true},
		{[]string{"CH1 ch 1", "CH2 ch 2"}, []string{"1", "2"}, "CH%s ch %s", true},
		{[]string{"1 x 1", "2 x 1"}, []string{"1", "2"}, "%s x 1", true},
		{[]string{"First", "Second"}, []string{"1", "2"}, "", false},
	}
	for _, tt := range tests {
		got, ok := inferDescription(tt.descs, tt.labels)
		if got != tt.want || ok != tt.ok {
			t.Errorf("inferDescription(%q, %q) = %q, %v; want %q, %v", tt.descs, tt.labels, got, ok, tt.want, tt.ok)
		}
	}
}
