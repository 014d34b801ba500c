package svdpatch

import (
	"errors"
	"testing"
)

type matchTest struct {
	name string
	spec string
	sub  string
	res  bool
}

var matchTests = []matchTest{
	{name: "GPIOA", spec: "GPIOA", sub: "GPIOA", res: true},
	{name: "GPIOA", spec: "GPIO?", sub: "GPIO?", res: true},
	{name: "GPIOA", spec: "GPIO[A-C]", sub: "GPIO[A-C]", res: true},
	{name: "GPIOD", spec: "GPIO[A-C]", res: false},
	{name: "USART2", spec: "UART*,USART*", sub: "USART*", res: true},
	{name: "UART4", spec: "UART*,USART*", sub: "UART*", res: true},
	{name: "SPI1", spec: "{SPI,I2S}1", sub: "{SPI,I2S}1", res: true},
	{name: "I2S1", spec: "{SPI,I2S}1", sub: "{SPI,I2S}1", res: true},
	{name: "CR1", spec: "cr1", res: false},
	{name: "_svd", spec: "_svd", res: false},
	{name: "GPIOA", spec: "_GPIO*", res: false},
	{name: "A*B", spec: `A\*B`, sub: `A\*B`, res: true},
	{name: "AxB", spec: `A\*B`, res: false},
}

func TestMatchSubspec(t *testing.T) {
	for _, mt := range matchTests {
		t.Run(mt.name+"~"+mt.spec, func(t *testing.T) {
			sub, ok := MatchSubspec(mt.name, mt.spec)
			if ok != mt.res {
				t.Fatalf("got %t want %t", ok, mt.res)
			}
			if sub != mt.sub {
				t.Errorf("subspec: got %q want %q", sub, mt.sub)
			}
		})
	}
}

func TestParseSpec(t *testing.T) {
	s, ignore := ParseSpec("?~TIM*")
	if s != "TIM*" || !ignore {
		t.Errorf("got %q %t", s, ignore)
	}
	s, ignore = ParseSpec("TIM*")
	if s != "TIM*" || ignore {
		t.Errorf("got %q %t", s, ignore)
	}
}

func TestLocateToken(t *testing.T) {
	tests := []struct {
		spec        string
		left, right int
		name, label string
	}{
		{spec: "TIM2_CH[1-3]", left: 7, right: 0, name: "TIM2_CH2", label: "2"},
		{spec: "CH?_CR", left: 2, right: 3, name: "CH4_CR", label: "4"},
		{spec: "DMA_S*CR", left: 5, right: 2, name: "DMA_S10CR", label: "10"},
		{spec: "GPIO[A-Z]_ODR,FOO", left: 4, right: 4, name: "GPIOB_ODR", label: "B"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			left, right, err := LocateToken(tt.spec)
			if err != nil {
				t.Fatal(err)
			}
			if left != tt.left || right != tt.right {
				t.Errorf("got (%d, %d) want (%d, %d)", left, right, tt.left, tt.right)
			}
			if got := IndexLabel(tt.name, left, right); got != tt.label {
				t.Errorf("label: got %q want %q", got, tt.label)
			}
		})
	}
	for _, bad := range []string{"CR1", "CH?_CR?", "A*B*"} {
		if _, _, err := LocateToken(bad); !errors.Is(err, ErrMalformedSpec) {
			t.Errorf("%q: got %v", bad, err)
		}
	}
	if got := ReplaceToken("CH?_CR", 2, 3, "%s"); got != "CH%s_CR" {
		t.Errorf("replace: got %q", got)
	}
}

func TestUnderscoreNeverMatches(t *testing.T) {
	for _, name := range []string{"GPIOA", "_GPIOA", "USART1"} {
		for _, spec := range []string{"*", "GPIO*", "USART1"} {
			if Matches(name, "_"+spec) {
				t.Errorf("%q matched %q", name, "_"+spec)
			}
		}
	}
}
