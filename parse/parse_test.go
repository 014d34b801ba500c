package parse

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tony-format/svdpatch/ir"
)

type parseTest struct {
	in   string
	want *ir.Node
}

func TestParseOK(t *testing.T) {
	pts := []parseTest{
		{in: ``, want: ir.Null()},
		{in: `null`, want: ir.Null()},
		{in: `true`, want: ir.FromBool(true)},
		{in: `22`, want: ir.FromInt(22)},
		{in: `0x40`, want: ir.FromInt(0x40)},
		{in: `1.5`, want: ir.FromFloat(1.5)},
		{in: `hello`, want: ir.FromString("hello")},
		{in: `[a, b]`, want: ir.FromStrings("a", "b")},
		{
			in: `
b: 1
a:
  - x
c:
`,
			want: ir.FromPairs(
				"b", ir.FromInt(1),
				"a", ir.FromStrings("x"),
				"c", ir.Null(),
			),
		},
		{
			in:   `{"_svd": "a.svd", 3: x}`,
			want: ir.FromPairs("_svd", ir.FromString("a.svd"), "3", ir.FromString("x")),
		},
	}
	for _, pt := range pts {
		t.Run(pt.in, func(t *testing.T) {
			got, err := Parse([]byte(pt.in))
			if err != nil {
				t.Fatal(err)
			}
			if !ir.Equal(pt.want, got) {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestParseKeyOrder(t *testing.T) {
	got, err := Parse([]byte("z: 1\ny: 2\nx: 3\nw: 4\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"z", "y", "x", "w"}, got.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte("a: [1, 2\n"))
	if !errors.Is(err, ir.ErrParse) {
		t.Fatalf("got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yaml")
	if err := os.WriteFile(path, []byte("_svd: x.svd\n"), 0644); err != nil {
		t.Fatal(err)
	}
	node, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s, _, _ := ir.GetString(node, "_svd"); s != "x.svd" {
		t.Errorf("got %q", s)
	}
	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}
}
