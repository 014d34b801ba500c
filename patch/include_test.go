package patch

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tony-format/svdpatch/encode"
	"github.com/tony-format/svdpatch/ir"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestResolveIncludes(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"dev.yaml": `
_svd: dev.svd
_include: [common/usart.yaml, common/timers.yaml]
USART1:
  _modify:
    CR: {description: parent}
  _delete: [A]
`,
		"common/usart.yaml": `
_include: [../dev.yaml, base.yaml]
USART1:
  _modify:
    CR: {description: child}
    SR: {description: status}
  _delete: [B, A]
`,
		"common/base.yaml": `
USART1:
  _modify:
    SR: {description: status}
`,
		"common/timers.yaml": `
TIM2:
  _include: [tim_regs.yaml]
  _array: "TIM2_CH?"
`,
		"common/tim_regs.yaml": `
CR1:
  CEN:
    Off: [0, "off"]
    On: [1, "on"]
`,
	})
	doc, err := LoadDocument(filepath.Join(dir, "dev.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	included, err := cfg.ResolveIncludes(doc)
	if err != nil {
		t.Fatal(err)
	}
	wantIncluded := []string{
		filepath.Join(dir, "common/usart.yaml"),
		filepath.Join(dir, "common/base.yaml"),
		filepath.Join(dir, "common/timers.yaml"),
		filepath.Join(dir, "common/tim_regs.yaml"),
	}
	if diff := cmp.Diff(wantIncluded, included); diff != "" {
		t.Errorf("included (-want +got):\n%s", diff)
	}
	want := `
_svd: dev.svd
_include: [common/usart.yaml, common/timers.yaml]
USART1:
  _modify:
    CR: {description: parent}
    SR: {description: status}
  _delete: [A, B]
TIM2:
  _array: "TIM2_CH?"
  CR1:
    CEN:
      Off: [0, "off"]
      On: [1, "on"]
`
	wantDoc := parseDoc(t, want)
	got := doc.Clone()
	stripBookkeeping(got)
	if !ir.Equal(wantDoc, got) {
		t.Errorf("resolved document:\n%s\nwant:\n%s", encode.MustString(got), encode.MustString(wantDoc))
	}
	if !strings.Contains(logs.String(), "include conflict") {
		t.Errorf("no conflict warning logged:\n%s", logs.String())
	}
	if !strings.Contains(logs.String(), "duplicate include entry") {
		t.Errorf("no duplicate notice logged:\n%s", logs.String())
	}
}

func TestResolveNestedIncludes(t *testing.T) {
	shared := writeFiles(t, map[string]string{
		"sr.yaml": `
TXE:
  Empty: [1, "empty"]
`,
	})
	abs := filepath.Join(shared, "sr.yaml")
	dir := writeFiles(t, map[string]string{
		"dev.yaml": `
USART1:
  SR:
    _include: [regs/sr.yaml]
USART2:
  SR:
    _include: [` + abs + `]
`,
		"regs/sr.yaml": `
RXNE:
  Full: [1, "full"]
`,
	})
	doc, err := LoadDocument(filepath.Join(dir, "dev.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	included, err := DefaultConfig().ResolveIncludes(doc)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "regs/sr.yaml"), abs}, included); diff != "" {
		t.Errorf("included (-want +got):\n%s", diff)
	}
	want := parseDoc(t, `
USART1:
  SR:
    RXNE:
      Full: [1, "full"]
USART2:
  SR:
    TXE:
      Empty: [1, "empty"]
`)
	got := doc.Clone()
	stripBookkeeping(got)
	if !ir.Equal(want, got) {
		t.Errorf("resolved document:\n%s\nwant:\n%s", encode.MustString(got), encode.MustString(want))
	}
}

func stripBookkeeping(doc *ir.Node) {
	_ = doc.Visit(func(y *ir.Node, isPost bool) (bool, error) {
		if !isPost && y.Type == ir.ObjectType {
			y.Delete(pathKey)
			if y.Parent != nil {
				y.Delete(includeKey)
			}
		}
		return true, nil
	})
}

func TestMergeDocument(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	parent := parseDoc(t, "a: 1\nb: [x]\nc: null\nd: {e: 1}\nf: s\n")
	child := parseDoc(t, "a: 2\nb: [y, x]\nc: {k: v}\nd: {g: 2}\nf: [t]\nh: new\n")
	cfg.mergeDocument(parent, child, "child.yaml")
	want := parseDoc(t, "a: 1\nb: [x, y]\nc: {k: v}\nd: {e: 1, g: 2}\nf: [s, t]\nh: new\n")
	if !ir.Equal(want, parent) {
		t.Errorf("got\n%s\nwant\n%s", encode.MustString(parent), encode.MustString(want))
	}
}
