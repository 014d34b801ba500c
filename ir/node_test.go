package ir

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetKeepsOrder(t *testing.T) {
	y := FromPairs("b", FromInt(1), "a", FromInt(2))
	y.Set("c", FromInt(3))
	y.Set("b", FromInt(4))
	if diff := cmp.Diff([]string{"b", "a", "c"}, y.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if got := *Get(y, "b").Int64; got != 4 {
		t.Errorf("b: got %d want 4", got)
	}
}

func TestDelete(t *testing.T) {
	y := FromPairs("a", FromInt(1), "b", FromInt(2), "c", FromInt(3))
	y.Delete("b")
	if diff := cmp.Diff([]string{"a", "c"}, y.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if c := Get(y, "c"); c.ParentIndex != 1 {
		t.Errorf("c index: got %d", c.ParentIndex)
	}
}

func TestPath(t *testing.T) {
	leaf := FromString("x")
	y := FromPairs("GPIOA", FromPairs("ODR.*", FromSlice([]*Node{FromInt(0), leaf})))
	if got, want := leaf.Path(), "$.GPIOA.'ODR.*'[1]"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if y.Path() != "$" {
		t.Errorf("root path %q", y.Path())
	}
}

func TestCloneIsDeep(t *testing.T) {
	y := FromPairs("a", FromStrings("x", "y"))
	c := y.Clone()
	Get(c, "a").Values[0].String = "z"
	if Get(y, "a").Values[0].String != "x" {
		t.Errorf("clone shares values")
	}
	if !Equal(y, FromPairs("a", FromStrings("x", "y"))) {
		t.Errorf("original changed")
	}
}

func TestAccessors(t *testing.T) {
	y := FromPairs(
		"hex", FromString("0x40"),
		"num", FromInt(7),
		"bin", FromString("0b101"),
		"neg", FromInt(-1),
		"list", FromStrings("A", "B"),
		"one", FromString("C"),
		"obj", Null(),
	)
	tests := []struct {
		field string
		want  int64
	}{
		{"hex", 0x40},
		{"num", 7},
		{"bin", 5},
		{"neg", -1},
	}
	for _, tt := range tests {
		got, err := GetInt(y, tt.field)
		if err != nil {
			t.Fatalf("%s: %v", tt.field, err)
		}
		if *got != tt.want {
			t.Errorf("%s: got %d want %d", tt.field, *got, tt.want)
		}
	}
	if _, err := GetUint(y, "neg"); !errors.Is(err, ErrDocumentType) {
		t.Errorf("negative uint: got %v", err)
	}
	list, err := GetStrings(y, "list")
	if err != nil {
		t.Fatal(err)
	}
	one, err := GetStrings(y, "one")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, append(list, one...)); diff != "" {
		t.Errorf("strings (-want +got):\n%s", diff)
	}
	obj, err := GetObject(y, "obj")
	if err != nil || obj.Type != ObjectType || len(obj.Fields) != 0 {
		t.Errorf("null as object: %v %v", obj, err)
	}
	if _, err := GetObject(y, "list"); !errors.Is(err, ErrDocumentType) {
		t.Errorf("list as object: got %v", err)
	}
	var te *TypeError
	if _, err := GetObject(y, "list"); !errors.As(err, &te) || te.Path != "$.list" {
		t.Errorf("type error path: %v", err)
	}
}
