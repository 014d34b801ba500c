package patch

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tony-format/svdpatch/debug"
	"github.com/tony-format/svdpatch/ir"
	"github.com/tony-format/svdpatch/parse"
)

const (
	pathKey    = "_path"
	includeKey = "_include"
)

// LoadDocument parses the patch file at path and records the absolute path
// under `_path` so relative references resolve against it.
func LoadDocument(path string) (*ir.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	node, err := parse.ParseFile(abs)
	if err != nil {
		return nil, err
	}
	doc, err := ir.AsObject(node)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	doc.Set(pathKey, ir.FromString(abs))
	return doc, nil
}

// DocumentPath returns the `_path` recorded on doc.
func DocumentPath(doc *ir.Node) string {
	s, _, _ := ir.GetString(doc, pathKey)
	return s
}

// ResolveIncludes merges every `_include`d document into doc, depth first,
// and returns the paths loaded. `_include` may appear at any nesting level;
// relative paths resolve against doc's path.
func (c *Config) ResolveIncludes(doc *ir.Node) ([]string, error) {
	return c.resolveIncludes(doc, DocumentPath(doc), nil)
}

func (c *Config) resolveIncludes(doc *ir.Node, docPath string, branch []string) ([]string, error) {
	var included []string
	for i, key := range doc.Fields {
		val := doc.Values[i]
		if val.Type != ir.ObjectType {
			continue
		}
		sub, err := c.resolveIncludes(val, docPath, branch)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.String, err)
		}
		included = append(included, sub...)
	}
	relPaths, err := ir.GetStrings(doc, includeKey)
	if err != nil {
		return nil, err
	}
	for _, rel := range relPaths {
		path := rel
		if !filepath.IsAbs(rel) {
			path = filepath.Join(filepath.Dir(docPath), rel)
		}
		if slices.Contains(included, path) || slices.Contains(branch, path) || path == docPath {
			if debug.Include() {
				debug.Logf("skip include %s\n", path)
			}
			continue
		}
		child, err := loadChild(path)
		if err != nil {
			return nil, err
		}
		if debug.Include() {
			debug.Logf("include %s into %s\n", path, docPath)
		}
		included = append(included, path)
		sub, err := c.resolveIncludes(child, path, append(slices.Clone(branch), docPath))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		included = append(included, sub...)
		c.mergeDocument(doc, child, path)
	}
	return included, nil
}

func loadChild(path string) (*ir.Node, error) {
	node, err := parse.ParseFile(path)
	if err != nil {
		return nil, err
	}
	child, err := ir.AsObject(node)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	child.Set(pathKey, ir.FromString(path))
	return child, nil
}

// mergeDocument merges child into parent. Values already in parent win;
// lists are unioned.
func (c *Config) mergeDocument(parent, child *ir.Node, childPath string) {
	for i, key := range child.Fields {
		k := key.String
		if k == pathKey || k == includeKey {
			continue
		}
		cv := child.Values[i]
		pv := ir.Get(parent, k)
		if pv == nil || pv.Type == ir.NullType {
			parent.Set(k, cv.Clone())
			continue
		}
		switch {
		case pv.Type == ir.ObjectType && cv.Type == ir.ObjectType:
			c.mergeDocument(pv, cv, childPath)
		case pv.Type == ir.ArrayType || cv.Type == ir.ArrayType:
			if pv.Type != ir.ArrayType {
				if !pv.Type.IsLeaf() {
					c.conflict(pv, cv, childPath)
					continue
				}
				pv = ir.FromSlice([]*ir.Node{pv.Clone()})
				parent.Set(k, pv)
			}
			items := []*ir.Node{cv}
			if cv.Type == ir.ArrayType {
				items = cv.Values
			}
			for _, item := range items {
				if !slices.ContainsFunc(pv.Values, func(y *ir.Node) bool { return ir.Equal(y, item) }) {
					it := item.Clone()
					it.Parent = pv
					it.ParentIndex = len(pv.Values)
					pv.Values = append(pv.Values, it)
				}
			}
		case ir.Equal(pv, cv):
			c.logger().Info("duplicate include entry", "key", pv.Path(), "path", childPath)
		default:
			c.conflict(pv, cv, childPath)
		}
	}
}

func (c *Config) conflict(pv, cv *ir.Node, childPath string) {
	c.logger().Warn("include conflict, keeping parent value",
		"key", pv.Path(),
		"path", childPath,
		"parent", summary(pv),
		"child", summary(cv))
}

func summary(y *ir.Node) string {
	switch y.Type {
	case ir.ObjectType:
		return "{" + strings.Join(y.Keys(), ", ") + "}"
	case ir.ArrayType:
		return fmt.Sprintf("[%d items]", len(y.Values))
	}
	s, err := ir.AsString(y)
	if err != nil {
		return y.Type.String()
	}
	return s
}
