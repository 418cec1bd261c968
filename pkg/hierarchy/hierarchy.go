// Package hierarchy models the accessibility tree returned by the
// UIAutomator2 page source endpoint.
package hierarchy

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yuwei/yunduanban-runner/pkg/core"
)

// Node is one entry of the on-screen tree.
type Node struct {
	Text        string
	ResourceID  string
	ContentDesc string
	ClassName   string
	Package     string
	Bounds      core.Bounds
	Enabled     bool
	Focused     bool
	Clickable   bool
	Depth       int
	Parent      *Node
	Children    []*Node
}

// Tree is a parsed page source. Roots is empty when the screen had no
// window to inspect.
type Tree struct {
	Roots []*Node
}

// Parse reads UIAutomator hierarchy XML. Both the dump format, where the
// tag is the class name, and the <node> format are accepted.
func Parse(xmlData string) (*Tree, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))
	tree := &Tree{}
	foundHierarchy := false

	var parseNode func(parent *Node, depth int) (*Node, error)
	parseNode = func(parent *Node, depth int) (*Node, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				if t.Name.Local == "hierarchy" {
					foundHierarchy = true
					continue
				}

				n := &Node{ClassName: t.Name.Local, Parent: parent, Depth: depth}
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "text":
						n.Text = attr.Value
					case "resource-id":
						n.ResourceID = attr.Value
					case "content-desc":
						n.ContentDesc = attr.Value
					case "class":
						n.ClassName = attr.Value
					case "package":
						n.Package = attr.Value
					case "bounds":
						n.Bounds = parseBounds(attr.Value)
					case "enabled":
						n.Enabled = attr.Value == "true"
					case "focused":
						n.Focused = attr.Value == "true"
					case "clickable":
						n.Clickable = attr.Value == "true"
					}
				}

				for {
					child, err := parseNode(n, depth+1)
					if err != nil {
						return nil, err
					}
					if child == nil {
						break
					}
					n.Children = append(n.Children, child)
				}
				return n, nil

			case xml.EndElement:
				return nil, nil
			}
		}
	}

	for {
		n, err := parseNode(nil, 0)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse page source: %w", err)
		}
		if n != nil {
			tree.Roots = append(tree.Roots, n)
		}
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}
	return tree, nil
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]".
func parseBounds(s string) core.Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Walk visits nodes depth-first in document order until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	if t == nil {
		return
	}
	var visit func(*Node) bool
	visit = func(n *Node) bool {
		if !fn(n) {
			return false
		}
		for _, c := range n.Children {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	for _, r := range t.Roots {
		if !visit(r) {
			return
		}
	}
}

// Find returns the first node in traversal order that satisfies match.
func (t *Tree) Find(match func(*Node) bool) *Node {
	var found *Node
	t.Walk(func(n *Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByText returns the first node whose text or content description
// contains substr.
func (t *Tree) FindByText(substr string) *Node {
	if substr == "" {
		return nil
	}
	return t.Find(func(n *Node) bool {
		return strings.Contains(n.Text, substr) || strings.Contains(n.ContentDesc, substr)
	})
}

// FindByID returns the first node whose resource-id equals id.
func (t *Tree) FindByID(id string) *Node {
	if id == "" {
		return nil
	}
	return t.Find(func(n *Node) bool { return n.ResourceID == id })
}

// FindEditable returns the first text input field.
func (t *Tree) FindEditable() *Node {
	return t.Find(func(n *Node) bool { return n.IsEditable() })
}

// Package returns the package of the first root that declares one.
func (t *Tree) Package() string {
	if t == nil {
		return ""
	}
	for _, r := range t.Roots {
		if r.Package != "" {
			return r.Package
		}
	}
	return ""
}

// Len counts every node in the tree.
func (t *Tree) Len() int {
	count := 0
	t.Walk(func(*Node) bool { count++; return true })
	return count
}

// IsEditable reports whether the node is a text input field.
func (n *Node) IsEditable() bool {
	return strings.HasSuffix(n.ClassName, "EditText")
}

// ClickableAncestor climbs to the nearest clickable node, starting with n
// itself. It returns nil when nothing on the path is clickable.
func (n *Node) ClickableAncestor() *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Clickable {
			return cur
		}
	}
	return nil
}

// Label is a short human description used in logs.
func (n *Node) Label() string {
	switch {
	case n.Text != "":
		return fmt.Sprintf("%s %q", shortClass(n.ClassName), n.Text)
	case n.ContentDesc != "":
		return fmt.Sprintf("%s desc=%q", shortClass(n.ClassName), n.ContentDesc)
	case n.ResourceID != "":
		return fmt.Sprintf("%s #%s", shortClass(n.ClassName), n.ResourceID)
	}
	return shortClass(n.ClassName)
}

func shortClass(c string) string {
	if i := strings.LastIndex(c, "."); i >= 0 {
		return c[i+1:]
	}
	return c
}

// Dump writes an indented outline of the tree, one node per line.
func (t *Tree) Dump(w io.Writer) error {
	var err error
	t.Walk(func(n *Node) bool {
		flags := ""
		if n.Clickable {
			flags += " clickable"
		}
		if n.Focused {
			flags += " focused"
		}
		_, err = fmt.Fprintf(w, "%s%s %s%s\n", strings.Repeat("  ", n.Depth), n.Label(), n.Bounds, flags)
		return err == nil
	})
	return err
}
