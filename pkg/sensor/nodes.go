package sensor

import (
	"context"
	"strings"

	"github.com/yuwei/yunduanban-runner/pkg/hierarchy"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

// TreeSource returns the current accessibility tree.
type TreeSource interface {
	Tree(ctx context.Context) (*hierarchy.Tree, error)
}

// PackageSource reports the foreground application.
type PackageSource interface {
	ForegroundPackage(ctx context.Context) (string, error)
}

// NodeQuery answers questions about the on-screen tree. Every method has
// a total result: failures to fetch the tree read as "not found".
type NodeQuery struct {
	trees TreeSource
	pkgs  PackageSource
}

// NewNodeQuery builds a query over trees; pkgs resolves bare ids.
func NewNodeQuery(trees TreeSource, pkgs PackageSource) *NodeQuery {
	return &NodeQuery{trees: trees, pkgs: pkgs}
}

// Snapshot fetches the tree once. A nil tree means no window was
// available.
func (q *NodeQuery) Snapshot(ctx context.Context) *hierarchy.Tree {
	tree, err := q.trees.Tree(ctx)
	if err != nil {
		logger.Debug("fetch tree: %v", err)
		return nil
	}
	return tree
}

// FindByText returns the first node whose text or description contains
// substr.
func (q *NodeQuery) FindByText(ctx context.Context, substr string) *hierarchy.Node {
	tree := q.Snapshot(ctx)
	if tree == nil {
		return nil
	}
	return tree.FindByText(substr)
}

// Exists reports whether any node mentions substr.
func (q *NodeQuery) Exists(ctx context.Context, substr string) bool {
	return q.FindByText(ctx, substr) != nil
}

// FirstPresent returns the first of substrs, in the order given, that is
// on screen. All checks use one tree fetch.
func (q *NodeQuery) FirstPresent(ctx context.Context, substrs ...string) (string, bool) {
	tree := q.Snapshot(ctx)
	if tree == nil {
		return "", false
	}
	for _, s := range substrs {
		if tree.FindByText(s) != nil {
			return s, true
		}
	}
	return "", false
}

// FindByID looks up an exact resource id. A bare id (no ':') that finds
// nothing is retried once as "<foreground package>:id/<id>".
func (q *NodeQuery) FindByID(ctx context.Context, id string) *hierarchy.Node {
	tree := q.Snapshot(ctx)
	if tree == nil {
		return nil
	}
	if n := tree.FindByID(id); n != nil {
		return n
	}
	if strings.Contains(id, ":") {
		return nil
	}

	pkg := ""
	if q.pkgs != nil {
		if p, err := q.pkgs.ForegroundPackage(ctx); err == nil {
			pkg = p
		} else {
			logger.Debug("foreground package: %v", err)
		}
	}
	if pkg == "" {
		pkg = tree.Package()
	}
	if pkg == "" {
		return nil
	}
	return tree.FindByID(pkg + ":id/" + id)
}

// FindClickable finds text and climbs to the nearest clickable node.
func (q *NodeQuery) FindClickable(ctx context.Context, substr string) *hierarchy.Node {
	n := q.FindByText(ctx, substr)
	if n == nil {
		return nil
	}
	return n.ClickableAncestor()
}

// FindEditable returns the first text input on screen.
func (q *NodeQuery) FindEditable(ctx context.Context) *hierarchy.Node {
	tree := q.Snapshot(ctx)
	if tree == nil {
		return nil
	}
	return tree.FindEditable()
}
