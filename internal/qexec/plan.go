package qexec

// NodeKind discriminates a query plan node.
type NodeKind uint8

const (
	NodeTerm NodeKind = iota
	NodeAnd
	NodeOr
	// NodeNot negates its single child; it is only meaningful as a
	// direct child of a NodeAnd (a positive clause is always required
	// elsewhere in the tree — enforced by the query pre-processor, not
	// by the executor).
	NodeNot
)

// Node is one node of a boolean query tree translated into this
// segment's execution term space. Leaves reference a QueryTermCtx by
// pointer so the same context (and its instances) is shared between the
// executor's evaluation and whatever the scorer later inspects.
type Node struct {
	Kind     NodeKind
	Term     *QueryTermCtx
	Children []*Node
}

// Leaves returns every NodeTerm reachable from n, in tree order. A term
// may repeat if referenced more than once (e.g. "a AND a"); callers that
// need unique terms should dedupe by TermID.
func (n *Node) Leaves() []*QueryTermCtx {
	if n == nil {
		return nil
	}
	if n.Kind == NodeTerm {
		return []*QueryTermCtx{n.Term}
	}
	var out []*QueryTermCtx
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}
