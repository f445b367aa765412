package expr

// Node is an expression AST node. The parser produces Literal, Call,
// Member, and Ident nodes; there is no statement node because statement
// classification (plain string vs. escaped literal vs. expression) happens
// one layer up, in Statement.
type Node interface {
	node()
}

// LiteralNode is a parsed literal: a number, boolean, or single-quoted
// string appearing as a function argument.
type LiteralNode struct {
	Value Value
}

func (LiteralNode) node() {}

// CallNode is a function call `name(arg, ...)`.
type CallNode struct {
	Name string
	Args []Node
}

func (CallNode) node() {}

// Selector is one step of a member-access chain: either a dotted field
// name or a bracketed index expression.
type Selector struct {
	Field string // set when this is a `.field` selector
	Index Node   // set when this is a `[expr]` selector
}

// MemberNode indexes into the result of Target by a chain of selectors,
// e.g. parameters('p').nested[0].
type MemberNode struct {
	Target    Node
	Selectors []Selector
}

func (MemberNode) node() {}

// IdentNode is a bare identifier not followed by "(". The only place this
// is legal is inside a lambda() argument list: as a parameter name in
// position, and as a reference to that bound parameter in the body.
// Evaluate resolves it against the current scope's Variables.
type IdentNode struct {
	Name string
}

func (IdentNode) node() {}
