package expr

import (
	"os"

	"github.com/google/uuid"
)

// ProcessMode distinguishes evaluation at the top level of a document from
// evaluation inside the body of a user-defined function, where parameters()
// and nested userFunction calls are restricted.
type ProcessMode int

const (
	// ModeTopLevel is ordinary document evaluation: variables, parameters,
	// and resource references are all in scope.
	ModeTopLevel ProcessMode = iota
	// ModeUserFunction is evaluation inside a user function body: the
	// function's own declared parameters are in scope under a fresh
	// namespace, but the document's top-level parameters, variables, and
	// other user functions are not reachable, which is what prevents
	// recursion and accidental capture of outer scope.
	ModeUserFunction
)

// UserFunction is a document-declared function: its name, its declared
// parameter names, and its unevaluated expression body. Namespace is not
// set by document registration.
type UserFunction struct {
	Namespace string
	Name      string
	Params    []string
	Output    Node
}

// Context carries everything function evaluation needs to resolve
// parameters(), variables(), lambda(), and user-defined function calls.
// A Context is not safe for concurrent mutation; ForUserFunction produces
// the isolated scope a user function body evaluates under, and Clone the
// scope a lambda body evaluates under.
type Context struct {
	Parameters map[string]Value
	Variables  map[string]Value

	// UserFunctions is keyed by the lowercased function name.
	UserFunctions map[string]UserFunction

	// Lambdas holds unevaluated lambda bodies registered by a prior call to
	// the lambda() function, keyed by a uuid minted at registration time so
	// the higher-order function map can look the body
	// up again without re-parsing it.
	Lambdas map[string]LambdaBody

	Mode ProcessMode

	// LastExtensionStdout is a slot for the raw stdout of the most recently
	// invoked extension-resource operation. Nothing in this module assigns
	// it, and no builtin reads it.
	LastExtensionStdout string

	// ConfigRoot is the directory file-reading builtins (loadFileAsBase64,
	// loadTextContent) resolve relative paths against and sandbox escapes
	// from.
	ConfigRoot string

	// EnvLookup resolves envvar() calls; defaults to os.LookupEnv but is
	// swappable for tests.
	EnvLookup func(name string) (string, bool)
}

// LambdaBody is a registered, unevaluated lambda: the names of its bound
// parameters and its body expression.
type LambdaBody struct {
	Params []string
	Body   Node
}

// NewContext builds an empty top-level context.
func NewContext() *Context {
	return &Context{
		Parameters:    make(map[string]Value),
		Variables:     make(map[string]Value),
		UserFunctions: make(map[string]UserFunction),
		Lambdas:       make(map[string]LambdaBody),
		Mode:          ModeTopLevel,
		EnvLookup:     os.LookupEnv,
	}
}

// LambdaParamCount reports how many parameters the lambda registered under
// id declares, so a higher-order function can decide how many positional
// arguments to pass without needing to know the shape the caller used.
func (c *Context) LambdaParamCount(id string) (int, bool) {
	body, ok := c.Lambdas[id]
	if !ok {
		return 0, false
	}
	return len(body.Params), true
}

// RegisterLambda stores body under a freshly minted id and returns it.
func (c *Context) RegisterLambda(body LambdaBody) string {
	id := uuid.NewString()
	c.Lambdas[id] = body
	return id
}

// ForUserFunction returns the fresh scope a user function body evaluates
// under: its own parameters bound and no variables. UserFunctions, Lambdas,
// ConfigRoot and EnvLookup are carried over, but Mode is ModeUserFunction,
// under which evalCall does not resolve user functions. This is what makes
// recursion into other user functions, and capture of the caller's
// variables, both impossible — the spec requires user function bodies to
// be pure in terms of their declared parameters only.
func (c *Context) ForUserFunction(bound map[string]Value) *Context {
	return &Context{
		Parameters:    bound,
		Variables:     make(map[string]Value),
		UserFunctions: c.UserFunctions,
		Lambdas:       c.Lambdas,
		Mode:          ModeUserFunction,
		ConfigRoot:    c.ConfigRoot,
		EnvLookup:     c.EnvLookup,
	}
}

// Clone returns a shallow copy suitable for scoping variables created
// during lambda evaluation (e.g. the loop variable bound by map)
// without mutating the parent scope.
func (c *Context) Clone() *Context {
	cp := *c
	cp.Variables = make(map[string]Value, len(c.Variables))
	for k, v := range c.Variables {
		cp.Variables[k] = v
	}
	return &cp
}
