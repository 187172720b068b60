package flags

import "context"

// Booler describes a feature flag that returns a simple boolean response
type Booler interface {
	Bool(ctx context.Context) bool
}

// BoolerFunc is an adapter to use a stand-alone function as a Booler
type BoolerFunc func(ctx context.Context) bool

// Bool conforms to the Booler interface
func (fn BoolerFunc) Bool(ctx context.Context) bool {
	return fn(ctx)
}

// Stringer describes a feature flag that returns a simple string response
type Stringer interface {
	String(ctx context.Context) string
}

// StringerFunc is an adapter to use a stand-alone function as a Stringer
type StringerFunc func(ctx context.Context) string

// String conforms to the Stringer interface
func (fn StringerFunc) String(ctx context.Context) string {
	return fn(ctx)
}

// Static returns a Booler that always reports b.
func Static(b bool) Booler {
	return BoolerFunc(func(context.Context) bool { return b })
}
