// Package flags provides feature flag values for the programs that consult
// the flag service.
//
// Flags are dependencies, and should be passed to the components that need
// them in the same way you'd construct and pass a database handle, or
// reference to another component. Instantiate flags in your func main; the
// remote subpackage builds them on top of a flagservice.Service.
package flags
