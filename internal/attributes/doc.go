// Package attributes evaluates user-defined custom attributes.
//
// Expressions are compiled once with the expr language and evaluated against
// process metadata after every exec. The environment exposes:
//
//	env      map[string]string  environment of the process
//	args     []string           argv of the process
//	cmdline  string             argv joined with spaces
//	path     string             executable path of the last exec
//
// An expression that yields a map is expanded into NAME.KEY attributes.
package attributes
