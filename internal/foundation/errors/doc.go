// Package errors provides the classified error type shared by every blogbuilder stage.
//
// A ClassifiedError carries a category (config, input, network, build, ...), a
// severity, a retry strategy and structured context. Errors are created with
// the fluent ErrorBuilder:
//
//	err := errors.InputError("export document is not well-formed XML").
//		WithCause(parseErr).
//		WithContext("path", exportPath).
//		Build()
//
// The CLIErrorAdapter turns a classified error into a user-facing message and
// a process exit code.
package errors
