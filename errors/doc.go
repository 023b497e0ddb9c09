// Package errors provides standardized error handling for the offline edge
// cache. It includes error classification, standard error variables, and
// helper functions for consistent error wrapping across components.
//
// Errors are classified into three classes:
//   - transient: temporary conditions (origin unreachable, store busy) that
//     may succeed on a later attempt
//   - invalid: bad input or configuration that will never succeed unchanged
//   - fatal: unrecoverable conditions that should stop the component
//
// Components wrap errors at package boundaries using WrapTransient,
// WrapInvalid or WrapFatal so that callers can branch on classification
// instead of string matching.
package errors
