// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and enrollment
// fixtures: raw tables and excelize workbooks shaped like the agency's
// published files.
package shared
