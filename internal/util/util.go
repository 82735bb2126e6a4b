// Package util holds small helpers for arguments passed in by the host.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg undoes the host's string quoting: outer quotes are stripped and
// doubled inner quotes collapsed.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// CleanArgs applies CleanArg to every element of args in place.
func CleanArgs(args []string) []string {
	for i, v := range args {
		args[i] = CleanArg(v)
	}
	return args
}
