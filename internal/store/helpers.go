package store

import "strings"

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// fileIDsToArgs converts []FileID to []any for use with database/sql.
func fileIDsToArgs(ids []FileID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// symbolIDsToArgs converts []SymbolID to []any for use with database/sql.
func symbolIDsToArgs(ids []SymbolID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// repeatArgs repeats args n times (for queries with multiple IN clauses).
func repeatArgs(args []any, n int) []any {
	result := make([]any, 0, len(args)*n)
	for range n {
		result = append(result, args...)
	}
	return result
}

// countSubstring counts non-overlapping occurrences of substr in s.
func countSubstring(s, substr string) int {
	return strings.Count(s, substr)
}
