// Package shared holds cross-cutting helpers that belong to no single
// pipeline layer. Currently this is just testutil, the slog capture
// support used by package tests to assert on degradation warnings.
package shared
