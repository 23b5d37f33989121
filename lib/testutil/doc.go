// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for cnl packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Tests that
// cross a real TCP connection or goroutine boundary use them; tests of
// the namespace and stream logic drive a fake clock instead.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, for example distinct stream prefixes in tests that
// share a process.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
