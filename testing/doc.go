// Package testing provides testing utilities for lockdash.
//
// This package contains mocks and fixtures for the seams the fetcher and the
// dashboard depend on.
//
// # Mocks
//
// The mocks subpackage provides:
//   - MockClient, a testify-based http.Client
//   - MockRegistry and RecordingSurface, which capture every surface write
//   - MockNavigator, which records navigation requests
//
// # Fixtures
//
// The fixtures subpackage provides lock API payloads and pre-configured
// clients for common scenarios (healthy API, failing API, expired session).
//
// # Usage
//
//	import (
//		"github.com/lockwatch/lockdash/testing/mocks"
//		"github.com/lockwatch/lockdash/testing/fixtures"
//	)
package testing
