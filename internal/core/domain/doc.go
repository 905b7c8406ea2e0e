// Package domain defines the core build entities for polymer-build.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - CanonicalID: The root-relative identity of every file in a build
//   - File: Loaded bytes keyed by CanonicalID
//   - ReferenceSet: The imports, scripts and styles of one fragment
//   - DependencyIndex: The completed fragment/dependency graph
//   - Warning: An analysis diagnostic with a severity
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
