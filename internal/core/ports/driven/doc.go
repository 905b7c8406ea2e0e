// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for a build to run:
//
//   - SourceConnector: Enumerates declared sources and reads dependencies
//   - ConnectorFactory: Creates a connector for a build root
//   - AnalyzerFactory: Creates the document analyzer for a run
//   - ConfigStore: Project configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - IndexStore: Run history persistence. Without it, runs are not recorded.
//   - Bundler: Merges build output. Without it, the bundle step is unavailable.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or analyzer package
package driven
