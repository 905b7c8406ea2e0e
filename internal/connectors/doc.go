// Package connectors provides implementations of the SourceConnector
// interface. A connector enumerates declared sources, reads dependencies on
// demand and watches the build root for changes.
//
// Connectors are created through a ConnectorFactory at startup.
package connectors
