package driven

import (
	"github.com/Polymer/polymer-build/internal/core/domain"
)

// ConnectorFactory creates source connectors from build configuration.
type ConnectorFactory interface {
	// Create returns a connector walking root with cfg's source globs.
	// root is the resolved, absolute build root.
	Create(root string, cfg domain.BuildConfig) (SourceConnector, error)
}

// ConnectorFactoryFunc adapts a function to ConnectorFactory.
type ConnectorFactoryFunc func(root string, cfg domain.BuildConfig) (SourceConnector, error)

// Create calls f.
func (f ConnectorFactoryFunc) Create(root string, cfg domain.BuildConfig) (SourceConnector, error) {
	return f(root, cfg)
}
