package ldstoreimpl

import (
	"github.com/launchdarkly/go-server-sdk-core/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"
)

// These exported accessors are the supported way for external code, such as database
// integrations and the Relay Proxy, to refer to the SDK's data kinds. The implementations are
// internal because their serialization behavior is subject to change.

// Features returns the DataKind instance corresponding to feature flag data.
func Features() ldstoretypes.DataKind {
	return datakinds.Features
}

// Segments returns the DataKind instance corresponding to segment data.
func Segments() ldstoretypes.DataKind {
	return datakinds.Segments
}

// AllKinds returns a list of all supported DataKinds.
func AllKinds() []ldstoretypes.DataKind {
	return datakinds.AllDataKinds()
}
