package datakinds

import (
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
)

// DataKindInternal is implemented along with DataKind to provide more efficient jsonstream-based
// deserialization for our built-in data kinds. SDK components that know they are using one of the
// built-in kinds can check for this interface to avoid allocating an intermediate byte slice.
type DataKindInternal interface {
	ldstoretypes.DataKind

	// DeserializeFromJSONReader attempts to deserialize an item from a jsonstream Reader.
	DeserializeFromJSONReader(reader *jreader.Reader) (ldstoretypes.ItemDescriptor, error)
}
