package datakinds

import (
	"fmt"

	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
)

// This file defines the DataKind implementations corresponding to our two top-level data model
// types, FeatureFlag and Segment. Each DataKind instance is responsible for its own serialization
// and deserialization; the data store components are deliberately ignorant of these details.

//nolint:gochecknoglobals // global used as a constant for efficiency
var modelSerialization = ldmodel.NewJSONDataModelSerialization()

// Features is the global DataKindInternal instance for feature flags.
//
//nolint:gochecknoglobals // global used as a constant for efficiency
var Features DataKindInternal = featureFlagStoreDataKind{}

// Segments is the global DataKindInternal instance for segments.
//
//nolint:gochecknoglobals // global used as a constant for efficiency
var Segments DataKindInternal = segmentStoreDataKind{}

// AllDataKinds returns a list of supported DataKinds. Among other things, this list might
// be used by data stores to know what data (namespaces) to expect.
func AllDataKinds() []ldstoretypes.DataKind {
	return []ldstoretypes.DataKind{Features, Segments}
}

// featureFlagStoreDataKind implements DataKindInternal for feature flag data.
type featureFlagStoreDataKind struct{}

// GetName returns the unique namespace identifier for feature flag objects.
func (fk featureFlagStoreDataKind) GetName() string {
	return "features"
}

// Serialize is used internally by the SDK when communicating with a PersistentDataStore.
func (fk featureFlagStoreDataKind) Serialize(item ldstoretypes.ItemDescriptor) []byte {
	if item.Item == nil {
		return tombstone(item.Version)
	}
	if flag, ok := item.Item.(*ldmodel.FeatureFlag); ok {
		if bytes, err := modelSerialization.MarshalFeatureFlag(*flag); err == nil {
			return bytes
		}
	}
	return nil
}

// Deserialize is used internally by the SDK when communicating with a PersistentDataStore.
func (fk featureFlagStoreDataKind) Deserialize(data []byte) (ldstoretypes.ItemDescriptor, error) {
	r := jreader.NewReader(data)
	return fk.DeserializeFromJSONReader(&r)
}

// DeserializeFromJSONReader is used internally by SDK components that already have a jsonstream
// Reader positioned at the item, such as the streaming data source.
func (fk featureFlagStoreDataKind) DeserializeFromJSONReader(r *jreader.Reader) (ldstoretypes.ItemDescriptor, error) {
	flag := ldmodel.UnmarshalFeatureFlagFromJSONReader(r)
	if err := r.Error(); err != nil {
		return ldstoretypes.ItemDescriptor{}.NotFound(), err
	}
	if flag.Deleted {
		return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: nil}, nil
	}
	return ldstoretypes.ItemDescriptor{Version: flag.Version, Item: &flag}, nil
}

// String returns a human-readable string identifier.
func (fk featureFlagStoreDataKind) String() string {
	return fk.GetName()
}

// segmentStoreDataKind implements DataKindInternal for segment data.
type segmentStoreDataKind struct{}

// GetName returns the unique namespace identifier for segment objects.
func (sk segmentStoreDataKind) GetName() string {
	return "segments"
}

// Serialize is used internally by the SDK when communicating with a PersistentDataStore.
func (sk segmentStoreDataKind) Serialize(item ldstoretypes.ItemDescriptor) []byte {
	if item.Item == nil {
		return tombstone(item.Version)
	}
	if segment, ok := item.Item.(*ldmodel.Segment); ok {
		if bytes, err := modelSerialization.MarshalSegment(*segment); err == nil {
			return bytes
		}
	}
	return nil
}

// Deserialize is used internally by the SDK when communicating with a PersistentDataStore.
func (sk segmentStoreDataKind) Deserialize(data []byte) (ldstoretypes.ItemDescriptor, error) {
	r := jreader.NewReader(data)
	return sk.DeserializeFromJSONReader(&r)
}

// DeserializeFromJSONReader is used internally by SDK components that already have a jsonstream
// Reader positioned at the item, such as the streaming data source.
func (sk segmentStoreDataKind) DeserializeFromJSONReader(r *jreader.Reader) (ldstoretypes.ItemDescriptor, error) {
	segment := ldmodel.UnmarshalSegmentFromJSONReader(r)
	if err := r.Error(); err != nil {
		return ldstoretypes.ItemDescriptor{}.NotFound(), err
	}
	if segment.Deleted {
		return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: nil}, nil
	}
	return ldstoretypes.ItemDescriptor{Version: segment.Version, Item: &segment}, nil
}

// String returns a human-readable string identifier.
func (sk segmentStoreDataKind) String() string {
	return sk.GetName()
}

// A deleted item placeholder still needs a serialized form, since some persistent stores keep the
// byte string rather than the Deleted field.
func tombstone(version int) []byte {
	return []byte(fmt.Sprintf(`{"version":%d,"deleted":true}`, version))
}
