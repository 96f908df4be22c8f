package ldstoretypes

// DataKind represents a separately namespaced collection of storable data items.
//
// The SDK passes instances of this type to the data store to specify whether it is
// referring to a feature flag, a segment, etc. The data store implementation should not care
// what kind of data is being referred to, since its operations are the same in all cases,
// but it may need to identify the namespace (such as a database table or a Redis key prefix)
// based on GetName, and for persistent stores it will use the Serialize and Deserialize
// methods to convert between raw data and SerializedItemDescriptors.
type DataKind interface {
	// GetName returns a short string that uniquely identifies this data kind, suitable for
	// use as a namespace identifier.
	GetName() string
	// Serialize converts an ItemDescriptor to a serialized byte string.
	Serialize(item ItemDescriptor) []byte
	// Deserialize converts a serialized byte string back to an ItemDescriptor.
	Deserialize(data []byte) (ItemDescriptor, error)
}
