package ldstoretypes

// ItemDescriptor is a versioned item (or placeholder) storable in a data store.
//
// This is used for data stores that directly store objects as-is, as the default in-memory
// store does. Items are typed as interface{}; the store should not know or care what the
// actual object is.
//
// For any given key within a DataKind, there can be either an existing item with a version,
// or a "tombstone" placeholder representing a deleted item (also with a version). Deleted item
// placeholders are used so that if an item is first updated with version N and then deleted
// with version N+1, but the SDK receives those changes out of order, version N will not
// overwrite the deletion.
//
// Persistent data stores use SerializedItemDescriptor instead.
type ItemDescriptor struct {
	// Version is the version number of this data, provided by the SDK.
	Version int
	// Item is the data item, or nil if this is a placeholder for a deleted item.
	Item interface{}
}

// NotFound is a convenience method for constructing an ItemDescriptor that represents
// "no such item exists", with a version of -1.
func (d ItemDescriptor) NotFound() ItemDescriptor {
	return ItemDescriptor{Version: -1, Item: nil}
}

// Deleted returns true if this descriptor is a placeholder for a deleted item.
func (d ItemDescriptor) Deleted() bool {
	return d.Item == nil
}

// SerializedItemDescriptor is a versioned item (or placeholder) storable in a persistent
// data store. This is equivalent to ItemDescriptor, but is used for persistent stores which
// never need to know the details of the data model.
type SerializedItemDescriptor struct {
	// Version is the version number of this data, provided by the SDK.
	Version int
	// Deleted is true if this is a placeholder (tombstone) for a deleted item. If so,
	// SerializedItem will still contain a byte string representing the deleted item, but
	// the persistent store implementation has the option of not storing it if it can use
	// the Deleted field to represent the placeholder.
	Deleted bool
	// SerializedItem is the data item's serialized representation. For a deleted item
	// placeholder, instead of passing a null reference, the SDK will provide a special
	// value that can be stored if necessary (see Deleted).
	SerializedItem []byte
}

// NotFound is a convenience method for constructing a SerializedItemDescriptor that represents
// "no such item exists", with a version of -1.
func (d SerializedItemDescriptor) NotFound() SerializedItemDescriptor {
	return SerializedItemDescriptor{Version: -1, SerializedItem: nil}
}
