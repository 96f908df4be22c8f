package ldstoretypes

// KeyedItemDescriptor is a key-value pair containing a data store item.
type KeyedItemDescriptor struct {
	// Key is the unique key of this item within its DataKind.
	Key string
	// Item is the versioned item.
	Item ItemDescriptor
}

// KeyedSerializedItemDescriptor is a key-value pair containing a serialized data store item.
type KeyedSerializedItemDescriptor struct {
	// Key is the unique key of this item within its DataKind.
	Key string
	// Item is the versioned serialized item.
	Item SerializedItemDescriptor
}
