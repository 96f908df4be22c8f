package ldstoretypes

// Collection is a grouping of data store items of the same kind.
type Collection struct {
	// Kind specifies the type of all items in the Items list.
	Kind DataKind
	// Items is a list of key-item pairs of the specified Kind.
	Items []KeyedItemDescriptor
}

// SerializedCollection is a grouping of serialized data store items of the same kind.
type SerializedCollection struct {
	// Kind specifies the type of all items in the Items list.
	Kind DataKind
	// Items is a list of key-item pairs of the specified Kind.
	Items []KeyedSerializedItemDescriptor
}
