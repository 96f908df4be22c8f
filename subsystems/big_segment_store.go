package subsystems

import (
	"io"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// BigSegmentStore is an interface for a read-only data store that allows querying of context
// membership in Big Segments.
//
// Big Segments are a specific type of segments. For more information, read the LaunchDarkly
// documentation: https://docs.launchdarkly.com/home/users/big-segments
type BigSegmentStore interface {
	io.Closer

	// GetMetadata returns information about the overall state of the store. This method will be
	// called only when the SDK needs the latest state, so it should not be cached.
	GetMetadata() (BigSegmentStoreMetadata, error)

	// GetMembership queries the store for a snapshot of the current segment state for a specific
	// evaluation context.
	//
	// The contextHash is a base64-encoded string produced by hashing the context key as defined by
	// the Big Segments specification; the store implementation does not need to know the details
	// of how this is done, because it deals only with already-hashed keys, but the string can be
	// assumed to only contain characters that are valid in base64.
	//
	// The return value should be either a BigSegmentMembership, or nil if the context is not
	// referenced in any Big Segments. (Returning nil is equivalent to returning a membership
	// whose CheckMembership method always returns an empty ldvalue.OptionalBool{}.)
	GetMembership(contextHash string) (BigSegmentMembership, error)
}

// BigSegmentStoreMetadata contains values returned by BigSegmentStore.GetMetadata().
type BigSegmentStoreMetadata struct {
	// LastUpToDate is the timestamp of the last update to the BigSegmentStore. It is zero if
	// the store has never been updated.
	LastUpToDate ldtime.UnixMillisecondTime
}

// BigSegmentMembership is the return type of BigSegmentStore.GetMembership(). It is associated
// with a single evaluation context, and provides the ability to check whether that context is
// included in or excluded from any number of Big Segments.
//
// This is an immutable snapshot of the state for this context at the time GetMembership was
// called. Calling its methods should not cause the state to be queried again. The object should
// be safe for concurrent access by multiple goroutines.
type BigSegmentMembership interface {
	// CheckMembership tests whether the context is explicitly included or explicitly excluded in the
	// specified segment, or neither. The segment is identified by a segmentRef which is not the
	// same as the segment key: it includes the key but also versioning information that the SDK
	// will provide. The store implementation should not be concerned with the format of this.
	//
	// If the context is explicitly included (regardless of whether the context is also explicitly
	// excluded or not-- that is, inclusion takes priority over exclusion), the method returns an
	// OptionalBool with a true value.
	//
	// If the context is explicitly excluded, and is not explicitly included, the method returns an
	// OptionalBool with a false value.
	//
	// If the context's status in the segment is undefined, the method returns an empty
	// OptionalBool{}.
	CheckMembership(segmentRef string) ldvalue.OptionalBool
}
