package sharedtest

import (
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"
)

// FlagDescriptor is a shortcut for creating an ItemDescriptor from a flag.
func FlagDescriptor(f ldmodel.FeatureFlag) ldstoretypes.ItemDescriptor {
	return ldstoretypes.ItemDescriptor{Version: f.Version, Item: &f}
}

// SegmentDescriptor is a shortcut for creating an ItemDescriptor from a segment.
func SegmentDescriptor(s ldmodel.Segment) ldstoretypes.ItemDescriptor {
	return ldstoretypes.ItemDescriptor{Version: s.Version, Item: &s}
}
