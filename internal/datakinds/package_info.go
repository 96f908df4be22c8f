// Package datakinds contains the implementations of ldstoretypes.DataKind for flags and
// segments. These are in an internal package because they are not relevant to code outside
// the SDK, unlike the public types in ldstoretypes. However, they are made available to SDK
// integration code via subsystems/ldstoreimpl.
package datakinds
