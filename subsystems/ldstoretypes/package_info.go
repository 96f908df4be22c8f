// Package ldstoretypes contains types that are used by data store implementations and by
// other SDK components that exchange data with a data store.
//
// Application code normally does not need to refer to these types; they are mainly relevant
// when implementing a custom data store integration.
package ldstoretypes
