// Package ldstoreimpl contains SDK data store implementation objects that may be used by
// external code such as the Relay Proxy, as well as internally by the SDK.
//
// Application code normally does not need to refer to these types. They deal with how flag and
// segment data is represented in data stores, and with wrapping a Big Segment store in the
// standard caching and status-polling behavior.
package ldstoreimpl
