// Package interfaces contains types that allow customization of SDK behavior, or querying of
// SDK status, that are not part of the main client API.
//
// These types are mostly read-only status and event types. The interfaces that define pluggable
// SDK components are in the subsystems package instead.
package interfaces
