// Package datastore contains the default in-memory data store, the caching wrapper used with
// persistent data stores, the status monitoring machinery for stores, and the dependency graph
// logic that determines what flags are affected by an update.
package datastore
