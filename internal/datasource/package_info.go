// Package datasource is an internal package containing implementation types for the SDK's data
// source implementations (streaming, polling) and related functionality. These types are not
// visible from outside of the SDK.
package datasource
