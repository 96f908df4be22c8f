// Package subsystems contains interfaces for implementation of custom SDK components, and for
// the communication between SDK components.
//
// Most applications will not need to refer to these types. You will use them if you are creating a
// plug-in component, such as a database integration, or if you use advanced SDK features.
package subsystems
