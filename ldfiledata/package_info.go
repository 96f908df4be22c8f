// Package ldfiledata provides a DataSource implementation that reads the SDK's data from local
// files instead of connecting to LaunchDarkly, for use in testing and prototyping.
//
// To use it, pass NewFileDataSource's result wherever a subsystems.DataSource is expected. Flag
// data is read once at startup; to reread the files automatically whenever they change, set the
// Reloader option to ldfilewatch.WatchFiles.
//
// Files may contain either JSON or YAML. They may contain full flag definitions ("flags"), which
// use the same schema as the LaunchDarkly streaming and polling endpoints; simplified flags that
// always serve a fixed value ("flagValues"); or segment definitions ("segments"):
//
//	flags:
//	  full-flag-key:
//	    on: true
//	    variations:
//	      - true
//	      - false
//	    fallthrough:
//	      variation: 0
//	flagValues:
//	  my-string-flag-key: "value-1"
//	segments:
//	  segment-key:
//	    includedContexts:
//	      - contextKind: "device"
//	        values: ["key-1"]
//
// If the same flag or segment key appears more than once across the loaded files, loading fails
// unless DuplicateKeysHandling says otherwise.
package ldfiledata
