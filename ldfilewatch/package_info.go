// Package ldfilewatch allows the ldfiledata data source to reload its files automatically
// whenever they change.
//
// Pass WatchFiles as the Reloader option of the file data source:
//
//	source, err := ldfiledata.NewFileDataSource(context, updates, ldfiledata.DataSourceOptions{
//	    Paths:    []string{"./appdata/flags.json"},
//	    Reloader: ldfilewatch.WatchFiles,
//	})
package ldfilewatch
