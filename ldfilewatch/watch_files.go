package ldfilewatch

import (
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/fsnotify/fsnotify"
)

const retryDuration = time.Second

type fileWatcher struct {
	watcher  *fsnotify.Watcher
	loggers  ldlog.Loggers
	reload   func()
	paths    []string
	absPaths map[string]bool
}

// WatchFiles sets up a mechanism for the file data source to reload its source files whenever one
// of them has been modified. It has the signature of ldfiledata.ReloaderFactory; see the package
// documentation for how to configure it.
//
// The watcher recovers on its own from files that do not exist yet or that are replaced
// non-atomically: if a path cannot be watched or a reload produces invalid data, it keeps
// retrying on a one-second interval until the files are readable again.
func WatchFiles(paths []string, loggers ldlog.Loggers, reload func(), closeCh <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	fw := &fileWatcher{
		watcher:  watcher,
		loggers:  loggers,
		reload:   reload,
		paths:    paths,
		absPaths: make(map[string]bool),
	}
	go fw.run(closeCh)
	return nil
}

func (fw *fileWatcher) run(closeCh <-chan struct{}) {
	retryCh := make(chan struct{}, 1)
	scheduleRetry := func() {
		time.AfterFunc(retryDuration, func() {
			// Non-blocking write because we never need to queue more than one retry signal
			select {
			case retryCh <- struct{}{}:
			default:
			}
		})
	}
	for {
		if err := fw.setupWatches(); err != nil {
			fw.loggers.Error(err.Error())
			scheduleRetry()
		}

		// Reload here rather than after waiting for events, even though that means one redundant
		// load at startup. Otherwise a change that happened after the initial load but before the
		// watches were registered would go unnoticed.
		fw.reload()

		if quit := fw.waitForEvents(closeCh, retryCh); quit {
			return
		}
	}
}

// Watches each file and also its parent directory, since a file that is deleted and recreated, or
// replaced by a rename as editors and atomic-write tools do, produces events only on the
// directory. Watching a file that does not exist yet fails; the retry loop picks it up later.
func (fw *fileWatcher) setupWatches() error {
	for _, p := range fw.paths {
		dirPath := path.Dir(p)
		realDirPath, err := filepath.EvalSymlinks(dirPath)
		if err != nil {
			return fmt.Errorf("unable to evaluate symlinks for %q: %w", dirPath, err)
		}

		realPath := path.Join(realDirPath, path.Base(p))
		fw.absPaths[realPath] = true
		if err := fw.watcher.Add(realPath); err != nil {
			return fmt.Errorf("unable to watch path %q: %w", realPath, err)
		}
		if err := fw.watcher.Add(realDirPath); err != nil {
			return fmt.Errorf("unable to watch path %q: %w", realDirPath, err)
		}
	}
	return nil
}

// waitForEvents blocks until something should trigger a reload, or until the watcher is being
// shut down, in which case it returns true.
func (fw *fileWatcher) waitForEvents(closeCh <-chan struct{}, retryCh chan struct{}) bool {
	for {
		select {
		case <-closeCh:
			if err := fw.watcher.Close(); err != nil {
				fw.loggers.Errorf("Error closing file watcher: %s", err)
			}
			return true
		case event := <-fw.watcher.Events:
			if !fw.absPaths[event.Name] {
				break
			}
			fw.consumeExtraEvents()
			return false
		case err := <-fw.watcher.Errors:
			fw.loggers.Error(err.Error())
		case <-retryCh:
			return false
		}
	}
}

// Consumes any redundant change events that have piled up in the queue, so that one burst of
// filesystem activity produces one reload.
func (fw *fileWatcher) consumeExtraEvents() {
	for {
		select {
		case <-fw.watcher.Events:
		default:
			return
		}
	}
}
