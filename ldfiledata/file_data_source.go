package ldfiledata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/launchdarkly/go-server-sdk-core/evaluation/ldbuilders"
	"github.com/launchdarkly/go-server-sdk-core/interfaces"
	"github.com/launchdarkly/go-server-sdk-core/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"gopkg.in/yaml.v3"
)

// DuplicateKeysHandling defines how the file data source should behave if the same feature flag
// or segment key is defined in more than one of the loaded files.
type DuplicateKeysHandling string

const (
	// DuplicateKeysFail is the default: loading fails if files contain duplicate keys.
	DuplicateKeysFail DuplicateKeysHandling = "fail"

	// DuplicateKeysIgnoreAllDuplicates means that if files contain duplicate keys, only the first
	// occurrence of each key is used and later ones are ignored.
	DuplicateKeysIgnoreAllDuplicates DuplicateKeysHandling = "ignore"
)

// ReloaderFactory is a function type used with DataSourceOptions.Reloader, to specify a mechanism
// for detecting when data files should be reloaded. Its standard implementation is
// ldfilewatch.WatchFiles.
type ReloaderFactory func(paths []string, loggers ldlog.Loggers, reload func(), closeCh <-chan struct{}) error

// DataSourceOptions holds the configurable properties of the file data source.
type DataSourceOptions struct {
	// Paths is the list of data files to load. See the package documentation for the file format.
	Paths []string

	// DuplicateKeysHandling specifies how to handle keys that are defined in more than one file.
	// The zero value is DuplicateKeysFail.
	DuplicateKeysHandling DuplicateKeysHandling

	// Reloader, if non-nil, provides a mechanism for reloading the files whenever they change,
	// such as ldfilewatch.WatchFiles. If it is nil, files are read once at startup only.
	Reloader ReloaderFactory
}

// NewFileDataSource creates a DataSource implementation that reads flag and segment data from
// local files.
func NewFileDataSource(
	context subsystems.ClientContext,
	dataSourceUpdates subsystems.DataSourceUpdateSink,
	options DataSourceOptions,
) (subsystems.DataSource, error) {
	absFilePaths := make([]string, 0, len(options.Paths))
	for _, p := range options.Paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("unable to determine absolute path for data file %q: %w", p, err)
		}
		absFilePaths = append(absFilePaths, absPath)
	}

	loggers := context.GetLogging().Loggers
	loggers.SetPrefix("FileDataSource:")

	return &fileDataSource{
		dataSourceUpdates:     dataSourceUpdates,
		absFilePaths:          absFilePaths,
		duplicateKeysHandling: options.DuplicateKeysHandling,
		reloaderFactory:       options.Reloader,
		loggers:               loggers,
	}, nil
}

type fileDataSource struct {
	dataSourceUpdates     subsystems.DataSourceUpdateSink
	absFilePaths          []string
	duplicateKeysHandling DuplicateKeysHandling
	reloaderFactory       ReloaderFactory
	loggers               ldlog.Loggers
	lastVersion           int
	isInitialized         bool
	readyCh               chan<- struct{}
	readyOnce             sync.Once
	reloadLock            sync.Mutex
	closeReloaderCh       chan struct{}
	closeOnce             sync.Once
}

// Start is a standard method of DataSource.
func (fs *fileDataSource) Start(closeWhenReady chan<- struct{}) {
	fs.readyCh = closeWhenReady
	fs.reload()

	// If there is no reloader, the initial load is the only load, so we signal readiness now
	// regardless of whether it succeeded.
	if fs.reloaderFactory == nil {
		fs.signalStartComplete()
		return
	}

	// If there is a reloader and the initial load failed, hold off on the readiness signal; a
	// later reload may still produce valid data.
	if fs.IsInitialized() {
		fs.signalStartComplete()
	}

	fs.closeReloaderCh = make(chan struct{})
	if err := fs.reloaderFactory(fs.absFilePaths, fs.loggers, fs.reload, fs.closeReloaderCh); err != nil {
		fs.loggers.Errorf("Unable to start reloader: %s", err)
	}
}

// Reloads the files and pushes the merged data into the data store. Every item in a load is
// stamped with a version number that increases on each reload, so that the SDK registers reloaded
// items as changed even if the file contents assign them no versions of their own.
func (fs *fileDataSource) reload() {
	fs.reloadLock.Lock()
	defer fs.reloadLock.Unlock()

	fs.lastVersion++
	filesData := make([]fileData, 0, len(fs.absFilePaths))
	for _, path := range fs.absFilePaths {
		data, err := os.ReadFile(path)
		if err == nil {
			var parsed fileData
			if parsed, err = parseFileData(data); err == nil {
				filesData = append(filesData, parsed)
				continue
			}
		}
		fs.loggers.Errorf("Unable to load flags: %s [%s]", err, path)
		fs.announceLoadFailure(err)
		return
	}

	storeData, err := mergeFileData(fs.lastVersion, fs.duplicateKeysHandling, filesData...)
	if err != nil {
		fs.loggers.Error(err.Error())
		fs.announceLoadFailure(err)
		return
	}

	if fs.dataSourceUpdates.Init(storeData) {
		fs.isInitialized = true
		fs.dataSourceUpdates.UpdateStatus(interfaces.DataSourceStateValid, interfaces.DataSourceErrorInfo{})
		fs.signalStartComplete()
	}
}

func (fs *fileDataSource) announceLoadFailure(err error) {
	fs.dataSourceUpdates.UpdateStatus(interfaces.DataSourceStateInterrupted, interfaces.DataSourceErrorInfo{
		Kind:    interfaces.DataSourceErrorKindInvalidData,
		Message: err.Error(),
		Time:    time.Now(),
	})
}

func (fs *fileDataSource) signalStartComplete() {
	fs.readyOnce.Do(func() {
		close(fs.readyCh)
	})
}

// IsInitialized is a standard method of DataSource.
func (fs *fileDataSource) IsInitialized() bool {
	fs.reloadLock.Lock()
	defer fs.reloadLock.Unlock()
	return fs.isInitialized
}

// Close is a standard method of DataSource.
func (fs *fileDataSource) Close() error {
	fs.closeOnce.Do(func() {
		if fs.closeReloaderCh != nil {
			close(fs.closeReloaderCh)
		}
	})
	return nil
}

// The schema of a data file. Null-valued properties are equivalent to omitted ones.
type fileData struct {
	Flags      map[string]ldmodel.FeatureFlag `json:"flags"`
	FlagValues map[string]ldvalue.Value       `json:"flagValues"`
	Segments   map[string]ldmodel.Segment     `json:"segments"`
}

// The data model types implement json.Unmarshaler but have no YAML bindings, so file content is
// parsed generically with the YAML parser and re-encoded as JSON before unmarshaling into the
// typed schema. JSON files take the same path, since JSON is a subset of YAML.
func parseFileData(data []byte) (fileData, error) {
	var fd fileData
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fd, err
	}
	jsonData, err := json.Marshal(normalizeParsedYAML(raw))
	if err != nil {
		return fd, err
	}
	err = json.Unmarshal(jsonData, &fd)
	return fd, err
}

// normalizeParsedYAML converts map keys to strings wherever the YAML parser produced non-string
// keys, which YAML permits but json.Marshal rejects.
func normalizeParsedYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, elem := range v {
			v[key] = normalizeParsedYAML(elem)
		}
		return v
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			out[fmt.Sprintf("%v", key)] = normalizeParsedYAML(elem)
		}
		return out
	case []interface{}:
		for i, elem := range v {
			v[i] = normalizeParsedYAML(elem)
		}
		return v
	default:
		return value
	}
}

func mergeFileData(
	version int,
	duplicateKeysHandling DuplicateKeysHandling,
	allFileData ...fileData,
) ([]ldstoretypes.Collection, error) {
	flags := make(map[string]ldstoretypes.ItemDescriptor)
	segments := make(map[string]ldstoretypes.ItemDescriptor)

	addItem := func(items map[string]ldstoretypes.ItemDescriptor, kind, key string, item interface{}) error {
		if _, found := items[key]; found {
			switch duplicateKeysHandling {
			case DuplicateKeysIgnoreAllDuplicates:
				return nil
			default:
				return fmt.Errorf("%s key %q was used more than once", kind, key)
			}
		}
		items[key] = ldstoretypes.ItemDescriptor{Version: version, Item: item}
		return nil
	}

	// The map key is authoritative, so items do not need to repeat it in a "key" property.
	for _, fd := range allFileData {
		for key, flag := range fd.Flags {
			f := flag
			f.Key = key
			f.Version = version
			if err := addItem(flags, "flag", key, &f); err != nil {
				return nil, err
			}
		}
		for key, value := range fd.FlagValues {
			flag := makeFlagWithValue(key, value, version)
			if err := addItem(flags, "flag", key, &flag); err != nil {
				return nil, err
			}
		}
		for key, segment := range fd.Segments {
			s := segment
			s.Key = key
			s.Version = version
			if err := addItem(segments, "segment", key, &s); err != nil {
				return nil, err
			}
		}
	}

	flagsColl := make([]ldstoretypes.KeyedItemDescriptor, 0, len(flags))
	for key, item := range flags {
		flagsColl = append(flagsColl, ldstoretypes.KeyedItemDescriptor{Key: key, Item: item})
	}
	segmentsColl := make([]ldstoretypes.KeyedItemDescriptor, 0, len(segments))
	for key, item := range segments {
		segmentsColl = append(segmentsColl, ldstoretypes.KeyedItemDescriptor{Key: key, Item: item})
	}
	return []ldstoretypes.Collection{
		{Kind: datakinds.Features, Items: flagsColl},
		{Kind: datakinds.Segments, Items: segmentsColl},
	}, nil
}

func makeFlagWithValue(key string, value ldvalue.Value, version int) ldmodel.FeatureFlag {
	return ldbuilders.NewFlagBuilder(key).SingleVariation(value).Version(version).Build()
}
