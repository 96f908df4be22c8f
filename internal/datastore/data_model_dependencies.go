package datastore

import (
	"sort"

	"github.com/launchdarkly/go-server-sdk-core/internal/datakinds"
	"github.com/launchdarkly/go-server-sdk-core/ldmodel"
	"github.com/launchdarkly/go-server-sdk-core/subsystems/ldstoretypes"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// KindAndKey is a unique identifier for a data store item: its kind plus its key within that kind.
type KindAndKey struct {
	Kind ldstoretypes.DataKind
	Key  string
}

// KindAndKeySet is a set of KindAndKey values. It is implemented as a map, but the map values do
// not matter, just the keys.
type KindAndKeySet map[KindAndKey]bool

// Add adds a value to the set if not already present.
func (s KindAndKeySet) Add(value KindAndKey) {
	s[value] = true
}

// Contains returns true if the value is in the set.
func (s KindAndKeySet) Contains(value KindAndKey) bool {
	_, ok := s[value]
	return ok
}

func computeDependenciesFrom(kind ldstoretypes.DataKind, fromItem ldstoretypes.ItemDescriptor) KindAndKeySet {
	var ret KindAndKeySet
	checkClauses := func(clauses []ldmodel.Clause) {
		for _, c := range clauses {
			if c.Op == ldmodel.OperatorSegmentMatch {
				for _, v := range c.Values {
					if v.Type() == ldvalue.StringType {
						if ret == nil {
							ret = make(KindAndKeySet)
						}
						ret.Add(KindAndKey{Kind: datakinds.Segments, Key: v.StringValue()})
					}
				}
			}
		}
	}
	switch kind {
	case datakinds.Features:
		if flag, ok := fromItem.Item.(*ldmodel.FeatureFlag); ok {
			if len(flag.Prerequisites) > 0 {
				ret = make(KindAndKeySet, len(flag.Prerequisites))
				for _, p := range flag.Prerequisites {
					ret.Add(KindAndKey{Kind: datakinds.Features, Key: p.Key})
				}
			}
			for _, r := range flag.Rules {
				checkClauses(r.Clauses)
			}
		}
	case datakinds.Segments:
		// A segment can reference other segments in segmentMatch clauses within its rules.
		if segment, ok := fromItem.Item.(*ldmodel.Segment); ok {
			for _, r := range segment.Rules {
				checkClauses(r.Clauses)
			}
		}
	}
	return ret
}

// SortCollectionsForDataStoreInit returns a copy of the input data set that is ordered so that
// data stores without atomic initialization can write it in a safe order: segments are written
// before flags, and flags are written after any other flags they depend on.
func SortCollectionsForDataStoreInit(allData []ldstoretypes.Collection) []ldstoretypes.Collection {
	colls := make([]ldstoretypes.Collection, 0, len(allData))
	for _, coll := range allData {
		if doesDataKindSupportDependencies(coll.Kind) {
			itemsOut := make([]ldstoretypes.KeyedItemDescriptor, 0, len(coll.Items))
			addItemsInDependencyOrder(coll.Kind, coll.Items, &itemsOut)
			colls = append(colls, ldstoretypes.Collection{Kind: coll.Kind, Items: itemsOut})
		} else {
			colls = append(colls, coll)
		}
	}
	sort.Slice(colls, func(i, j int) bool {
		return dataKindPriority(colls[i].Kind) < dataKindPriority(colls[j].Kind)
	})
	return colls
}

func doesDataKindSupportDependencies(kind ldstoretypes.DataKind) bool {
	return kind == ldstoretypes.DataKind(datakinds.Features) //nolint:megacheck
}

func addItemsInDependencyOrder(
	kind ldstoretypes.DataKind,
	itemsIn []ldstoretypes.KeyedItemDescriptor,
	out *[]ldstoretypes.KeyedItemDescriptor,
) {
	remainingItems := make(map[string]ldstoretypes.ItemDescriptor, len(itemsIn))
	for _, item := range itemsIn {
		remainingItems[item.Key] = item.Item
	}
	for len(remainingItems) > 0 {
		// pick a random item that hasn't been visited yet
		for firstKey := range remainingItems {
			addWithDependenciesFirst(kind, firstKey, remainingItems, out)
			break
		}
	}
}

func addWithDependenciesFirst(
	kind ldstoretypes.DataKind,
	startingKey string,
	remainingItems map[string]ldstoretypes.ItemDescriptor,
	out *[]ldstoretypes.KeyedItemDescriptor,
) {
	startItem := remainingItems[startingKey]
	delete(remainingItems, startingKey) // we won't need to visit this item again
	for dep := range computeDependenciesFrom(kind, startItem) {
		if dep.Kind == kind {
			if _, ok := remainingItems[dep.Key]; ok {
				addWithDependenciesFirst(kind, dep.Key, remainingItems, out)
			}
		}
	}
	*out = append(*out, ldstoretypes.KeyedItemDescriptor{Key: startingKey, Item: startItem})
}

// Logic for ensuring that segments are processed before features; if we get any other data types
// that haven't been accounted for here, they'll come after those two in an arbitrary order.
func dataKindPriority(kind ldstoretypes.DataKind) int {
	switch kind.GetName() {
	case "segments":
		return 0
	case "features":
		return 1
	default:
		return len(kind.GetName()) + 2
	}
}

// DependencyTracker maintains a bidirectional dependency graph that can be updated whenever an
// item has changed.
type DependencyTracker struct {
	dependenciesFrom map[KindAndKey]KindAndKeySet
	dependenciesTo   map[KindAndKey]KindAndKeySet
}

// NewDependencyTracker creates a DependencyTracker.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{make(map[KindAndKey]KindAndKeySet), make(map[KindAndKey]KindAndKeySet)}
}

// UpdateDependenciesFrom updates the dependency graph when an item has changed.
func (d *DependencyTracker) UpdateDependenciesFrom(
	kind ldstoretypes.DataKind,
	fromKey string,
	fromItem ldstoretypes.ItemDescriptor,
) {
	fromWhat := KindAndKey{Kind: kind, Key: fromKey}
	updatedDependencies := computeDependenciesFrom(kind, fromItem)

	oldDependencySet := d.dependenciesFrom[fromWhat]
	for oldDep := range oldDependencySet {
		depsToThisOldDep := d.dependenciesTo[oldDep]
		if depsToThisOldDep != nil {
			delete(depsToThisOldDep, fromWhat)
		}
	}

	d.dependenciesFrom[fromWhat] = updatedDependencies
	for newDep := range updatedDependencies {
		depsToThisNewDep := d.dependenciesTo[newDep]
		if depsToThisNewDep == nil {
			depsToThisNewDep = make(KindAndKeySet)
			d.dependenciesTo[newDep] = depsToThisNewDep
		}
		depsToThisNewDep.Add(fromWhat)
	}
}

// Reset clears the dependency graph.
func (d *DependencyTracker) Reset() {
	d.dependenciesFrom = make(map[KindAndKey]KindAndKeySet)
	d.dependenciesTo = make(map[KindAndKey]KindAndKeySet)
}

// AddAffectedItems populates the given set with the union of the initial item and all items that
// directly or indirectly depend on it (based on the current state of the dependency graph).
func (d *DependencyTracker) AddAffectedItems(itemsOut KindAndKeySet, initialModifiedItem KindAndKey) {
	if !itemsOut.Contains(initialModifiedItem) {
		itemsOut.Add(initialModifiedItem)
		affectedItems := d.dependenciesTo[initialModifiedItem]
		for affectedItem := range affectedItems {
			d.AddAffectedItems(itemsOut, affectedItem)
		}
	}
}
