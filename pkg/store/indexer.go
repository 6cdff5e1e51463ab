package store

// AttributeIndexer maintains the canonical lookup maps over stored objects:
// qual-name, kind then name, and name then kind.
type AttributeIndexer struct {
	qualName map[string]Object
	byKind   map[string]map[string]Object
	byName   map[string]map[string]Object
}

// NewAttributeIndexer creates an empty canonical indexer.
func NewAttributeIndexer() *AttributeIndexer {
	return &AttributeIndexer{
		qualName: make(map[string]Object),
		byKind:   make(map[string]map[string]Object),
		byName:   make(map[string]map[string]Object),
	}
}

// Index implements Indexer.
func (ix *AttributeIndexer) Index(obj Object) {
	ix.qualName[obj.QualName()] = obj

	kindMap, ok := ix.byKind[obj.Kind()]
	if !ok {
		kindMap = make(map[string]Object)
		ix.byKind[obj.Kind()] = kindMap
	}
	kindMap[obj.Name()] = obj

	nameMap, ok := ix.byName[obj.Name()]
	if !ok {
		nameMap = make(map[string]Object)
		ix.byName[obj.Name()] = nameMap
	}
	nameMap[obj.Kind()] = obj
}

// Remove implements Indexer.
func (ix *AttributeIndexer) Remove(obj Object) {
	delete(ix.qualName, obj.QualName())
	if kindMap, ok := ix.byKind[obj.Kind()]; ok {
		delete(kindMap, obj.Name())
	}
	if nameMap, ok := ix.byName[obj.Name()]; ok {
		delete(nameMap, obj.Kind())
	}
}

// QualName looks up an object by kind:name.
func (ix *AttributeIndexer) QualName(qual string) (Object, bool) {
	obj, ok := ix.qualName[qual]
	return obj, ok
}

// ByKind returns the name-to-object map for one kind.
func (ix *AttributeIndexer) ByKind(kind string) map[string]Object {
	return ix.byKind[kind]
}

// ByName returns the kind-to-object map for one name.
func (ix *AttributeIndexer) ByName(name string) map[string]Object {
	return ix.byName[name]
}
