package ldevents

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// eventContextFormatter provides the special JSON serialization format that is used when including
// contexts in analytics events, in which private attributes may be redacted.
type eventContextFormatter struct {
	allAttributesPrivate bool
	privateAttributes    map[string]*privateAttrLookupNode
}

// privateAttrLookupNode is a node within a tree of private attribute references. The tree makes it
// possible to match a path like ["a", "b"] against the reference set efficiently, and to know
// whether any reference points deeper than the current path.
type privateAttrLookupNode struct {
	attribute *ldattr.Ref
	children  map[string]*privateAttrLookupNode
}

func newEventContextFormatter(config EventsConfiguration) eventContextFormatter {
	ret := eventContextFormatter{allAttributesPrivate: config.AllAttributesPrivate}
	if len(config.PrivateAttributes) != 0 {
		// Reformat the attribute references into a map structure that we can scan efficiently.
		ret.privateAttributes = makePrivateAttrLookupData(config.PrivateAttributes)
	}
	return ret
}

func makePrivateAttrLookupData(attrRefList []ldattr.Ref) map[string]*privateAttrLookupNode {
	// This function transforms a list of AttrRefs into a data structure that allows for more efficient
	// matching.
	//
	// For instance, if the original references were "/name", "/address/street", and "/address/city",
	// it would produce the following map:
	//
	// "name": {
	//   attribute: NewRef("/name"),
	// },
	// "address": {
	//   children: {
	//     "street": {
	//       attribute: NewRef("/address/street"),
	//     },
	//     "city": {
	//       attribute: NewRef("/address/city"),
	//     },
	//   },
	// }
	//
	// The attribute field, if present, means that the whole path up to that point is a private
	// attribute; a node may have both an attribute and children if a reference designated both an
	// object and a property within it.
	ret := make(map[string]*privateAttrLookupNode)
	for _, a := range attrRefList {
		parentMap := &ret
		for i := 0; i < a.Depth(); i++ {
			name := a.Component(i)
			if *parentMap == nil {
				*parentMap = make(map[string]*privateAttrLookupNode)
			}
			nextNode := (*parentMap)[name]
			if nextNode == nil {
				nextNode = &privateAttrLookupNode{}
				if i == a.Depth()-1 {
					aa := a
					nextNode.attribute = &aa
				}
				(*parentMap)[name] = nextNode
			}
			parentMap = &nextNode.children
		}
	}
	return ret
}

// WriteContext serializes a context in the format appropriate for an analytics event, redacting
// private attributes if necessary.
func (f *eventContextFormatter) WriteContext(w *jwriter.Writer, ec *EventInputContext) {
	if ec.preserialized != nil {
		w.Raw(ec.preserialized)
		return
	}
	if ec.context.Err() != nil {
		w.AddError(ec.context.Err())
		return
	}
	if ec.context.Multiple() {
		f.writeContextMultiKind(w, ec)
	} else {
		f.writeContextSingleKind(w, &ec.context, true)
	}
}

func (f *eventContextFormatter) writeContextMultiKind(w *jwriter.Writer, ec *EventInputContext) {
	obj := w.Object()
	obj.Name(ldattr.KindAttr).String(string(ldcontext.MultiKind))
	for i := 0; i < ec.context.IndividualContextCount(); i++ {
		if mc := ec.context.IndividualContextByIndex(i); mc.IsDefined() {
			obj.Name(string(mc.Kind()))
			f.writeContextSingleKind(w, &mc, false)
		}
	}
	obj.End()
}

func (f *eventContextFormatter) writeContextSingleKind(w *jwriter.Writer, c *ldcontext.Context, includeKind bool) {
	obj := w.Object()

	if includeKind {
		obj.Name(ldattr.KindAttr).String(string(c.Kind()))
	}

	obj.Name(ldattr.KeyAttr).String(c.Key())

	optionalAttrNames := make([]string, 0, 50) // arbitrary capacity, expanded if necessary by GetOptionalAttributeNames
	optionalAttrNames = c.GetOptionalAttributeNames(optionalAttrNames)

	var redactedAttrs []string

	for _, key := range optionalAttrNames {
		if value := c.GetValue(key); !value.IsNull() {
			if f.allAttributesPrivate {
				// All attributes are redacted, so there is no complex filtering or recursing to be
				// done. The redacted list uses attribute reference syntax, so the name may need to
				// be escaped.
				redactedAttrs = append(redactedAttrs, ldattr.NewLiteralRef(key).String())
				continue
			}
			f.writeFilterableAttribute(w, &obj, c, []string{key}, key, value, &redactedAttrs)
		}
	}

	if c.Anonymous() {
		obj.Name(ldattr.AnonymousAttr).Bool(true)
	}

	if len(redactedAttrs) != 0 {
		metaObj := obj.Name("_meta").Object()
		privateAttrsArr := metaObj.Name("redactedAttributes").Array()
		for _, a := range redactedAttrs {
			w.String(a)
		}
		privateAttrsArr.End()
		metaObj.End()
	}

	obj.End()
}

// writeFilterableAttribute writes either the whole attribute value, or, if private attribute
// references point at properties within it, the object value minus those properties. The parts
// that are skipped are recorded in redactedAttrs.
func (f *eventContextFormatter) writeFilterableAttribute(
	w *jwriter.Writer,
	parentObj *jwriter.ObjectState,
	c *ldcontext.Context,
	path []string,
	key string,
	value ldvalue.Value,
	redactedAttrs *[]string,
) {
	globalMatch, globalNested := f.checkGloballyPrivate(path)
	contextMatch, contextNested := checkContextPrivate(c, path)
	if globalMatch != nil {
		*redactedAttrs = append(*redactedAttrs, globalMatch.String())
		return
	}
	if contextMatch != nil {
		*redactedAttrs = append(*redactedAttrs, contextMatch.String())
		return
	}
	if value.Type() != ldvalue.ObjectType || (!globalNested && !contextNested) {
		// There are no private attribute references pointing into this value, so write all of it.
		value.WriteToJSONWriter(parentObj.Name(key))
		return
	}
	subObj := parentObj.Name(key).Object()
	for _, subKey := range value.Keys(nil) {
		subPath := make([]string, 0, len(path)+1)
		subPath = append(subPath, path...)
		subPath = append(subPath, subKey)
		f.writeFilterableAttribute(w, &subObj, c, subPath, subKey, value.GetByKey(subKey), redactedAttrs)
	}
	subObj.End()
}

// checkGloballyPrivate tests an attribute path against the EventsConfiguration.PrivateAttributes
// references. The first return value is the matched reference if the whole path is private, and
// the second is true if any reference points at a property deeper than this path.
func (f *eventContextFormatter) checkGloballyPrivate(path []string) (*ldattr.Ref, bool) {
	lookup := f.privateAttributes
	if lookup == nil {
		return nil, false
	}
	var node *privateAttrLookupNode
	for _, name := range path {
		if node = lookup[name]; node == nil {
			return nil, false
		}
		lookup = node.children
	}
	return node.attribute, len(node.children) != 0
}

// checkContextPrivate is the equivalent of checkGloballyPrivate for the private attribute
// references embedded in the context itself. Since there are normally few of these, they are
// scanned linearly rather than being built into a lookup tree.
func checkContextPrivate(c *ldcontext.Context, path []string) (*ldattr.Ref, bool) {
	anyNested := false
	for i := 0; i < c.PrivateAttributeCount(); i++ {
		a, _ := c.PrivateAttributeByIndex(i)
		if a.Depth() < len(path) {
			continue
		}
		matchedPrefix := true
		for j := 0; j < len(path); j++ {
			if a.Component(j) != path[j] {
				matchedPrefix = false
				break
			}
		}
		if matchedPrefix {
			if a.Depth() == len(path) {
				aa := a
				return &aa, anyNested
			}
			anyNested = true
		}
	}
	return nil, anyNested
}
