package ldevents

import (
	"sort"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatContext(t *testing.T, config EventsConfiguration, ec EventInputContext) ldvalue.Value {
	f := newEventContextFormatter(config)
	w := jwriter.NewWriter()
	f.WriteContext(&w, &ec)
	require.NoError(t, w.Error())
	return ldvalue.Parse(w.Bytes())
}

func assertContextJSON(t *testing.T, config EventsConfiguration, ec EventInputContext, expectedJSON string) {
	actual := formatContext(t, config, ec)
	expected := ldvalue.Parse([]byte(expectedJSON))
	assert.True(t, expected.Equal(actual), "expected %s, got %s", expected, actual)
}

func TestWriteContextBasicProperties(t *testing.T) {
	t.Run("key and kind only", func(t *testing.T) {
		assertContextJSON(t, EventsConfiguration{},
			Context(ldcontext.New("my-key")),
			`{"kind":"user","key":"my-key"}`)
	})

	t.Run("optional attributes", func(t *testing.T) {
		c := ldcontext.NewBuilder("my-key").
			Name("my-name").
			SetString("email", "test@example.com").
			SetValue("nums", ldvalue.ArrayOf(ldvalue.Int(1), ldvalue.Int(2))).
			Build()
		assertContextJSON(t, EventsConfiguration{}, Context(c),
			`{"kind":"user","key":"my-key","name":"my-name","email":"test@example.com","nums":[1,2]}`)
	})

	t.Run("anonymous", func(t *testing.T) {
		c := ldcontext.NewBuilder("my-key").Anonymous(true).Build()
		assertContextJSON(t, EventsConfiguration{}, Context(c),
			`{"kind":"user","key":"my-key","anonymous":true}`)
	})

	t.Run("non-default kind", func(t *testing.T) {
		assertContextJSON(t, EventsConfiguration{},
			Context(ldcontext.NewWithKind("org", "org-key")),
			`{"kind":"org","key":"org-key"}`)
	})
}

func TestWriteMultiKindContext(t *testing.T) {
	c := ldcontext.NewMulti(
		ldcontext.NewBuilder("user-key").Name("Bob").Build(),
		ldcontext.NewWithKind("org", "org-key"),
	)
	assertContextJSON(t, EventsConfiguration{}, Context(c),
		`{"kind":"multi","user":{"key":"user-key","name":"Bob"},"org":{"key":"org-key"}}`)
}

func TestWriteContextAllAttributesPrivate(t *testing.T) {
	config := EventsConfiguration{AllAttributesPrivate: true}
	c := ldcontext.NewBuilder("my-key").
		Name("my-name").
		SetString("email", "test@example.com").
		Anonymous(true).
		Build()

	actual := formatContext(t, config, Context(c))

	assert.Equal(t, "my-key", actual.GetByKey("key").StringValue())
	assert.True(t, actual.GetByKey("anonymous").BoolValue())
	assert.True(t, actual.GetByKey("name").IsNull())
	assert.True(t, actual.GetByKey("email").IsNull())

	redacted := actual.GetByKey("_meta").GetByKey("redactedAttributes")
	names := make([]string, 0, redacted.Count())
	for i := 0; i < redacted.Count(); i++ {
		names = append(names, redacted.GetByIndex(i).StringValue())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"email", "name"}, names)
}

func TestWriteContextGlobalPrivateAttributes(t *testing.T) {
	config := EventsConfiguration{PrivateAttributes: []ldattr.Ref{ldattr.NewRef("/email")}}
	c := ldcontext.NewBuilder("my-key").
		Name("my-name").
		SetString("email", "test@example.com").
		Build()
	assertContextJSON(t, config, Context(c),
		`{"kind":"user","key":"my-key","name":"my-name","_meta":{"redactedAttributes":["/email"]}}`)
}

func TestWriteContextPerContextPrivateAttributes(t *testing.T) {
	c := ldcontext.NewBuilder("my-key").
		Name("my-name").
		SetString("email", "test@example.com").
		Private("email").
		Build()
	assertContextJSON(t, EventsConfiguration{}, Context(c),
		`{"kind":"user","key":"my-key","name":"my-name","_meta":{"redactedAttributes":["email"]}}`)
}

func TestWriteContextNestedPrivateProperties(t *testing.T) {
	address := ldvalue.ObjectBuild().
		Set("street", ldvalue.String("123 Main St")).
		Set("city", ldvalue.String("Springfield")).
		Build()

	t.Run("from global configuration", func(t *testing.T) {
		config := EventsConfiguration{PrivateAttributes: []ldattr.Ref{ldattr.NewRef("/address/street")}}
		c := ldcontext.NewBuilder("my-key").SetValue("address", address).Build()
		assertContextJSON(t, config, Context(c),
			`{"kind":"user","key":"my-key","address":{"city":"Springfield"},
				"_meta":{"redactedAttributes":["/address/street"]}}`)
	})

	t.Run("from context private attributes", func(t *testing.T) {
		c := ldcontext.NewBuilder("my-key").
			SetValue("address", address).
			Private("/address/street").
			Build()
		assertContextJSON(t, EventsConfiguration{}, Context(c),
			`{"kind":"user","key":"my-key","address":{"city":"Springfield"},
				"_meta":{"redactedAttributes":["/address/street"]}}`)
	})

	t.Run("whole object can still be redacted", func(t *testing.T) {
		config := EventsConfiguration{PrivateAttributes: []ldattr.Ref{ldattr.NewRef("address")}}
		c := ldcontext.NewBuilder("my-key").SetValue("address", address).Build()
		assertContextJSON(t, config, Context(c),
			`{"kind":"user","key":"my-key","_meta":{"redactedAttributes":["address"]}}`)
	})

	t.Run("nested reference to a non-object attribute is ignored", func(t *testing.T) {
		config := EventsConfiguration{PrivateAttributes: []ldattr.Ref{ldattr.NewRef("/name/first")}}
		c := ldcontext.NewBuilder("my-key").Name("my-name").Build()
		assertContextJSON(t, config, Context(c),
			`{"kind":"user","key":"my-key","name":"my-name"}`)
	})
}

func TestWriteContextPrivateAttributesInMultiKindContext(t *testing.T) {
	// Each individual context's private attribute references apply only to that context.
	c := ldcontext.NewMulti(
		ldcontext.NewBuilder("user-key").Name("Bob").Private("name").Build(),
		ldcontext.NewBuilder("org-key").Kind("org").Name("Org").Build(),
	)
	assertContextJSON(t, EventsConfiguration{}, Context(c),
		`{"kind":"multi",
			"user":{"key":"user-key","_meta":{"redactedAttributes":["name"]}},
			"org":{"key":"org-key","name":"Org"}}`)
}

func TestWriteContextPreserializedIsVerbatim(t *testing.T) {
	// The preserialized form must be preserved exactly, even if redaction settings would
	// otherwise strip attributes from it.
	config := EventsConfiguration{AllAttributesPrivate: true}
	raw := []byte(`{"kind":"user","key":"my-key","name":"my-name","privateAttrs":["x"]}`)
	ec := PreserializedContext(ldcontext.New("my-key"), raw)

	f := newEventContextFormatter(config)
	w := jwriter.NewWriter()
	f.WriteContext(&w, &ec)
	require.NoError(t, w.Error())
	assert.JSONEq(t, string(raw), string(w.Bytes()))
}
