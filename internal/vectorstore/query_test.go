package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryBuilderChaining(t *testing.T) {
	filters := NewQuery().
		ForProject("proj-1").
		Equals("documentType", "invoice").
		Build()

	assert.Equal(t, map[string]string{
		"projectId":    "proj-1",
		"documentType": "invoice",
	}, filters)
}

func TestQueryBuilderForSupplierAndDocument(t *testing.T) {
	filters := NewQuery().ForSupplier("sup-9").ForDocument("doc-3").Build()

	assert.Equal(t, "sup-9", filters["supplierId"])
	assert.Equal(t, "doc-3", filters["documentId"])
}

func TestQueryBuilderLastValueWins(t *testing.T) {
	filters := NewQuery().ForProject("old").ForProject("new").Build()

	assert.Equal(t, map[string]string{"projectId": "new"}, filters)
}

func TestQueryBuilderStripsTenantField(t *testing.T) {
	// The tenant filter comes from the authenticated request, never from
	// the builder.
	filters := NewQuery().Equals("userId", "someone-else").ForProject("p").Build()

	assert.NotContains(t, filters, "userId")
	assert.Equal(t, "p", filters["projectId"])
}

func TestQueryBuilderEmpty(t *testing.T) {
	assert.Empty(t, NewQuery().Build())
}
