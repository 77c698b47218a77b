package vectorstore

// QueryBuilder composes metadata filters for a search. Built filters are
// merged with the mandatory tenant filter by the store; they can never
// replace it.
type QueryBuilder struct {
	filters map[string]string
}

// NewQuery starts an empty filter set.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{filters: make(map[string]string)}
}

// Equals adds an exact-match condition on a metadata field.
func (q *QueryBuilder) Equals(field, value string) *QueryBuilder {
	q.filters[field] = value
	return q
}

// ForProject scopes results to one project.
func (q *QueryBuilder) ForProject(projectID string) *QueryBuilder {
	return q.Equals("projectId", projectID)
}

// ForSupplier scopes results to one supplier.
func (q *QueryBuilder) ForSupplier(supplierID string) *QueryBuilder {
	return q.Equals("supplierId", supplierID)
}

// ForDocument scopes results to one document.
func (q *QueryBuilder) ForDocument(documentID string) *QueryBuilder {
	return q.Equals("documentId", documentID)
}

// Build returns the composed filter map. The reserved tenant field is
// stripped so callers cannot impersonate another tenant through the
// builder.
func (q *QueryBuilder) Build() map[string]string {
	out := make(map[string]string, len(q.filters))
	for k, v := range q.filters {
		if k == "userId" {
			continue
		}
		out[k] = v
	}
	return out
}
