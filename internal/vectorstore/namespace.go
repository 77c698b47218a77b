package vectorstore

// Scope identifies which slice of a tenant's documents an operation
// targets. Empty fields fall back to the tenant-wide default.
type Scope struct {
	ProjectID  string
	SupplierID string
}

// Namespace derives the partition key for a tenant and scope. Derivation
// is deterministic and order-independent: a project scope always wins
// over a supplier scope, and an unscoped call lands in the tenant-level
// default partition.
func Namespace(userID string, scope Scope) string {
	if scope.ProjectID != "" {
		return "project-" + scope.ProjectID
	}
	if scope.SupplierID != "" {
		return "supplier-" + scope.SupplierID
	}
	return "user-" + userID
}
