// Package tenant derives physical collection names from tenant
// identity and routes tenants to vector-store clusters.
//
// Naming is deterministic and reversible. Tenant and cluster
// identifiers exclude the underscore so a physical name always splits
// unambiguously back into its parts; logical collection names may
// contain underscores.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Common errors.
var (
	ErrInvalidConfig        = errors.New("invalid tenant configuration")
	ErrInvalidTenantID      = errors.New("invalid tenant id")
	ErrInvalidClusterName   = errors.New("invalid cluster name")
	ErrInvalidCollection    = errors.New("invalid collection name")
	ErrInvalidPhysicalName  = errors.New("invalid physical collection name")
	ErrInvalidDisplayName   = errors.New("invalid display name")
	ErrClusterNotConfigured = errors.New("cluster not configured")
)

var (
	// Underscore-free so physical names split unambiguously.
	idPattern = regexp.MustCompile(`^[a-z0-9]{1,64}$`)

	collectionPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
)

// ValidateTenantID validates a tenant (school) identifier.
func ValidateTenantID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must match ^[a-z0-9]{1,64}$", ErrInvalidTenantID, id)
	}
	return nil
}

// ValidateClusterName validates a cluster identifier.
func ValidateClusterName(name string) error {
	if !idPattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match ^[a-z0-9]{1,64}$", ErrInvalidClusterName, name)
	}
	return nil
}

// ValidateCollection validates a logical collection name.
func ValidateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match ^[a-z0-9_]{1,64}$", ErrInvalidCollection, name)
	}
	return nil
}

// Identity is the decoded form of a physical collection name.
type Identity struct {
	// Cluster is empty in single-endpoint deployments.
	Cluster    string
	TenantID   string
	Collection string
}

// physicalName joins the identity parts. Cluster may be empty.
func physicalName(cluster, tenantID, collection string) string {
	if cluster == "" {
		return tenantID + "_" + collection
	}
	return cluster + "_" + tenantID + "_" + collection
}

// DisplayName formats a collection for admin listings.
func DisplayName(tenantID, collection string) string {
	return fmt.Sprintf("%s (%s)", collection, tenantID)
}

// ParseDisplayName decodes an admin-facing "<collection> (<tenant>)"
// entry back into its parts.
func ParseDisplayName(entry string) (tenantID, collection string, err error) {
	open := strings.LastIndex(entry, " (")
	if open <= 0 || !strings.HasSuffix(entry, ")") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidDisplayName, entry)
	}

	collection = entry[:open]
	tenantID = entry[open+2 : len(entry)-1]

	if err := ValidateTenantID(tenantID); err != nil {
		return "", "", err
	}
	if err := ValidateCollection(collection); err != nil {
		return "", "", err
	}
	return tenantID, collection, nil
}
