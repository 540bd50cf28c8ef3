package cache

import (
	"fmt"
	"strings"
)

// Role is the purpose of a namespace. Exactly one namespace per role is
// current for a given runtime version.
type Role string

const (
	RoleStatic   Role = "static"
	RoleDynamic  Role = "dynamic"
	RoleAPI      Role = "api"
	RoleImages   Role = "images"
	RoleExternal Role = "external"
)

// Roles lists every namespace role in declaration order.
var Roles = []Role{RoleStatic, RoleDynamic, RoleAPI, RoleImages, RoleExternal}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == strings.ToLower(strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// Namespaces derives versioned namespace names for one runtime.
// Names have the form "<prefix>-<role>-<version>".
type Namespaces struct {
	// Prefix identifies namespaces owned by this runtime.
	Prefix string

	// Version tags the current generation of namespaces.
	Version string
}

// Name returns the current namespace name for a role.
func (n Namespaces) Name(role Role) string {
	return fmt.Sprintf("%s-%s-%s", n.Prefix, role, n.Version)
}

// Current returns the names of every current-version namespace.
func (n Namespaces) Current() []string {
	names := make([]string, 0, len(Roles))
	for _, r := range Roles {
		names = append(names, n.Name(r))
	}
	return names
}

// IsCurrent reports whether name belongs to the current version set.
func (n Namespaces) IsCurrent(name string) bool {
	for _, current := range n.Current() {
		if current == name {
			return true
		}
	}
	return false
}

// Owns reports whether name carries this runtime's prefix.
func (n Namespaces) Owns(name string) bool {
	return strings.HasPrefix(name, n.Prefix+"-")
}

// Resolve maps a role name ("dynamic") or a full namespace name to a
// namespace name. Empty input selects the fallback role.
func (n Namespaces) Resolve(nameOrRole string, fallback Role) string {
	if strings.TrimSpace(nameOrRole) == "" {
		return n.Name(fallback)
	}
	if r, ok := ParseRole(nameOrRole); ok {
		return n.Name(r)
	}
	return nameOrRole
}

// RoleOf returns the role of a current-version namespace name.
func (n Namespaces) RoleOf(name string) (Role, bool) {
	for _, r := range Roles {
		if n.Name(r) == name {
			return r, true
		}
	}
	return "", false
}
