package cache

import "testing"

func TestNamespaces(t *testing.T) {
	names := Namespaces{Prefix: "offline-runtime", Version: "v2"}

	if got := names.Name(RoleAPI); got != "offline-runtime-api-v2" {
		t.Errorf("Name(api) = %q", got)
	}
	if len(names.Current()) != len(Roles) {
		t.Errorf("Current() has %d names, want %d", len(names.Current()), len(Roles))
	}

	tests := []struct {
		name    string
		owns    bool
		current bool
	}{
		{name: "offline-runtime-static-v2", owns: true, current: true},
		{name: "offline-runtime-static-v1", owns: true, current: false},
		{name: "offline-runtime-custom", owns: true, current: false},
		{name: "other-app-static-v2", owns: false, current: false},
		{name: "offline-runtimeX-static-v2", owns: false, current: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := names.Owns(tt.name); got != tt.owns {
				t.Errorf("Owns() = %v, want %v", got, tt.owns)
			}
			if got := names.IsCurrent(tt.name); got != tt.current {
				t.Errorf("IsCurrent() = %v, want %v", got, tt.current)
			}
		})
	}
}

func TestNamespaces_Resolve(t *testing.T) {
	names := Namespaces{Prefix: "p", Version: "v1"}

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "p-dynamic-v1"},
		{in: "images", want: "p-images-v1"},
		{in: " API ", want: "p-api-v1"},
		{in: "my-own-namespace", want: "my-own-namespace"},
	}
	for _, tt := range tests {
		if got := names.Resolve(tt.in, RoleDynamic); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if role, ok := names.RoleOf("p-images-v1"); !ok || role != RoleImages {
		t.Errorf("RoleOf(p-images-v1) = %v, %v", role, ok)
	}
	if _, ok := names.RoleOf("p-images-v0"); ok {
		t.Error("RoleOf(old version) should fail")
	}
}
