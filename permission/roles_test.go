package permission

import "testing"

func TestDefaultRoles(t *testing.T) {
	rm, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if rm.Count() != 2 {
		t.Fatalf("expected 2 roles, got %d", rm.Count())
	}
	if !rm.Allows(RoleAdminLocal, PublishSecurity) {
		t.Fatal("admin_local must publish security notices")
	}
	if rm.Allows(RolePublicador, PublishSecurity) {
		t.Fatal("publicador must not publish security notices")
	}
	if !rm.Allows(RolePublicador, EditProfile) {
		t.Fatal("publicador must edit own profile")
	}
	if rm.Allows("desconocido", ReadSecurity) {
		t.Fatal("unknown role must be denied")
	}
	if rm.Allows(RolePublicador, "otra.cosa") {
		t.Fatal("unknown permission must be denied")
	}
	if err := rm.RegisterRole("extra", nil); err == nil {
		t.Fatal("expected frozen role manager to reject registration")
	}
}

func TestRegistryLimits(t *testing.T) {
	reg := NewRegistry(true)
	for i := 0; i < 63; i++ {
		if _, err := reg.Register(string(rune('A'+i%26)) + string(rune('a'+i/26))); err != nil {
			t.Fatalf("Register %d failed: %v", i, err)
		}
	}
	if _, err := reg.Register("overflow"); err == nil {
		t.Fatal("expected root bit to be protected")
	}
	if _, err := reg.Register("Aa"); err == nil {
		t.Fatal("expected duplicate to be rejected")
	}
}

func TestRootBitImpliesEverything(t *testing.T) {
	var m Mask64
	m.Set(63)
	if !m.Has(5, true) {
		t.Fatal("root bit must imply other bits")
	}
	if m.Has(5, false) {
		t.Fatal("root bit must not apply without reservation")
	}
	m.Clear(63)
	if m.Raw() != 0 {
		t.Fatalf("expected empty mask, got %d", m.Raw())
	}
}
