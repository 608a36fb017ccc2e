package permission

const (
	// EditProfile allows the verified profile mutations.
	EditProfile = "perfil.editar"
	// ReadSecurity allows reading the security notices page.
	ReadSecurity = "seguridad.leer"
	// PublishSecurity allows saving and broadcasting security notices.
	PublishSecurity = "seguridad.publicar"
	// ReadPublications allows listing the publications catalog.
	ReadPublications = "publicaciones.leer"
)

const (
	RolePublicador = "publicador"
	RoleAdminLocal = "admin_local"
)

// Default returns the frozen role set used by the account client.
func Default() (*RoleManager, error) {
	reg := NewRegistry(false)
	for _, name := range []string{EditProfile, ReadSecurity, PublishSecurity, ReadPublications} {
		if _, err := reg.Register(name); err != nil {
			return nil, err
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	member := []string{EditProfile, ReadSecurity, ReadPublications}
	if err := rm.RegisterRole(RolePublicador, member); err != nil {
		return nil, err
	}
	if err := rm.RegisterRole(RoleAdminLocal, append(member, PublishSecurity)); err != nil {
		return nil, err
	}
	rm.Freeze()
	return rm, nil
}
