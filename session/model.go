package session

// User is the authenticated user record as returned by the login endpoint.
type User struct {
	ID                 string `json:"id"`
	PersonaID          int    `json:"persona_id"`
	NombreCompleto     string `json:"nombre_completo"`
	Email              string `json:"email"`
	Contacto           string `json:"contacto,omitempty"`
	Estado             string `json:"estado,omitempty"`
	FotoURL            string `json:"foto_url"`
	CongregacionID     string `json:"congregacion_id"`
	CongregacionNombre string `json:"congregacion_nombre"`
	NumeroCongregacion string `json:"numero_congregacion"`
	Ciudad             string `json:"ciudad"`
	Partido            string `json:"partido"`
	Provincia          string `json:"provincia"`
	Direccion          string `json:"direccion"`
	Pais               string `json:"pais"`
	EsAdminLocal       bool   `json:"es_admin_local"`
	Username           string `json:"username"`
	PasswordChangedAt  string `json:"password_changed_at"`
	SecurityUpdatedAt  string `json:"security_updated_at"`
}

// Record is what a Store persists for one login.
type Record struct {
	User      User   `json:"user"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Patch is a partial update of the user record. Nil fields are left untouched.
type Patch struct {
	Username          *string
	Email             *string
	Contacto          *string
	FotoURL           *string
	Estado            *string
	PasswordChangedAt *string
	SecurityUpdatedAt *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.Contacto == nil && p.FotoURL == nil &&
		p.Estado == nil && p.PasswordChangedAt == nil && p.SecurityUpdatedAt == nil
}

// Apply returns a copy of u with the patch applied.
func (p Patch) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Contacto != nil {
		u.Contacto = *p.Contacto
	}
	if p.FotoURL != nil {
		u.FotoURL = *p.FotoURL
	}
	if p.Estado != nil {
		u.Estado = *p.Estado
	}
	if p.PasswordChangedAt != nil {
		u.PasswordChangedAt = *p.PasswordChangedAt
	}
	if p.SecurityUpdatedAt != nil {
		u.SecurityUpdatedAt = *p.SecurityUpdatedAt
	}
	return u
}

// String returns a pointer to v, for building a Patch.
func String(v string) *string {
	return &v
}
