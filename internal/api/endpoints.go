package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gestionlocal/cuenta/session"
)

// Endpoint paths.
const (
	PathLogin            = "/login-final"
	PathIdentifyUser     = "/identify-user"
	PathRecoverUserID    = "/recover-user-id"
	PathRequestPin       = "/request-pin"
	PathVerifyPin        = "/verify-pin"
	PathSendUsername     = "/send-username-real"
	PathResetPassword    = "/reset-password"
	PathUpdateProfile    = "/update-profile"
	PathCheckUsername    = "/check-username"
	PathSuspendAccount   = "/suspender-cuenta"
	PathUploadPhoto      = "/upload-foto"
	PathSecurityInfo     = "/seguridad-info"
	PathSaveSecurityInfo = "/save-seguridad-info"
	PathBroadcast        = "/broadcast-seguridad"
	PathPublications     = "/publicaciones"
)

// Recovery methods accepted by /recover-user-id.
const (
	RecoverByPersonaID = "id_cong"
	RecoverByPhone     = "telefono"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type EmailResponse struct {
	Email string `json:"email"`
}

type IdentifyRequest struct {
	Username string `json:"username"`
}

type RecoverRequest struct {
	Metodo             string `json:"metodo"`
	PersonaID          string `json:"persona_id,omitempty"`
	NumeroCongregacion string `json:"numero_congregacion,omitempty"`
	Telefono           string `json:"telefono,omitempty"`
}

type PinRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Congregacion string `json:"congregacion"`
}

type VerifyPinRequest struct {
	Pin string `json:"pin"`
}

type SendUsernameRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest omits current_password on the forgot-password path.
type ResetPasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
	PersonaID       string `json:"persona_id,omitempty"`
}

type UpdateProfileRequest struct {
	PersonaID string `json:"persona_id"`
	UsuarioID string `json:"usuario_id"`
	Campo     string `json:"campo"`
	Valor     string `json:"valor"`
}

type Availability struct {
	Exists      bool     `json:"exists"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type SuspendRequest struct {
	PersonaID string `json:"persona_id"`
	UsuarioID string `json:"usuario_id"`
}

type UploadPhotoRequest struct {
	PersonaID string `json:"persona_id"`
	FotoURL   string `json:"foto_url"`
}

type SecurityInfo struct {
	Contenido        string    `json:"contenido"`
	DescripcionLarga string    `json:"descripcion_larga,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type SaveSecurityInfoRequest struct {
	Contenido string `json:"contenido"`
}

type BroadcastRequest struct {
	Titulo           string `json:"titulo"`
	DescripcionLarga string `json:"descripcion_larga"`
}

type Publication struct {
	ID                string `json:"id"`
	NombrePublicacion string `json:"nombre_publicacion"`
	Tipo              string `json:"tipo"`
	Siglas            string `json:"siglas"`
	URLPortada        string `json:"url_portada"`
}

// PersonaID formats a persona id the way the backend expects it in bodies.
func PersonaID(id int) string {
	return strconv.Itoa(id)
}

func (c *Client) Login(ctx context.Context, username, password string) (session.User, error) {
	var u session.User
	err := c.do(ctx, http.MethodPost, PathLogin, nil, LoginRequest{Username: username, Password: password}, &u)
	return u, err
}

func (c *Client) IdentifyUser(ctx context.Context, username string) (string, error) {
	var out EmailResponse
	err := c.do(ctx, http.MethodPost, PathIdentifyUser, nil, IdentifyRequest{Username: username}, &out)
	return out.Email, err
}

func (c *Client) RecoverUserID(ctx context.Context, req RecoverRequest) (string, error) {
	var out EmailResponse
	err := c.do(ctx, http.MethodPost, PathRecoverUserID, nil, req, &out)
	return out.Email, err
}

func (c *Client) RequestPin(ctx context.Context, req PinRequest) error {
	return c.do(ctx, http.MethodPost, PathRequestPin, nil, req, nil)
}

func (c *Client) VerifyPin(ctx context.Context, pin string) error {
	return c.do(ctx, http.MethodPost, PathVerifyPin, nil, VerifyPinRequest{Pin: pin}, nil)
}

func (c *Client) SendUsername(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, PathSendUsername, nil, SendUsernameRequest{Email: email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.do(ctx, http.MethodPost, PathResetPassword, nil, req, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) error {
	return c.do(ctx, http.MethodPost, PathUpdateProfile, nil, req, nil)
}

func (c *Client) CheckUsername(ctx context.Context, username string, personaID int) (Availability, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("persona_id", PersonaID(personaID))
	var out Availability
	err := c.do(ctx, http.MethodGet, PathCheckUsername, q, nil, &out)
	return out, err
}

func (c *Client) SuspendAccount(ctx context.Context, req SuspendRequest) error {
	return c.do(ctx, http.MethodPost, PathSuspendAccount, nil, req, nil)
}

func (c *Client) UploadPhoto(ctx context.Context, req UploadPhotoRequest) error {
	return c.do(ctx, http.MethodPost, PathUploadPhoto, nil, req, nil)
}

func (c *Client) SecurityInfo(ctx context.Context) (SecurityInfo, error) {
	var out SecurityInfo
	err := c.do(ctx, http.MethodGet, PathSecurityInfo, nil, nil, &out)
	return out, err
}

func (c *Client) SaveSecurityInfo(ctx context.Context, contenido string) error {
	return c.do(ctx, http.MethodPost, PathSaveSecurityInfo, nil, SaveSecurityInfoRequest{Contenido: contenido}, nil)
}

func (c *Client) BroadcastSecurity(ctx context.Context, req BroadcastRequest) error {
	return c.do(ctx, http.MethodPost, PathBroadcast, nil, req, nil)
}

func (c *Client) Publications(ctx context.Context) ([]Publication, error) {
	var out []Publication
	err := c.do(ctx, http.MethodGet, PathPublications, nil, nil, &out)
	return out, err
}
