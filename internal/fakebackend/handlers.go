package fakebackend

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xeipuuv/gojsonschema"

	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/validate"
)

const maxRequestBody = 1 << 20

// Handler returns the HTTP surface of the backend, one route per endpoint of
// the account API.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(b.logRequests)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
			next.ServeHTTP(w, r)
		})
	})

	r.Post(api.PathLogin, b.handleLogin)
	r.Post(api.PathIdentifyUser, b.handleIdentifyUser)
	r.Post(api.PathRecoverUserID, b.handleRecoverUserID)
	r.Post(api.PathRequestPin, b.handleRequestPin)
	r.Post(api.PathVerifyPin, b.handleVerifyPin)
	r.Post(api.PathSendUsername, b.handleSendUsername)
	r.Post(api.PathResetPassword, b.handleResetPassword)
	r.Post(api.PathUpdateProfile, b.handleUpdateProfile)
	r.Get(api.PathCheckUsername, b.handleCheckUsername)
	r.Post(api.PathSuspendAccount, b.handleSuspendAccount)
	r.Post(api.PathUploadPhoto, b.handleUploadPhoto)
	r.Get(api.PathSecurityInfo, b.handleSecurityInfo)
	r.Post(api.PathSaveSecurityInfo, b.handleSaveSecurityInfo)
	r.Post(api.PathBroadcast, b.handleBroadcast)
	r.Get(api.PathPublications, b.handlePublications)
	return r
}

func (b *Backend) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		b.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start),
		)
	})
}

// decode validates the body against schema and unmarshals it into dst. It
// writes a 400 and returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, schema gojsonschema.JSONLoader, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error en datos")
		return false
	}
	if err := validateBody(schema, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Error en datos")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parsePersonaID(s string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	return id, err == nil && id > 0
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decode(w, r, loginLoader, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.byUsername(strings.TrimSpace(req.Username))
	if p == nil || p.Estado != EstadoAlta {
		writeError(w, http.StatusUnauthorized, "Cuenta inactiva o no encontrada")
		return
	}
	ok, err := b.passwords.Verify(req.Password, p.PasswordHash)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "Clave incorrecta")
		return
	}
	if b.passwords.NeedsUpgrade(p.PasswordHash) {
		if hash, err := b.passwords.Hash(req.Password); err == nil {
			p.PasswordHash = hash
		} else {
			b.logger.Warn("password upgrade failed", "persona_id", p.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, b.userRecord(p))
}

func (b *Backend) handleIdentifyUser(w http.ResponseWriter, r *http.Request) {
	var req api.IdentifyRequest
	if !decode(w, r, usernameLoader, &req) {
		return
	}
	var email string
	b.mu.Lock()
	if p := b.byUsername(strings.TrimSpace(req.Username)); p != nil {
		email = p.Email
	}
	b.mu.Unlock()
	if email == "" {
		writeError(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, api.EmailResponse{Email: email})
}

func (b *Backend) handleRecoverUserID(w http.ResponseWriter, r *http.Request) {
	var req api.RecoverRequest
	if !decode(w, r, recoverLoader, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var found *Persona
	switch req.Metodo {
	case api.RecoverByPersonaID:
		if id, ok := parsePersonaID(req.PersonaID); ok {
			if p := b.personas[id]; p != nil && b.congregaciones[p.CongregacionID].Numero == strings.TrimSpace(req.NumeroCongregacion) {
				found = p
			}
		}
	case api.RecoverByPhone:
		want := validate.Last8Digits(req.Telefono)
		if want != "" {
			for _, id := range b.sortedIDs() {
				if p := b.personas[id]; validate.Last8Digits(p.Contacto) == want {
					found = p
					break
				}
			}
		}
	}
	if found == nil || found.Email == "" {
		writeError(w, http.StatusNotFound, "No se encontró la cuenta")
		return
	}
	writeJSON(w, http.StatusOK, api.EmailResponse{Email: found.Email})
}

func (b *Backend) handleRequestPin(w http.ResponseWriter, r *http.Request) {
	var req api.PinRequest
	if !decode(w, r, requestPinLoader, &req) {
		return
	}

	b.mu.Lock()
	congregacion := b.congregationName(req.Congregacion, req.Username)
	pin, err := b.issuePIN(r.Context(), strings.TrimSpace(req.Email))
	b.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}

	html, err := render(pinTemplate, map[string]string{
		"Congregacion": congregacion,
		"Username":     req.Username,
		"Pin":          pin,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	err = b.mailer.Send(r.Context(), Message{
		To:      req.Email,
		Subject: "Código: " + pin,
		HTML:    html,
	})
	if err != nil {
		b.logger.Warn("pin email failed", "err", err)
		writeError(w, http.StatusBadGateway, "No se pudo enviar el correo")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// congregationName resolves the congregation named in a PIN email: by number
// first, then through the username. Callers hold b.mu.
func (b *Backend) congregationName(numero, username string) string {
	numero = strings.TrimSpace(numero)
	for _, c := range b.congregaciones {
		if numero != "" && (c.Numero == numero || c.Nombre == numero) {
			return c.Nombre
		}
	}
	if p := b.byUsername(username); p != nil {
		return b.congregaciones[p.CongregacionID].Nombre
	}
	return ""
}

func (b *Backend) handleVerifyPin(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyPinRequest
	if !decode(w, r, verifyPinLoader, &req) {
		return
	}
	b.mu.Lock()
	ok, err := b.consumePIN(r.Context(), req.Pin)
	b.mu.Unlock()
	if err != nil {
		b.logger.Error("pin store failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleSendUsername(w http.ResponseWriter, r *http.Request) {
	var req api.SendUsernameRequest
	if !decode(w, r, emailLoader, &req) {
		return
	}

	b.mu.Lock()
	p := b.byEmail(req.Email)
	var data map[string]string
	if p != nil {
		c := b.congregaciones[p.CongregacionID]
		data = map[string]string{
			"Congregacion": c.Nombre,
			"Username":     p.Username,
			"PersonaID":    strconv.Itoa(p.ID),
			"Numero":       c.Numero,
		}
	}
	b.mu.Unlock()
	if p == nil {
		writeError(w, http.StatusNotFound, "No se encontró la cuenta")
		return
	}

	html, err := render(usernameTemplate, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error interno")
		return
	}
	if err := b.mailer.Send(r.Context(), Message{To: req.Email, Subject: "Recuperación de cuenta", HTML: html}); err != nil {
		b.logger.Warn("username email failed", "err", err)
		writeError(w, http.StatusBadGateway, "No se pudo enviar el correo")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleResetPassword serves both paths: with current_password the caller is
// logged in; without it the account email must have verified a PIN.
func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req api.ResetPasswordRequest
	if !decode(w, r, resetPasswordLoader, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var p *Persona
	if id, ok := parsePersonaID(req.PersonaID); ok {
		p = b.personas[id]
	} else {
		p = b.byUsername(strings.TrimSpace(req.Username))
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}

	if req.CurrentPassword != "" {
		ok, err := b.passwords.Verify(req.CurrentPassword, p.PasswordHash)
		if err != nil || !ok {
			writeError(w, http.StatusUnauthorized, "La contraseña actual no es correcta")
			return
		}
	} else if !b.takeVerification(p.Email) {
		writeError(w, http.StatusUnauthorized, "Verificación requerida")
		return
	}

	hash, err := b.passwords.Hash(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Contraseña inválida")
		return
	}
	p.PasswordHash = hash
	p.PasswordChangedAt = b.now().UTC().Format(time.RFC3339)
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateProfileRequest
	if !decode(w, r, updateProfileLoader, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id, _ := parsePersonaID(req.PersonaID)
	p := b.personas[id]
	if p == nil {
		writeError(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}

	valor := strings.TrimSpace(req.Valor)
	switch req.Campo {
	case "username":
		if other := b.byUsername(valor); other != nil && other.ID != p.ID {
			writeError(w, http.StatusConflict, "El nombre de usuario ya está en uso")
			return
		}
		p.Username = valor
	case "email":
		p.Email = valor
	case "contacto":
		p.Contacto = validate.DigitsOnly(valor)
	}
	b.logger.Info("profile updated", "campo", req.Campo, "persona_id", p.ID)
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	personaID, _ := parsePersonaID(r.URL.Query().Get("persona_id"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "Falta el usuario")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := api.Availability{}
	if other := b.byUsername(username); other != nil && other.ID != personaID {
		out.Exists = true
		if p := b.personas[personaID]; p != nil {
			out.Suggestions = b.suggestions(p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleSuspendAccount(w http.ResponseWriter, r *http.Request) {
	var req api.SuspendRequest
	if !decode(w, r, personaLoader, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id, _ := parsePersonaID(req.PersonaID)
	p := b.personas[id]
	if p == nil {
		writeError(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}
	p.Estado = EstadoBaja
	b.logger.Info("account deactivated", "persona_id", p.ID)
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	var req api.UploadPhotoRequest
	if !decode(w, r, uploadPhotoLoader, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id, _ := parsePersonaID(req.PersonaID)
	p := b.personas[id]
	if p == nil {
		writeError(w, http.StatusNotFound, "Usuario no encontrado")
		return
	}
	p.FotoURL = req.FotoURL
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (b *Backend) handleSecurityInfo(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.security) == 0 {
		writeError(w, http.StatusNotFound, "No hay información disponible")
		return
	}
	e := b.security[len(b.security)-1]
	writeJSON(w, http.StatusOK, api.SecurityInfo{
		Contenido:        e.Contenido,
		DescripcionLarga: e.DescripcionLarga,
		UpdatedAt:        e.UpdatedAt,
	})
}

func (b *Backend) handleSaveSecurityInfo(w http.ResponseWriter, r *http.Request) {
	var req api.SaveSecurityInfoRequest
	if !decode(w, r, saveSecurityLoader, &req) {
		return
	}
	b.mu.Lock()
	b.security = append(b.security, SecurityEntry{Contenido: req.Contenido, UpdatedAt: b.now().UTC()})
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

type recipient struct {
	email, nombre, username, congregacion string
}

// handleBroadcast stores the notice and emails it to every active member
// with an email. A failed delivery is logged and skipped.
func (b *Backend) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req api.BroadcastRequest
	if !decode(w, r, broadcastLoader, &req) {
		return
	}

	b.mu.Lock()
	now := b.now()
	b.security = append(b.security, SecurityEntry{
		Contenido:        req.Titulo,
		DescripcionLarga: req.DescripcionLarga,
		UpdatedAt:        now.UTC(),
	})
	var list []recipient
	for _, id := range b.sortedIDs() {
		p := b.personas[id]
		if p.Estado != EstadoAlta || p.Email == "" {
			continue
		}
		list = append(list, recipient{
			email:        p.Email,
			nombre:       p.ApellidoNombre,
			username:     p.Username,
			congregacion: b.congregaciones[p.CongregacionID].Nombre,
		})
	}
	b.mu.Unlock()

	fecha := now.Format("02/01/2006")
	lineas := strings.Split(req.DescripcionLarga, "\n")
	sent := 0
	for _, u := range list {
		html, err := render(broadcastTemplate, map[string]any{
			"Congregacion": u.congregacion,
			"Nombre":       u.nombre,
			"Titulo":       req.Titulo,
			"Lineas":       lineas,
			"Fecha":        fecha,
			"Username":     u.username,
		})
		if err != nil {
			b.logger.Warn("broadcast render failed", "err", err)
			continue
		}
		err = b.mailer.Send(r.Context(), Message{
			To:      u.email,
			Subject: "⚠️ " + req.Titulo + " [" + u.username + " - " + u.congregacion + "]",
			HTML:    html,
		})
		if err != nil {
			b.logger.Warn("broadcast email failed", "to", u.email, "err", err)
			continue
		}
		sent++
	}
	b.logger.Info("broadcast sent", "recipients", len(list), "delivered", sent)
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handlePublications(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	pubs := append([]api.Publication{}, b.publicaciones...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, pubs)
}
