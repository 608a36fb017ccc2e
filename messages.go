package cuenta

import "errors"

// UserMessage turns an error from any Client, EditFlow or RecoveryFlow call
// into the Spanish text shown to the user. Errors without a specific text
// fall back to the failure message of the operation, then to the generic
// save failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var op *OpError
	isOp := errors.As(err, &op)
	if isOp && op.Op == OpResetPassword && errors.Is(err, ErrUnauthorized) {
		return MsgWrongCurrentPass
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.text
		}
	}
	if isOp {
		if text, ok := opFailureMessages[op.Op]; ok {
			return text
		}
	}
	return MsgSaveFailed
}

var opFailureMessages = map[string]string{
	OpRequestPin:     MsgPinSendFailed,
	OpVerifyPin:      "PIN inválido o expirado.",
	OpSuspendAccount: MsgDeactivateFailed,
	OpBroadcast:      MsgBroadcastFailed,
	OpSelectAvatar:   MsgAvatarSaveFailed,
	OpUploadAvatar:   "Fallo al subir imagen.",
	OpLogin:          "No se pudo iniciar sesión.",
	OpCheckUsername:  "Error validando usuario",
	OpSecurityInfo:   "No hay información disponible",
	OpPublications:   "Error al obtener datos",
}

var userMessages = []struct {
	err  error
	text string
}{
	{ErrInvalidEmail, "El email no es válido."},
	{ErrWeakPassword, "La contraseña debe tener al menos 8 caracteres, una mayúscula, un número y un símbolo."},
	{ErrPasswordMismatch, "Las contraseñas no coinciden."},
	{ErrUsernameTooShort, "El usuario es demasiado corto."},
	{ErrUsernameUnavailable, "Ese usuario ya está en uso."},
	{ErrUsernameUnverified, "Error validando usuario."},
	{ErrPhoneTooShort, "El teléfono debe tener al menos 8 dígitos."},
	{ErrPinRequired, "Primero verificá el PIN enviado a tu email."},
	{ErrMissingField, "Complete todos los campos."},
	{ErrUnauthorized, "Clave incorrecta."},
	{ErrInvalidPin, "PIN inválido o expirado."},
	{ErrPinRateLimited, "Demasiados intentos. Esperá unos minutos."},
	{ErrConflict, "Ese usuario ya está en uso."},
	{ErrNotFound, "No encontramos una cuenta con esos datos."},
	{ErrAcknowledgementRequired, "Confirmá que entendés que la desactivación es irreversible."},
	{ErrConfirmationRequired, "Confirmá el cambio antes de guardarlo."},
	{ErrBusy, "Espere, hay una operación en curso."},
	{ErrFlowClosed, "La cuenta fue desactivada."},
	{ErrNotAuthenticated, "Iniciá sesión para continuar."},
	{ErrPermissionDenied, "No tenés permiso para esta acción."},
	{ErrAvatarUnavailable, "Fallo al subir imagen."},
}

// Messages for failures whose text depends on the operation rather than on
// the error itself.
const (
	MsgPinSendFailed      = "Fallo al enviar PIN."
	MsgSaveFailed         = "Fallo al guardar."
	MsgDeactivateFailed   = "Fallo al desactivar."
	MsgBroadcastFailed    = "Fallo al difundir."
	MsgAvatarSaveFailed   = "No se pudo guardar el avatar."
	MsgWrongCurrentPass   = "La contraseña actual no es correcta"
	MsgUpdated            = "Actualizado correctamente."
	MsgBroadcastDelivered = "Actualización guardada y enviada por email."
)
