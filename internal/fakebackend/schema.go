package fakebackend

import (
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	schemaLogin = `{
  "type": "object",
  "required": ["username", "password"],
  "properties": {
    "username": {"type": "string", "minLength": 1},
    "password": {"type": "string", "minLength": 1}
  }
}`

	schemaUsername = `{
  "type": "object",
  "required": ["username"],
  "properties": {"username": {"type": "string", "minLength": 1}}
}`

	schemaRecover = `{
  "type": "object",
  "required": ["metodo"],
  "properties": {
    "metodo": {"enum": ["id_cong", "telefono"]},
    "persona_id": {"type": "string"},
    "numero_congregacion": {"type": "string"},
    "telefono": {"type": "string"}
  }
}`

	schemaRequestPin = `{
  "type": "object",
  "required": ["email"],
  "properties": {
    "email": {"type": "string", "minLength": 3},
    "username": {"type": "string"},
    "congregacion": {"type": "string"}
  }
}`

	schemaVerifyPin = `{
  "type": "object",
  "required": ["pin"],
  "properties": {"pin": {"type": "string", "pattern": "^[0-9]{4,10}$"}}
}`

	schemaEmail = `{
  "type": "object",
  "required": ["email"],
  "properties": {"email": {"type": "string", "minLength": 3}}
}`

	schemaResetPassword = `{
  "type": "object",
  "required": ["new_password"],
  "properties": {
    "username": {"type": "string"},
    "current_password": {"type": "string"},
    "new_password": {"type": "string", "minLength": 1},
    "persona_id": {"type": "string"}
  }
}`

	schemaUpdateProfile = `{
  "type": "object",
  "required": ["persona_id", "campo", "valor"],
  "properties": {
    "persona_id": {"type": "string", "minLength": 1},
    "usuario_id": {"type": "string"},
    "campo": {"enum": ["username", "email", "contacto"]},
    "valor": {"type": "string", "minLength": 1}
  }
}`

	schemaPersona = `{
  "type": "object",
  "required": ["persona_id"],
  "properties": {
    "persona_id": {"type": "string", "minLength": 1},
    "usuario_id": {"type": "string"}
  }
}`

	schemaUploadPhoto = `{
  "type": "object",
  "required": ["persona_id", "foto_url"],
  "properties": {
    "persona_id": {"type": "string", "minLength": 1},
    "foto_url": {"type": "string", "minLength": 1}
  }
}`

	schemaSaveSecurity = `{
  "type": "object",
  "required": ["contenido"],
  "properties": {"contenido": {"type": "string", "minLength": 1}}
}`

	schemaBroadcast = `{
  "type": "object",
  "required": ["titulo", "descripcion_larga"],
  "properties": {
    "titulo": {"type": "string", "minLength": 1},
    "descripcion_larga": {"type": "string", "minLength": 1}
  }
}`
)

var (
	loginLoader         = gojsonschema.NewStringLoader(schemaLogin)
	usernameLoader      = gojsonschema.NewStringLoader(schemaUsername)
	recoverLoader       = gojsonschema.NewStringLoader(schemaRecover)
	requestPinLoader    = gojsonschema.NewStringLoader(schemaRequestPin)
	verifyPinLoader     = gojsonschema.NewStringLoader(schemaVerifyPin)
	emailLoader         = gojsonschema.NewStringLoader(schemaEmail)
	resetPasswordLoader = gojsonschema.NewStringLoader(schemaResetPassword)
	updateProfileLoader = gojsonschema.NewStringLoader(schemaUpdateProfile)
	personaLoader       = gojsonschema.NewStringLoader(schemaPersona)
	uploadPhotoLoader   = gojsonschema.NewStringLoader(schemaUploadPhoto)
	saveSecurityLoader  = gojsonschema.NewStringLoader(schemaSaveSecurity)
	broadcastLoader     = gojsonschema.NewStringLoader(schemaBroadcast)
)

func validateBody(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.New("Datos inválidos")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.New("Datos inválidos: " + strings.Join(msgs, "; "))
	}
	return nil
}
