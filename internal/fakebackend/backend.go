package fakebackend

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gestionlocal/cuenta/internal"
	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/internal/stores"
	"github.com/gestionlocal/cuenta/password"
	"github.com/gestionlocal/cuenta/session"
)

const (
	// EstadoAlta is the only estado that can log in.
	EstadoAlta = "ALTA"
	EstadoBaja = "BAJA"

	DefaultPinTTL = 15 * time.Minute
)

// Congregacion is one row of the congregation table.
type Congregacion struct {
	ID        string
	Nombre    string
	Numero    string
	Ciudad    string
	Partido   string
	Provincia string
	Direccion string
	Pais      string
}

// Persona is one member. UsuarioID is set only for members that also hold an
// administrative user row. PasswordHash may be Argon2id, bcrypt or plaintext.
type Persona struct {
	ID                int
	UsuarioID         string
	ApellidoNombre    string
	Email             string
	Contacto          string
	Estado            string
	FotoURL           string
	Username          string
	PasswordHash      string
	PasswordChangedAt string
	CongregacionID    string
	EsAdminLocal      bool
}

// SecurityEntry is one published security notice. Entries are never edited;
// the newest one is current.
type SecurityEntry struct {
	Contenido        string
	DescripcionLarga string
	UpdatedAt        time.Time
}

// Seed is the initial content of a Backend.
type Seed struct {
	Congregaciones []Congregacion
	Personas       []Persona
	Publicaciones  []api.Publication
}

// Options configures a Backend. Zero values select the defaults.
type Options struct {
	Mailer    Mailer
	Passwords *password.Checker
	Logger    *slog.Logger
	PinTTL    time.Duration
	Now       func() time.Time
	// Pins keeps the active PIN. Defaults to memory.
	Pins PinStore
	// PinAttempts caps wrong guesses on the in-memory PIN store. Zero means
	// unlimited. Ignored when Pins is set.
	PinAttempts int
}

// Backend is an in-memory implementation of the account backend. It is safe
// for concurrent use.
type Backend struct {
	mailer    Mailer
	passwords *password.Checker
	logger    *slog.Logger
	pinTTL    time.Duration
	now       func() time.Time
	pins      PinStore

	mu             sync.Mutex
	congregaciones map[string]Congregacion
	personas       map[int]*Persona
	publicaciones  []api.Publication
	security       []SecurityEntry

	// Only one PIN is active at a time; requesting a new one discards the
	// previous one.
	lastPIN string

	// verified holds the email whose PIN was verified last, for the
	// forgot-password reset that carries no current password.
	verified   string
	verifiedAt time.Time
}

// New returns a Backend holding seed.
func New(opts Options, seed Seed) (*Backend, error) {
	if opts.Mailer == nil {
		opts.Mailer = NewOutbox()
	}
	if opts.Passwords == nil {
		argon, err := password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		opts.Passwords = password.NewChecker(argon)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.PinTTL <= 0 {
		opts.PinTTL = DefaultPinTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pins == nil {
		opts.Pins = newMemoryPins(opts.Now, opts.PinAttempts)
	}

	b := &Backend{
		mailer:         opts.Mailer,
		passwords:      opts.Passwords,
		logger:         opts.Logger,
		pinTTL:         opts.PinTTL,
		now:            opts.Now,
		pins:           opts.Pins,
		congregaciones: make(map[string]Congregacion, len(seed.Congregaciones)),
		personas:       make(map[int]*Persona, len(seed.Personas)),
		publicaciones:  append([]api.Publication(nil), seed.Publicaciones...),
	}
	for _, c := range seed.Congregaciones {
		b.congregaciones[c.ID] = c
	}
	for _, p := range seed.Personas {
		if p.ID <= 0 {
			return nil, errors.New("fakebackend: persona id must be > 0")
		}
		if _, ok := b.congregaciones[p.CongregacionID]; !ok {
			return nil, errors.New("fakebackend: persona " + strconv.Itoa(p.ID) + " has unknown congregation")
		}
		if _, dup := b.personas[p.ID]; dup {
			return nil, errors.New("fakebackend: duplicate persona " + strconv.Itoa(p.ID))
		}
		if p.Estado == "" {
			p.Estado = EstadoAlta
		}
		b.personas[p.ID] = &p
	}
	return b, nil
}

// DefaultSeed is a small congregation with one local administrator and one
// publisher.
func DefaultSeed() Seed {
	return Seed{
		Congregaciones: []Congregacion{{
			ID:        "c-9738",
			Nombre:    "Talar",
			Numero:    "9738",
			Ciudad:    "Talar",
			Partido:   "Tigre",
			Provincia: "Buenos Aires",
			Direccion: "Av. Sin Nombre 100",
			Pais:      "Argentina",
		}},
		Personas: []Persona{
			{
				ID:             41,
				UsuarioID:      "u-41",
				ApellidoNombre: "Gomez Ana",
				Email:          "ana.gomez@example.com",
				Contacto:       "+54 9 11 5555-1234",
				Username:       "ana.gomez",
				PasswordHash:   "clave-inicial-41",
				CongregacionID: "c-9738",
				EsAdminLocal:   true,
			},
			{
				ID:             42,
				ApellidoNombre: "Perez Luis",
				Email:          "luis.perez@example.com",
				Contacto:       "11 4444-9876",
				Username:       "luis.perez",
				PasswordHash:   "clave-inicial-42",
				CongregacionID: "c-9738",
			},
		},
		Publicaciones: []api.Publication{
			{ID: "p-1", NombrePublicacion: "La Atalaya", Tipo: "revista", Siglas: "w"},
			{ID: "p-2", NombrePublicacion: "¡Despertad!", Tipo: "revista", Siglas: "g"},
			{ID: "p-3", NombrePublicacion: "Disfrute de la vida para siempre", Tipo: "libro", Siglas: "lff"},
		},
	}
}

// LastPIN returns the most recently issued PIN in clear text.
func (b *Backend) LastPIN() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPIN
}

// Persona returns a copy of the member with id.
func (b *Backend) Persona(id int) (Persona, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.personas[id]
	if !ok {
		return Persona{}, false
	}
	return *p, true
}

// userRecord joins p with its congregation the way the login endpoint
// returns it. Callers hold b.mu.
func (b *Backend) userRecord(p *Persona) session.User {
	c := b.congregaciones[p.CongregacionID]
	return session.User{
		ID:                 p.UsuarioID,
		PersonaID:          p.ID,
		NombreCompleto:     p.ApellidoNombre,
		Email:              p.Email,
		Contacto:           p.Contacto,
		Estado:             p.Estado,
		FotoURL:            p.FotoURL,
		CongregacionID:     c.ID,
		CongregacionNombre: c.Nombre,
		NumeroCongregacion: c.Numero,
		Ciudad:             c.Ciudad,
		Partido:            c.Partido,
		Provincia:          c.Provincia,
		Direccion:          c.Direccion,
		Pais:               c.Pais,
		EsAdminLocal:       p.EsAdminLocal,
		Username:           p.Username,
		PasswordChangedAt:  p.PasswordChangedAt,
		SecurityUpdatedAt:  b.securityUpdatedAt(),
	}
}

func (b *Backend) securityUpdatedAt() string {
	if len(b.security) == 0 {
		return ""
	}
	return b.security[len(b.security)-1].UpdatedAt.UTC().Format(time.RFC3339)
}

func (b *Backend) byUsername(username string) *Persona {
	for _, p := range b.personas {
		if p.Username != "" && p.Username == username {
			return p
		}
	}
	return nil
}

func (b *Backend) byEmail(email string) *Persona {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, id := range b.sortedIDs() {
		p := b.personas[id]
		if strings.ToLower(p.Email) == email {
			return p
		}
	}
	return nil
}

func (b *Backend) sortedIDs() []int {
	ids := make([]int, 0, len(b.personas))
	for id := range b.personas {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// suggestions builds alternatives to a taken username from the member's
// "Apellido Nombre".
func (b *Backend) suggestions(p *Persona) []string {
	parts := strings.Fields(strings.ToLower(p.ApellidoNombre))
	ape, nom := "", ""
	if len(parts) > 0 {
		ape = parts[0]
	}
	if len(parts) > 1 {
		nom = parts[1]
	}
	ciudad := strings.ReplaceAll(strings.ToLower(b.congregaciones[p.CongregacionID].Ciudad), " ", "")
	if ciudad == "" {
		ciudad = "cong"
	}
	year := strconv.Itoa(b.now().Year())
	return []string{
		nom + "." + ape + "." + strconv.Itoa(p.ID),
		ape + "." + nom + "." + ciudad,
		nom + "_" + ape + "_" + year,
	}
}

func (b *Backend) issuePIN(ctx context.Context, email string) (string, error) {
	pin, err := internal.NewPIN(internal.PinDigits)
	if err != nil {
		return "", err
	}
	rec := &stores.PinRecord{Email: email, Hash: internal.HashPIN(pin)}
	if err := b.pins.Save(ctx, rec, b.pinTTL); err != nil {
		return "", err
	}
	b.lastPIN = pin
	return pin, nil
}

// consumePIN reports whether pin matches the active challenge. The error is
// set only when the PIN store itself failed.
func (b *Backend) consumePIN(ctx context.Context, pin string) (bool, error) {
	rec, err := b.pins.Consume(ctx, internal.HashPIN(pin))
	if err != nil {
		if pinRejected(err) {
			return false, nil
		}
		return false, err
	}
	b.verified = rec.Email
	b.verifiedAt = b.now()
	return true, nil
}

// takeVerification reports whether email verified a PIN within the PIN
// lifetime, and forgets it.
func (b *Backend) takeVerification(email string) bool {
	if b.verified == "" || !strings.EqualFold(b.verified, email) {
		return false
	}
	ok := b.now().Sub(b.verifiedAt) <= b.pinTTL
	b.verified = ""
	return ok
}
