package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gestionlocal/cuenta"
)

const maxPinAttempts = 3

var editFields = []string{
	cuenta.FieldUsername,
	cuenta.FieldEmail,
	cuenta.FieldContacto,
	cuenta.FieldPassword,
	cuenta.FieldEliminarCuenta,
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "editar <" + strings.Join(editFields, "|") + ">",
		Aliases:   []string{"edit"},
		Short:     "Cambiar un dato protegido por PIN",
		Args:      cobra.ExactArgs(1),
		ValidArgs: editFields,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := a.client.Edit()
			defer func() {
				if !f.Closed() && f.State().Field != "" {
					f.Cancel(context.WithoutCancel(ctx))
				}
			}()
			return a.fail(a.runEdit(ctx, f, args[0]))
		},
	}
}

func (a *app) runEdit(ctx context.Context, f *cuenta.EditFlow, field string) error {
	if err := f.Start(ctx, field); err != nil {
		return err
	}

	if field == cuenta.FieldEliminarCuenta {
		fmt.Fprintln(a.out, "La desactivación es irreversible: no vas a poder volver a iniciar sesión.")
		ok, err := a.confirm("¿Entendés y querés continuar?")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := f.Acknowledge(); err != nil {
			return err
		}
	}

	if err := a.verifyPin(ctx, f); err != nil {
		return err
	}

	for {
		if err := a.collectValue(ctx, f, field); err != nil {
			return err
		}
		err := f.CheckSubmit()
		if err == nil {
			break
		}
		if !isValidation(err) {
			return err
		}
		fmt.Fprintln(a.out, cuenta.UserMessage(err))
	}

	if err := f.RequestSubmit(ctx); err != nil {
		return err
	}
	ok, err := a.confirm(confirmLabel(field, f.State().PendingValue))
	if err != nil {
		return err
	}
	if !ok {
		return f.DismissConfirm()
	}
	if err := f.ConfirmSubmit(ctx); err != nil {
		return err
	}
	if field != cuenta.FieldEliminarCuenta {
		fmt.Fprintln(a.out, cuenta.MsgUpdated)
	}
	return nil
}

// pinFlow is the PIN part shared by the edit and recovery flows.
type pinFlow interface {
	RequestPin(ctx context.Context) error
	VerifyPin(ctx context.Context, pin string) error
}

func (a *app) verifyPin(ctx context.Context, f pinFlow) error {
	if err := f.RequestPin(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Te enviamos un PIN a tu email. Escribí 'r' para reenviarlo.")
	for attempt := 0; attempt < maxPinAttempts; {
		pin, err := a.ask("PIN")
		if err != nil {
			return err
		}
		if strings.EqualFold(pin, "r") {
			if err := f.RequestPin(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "PIN reenviado.")
			continue
		}
		attempt++
		err = f.VerifyPin(ctx, pin)
		if err == nil {
			return nil
		}
		if !errors.Is(err, cuenta.ErrInvalidPin) {
			return err
		}
		fmt.Fprintln(a.out, cuenta.UserMessage(err))
	}
	return cuenta.ErrInvalidPin
}

func (a *app) collectValue(ctx context.Context, f *cuenta.EditFlow, field string) error {
	switch field {
	case cuenta.FieldEliminarCuenta:
		return nil
	case cuenta.FieldPassword:
		current, err := a.ask("Contraseña actual")
		if err != nil {
			return err
		}
		next, err := a.ask("Nueva contraseña")
		if err != nil {
			return err
		}
		repeat, err := a.ask("Repetir nueva contraseña")
		if err != nil {
			return err
		}
		_ = f.SetCurrentPassword(current)
		_ = f.SetPendingValue(next)
		return f.SetConfirmValue(repeat)
	case cuenta.FieldUsername:
		v, err := a.ask("Nuevo usuario")
		if err != nil {
			return err
		}
		if err := f.SetPendingValue(v); err != nil {
			return err
		}
		return a.awaitAvailability(ctx, f)
	default:
		v, err := a.ask("Nuevo valor")
		if err != nil {
			return err
		}
		return f.SetPendingValue(v)
	}
}

// awaitAvailability waits for the debounced lookup and, when the name is
// taken, lets the user pick a suggestion.
func (a *app) awaitAvailability(ctx context.Context, f *cuenta.EditFlow) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		s := f.State()
		av := s.Availability
		if av.Candidate != s.PendingValue || av.Candidate == "" {
			return nil
		}
		if av.Checked || av.Failed {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	av := f.State().Availability
	if !av.Exists || len(av.Suggestions) == 0 {
		return nil
	}
	fmt.Fprintf(a.out, "%q ya está en uso. Sugerencias:\n", av.Candidate)
	for i, s := range av.Suggestions {
		fmt.Fprintf(a.out, "  %d) %s\n", i+1, s)
	}
	choice, err := a.ask("Elegí un número o dejalo vacío para escribir otro")
	if err != nil || choice == "" {
		return err
	}
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(av.Suggestions) {
		return nil
	}
	if err := f.ChooseSuggestion(av.Suggestions[n-1]); err != nil {
		return err
	}
	return a.awaitAvailability(ctx, f)
}

// isValidation reports whether err is a local input problem the user can fix
// by typing again.
func isValidation(err error) bool {
	return errors.Is(err, cuenta.ErrValidation)
}

func confirmLabel(field, value string) string {
	switch field {
	case cuenta.FieldEliminarCuenta:
		return "¿Desactivar la cuenta definitivamente?"
	case cuenta.FieldPassword:
		return "¿Guardar la nueva contraseña?"
	}
	return fmt.Sprintf("¿Guardar %s = %q?", field, value)
}
