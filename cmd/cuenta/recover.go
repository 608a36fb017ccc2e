package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gestionlocal/cuenta"
)

func newRecoverCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recuperar",
		Aliases: []string{"recover"},
		Short:   "Recuperar el usuario o la contraseña",
	}

	var personaID, numero string
	byID := &cobra.Command{
		Use:   "id",
		Short: "Recibir el usuario por email usando el ID de persona y el número de congregación",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.recoverUsername(cmd.Context(), cuenta.RecoveryQuery{
				Method:             cuenta.RecoverByPersonaID,
				PersonaID:          personaID,
				NumeroCongregacion: numero,
			})
		},
	}
	byID.Flags().StringVar(&personaID, "persona", "", "ID de persona")
	byID.Flags().StringVar(&numero, "congregacion", "", "número o nombre de la congregación")

	byPhone := &cobra.Command{
		Use:   "telefono <número>",
		Short: "Recibir el usuario por email usando el teléfono registrado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.recoverUsername(cmd.Context(), cuenta.RecoveryQuery{
				Method:   cuenta.RecoverByPhone,
				Telefono: args[0],
			})
		},
	}

	password := &cobra.Command{
		Use:   "clave <usuario>",
		Short: "Elegir una contraseña nueva",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fail(a.resetPassword(cmd.Context(), args[0]))
		},
	}

	cmd.AddCommand(byID, byPhone, password)
	return cmd
}

func (a *app) recoverUsername(ctx context.Context, q cuenta.RecoveryQuery) error {
	r := a.client.Recovery()
	defer r.Cancel(context.WithoutCancel(ctx))

	if err := r.RecoverIdentity(ctx, q); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Cuenta encontrada (%s).\n", r.State().MaskedEmail)
	if err := a.verifyPin(ctx, r); err != nil {
		return a.fail(err)
	}
	if err := r.SendUsername(ctx); err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, "Te enviamos tu usuario por email.")
	return nil
}

func (a *app) resetPassword(ctx context.Context, username string) error {
	r := a.client.Recovery()
	defer r.Cancel(context.WithoutCancel(ctx))

	if err := r.IdentifyUser(ctx, username); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "El PIN se enviará a %s.\n", r.State().MaskedEmail)
	if err := a.verifyPin(ctx, r); err != nil {
		return err
	}
	for {
		next, err := a.ask("Nueva contraseña")
		if err != nil {
			return err
		}
		repeat, err := a.ask("Repetir nueva contraseña")
		if err != nil {
			return err
		}
		err = r.ResetPassword(ctx, next, repeat)
		if err == nil {
			break
		}
		if !isValidation(err) {
			return err
		}
		fmt.Fprintln(a.out, cuenta.UserMessage(err))
	}
	fmt.Fprintln(a.out, "Contraseña actualizada. Ya podés iniciar sesión.")
	return nil
}
