package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login [usuario]",
		Short: "Iniciar sesión",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			} else {
				v, err := a.ask("Usuario")
				if err != nil {
					return err
				}
				username = v
			}
			if password == "" {
				v, err := a.ask("Contraseña")
				if err != nil {
					return err
				}
				password = v
			}
			u, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintf(a.out, "Hola, %s (%s).\n", u.NombreCompleto, u.CongregacionNombre)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Cerrar sesión",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.fail(a.client.Logout(cmd.Context()))
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Mostrar el usuario de la sesión",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.client.CurrentUser(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			foto, _ := a.client.AvatarURL(cmd.Context())

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Nombre\t%s\n", u.NombreCompleto)
			fmt.Fprintf(w, "Usuario\t%s\n", u.Username)
			fmt.Fprintf(w, "Persona\t%d\n", u.PersonaID)
			fmt.Fprintf(w, "Email\t%s\n", u.Email)
			fmt.Fprintf(w, "Contacto\t%s\n", u.Contacto)
			fmt.Fprintf(w, "Congregación\t%s (%s)\n", u.CongregacionNombre, u.NumeroCongregacion)
			if u.EsAdminLocal {
				fmt.Fprintf(w, "Rol\tadministrador local\n")
			}
			if foto != "" {
				fmt.Fprintf(w, "Foto\t%s\n", foto)
			}
			if u.PasswordChangedAt != "" {
				fmt.Fprintf(w, "Contraseña cambiada\t%s\n", u.PasswordChangedAt)
			}
			return w.Flush()
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "diagnostico",
		Aliases: []string{"report"},
		Short:   "Mostrar cómo está configurado el cliente",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := a.client.SecurityReport()
			yes := func(b bool) string {
				if b {
					return "sí"
				}
				return "no"
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Servidor\t%s (https: %s)\n", r.BackendHost, yes(r.TransportEncrypted))
			fmt.Fprintf(w, "Sesión\t%s (firmada: %s)\n", r.SessionStore, yes(r.SessionsSigned))
			fmt.Fprintf(w, "Límite de PIN\t%s\n", yes(r.PinLimitActive))
			fmt.Fprintf(w, "Peticiones por segundo\t%g\n", r.OutboundRateLimit)
			fmt.Fprintf(w, "Largo mínimo de clave\t%d\n", r.MinPasswordLength)
			fmt.Fprintf(w, "Auditoría\t%s\n", yes(r.AuditEnabled))
			fmt.Fprintf(w, "Subida de fotos\t%s\n", yes(r.AvatarUploads))
			return w.Flush()
		},
	}
}
