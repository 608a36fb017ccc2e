package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gestionlocal/cuenta"
)

func newSecurityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "seguridad",
		Aliases: []string{"security"},
		Short:   "Avisos de seguridad",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.client.SecurityInfo(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			if !info.UpdatedAt.IsZero() {
				fmt.Fprintf(a.out, "Actualizado: %s\n\n", info.UpdatedAt.Local().Format("02/01/2006 15:04"))
			}
			fmt.Fprintln(a.out, info.Contenido)
			if info.DescripcionLarga != "" && info.DescripcionLarga != info.Contenido {
				fmt.Fprintln(a.out)
				fmt.Fprintln(a.out, info.DescripcionLarga)
			}
			return nil
		},
	}

	save := &cobra.Command{
		Use:   "guardar <contenido>",
		Short: "Publicar un aviso sin enviarlo por email",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.SaveSecurityInfo(cmd.Context(), strings.Join(args, " ")); err != nil {
				return a.fail(err)
			}
			fmt.Fprintln(a.out, cuenta.MsgUpdated)
			return nil
		},
	}

	var descFile string
	broadcast := &cobra.Command{
		Use:   "difundir <título>",
		Short: "Publicar un aviso y enviarlo por email a toda la congregación",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc string
			if descFile != "" {
				data, err := os.ReadFile(descFile)
				if err != nil {
					return err
				}
				desc = string(data)
			} else {
				v, err := a.ask("Descripción")
				if err != nil {
					return err
				}
				desc = v
			}
			err := a.client.BroadcastSecurityUpdate(cmd.Context(), strings.Join(args, " "), desc)
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintln(a.out, cuenta.MsgBroadcastDelivered)
			return nil
		},
	}
	broadcast.Flags().StringVarP(&descFile, "descripcion", "d", "", "file with the full description")

	cmd.AddCommand(save, broadcast)
	return cmd
}

func newPublicationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "publicaciones",
		Aliases: []string{"pubs"},
		Short:   "Listar el catálogo de publicaciones",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pubs, err := a.client.ListPublications(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SIGLAS\tNOMBRE\tTIPO")
			for _, p := range pubs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Siglas, p.NombrePublicacion, p.Tipo)
			}
			return w.Flush()
		},
	}
}
