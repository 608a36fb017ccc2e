package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gestionlocal/cuenta/avatar"
)

func newAvatarCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Foto de perfil",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := a.client.AvatarURL(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			if url == "" {
				fmt.Fprintln(a.out, "Sin foto de perfil.")
				return nil
			}
			fmt.Fprintln(a.out, url)
			return nil
		},
	}

	var gender string
	gallery := &cobra.Command{
		Use:   "galeria",
		Short: "Listar los avatares ilustrados",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := avatar.ParseGender(gender)
			if err != nil {
				return err
			}
			for _, o := range a.client.AvatarGallery(g) {
				fmt.Fprintf(a.out, "%-8s %s\n", o.Seed, o.URL)
			}
			return nil
		},
	}
	gallery.Flags().StringVarP(&gender, "genero", "g", "mujer", "hombre o mujer")

	choose := &cobra.Command{
		Use:   "elegir <seed>",
		Short: "Usar un avatar de la galería",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := avatar.ParseGender(gender)
			if err != nil {
				return err
			}
			url, err := a.client.SelectAvatar(cmd.Context(), args[0], g)
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintln(a.out, "Avatar actualizado:", url)
			return nil
		},
	}
	choose.Flags().StringVarP(&gender, "genero", "g", "mujer", "hombre o mujer")

	upload := &cobra.Command{
		Use:   "subir <archivo>",
		Short: "Subir una foto JPEG o PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			key, err := a.client.UploadAvatar(cmd.Context(), file)
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintln(a.out, "Foto subida:", key)
			return nil
		},
	}

	cmd.AddCommand(gallery, choose, upload)
	return cmd
}
