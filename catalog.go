package cuenta

import (
	"context"
	"strings"
	"time"

	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/permission"
	"github.com/gestionlocal/cuenta/session"
)

// SecurityInfo returns the latest security notice. ErrNotFound means none has
// been published yet.
func (c *Client) SecurityInfo(ctx context.Context) (SecurityInfo, error) {
	if _, err := c.require(ctx, permission.ReadSecurity); err != nil {
		return SecurityInfo{}, err
	}
	info, err := c.api.SecurityInfo(ctx)
	if err != nil {
		return SecurityInfo{}, mapAPIError(OpSecurityInfo, err)
	}
	return SecurityInfo{
		Contenido:        info.Contenido,
		DescripcionLarga: info.DescripcionLarga,
		UpdatedAt:        info.UpdatedAt,
	}, nil
}

// SaveSecurityInfo publishes a new notice without emailing it. Only local
// administrators may call it.
func (c *Client) SaveSecurityInfo(ctx context.Context, contenido string) error {
	if _, err := c.require(ctx, permission.PublishSecurity); err != nil {
		return err
	}
	contenido = strings.TrimSpace(contenido)
	if contenido == "" {
		return ErrMissingField
	}
	if err := c.api.SaveSecurityInfo(ctx, contenido); err != nil {
		err = mapAPIError(OpSaveSecurity, err)
		c.emitAudit(ctx, auditEventSecuritySaved, false, "", "", "", err, nil)
		return err
	}
	c.emitAudit(ctx, auditEventSecuritySaved, true, "", "", "", nil, nil)
	return c.touchSecurity(ctx)
}

// BroadcastSecurityUpdate publishes a notice and emails it to every active
// member. Only local administrators may call it.
func (c *Client) BroadcastSecurityUpdate(ctx context.Context, titulo, descripcion string) error {
	if _, err := c.require(ctx, permission.PublishSecurity); err != nil {
		return err
	}
	titulo = strings.TrimSpace(titulo)
	if titulo == "" || strings.TrimSpace(descripcion) == "" {
		return ErrMissingField
	}
	err := c.api.BroadcastSecurity(ctx, api.BroadcastRequest{
		Titulo:           titulo,
		DescripcionLarga: descripcion,
	})
	if err != nil {
		err = mapAPIError(OpBroadcast, err)
		c.emitAudit(ctx, auditEventSecurityBroadcast, false, "", "", "", err, nil)
		return err
	}
	c.metricInc(MetricSecurityBroadcast)
	c.emitAudit(ctx, auditEventSecurityBroadcast, true, "", "", "", nil, func() map[string]string {
		return map[string]string{"titulo": titulo}
	})
	return c.touchSecurity(ctx)
}

func (c *Client) touchSecurity(ctx context.Context) error {
	return c.replaceSession(ctx, session.Patch{
		SecurityUpdatedAt: session.String(time.Now().UTC().Format(time.RFC3339)),
	})
}

// ListPublications returns the publications catalog.
func (c *Client) ListPublications(ctx context.Context) ([]Publication, error) {
	if _, err := c.require(ctx, permission.ReadPublications); err != nil {
		return nil, err
	}
	pubs, err := c.api.Publications(ctx)
	if err != nil {
		return nil, mapAPIError(OpPublications, err)
	}
	out := make([]Publication, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, Publication{
			ID:                p.ID,
			NombrePublicacion: p.NombrePublicacion,
			Tipo:              p.Tipo,
			Siglas:            p.Siglas,
			URLPortada:        p.URLPortada,
		})
	}
	return out, nil
}
