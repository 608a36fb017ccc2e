package cuenta

import (
	"context"
	"errors"
	"io"

	"github.com/gestionlocal/cuenta/avatar"
	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/permission"
	"github.com/gestionlocal/cuenta/session"
)

// AvatarGallery lists the illustrated avatars offered for g.
func (c *Client) AvatarGallery(g Gender) []AvatarOption {
	return avatar.Gallery(c.config.Avatar.GalleryStyle, g)
}

// UploadAvatar normalizes the image read from r, stores it as the member's
// photo and points the profile at it. The session keeps the object key.
func (c *Client) UploadAvatar(ctx context.Context, r io.Reader) (string, error) {
	rec, err := c.require(ctx, permission.EditProfile)
	if err != nil {
		return "", err
	}
	if c.avatars == nil {
		return "", ErrAvatarUnavailable
	}

	body, err := avatar.Normalize(r, c.config.Avatar.MaxBytes)
	if err != nil {
		c.metricInc(MetricAvatarFailed)
		if errors.Is(err, avatar.ErrTooLarge) || errors.Is(err, avatar.ErrUnsupported) {
			return "", &OpError{Op: OpUploadAvatar, Err: errors.Join(ErrValidation, err)}
		}
		return "", &OpError{Op: OpUploadAvatar, Err: err}
	}

	key := avatar.ObjectKey(rec.User.PersonaID)
	if err := c.avatars.Put(ctx, key, body, "image/jpeg"); err != nil {
		c.metricInc(MetricAvatarFailed)
		c.logger.Warn("avatar upload failed", "key", key, "err", err)
		return "", &OpError{Op: OpUploadAvatar, Err: errors.Join(ErrAvatarUnavailable, err)}
	}
	if err := c.setPhoto(ctx, OpUploadAvatar, rec.User.PersonaID, key); err != nil {
		return "", err
	}
	return key, nil
}

// SelectAvatar points the profile at the gallery illustration for seed.
func (c *Client) SelectAvatar(ctx context.Context, seed string, g Gender) (string, error) {
	rec, err := c.require(ctx, permission.EditProfile)
	if err != nil {
		return "", err
	}
	if seed == "" {
		return "", ErrMissingField
	}
	url := avatar.GalleryURL(c.config.Avatar.GalleryStyle, seed, g)
	if err := c.setPhoto(ctx, OpSelectAvatar, rec.User.PersonaID, url); err != nil {
		return "", err
	}
	return url, nil
}

func (c *Client) setPhoto(ctx context.Context, op string, personaID int, fotoURL string) error {
	err := c.api.UploadPhoto(ctx, api.UploadPhotoRequest{
		PersonaID: api.PersonaID(personaID),
		FotoURL:   fotoURL,
	})
	if err != nil {
		err = mapAPIError(op, err)
		c.metricInc(MetricAvatarFailed)
		c.emitAudit(ctx, auditEventAvatarUpdated, false, "", "", "", err, nil)
		return err
	}
	c.metricInc(MetricAvatarUpdated)
	c.emitAudit(ctx, auditEventAvatarUpdated, true, "", "", "", nil, func() map[string]string {
		return map[string]string{"op": op}
	})
	return c.replaceSession(ctx, session.Patch{FotoURL: session.String(fotoURL)})
}
