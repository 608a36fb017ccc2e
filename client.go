package cuenta

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gestionlocal/cuenta/avatar"
	"github.com/gestionlocal/cuenta/internal/api"
	"github.com/gestionlocal/cuenta/internal/audit"
	"github.com/gestionlocal/cuenta/internal/limiters"
	"github.com/gestionlocal/cuenta/permission"
	"github.com/gestionlocal/cuenta/session"
)

// Client is the account client for one member at a time.
//
// Client is safe for concurrent use once built. It owns exactly one EditFlow
// and one RecoveryFlow.
type Client struct {
	config     Config
	api        *api.Client
	store      session.Store
	roles      *permission.RoleManager
	pinLimiter *limiters.PinLimiter
	avatars    avatar.Store
	navigator  Navigator
	logger     *slog.Logger
	metrics    *Metrics
	audit      *audit.Dispatcher

	edit     *EditFlow
	recovery *RecoveryFlow

	closeOnce sync.Once
}

// Close stops the username checker and flushes pending audit events. The
// session record is left in place.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		if c.edit != nil {
			c.edit.close()
		}
		if c.audit != nil {
			c.audit.Close()
			if dropped := c.audit.Dropped(); dropped > 0 {
				c.logger.Warn("audit events dropped", "count", dropped)
			}
		}
	})
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

// Edit returns the verified-mutation flow.
func (c *Client) Edit() *EditFlow {
	return c.edit
}

// Recovery returns the logged-out recovery flow.
func (c *Client) Recovery() *RecoveryFlow {
	return c.recovery
}

// Config returns a copy of the configuration the client was built with.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

// Login checks the credentials with the backend and stores the returned user
// record as the current session, replacing any previous one.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	if c == nil || c.api == nil {
		return User{}, ErrClientNotReady
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrMissingField
	}

	u, err := c.api.Login(ctx, username, password)
	if err != nil {
		err = mapAPIError(OpLogin, err)
		c.metricInc(MetricLoginFailure)
		c.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", err, func() map[string]string {
			return map[string]string{"username": username}
		})
		return User{}, err
	}

	now := time.Now().Unix()
	rec := session.Record{
		User:      u,
		Role:      session.RoleFor(u),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Save(ctx, rec); err != nil {
		c.metricInc(MetricSessionWriteFailure)
		c.logger.Warn("session save failed after login", "err", err)
		return User{}, mapSessionError(err)
	}

	c.edit.ctrl.Reopen()
	c.metricInc(MetricLoginSuccess)
	c.emitAudit(ctx, auditEventLoginSuccess, true, "", "", "", nil, func() map[string]string {
		return map[string]string{"role": rec.Role}
	})
	return u, nil
}

// Logout discards any edit in progress, clears the session and sends the
// member to the login entry. It is safe to call without a session.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.store == nil {
		return ErrClientNotReady
	}
	c.edit.Cancel(ctx)
	c.emitAudit(ctx, auditEventLogout, true, "", "", "", nil, nil)

	if err := c.store.Clear(ctx); err != nil {
		c.metricInc(MetricSessionWriteFailure)
		return mapSessionError(err)
	}
	c.metricInc(MetricLogout)
	c.toLogin()
	return nil
}

// CurrentUser returns the logged-in member, or ErrNotAuthenticated.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	rec, err := c.session(ctx)
	if err != nil {
		return User{}, err
	}
	return rec.User, nil
}

// Can reports whether the logged-in member holds perm (see package
// permission).
func (c *Client) Can(ctx context.Context, perm string) (bool, error) {
	rec, err := c.session(ctx)
	if err != nil {
		return false, err
	}
	return c.roles.Allows(rec.Role, perm), nil
}

// AvatarURL resolves the stored foto_url of the current member.
func (c *Client) AvatarURL(ctx context.Context) (string, error) {
	u, err := c.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return avatar.ResolveURL(c.config.Avatar.PublicBaseURL, u.FotoURL), nil
}

func (c *Client) session(ctx context.Context) (session.Record, error) {
	if c == nil || c.store == nil {
		return session.Record{}, ErrClientNotReady
	}
	rec, err := c.store.Load(ctx)
	if err != nil {
		return session.Record{}, mapSessionError(err)
	}
	return rec, nil
}

func (c *Client) require(ctx context.Context, perm string) (session.Record, error) {
	rec, err := c.session(ctx)
	if err != nil {
		return session.Record{}, err
	}
	if !c.roles.Allows(rec.Role, perm) {
		return session.Record{}, ErrPermissionDenied
	}
	return rec, nil
}

// replaceSession merges p into the stored record. A failure is logged and
// counted; the backend change already happened.
func (c *Client) replaceSession(ctx context.Context, p session.Patch) error {
	if _, err := c.store.Replace(ctx, p); err != nil {
		c.metricInc(MetricSessionWriteFailure)
		c.logger.Warn("session update failed", "err", err)
		if errors.Is(err, session.ErrNoSession) {
			return ErrNotAuthenticated
		}
		return mapSessionError(err)
	}
	return nil
}

func (c *Client) toLogin() {
	if c.navigator != nil {
		c.navigator.ToLogin()
	}
}
