package controllers

import (
	"context"
	"log/slog"

	"github.com/adamanr/hr_console/internal/entity"
	"github.com/adamanr/hr_console/internal/schema"
	"github.com/adamanr/hr_console/internal/session"
)

type AuthController struct {
	errorState
	deps *Dependens
}

func NewAuthController(deps *Dependens) *AuthController {
	return &AuthController{
		deps: deps,
	}
}

// Login exchanges credentials for an identity and starts a session.
// Everything cached for the previous identity is dropped.
func (c *AuthController) Login(ctx context.Context, email, password string) (*entity.Identity, error) {
	const fallback = "Login failed"

	req := entity.LoginRequest{Email: email, Password: password}

	if err := schema.ValidateLogin(req); err != nil {
		return nil, c.fail(c.deps.Logger, "Invalid login request", fallback, err)
	}

	env, err := c.deps.API.Post(ctx, PathLogin, req)
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error logging in", fallback, err)
	}

	identity, err := schema.DecodeIdentity(env.Data)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error decoding identity", fallback, err)
	}

	if err = c.deps.Session.Login(ctx, &identity); err != nil {
		return nil, c.fail(c.deps.Logger, "Error saving session", fallback, err)
	}

	c.deps.Cache.Clear()
	c.clearError()

	c.deps.Logger.Info("Logged in", slog.String("user", identity.ID))

	return c.deps.Session.Identity(), nil
}

// Current asks the server who the stored token belongs to.
func (c *AuthController) Current(ctx context.Context) (*entity.Identity, error) {
	env, err := c.deps.API.Get(ctx, PathCurrent, nil)
	if err != nil {
		return nil, err
	}

	if err = checkEnvelope(env, "Failed to fetch current user"); err != nil {
		return nil, err
	}

	identity, err := schema.DecodeIdentity(env.Data)
	if err != nil {
		return nil, err
	}

	return &identity, nil
}

func (c *AuthController) Logout(ctx context.Context) error {
	c.deps.Cache.Clear()

	if err := c.deps.Session.Logout(ctx); err != nil {
		return c.fail(c.deps.Logger, "Error clearing session", "Logout failed", err)
	}

	c.clearError()
	c.deps.Logger.Info("Logged out")

	return nil
}

// Boot restores the persisted session, confirming it with the server.
func (c *AuthController) Boot(ctx context.Context) session.State {
	state := c.deps.Session.Boot(ctx, c.Current)
	if state != session.StateAuthenticated {
		c.deps.Cache.Clear()
	}

	return state
}
