package citadelcbt

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
)

// MasterAdminID identifies the configured administrator that lives outside the registry
const MasterAdminID = "master"

// AdminCredentials come from configuration, never from source
type AdminCredentials struct {
	Username    string
	Password    string
	RegistryKey string
	DisplayName string
}

// AdminGate checks administrator logins and manages the registry
type AdminGate struct {
	creds AdminCredentials
	repo  AdminRepository
}

// NewAdminGate creates a gate over the registry repo
func NewAdminGate(creds AdminCredentials, repo AdminRepository) *AdminGate {
	if creds.DisplayName == "" {
		creds.DisplayName = "Academic Director"
	}
	return &AdminGate{creds: creds, repo: repo}
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Master describes the configured administrator
func (g *AdminGate) Master() AdminUser {
	return AdminUser{
		ID:       MasterAdminID,
		Username: g.creds.Username,
		Name:     g.creds.DisplayName,
		AddedBy:  "system",
	}
}

// IsMaster reports whether username names the configured administrator
func (g *AdminGate) IsMaster(username string) bool {
	return g.creds.Username != "" && strings.EqualFold(strings.TrimSpace(username), g.creds.Username)
}

// Login authenticates the master administrator with the configured password
// and registry administrators with the configured registry key. Either path
// is disabled while its secret is unset.
func (g *AdminGate) Login(ctx context.Context, username, password string) (*AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if g.IsMaster(username) {
		if g.creds.Password == "" || !secretEqual(password, g.creds.Password) {
			return nil, ErrInvalidCredentials
		}
		master := g.Master()
		return &master, nil
	}

	if g.creds.RegistryKey == "" {
		return nil, ErrInvalidCredentials
	}
	admin, err := g.repo.FindAdmin(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !secretEqual(password, g.creds.RegistryKey) {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// List returns the registry, newest first
func (g *AdminGate) List(ctx context.Context) ([]AdminUser, error) {
	return g.repo.ListAdmins(ctx)
}

// Add grants administrator access to username
func (g *AdminGate) Add(ctx context.Context, username, name, addedBy string) (*AdminUser, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	if username == "" || name == "" {
		return nil, fmt.Errorf("%w: username and name are required", ErrValidation)
	}
	if g.IsMaster(username) {
		return nil, fmt.Errorf("%w: %s is reserved", ErrValidation, username)
	}

	if _, err := g.repo.FindAdmin(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: %s is already an administrator", ErrValidation, username)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	admin := &AdminUser{Username: username, Name: name, AddedBy: addedBy}
	if _, err := g.repo.SaveAdmin(ctx, admin); err != nil {
		return nil, err
	}
	log.Printf("Administrator %s added by %s", username, addedBy)
	return admin, nil
}

// Remove revokes a registry entry. The master administrator cannot be removed.
func (g *AdminGate) Remove(ctx context.Context, id string) error {
	if id == MasterAdminID {
		return ErrMasterAdmin
	}
	if err := g.repo.DeleteAdmin(ctx, id); err != nil {
		return err
	}
	log.Printf("Administrator %s revoked", id)
	return nil
}
