// Package auth configures the OAuth providers users log in with.
package auth

import (
	"sort"

	"github.com/gin-contrib/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/github"
	"github.com/markbates/goth/providers/google"

	"firefly/internal/config"
)

func callbackURL(cfg config.OAuthConfig, provider string) string {
	return cfg.CallbackBase + "/auth/" + provider + "/callback"
}

// InitGothProviders registers every provider that has credentials in cfg
// and stores the OAuth handshake state in store. It returns the names of
// the enabled providers.
func InitGothProviders(cfg config.OAuthConfig, store sessions.Store) []string {
	goth.ClearProviders()
	gothic.Store = store

	var providers []goth.Provider
	if cfg.GitHub.Key != "" {
		providers = append(providers,
			github.New(cfg.GitHub.Key, cfg.GitHub.Secret, callbackURL(cfg, "github"), "read:user", "user:email"))
	}
	if cfg.Google.Key != "" {
		providers = append(providers,
			google.New(cfg.Google.Key, cfg.Google.Secret, callbackURL(cfg, "google"), "email", "profile"))
	}
	goth.UseProviders(providers...)

	return Providers()
}

// Providers lists the names of the registered providers.
func Providers() []string {
	names := make([]string, 0, len(goth.GetProviders()))
	for name := range goth.GetProviders() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
