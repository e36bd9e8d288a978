package auth

import (
	"testing"

	"github.com/gin-contrib/sessions/cookie"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/require"

	"firefly/internal/config"
)

func TestInitGothProviders(t *testing.T) {
	t.Cleanup(goth.ClearProviders)
	store := cookie.NewStore([]byte("0123456789abcdef0123456789abcdef"))

	names := InitGothProviders(config.OAuthConfig{CallbackBase: "https://firefly.example.com"}, store)
	require.Empty(t, names)

	names = InitGothProviders(config.OAuthConfig{
		GitHub:       config.ProviderConfig{Key: "gh-key", Secret: "gh-secret"},
		Google:       config.ProviderConfig{Key: "g-key", Secret: "g-secret"},
		CallbackBase: "https://firefly.example.com",
	}, store)
	require.Equal(t, []string{"github", "google"}, names)

	p, err := goth.GetProvider("github")
	require.NoError(t, err)
	sess, err := p.BeginAuth("state")
	require.NoError(t, err)
	url, err := sess.GetAuthURL()
	require.NoError(t, err)
	require.Contains(t, url, "redirect_uri=https%3A%2F%2Ffirefly.example.com%2Fauth%2Fgithub%2Fcallback")

	names = InitGothProviders(config.OAuthConfig{Google: config.ProviderConfig{Key: "g-key"}}, store)
	require.Equal(t, []string{"google"}, names)
	_, err = goth.GetProvider("github")
	require.Error(t, err)
}
