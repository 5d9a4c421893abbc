package authdetect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_RequiresIdPBeforeSuccess(t *testing.T) {
	d := NewMarkerDetector(DefaultMarkers())

	urls := []string{
		"https://buckeyelink.osu.edu/",
		"https://buckeyelink.osu.edu/psc/dashboard",
		"https://buckeyelink.osu.edu/psp/portal",
		"about:blank",
	}
	for _, u := range urls {
		v := d.Detect(u, false)
		assert.False(t, v.Authenticated, u)
		assert.False(t, v.SawAuthPortal, u)
	}
}

func TestDetect_LoginFlow(t *testing.T) {
	d := NewMarkerDetector(DefaultMarkers())

	v := d.Detect("https://webauth.service.ohio-state.edu/idp/profile/SAML2/Redirect/SSO", false)
	assert.False(t, v.Authenticated)
	assert.True(t, v.SawAuthPortal)

	v = d.Detect("https://buckeyelink.osu.edu/psc/dashboard", v.SawAuthPortal)
	assert.True(t, v.Authenticated)
	assert.True(t, v.SawAuthPortal)
}

func TestDetect_AppDomainAfterIdP(t *testing.T) {
	d := NewMarkerDetector(DefaultMarkers())

	v := d.Detect("https://buckeyelink.osu.edu/task/all/grades", true)
	assert.True(t, v.Authenticated)
}

func TestDetect_StillOnIdPIsNotAuthenticated(t *testing.T) {
	d := NewMarkerDetector(DefaultMarkers())

	// IdP pages that mention the app in a return URL must not count.
	v := d.Detect("https://login.osu.edu/?target=https://buckeyelink.osu.edu/", true)
	assert.False(t, v.Authenticated)
	assert.True(t, v.SawAuthPortal)
}

func TestDetect_CaseInsensitive(t *testing.T) {
	d := NewMarkerDetector(DefaultMarkers())

	v := d.Detect("HTTPS://WEBAUTH.SERVICE.OHIO-STATE.EDU/idp", false)
	assert.True(t, v.SawAuthPortal)

	v = d.Detect("https://BuckeyeLink.OSU.edu/PSC/x", v.SawAuthPortal)
	assert.True(t, v.Authenticated)
}

func TestDetect_SawAuthPortalIsSticky(t *testing.T) {
	d := NewMarkerDetector(DefaultMarkers())

	v := d.Detect("https://example.com/unrelated", true)
	assert.True(t, v.SawAuthPortal)
	assert.False(t, v.Authenticated)
}

func TestParseMarkers_PartialOverride(t *testing.T) {
	m, err := ParseMarkers([]byte(`
idp_domains:
  - sso.example.edu
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"sso.example.edu"}, m.IdPDomains)
	assert.Equal(t, DefaultMarkers().DashboardMarkers, m.DashboardMarkers)

	d := NewMarkerDetector(m)
	v := d.Detect("https://sso.example.edu/login", false)
	assert.True(t, v.SawAuthPortal)
	assert.False(t, d.Detect("https://webauth.service.ohio-state.edu/idp", false).SawAuthPortal)
}

func TestParseMarkers_Invalid(t *testing.T) {
	_, err := ParseMarkers([]byte("idp_domains: [\"  \"]"))
	assert.ErrorIs(t, err, ErrInvalidMarkers)

	_, err = ParseMarkers([]byte("idp_domains: {broken"))
	assert.ErrorIs(t, err, ErrInvalidMarkers)
}

func TestLoadMarkers_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
idp_domains: [idp.test]
dashboard_markers: [app.test/home]
app_domains: [app.test]
`), 0o644))

	m, err := LoadMarkers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.test"}, m.AppDomains)

	_, err = LoadMarkers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
