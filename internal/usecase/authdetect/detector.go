// Package authdetect decides from the browser URL whether the user has
// finished logging in to the portal.
//
// A positive verdict requires that the identity provider was observed at
// least once during the session. A browser that starts out already logged in
// therefore never reports success.
package authdetect

import "strings"

// Verdict is the result of classifying one observed URL.
type Verdict struct {
	Authenticated bool
	SawAuthPortal bool
}

// Detector classifies a URL given whether the identity provider was seen before.
type Detector interface {
	Detect(currentURL string, sawAuthPortal bool) Verdict
}

// Markers is the substring table the detector matches against.
type Markers struct {
	IdPDomains       []string `yaml:"idp_domains"`
	DashboardMarkers []string `yaml:"dashboard_markers"`
	AppDomains       []string `yaml:"app_domains"`
}

func DefaultMarkers() Markers {
	return Markers{
		IdPDomains:       []string{"login.osu.edu", "webauth.service.ohio-state.edu", "shibboleth"},
		DashboardMarkers: []string{"buckeyelink.osu.edu/psp", "buckeyelink.osu.edu/psc"},
		AppDomains:       []string{"buckeyelink.osu.edu"},
	}
}

var _ Detector = (*MarkerDetector)(nil)

type MarkerDetector struct {
	idp       []string
	dashboard []string
	app       []string
}

func NewMarkerDetector(m Markers) *MarkerDetector {
	return &MarkerDetector{
		idp:       lower(m.IdPDomains),
		dashboard: lower(m.DashboardMarkers),
		app:       lower(m.AppDomains),
	}
}

func (d *MarkerDetector) Detect(currentURL string, sawAuthPortal bool) Verdict {
	u := strings.ToLower(currentURL)

	onIdP := containsAny(u, d.idp)
	onDashboard := containsAny(u, d.dashboard)
	onApp := containsAny(u, d.app)

	saw := sawAuthPortal || onIdP
	return Verdict{
		Authenticated: saw && (onDashboard || (!onIdP && onApp)),
		SawAuthPortal: saw,
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
