// Package gate is the route-level redirect policy for page navigation.
// It looks only at the path and whether a credential cookie is present;
// token validity is checked downstream when the page calls the API.
package gate

import "strings"

type RouteClass string

const (
	// AuthOnly pages bounce already signed-in users to the dashboard.
	AuthOnly RouteClass = "auth-only"
	// Public pages are reachable by anyone.
	Public RouteClass = "public"
	// Protected pages bounce anonymous visitors to the login page.
	Protected RouteClass = "protected"
)

const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

func Classify(path string) RouteClass {
	path = normalize(path)
	switch path {
	case "/login", "/signup", "/verifyemail":
		return AuthOnly
	case "/", "/landing", "/public-notes":
		return Public
	}
	return Protected
}

// Decide returns the path to redirect to, or "" when the request may
// proceed. An expired or forged cookie still counts as "present" here.
func Decide(path string, hasCredential bool) string {
	switch Classify(path) {
	case AuthOnly:
		if hasCredential {
			return LandingPath
		}
	case Protected:
		if !hasCredential {
			return LoginPath
		}
	}
	return ""
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
