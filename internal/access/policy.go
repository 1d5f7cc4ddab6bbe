package access

import (
	"net/http"
	"net/url"
	"strings"
)

// Outcome is the result class of an authorization check.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	Forbid
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Forbid:
		return "forbid"
	default:
		return "unknown"
	}
}

// Decision is what the gate tells the caller to do. Location is set for
// Redirect outcomes.
type Decision struct {
	Outcome  Outcome
	Location string
	Reason   string
}

// MutationMode selects how a request is judged to be mutating.
type MutationMode string

const (
	// MutationByPath looks for "create", "update" or "delete" in the path.
	MutationByPath MutationMode = "path"
	// MutationByMethod treats every non-safe HTTP method as mutating.
	MutationByMethod MutationMode = "method"
	// MutationByEither applies both rules.
	MutationByEither MutationMode = "either"
)

var mutatingPathWords = []string{"create", "update", "delete"}

// Request is the part of an inbound request the gate looks at.
type Request struct {
	Method string
	Path   string
	// URL is the original request URL, used as the sign-in callback target.
	URL string
}

// Policy configures the two route classes the gate protects.
type Policy struct {
	AdminPrefix     string
	ContentPrefixes []string
	SignInPath      string
	HomePath        string
	Mutation        MutationMode
}

// DefaultPolicy mirrors the stock route layout.
func DefaultPolicy() Policy {
	return Policy{
		AdminPrefix: "/admin",
		ContentPrefixes: []string{
			"/api/events",
			"/api/sermons",
			"/api/branches",
			"/api/leadership",
			"/api/hero-images",
			"/api/ministries",
		},
		SignInPath: "/auth/signin",
		HomePath:   "/",
		Mutation:   MutationByPath,
	}
}

// Authorize runs the admin-area check and then the content-mutation check.
// sess is nil when the request carries no valid session.
func (p Policy) Authorize(req Request, sess *Session) Decision {
	if hasPathPrefix(req.Path, p.AdminPrefix) {
		if sess == nil {
			return p.signIn(req, "admin area requires a session")
		}
		if !sess.Can(CapAdminArea) {
			return Decision{Outcome: Redirect, Location: p.home(), Reason: "admin area requires the ADMIN role"}
		}
		return Decision{Outcome: Allow}
	}

	if p.isContentPath(req.Path) && p.IsMutating(req) {
		if sess == nil {
			return p.signIn(req, "content changes require a session")
		}
		if !sess.Can(CapManageContent) {
			return Decision{Outcome: Forbid, Reason: "Your role is not allowed to change content"}
		}
	}

	return Decision{Outcome: Allow}
}

// IsMutating applies the configured mutation rule.
func (p Policy) IsMutating(req Request) bool {
	switch p.Mutation {
	case MutationByMethod:
		return isUnsafeMethod(req.Method)
	case MutationByEither:
		return isUnsafeMethod(req.Method) || pathSignalsMutation(req.Path)
	default:
		return pathSignalsMutation(req.Path)
	}
}

func (p Policy) isContentPath(path string) bool {
	for _, prefix := range p.ContentPrefixes {
		if hasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (p Policy) signIn(req Request, reason string) Decision {
	target := req.URL
	if target == "" {
		target = req.Path
	}
	signIn := p.SignInPath
	if signIn == "" {
		signIn = "/auth/signin"
	}
	return Decision{
		Outcome:  Redirect,
		Location: signIn + "?callbackUrl=" + url.QueryEscape(target),
		Reason:   reason,
	}
}

func (p Policy) home() string {
	if p.HomePath == "" {
		return "/"
	}
	return p.HomePath
}

// hasPathPrefix matches prefix on whole path segments.
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func pathSignalsMutation(path string) bool {
	lower := strings.ToLower(path)
	for _, w := range mutatingPathWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func isUnsafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, "":
		return false
	default:
		return true
	}
}
