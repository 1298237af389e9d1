package gatekeeper

import (
	"net/http"
	"strings"
	"time"
)

// Visibility is the access class of a route.
type Visibility int

const (
	// Standard routes are open unless they fall under an admin prefix.
	Standard Visibility = iota
	// Public routes are allowed without any further check.
	Public
	// AdminOnly routes require a valid admin token.
	AdminOnly
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case AdminOnly:
		return "admin"
	default:
		return "standard"
	}
}

// Rule declares the sensitivity of the routes matching Pattern.
//
// Pattern segments are literal, "*" or "{name}" for exactly one segment, or
// a final "**" for any number of trailing segments, including none.
type Rule struct {
	Pattern    string
	Methods    []string // empty matches every method
	Visibility Visibility

	RateLimited bool
	Limit       int64
	Window      time.Duration
	// Bucket names the counter shared by the rule's requests. Defaults to
	// the pattern.
	Bucket string
}

func (r Rule) bucket() string {
	if r.Bucket != "" {
		return r.Bucket
	}
	return r.Pattern
}

// Rules is evaluated in order; the first matching rule wins.
type Rules []Rule

// Match returns the first rule matching method and path.
func (rs Rules) Match(method, path string) (Rule, bool) {
	segs := splitPath(path)
	for _, r := range rs {
		if r.matchesMethod(method) && matchSegments(splitPath(r.Pattern), segs) {
			return r, true
		}
	}
	return Rule{}, false
}

func (r Rule) matchesMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
		if method == http.MethodHead && strings.EqualFold(m, http.MethodGet) {
			return true
		}
	}
	return false
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	for i, seg := range pattern {
		if seg == "**" && i == len(pattern)-1 {
			return true
		}
		if i >= len(path) {
			return false
		}
		if seg == "*" || isParam(seg) {
			if path[i] == "" {
				return false
			}
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}

func isParam(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

// HasPathPrefix reports whether path is prefix or lies under it, on
// segment boundaries ("/admin" covers "/admin/x", not "/administrator").
func HasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
