package content

import (
	"net/http"
	"time"

	"github.com/skshohagmiah/folio/internal/gatekeeper"
)

// Rules returns the gate rules for the content routes. Reads are public,
// writes are admin only, and login attempts are limited to limit per
// window per client.
func Rules(limit int64, window time.Duration) gatekeeper.Rules {
	get := []string{http.MethodGet}
	return gatekeeper.Rules{
		{
			Pattern:     "/api/auth/login",
			Methods:     []string{http.MethodPost},
			Visibility:  gatekeeper.Standard,
			RateLimited: true,
			Limit:       limit,
			Window:      window,
			Bucket:      "login",
		},
		{Pattern: "/api/auth/**", Visibility: gatekeeper.Public},

		{Pattern: "/api/categories/stats", Methods: get, Visibility: gatekeeper.AdminOnly},

		{Pattern: "/api/articles", Methods: get, Visibility: gatekeeper.Public},
		{Pattern: "/api/articles/{id}", Methods: get, Visibility: gatekeeper.Public},
		{Pattern: "/api/categories", Methods: get, Visibility: gatekeeper.Public},
		{Pattern: "/api/categories/{id}", Methods: get, Visibility: gatekeeper.Public},
		{Pattern: "/api/bookmarks", Methods: get, Visibility: gatekeeper.Public},
		{Pattern: "/api/bookmarks/{id}", Methods: get, Visibility: gatekeeper.Public},

		{Pattern: "/api/articles/**", Visibility: gatekeeper.AdminOnly},
		{Pattern: "/api/categories/**", Visibility: gatekeeper.AdminOnly},
		{Pattern: "/api/bookmarks/**", Visibility: gatekeeper.AdminOnly},
	}
}
