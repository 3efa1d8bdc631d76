package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
)

// authedHandler is a handler that runs for a verified, current session.
type authedHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(common.BearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(common.BearerPrefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// session runs h after the token is verified, matches the stored session
// and the account is not locked. Sector checks are left to the services.
func (a *API) session(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, err := extractBearerToken(r.Header.Get(common.AuthorizationHeaderName))
		if err != nil {
			a.fail(w, r, fmt.Errorf("%w: %v", common.ErrUnauthenticated, err))
			return
		}
		id, err := a.gate.Authenticate(ctx, token)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if err := a.gate.CheckNotLocked(ctx, id, token); err != nil {
			a.fail(w, r, err)
			return
		}

		ctx = auth.ContextWithIdentity(ctx, id)
		ctx = auth.ContextWithToken(ctx, token)
		h(w, r.WithContext(ctx), id)
	}
}
