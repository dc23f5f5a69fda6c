package bondhandler

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ruteri/slb-bond-backend/api"
	"github.com/ruteri/slb-bond-backend/bond"
	"github.com/ruteri/slb-bond-backend/cryptoutils"
	"github.com/ruteri/slb-bond-backend/interfaces"
)

type principalKey struct{}

// PrincipalFromContext returns the authenticated caller stored by Authenticate.
func PrincipalFromContext(ctx context.Context) (interfaces.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(interfaces.Principal)
	return p, ok
}

// Authenticate verifies the request signature against the claimed principal
// and stores the principal in the request context. The signature covers the
// caller's nonce and an expiry: expired requests are rejected here and the
// contract commits a nonce at most once, so a captured request cannot be
// replayed. The body is buffered and handed on unchanged.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claimed, err := interfaces.ParsePrincipal(r.Header.Get(api.PrincipalHeader))
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: missing or invalid %s header", interfaces.ErrUnauthorized, api.PrincipalHeader))
			return
		}

		sig, err := hex.DecodeString(strings.TrimPrefix(r.Header.Get(api.SignatureHeader), "0x"))
		if err != nil || len(sig) == 0 {
			h.writeError(w, fmt.Errorf("%w: missing or invalid %s header", interfaces.ErrUnauthorized, api.SignatureHeader))
			return
		}

		nonce, err := strconv.ParseUint(r.Header.Get(api.NonceHeader), 10, 64)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: missing or invalid %s header", interfaces.ErrUnauthorized, api.NonceHeader))
			return
		}
		expiry, err := strconv.ParseUint(r.Header.Get(api.ExpiryHeader), 10, 64)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: missing or invalid %s header", interfaces.ErrUnauthorized, api.ExpiryHeader))
			return
		}
		now := h.now()
		if expiry < uint64(now.Unix()) {
			h.writeError(w, fmt.Errorf("%w: request expired", interfaces.ErrUnauthorized))
			return
		}
		if expiry > uint64(now.Add(api.MaxRequestLifetime).Unix()) {
			h.writeError(w, fmt.Errorf("%w: expiry is more than %s ahead", interfaces.ErrUnauthorized, api.MaxRequestLifetime))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, api.MaxBodySize+1))
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: failed to read body: %v", interfaces.ErrInvalidArgument, err))
			return
		}
		if len(body) > api.MaxBodySize {
			h.writeError(w, fmt.Errorf("%w: body exceeds %d bytes", interfaces.ErrInvalidArgument, api.MaxBodySize))
			return
		}

		signer, err := cryptoutils.RecoverRequestSigner(cryptoutils.Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Nonce:  nonce,
			Expiry: expiry,
			Body:   body,
		}, sig)
		if err != nil {
			h.writeError(w, fmt.Errorf("%w: %v", interfaces.ErrUnauthorized, err))
			return
		}
		if signer != claimed {
			h.log.Debug("Signature does not match principal", "claimed", claimed.Hex(), "signer", signer.Hex())
			h.writeError(w, fmt.Errorf("%w: signature does not match principal", interfaces.ErrUnauthorized))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), principalKey{}, claimed)
		next.ServeHTTP(w, r.WithContext(bond.WithNonce(ctx, nonce)))
	})
}
