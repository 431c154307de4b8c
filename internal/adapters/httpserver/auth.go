package httpserver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/ordercore/internal/domain"
)

var (
	errTokenFormat    = errors.New("token: malformed")
	errTokenSignature = errors.New("token: bad signature")
	errTokenClaims    = errors.New("token: bad claims")
	errTokenExpired   = errors.New("token: expired")
)

const tokenIssuer = "ordercore"

type actorClaims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Exp  int64  `json:"exp"`
	Iat  int64  `json:"iat"`
	Iss  string `json:"iss"`
}

// IssueActorToken signs an HS256 token for the actor, valid for dur.
func IssueActorToken(secret []byte, actor domain.Actor, dur time.Duration, now time.Time) (string, time.Time, error) {
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	exp := now.Add(dur)
	b, err := json.Marshal(actorClaims{Sub: actor.UserID.String(), Role: actor.Role.String(), Exp: exp.Unix(), Iat: now.Unix(), Iss: tokenIssuer})
	if err != nil {
		return "", time.Time{}, err
	}
	unsigned := head + "." + base64.RawURLEncoding.EncodeToString(b)
	return unsigned + "." + tokenSignature(secret, unsigned), exp, nil
}

func tokenSignature(secret []byte, unsigned string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(unsigned))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func verifyActorToken(secret []byte, tok string, now time.Time) (domain.Actor, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return domain.Actor{}, errTokenFormat
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return domain.Actor{}, errTokenFormat
	}
	want, _ := base64.RawURLEncoding.DecodeString(tokenSignature(secret, parts[0]+"."+parts[1]))
	if !hmac.Equal(sig, want) {
		return domain.Actor{}, errTokenSignature
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return domain.Actor{}, errTokenFormat
	}
	var c actorClaims
	if err := json.Unmarshal(payload, &c); err != nil {
		return domain.Actor{}, errTokenFormat
	}
	id, err := uuid.Parse(c.Sub)
	if err != nil {
		return domain.Actor{}, errTokenClaims
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Actor{}, errTokenClaims
	}
	if now.Unix() > c.Exp {
		return domain.Actor{}, errTokenExpired
	}
	return domain.Actor{UserID: id, Role: role}, nil
}

type actorKey struct{}

func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the authenticated actor of the request context.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// authenticate rejects requests without a valid bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		tok, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || tok == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token", Code: "unauthorized"})
			return
		}
		actor, err := verifyActorToken(s.tokenSecret, strings.TrimSpace(tok), s.now())
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a, _ := ActorFrom(r.Context()); !a.IsAdmin() {
			writeError(w, r, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
