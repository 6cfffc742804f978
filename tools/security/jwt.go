package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	issuer     = "projecthub"
	defaultTTL = 2 * time.Hour
)

// Options 签名算法与有效期
type Options struct {
	Secret []byte        // HMAC 密钥，来自 PHUB_JWT_SECRET
	Alg    string        // HS256/HS384/HS512，默认 HS256
	TTL    time.Duration // 默认 2h
}

// Claims is what the auth middleware puts into the request context.
type Claims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrNoSubject    = errors.New("token without subject")
)

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: defaultTTL}
}

// Generate 签发登录 token：sub 是用户 id，role 是角色
func Generate(opts Options, userID, role string) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if userID == "" {
		return "", time.Time{}, ErrNoSubject
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := time.Now()
	exp := now.Add(ttl)

	signed, err := jwtlib.NewWithClaims(method, tokenClaims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func Verify(opts Options, token string) (*Claims, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	var tc tokenClaims
	_, err = jwtlib.ParseWithClaims(token, &tc, func(*jwtlib.Token) (interface{}, error) {
		return opts.Secret, nil
	},
		jwtlib.WithValidMethods([]string{method.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	if tc.Subject == "" {
		return nil, ErrNoSubject
	}
	return &Claims{UserID: tc.Subject, Role: tc.Role, ExpiresAt: tc.ExpiresAt.Time}, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
