package snowflake

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/snowflakedb/gosnowflake"
)

// ErrTokenExpired is returned before dialing when an OAuth token is stale.
var ErrTokenExpired = errors.New("oauth token expired")

var authTypes = map[string]gosnowflake.AuthType{
	AuthSnowflake:       gosnowflake.AuthTypeSnowflake,
	AuthOAuth:           gosnowflake.AuthTypeOAuth,
	AuthExternalBrowser: gosnowflake.AuthTypeExternalBrowser,
	AuthKeyPair:         gosnowflake.AuthTypeJwt,
	AuthPasswordMFA:     gosnowflake.AuthTypeUsernamePasswordMFA,
}

// applyAuth sets the authenticator and the material it needs.
func (c *Credentials) applyAuth(cfg *gosnowflake.Config) error {
	authType, ok := authTypes[c.Authenticator]
	if !ok {
		return fmt.Errorf("unsupported authenticator %q", c.Authenticator)
	}
	cfg.Authenticator = authType

	switch c.Authenticator {
	case AuthKeyPair:
		key, err := loadPrivateKey(c.PrivateKeyPath)
		if err != nil {
			return err
		}
		cfg.PrivateKey = key
		cfg.Password = ""
	case AuthOAuth:
		cfg.Password = ""
	}
	return nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return key, nil
}

// CheckTokenExpiry rejects an OAuth access token whose exp claim is already
// in the past. Tokens that are not JWTs, or carry no exp, are left to the
// server. The signature is not verified; only Snowflake can do that.
func CheckTokenExpiry(token string, now time.Time) error {
	if token == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !exp.Time.After(now) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.UTC().Format(time.RFC3339))
	}
	return nil
}
