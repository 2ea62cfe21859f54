// Package testhelpers provides utilities for testing snowflake-catalog components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"time"
)

// GenerateOAuthToken creates an unsigned OAuth access token (alg: none) that
// expires at expiresAt. Token expiry checks only parse claims, so no
// signature is needed.
func GenerateOAuthToken(subject string, expiresAt time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":%q,"exp":%d`, subject, expiresAt.Unix())
	payload += `,"scp":"session:role-any"}`

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}
