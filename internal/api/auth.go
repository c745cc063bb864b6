// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerKey = "owner_identity"

// OwnerIdentity reads an optional bearer token. A valid token's subject
// becomes the caller identity; requests without a token pass through
// anonymously and a bad token is rejected.
type OwnerIdentity struct {
	secret []byte
}

// NewOwnerIdentity returns nil when secret is empty, disabling the check.
func NewOwnerIdentity(secret string) *OwnerIdentity {
	if secret == "" {
		return nil
	}
	return &OwnerIdentity{secret: []byte(secret)}
}

// Subject validates token and returns its "sub" claim.
func (o *OwnerIdentity) Subject(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return o.secret, nil
	})
	if err != nil {
		return "", err
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func (o *OwnerIdentity) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization format")
			return
		}
		sub, err := o.Subject(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			}
			return
		}
		c.Set(ownerKey, sub)
		c.Next()
	}
}

// callerIdentity is the token subject of the request, or "".
func callerIdentity(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// resolveOwner picks the owner a request acts for. With identity enabled the
// token subject is the only owner a caller may act for: naming any other
// owner is forbidden, and so is naming one without a token. With identity
// disabled the requested owner is trusted as is. A false return means the
// request was aborted.
func (s *Server) resolveOwner(c *gin.Context, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if s.Identity == nil {
		return requested, true
	}
	sub := callerIdentity(c)
	if requested != "" && requested != sub {
		abortWithError(c, http.StatusForbidden, "FORBIDDEN", "ownerId does not match the authenticated caller")
		return "", false
	}
	return sub, true
}
