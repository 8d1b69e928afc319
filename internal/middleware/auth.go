package middleware

import (
	"net/http"
	"strings"

	"clubpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey       = "claims"
	DeviceClaimsKey = "device_claims"

	// TokenTypeDevice marks device credentials. User tokens carry no typ.
	TokenTypeDevice = "device"
)

// JWTClaims are the custom claims embedded in every employee access token.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rol      string `json:"rol"`
	Typ      string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// DeviceClaims are carried by the long-lived credential issued to a paired
// terminal.
type DeviceClaims struct {
	DispositivoID string `json:"dispositivo_id"`
	Nombre        string `json:"nombre"`
	Tipo          string `json:"tipo"`
	EmpleadoID    string `json:"empleado_id,omitempty"`
	Typ           string `json:"typ"`
	jwt.RegisteredClaims
}

// ID returns the device id; the middleware has already validated it parses.
func (c *DeviceClaims) ID() uuid.UUID {
	id, _ := uuid.Parse(c.DispositivoID)
	return id
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

func parse(tokenStr, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// JWTAuth validates the Bearer token on every employee-protected route.
// Device credentials are rejected here.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		claims := &JWTClaims{}
		if err := parse(tokenStr, secret, claims); err != nil || claims.Typ != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// DeviceAuth validates a device credential. Employee tokens are rejected.
func DeviceAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion de dispositivo requerida"))
			return
		}

		claims := &DeviceClaims{}
		if err := parse(tokenStr, secret, claims); err != nil || claims.Typ != TokenTypeDevice {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Credencial de dispositivo invalida o expirada"))
			return
		}
		if _, err := uuid.Parse(claims.DispositivoID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Credencial de dispositivo invalida o expirada"))
			return
		}

		c.Set(DeviceClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok || !allowed[claims.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

// GetDeviceClaims returns the device claims set by DeviceAuth.
func GetDeviceClaims(c *gin.Context) *DeviceClaims {
	claims, _ := c.MustGet(DeviceClaimsKey).(*DeviceClaims)
	return claims
}
