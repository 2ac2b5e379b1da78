package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

// ErrInvalidToken is returned when a bearer token cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

func setCredentialDefaults() {
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
}

func deriveKey(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
}

// HashCredential derives an argon2id hash of secret with a random salt,
// encoded as "<salt>$<hash>".
func HashCredential(secret string) (string, error) {
	setCredentialDefaults()

	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := deriveKey(secret, salt)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

// VerifyCredential reports whether secret matches a HashCredential result.
func VerifyCredential(secret, hashed string) bool {
	setCredentialDefaults()

	parts := strings.Split(hashed, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(hash, deriveKey(secret, salt)) == 1
}

// TokenClaims are the claims carried by a kiosk session token.
type TokenClaims struct {
	Identity  string `json:"identity"`
	MachineID string `json:"machine_id"`
	jwt.RegisteredClaims
}

// TokenService issues and checks HS256 session tokens.
type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// TokenServiceFromConfig builds a TokenService from the jwt.* settings.
func TokenServiceFromConfig() (*TokenService, error) {
	viper.SetDefault("jwt.expiry_hours", 24)

	secret := viper.GetString("jwt.secret_key")
	if secret == "" {
		return nil, errors.New("jwt.secret_key is not set")
	}
	return NewTokenService(secret, time.Duration(viper.GetInt("jwt.expiry_hours"))*time.Hour), nil
}

// Expiry is how long an issued token stays valid.
func (s *TokenService) Expiry() time.Duration {
	return s.expiry
}

func (s *TokenService) Issue(identity, machineID string) (string, error) {
	now := s.now()
	claims := TokenClaims{
		Identity:  identity,
		MachineID: machineID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) Parse(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Identity == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidToken)
	}
	return claims, nil
}
