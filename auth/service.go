package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidKey signals a malformed or mismatched API key.
	ErrInvalidKey = errors.New("auth: invalid api key")
)

// Repository defines the data access required by the service.
type Repository interface {
	CreateKey(ctx context.Context, key APIKey) error
	GetKeyByID(ctx context.Context, id string) (APIKey, error)
}

// Service handles API key issuance and caller token verification.
type Service struct {
	repo      Repository
	jwtSecret []byte
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
	}
}

// IssueKey registers a caller and returns the full API key material, which is
// shown exactly once. Keys have the form "<id>.<secret>"; only the bcrypt
// hash of the secret is persisted.
func (s *Service) IssueKey(ctx context.Context, req IssueKeyRequest) (string, APIKey, error) {
	if req.OwnerName == "" || req.Wallet == "" {
		return "", APIKey{}, fmt.Errorf("auth: owner_name and wallet are required")
	}
	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleHirer
	}
	if !isValidRole(role) {
		return "", APIKey{}, fmt.Errorf("auth: invalid role %q", role)
	}

	secret := uuid.NewString()
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", APIKey{}, fmt.Errorf("auth: hash secret: %w", err)
	}

	key := APIKey{
		ID:         uuid.NewString(),
		OwnerName:  req.OwnerName,
		Wallet:     req.Wallet,
		Role:       role,
		SecretHash: string(secretHash),
	}
	if err := s.repo.CreateKey(ctx, key); err != nil {
		return "", APIKey{}, err
	}

	return key.ID + "." + secret, key, nil
}

// Authenticate verifies a full API key and returns the caller identity plus a
// signed JWT for subsequent requests.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (Identity, string, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok || id == "" || secret == "" {
		return Identity{}, "", ErrInvalidKey
	}

	key, err := s.repo.GetKeyByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Identity{}, "", ErrInvalidKey
		}
		return Identity{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return Identity{}, "", ErrInvalidKey
	}

	identity := Identity{Wallet: key.Wallet, Role: key.Role}
	token, err := s.generateToken(identity)
	if err != nil {
		return Identity{}, "", fmt.Errorf("auth: generate token: %w", err)
	}
	return identity, token, nil
}

// VerifyToken validates a JWT token and returns the caller identity.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("auth: parse token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		wallet, ok := claims["wallet"].(string)
		if !ok || wallet == "" {
			return Identity{}, fmt.Errorf("auth: invalid wallet in token")
		}
		roleStr, ok := claims["role"].(string)
		if !ok {
			return Identity{}, fmt.Errorf("auth: invalid role in token")
		}
		role := Role(roleStr)
		if !isValidRole(role) {
			return Identity{}, fmt.Errorf("auth: invalid role %q in token", roleStr)
		}
		return Identity{Wallet: wallet, Role: role}, nil
	}

	return Identity{}, fmt.Errorf("auth: invalid token")
}

// generateToken creates a JWT token for the identity.
func (s *Service) generateToken(identity Identity) (string, error) {
	claims := jwt.MapClaims{
		"wallet": identity.Wallet,
		"role":   identity.Role,
		"exp":    time.Now().Add(24 * time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func isValidRole(role Role) bool {
	switch role {
	case RoleHirer, RoleAgent, RoleOperator:
		return true
	default:
		return false
	}
}
