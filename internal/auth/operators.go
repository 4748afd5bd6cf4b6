package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for unknown operators and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Operator is an account allowed to call the API.
type Operator struct {
	Email        string
	PasswordHash string
	Role         string
}

// Authenticator checks operator credentials and issues tokens.
type Authenticator struct {
	operators map[string]Operator
	jwt       *JWTManager
}

// NewAuthenticator indexes operators by lower-cased email.
func NewAuthenticator(operators []Operator, jwtManager *JWTManager) *Authenticator {
	index := make(map[string]Operator, len(operators))
	for _, op := range operators {
		email := strings.ToLower(strings.TrimSpace(op.Email))
		if email == "" || op.PasswordHash == "" {
			continue
		}
		if op.Role == "" {
			op.Role = RoleOperator
		}
		op.Email = email
		index[email] = op
	}
	return &Authenticator{operators: index, jwt: jwtManager}
}

// Login validates credentials and returns a signed token.
func (a *Authenticator) Login(email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", errors.New("email and password must not be empty")
	}

	op, ok := a.operators[email]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return a.jwt.GenerateToken(op.Email, op.Role)
}

// HashPassword produces a bcrypt hash suitable for the operators config.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
