// Package auth gates access to the snapdb REPL with a single bcrypt-hashed
// operator credential. It is deliberately not a multi-user privilege
// catalog: internal/mvcc has no table or user model, so there is nothing
// for per-table privileges to attach to (see DESIGN.md).
package auth

import (
	"errors"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPassword is returned when the supplied password does not match
// the stored hash.
var ErrInvalidPassword = errors.New("invalid password")

const bcryptCost = 12

// Credential is the on-disk shape of a REPL operator credential file.
type Credential struct {
	Operator struct {
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"operator"`
}

// Gate authenticates a single operator against a bcrypt hash loaded from a
// credential file.
type Gate struct {
	passwordHash string
}

// NewGate loads a Gate from a YAML credential file written by
// WriteCredentialFile.
func NewGate(path string) (*Gate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := yaml.Unmarshal(data, &cred); err != nil {
		return nil, err
	}
	return &Gate{passwordHash: cred.Operator.PasswordHash}, nil
}

// Authenticate verifies password against the gate's stored hash.
func (g *Gate) Authenticate(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(g.passwordHash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// HashPassword returns a bcrypt hash of password suitable for storing in a
// credential file's operator.password_hash field.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// WriteCredentialFile writes a credential file for password at path.
func WriteCredentialFile(path, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	var cred Credential
	cred.Operator.PasswordHash = hash
	data, err := yaml.Marshal(&cred)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
