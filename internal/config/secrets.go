package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Secrets is the key material embedded into guests by the extended variant.
type Secrets struct {
	PrivateKey     []byte
	PublicKey      []byte
	VaultPassword  []byte
	PrivateKeyName string // file name used in the guest, e.g. "id_ed25519"
}

// HasVaultPassword reports whether a vault password was loaded.
func (s *Secrets) HasVaultPassword() bool {
	return s != nil && len(s.VaultPassword) > 0
}

// LoadSecrets reads the SSH key pair and vault password referenced by g.
//
// A missing vault password file is only an error when vaultExplicit is set;
// the default ".vault_pass" is optional.
func LoadSecrets(g *GlobalConfig, vaultExplicit bool) (*Secrets, error) {
	privateKey, err := os.ReadFile(g.SSHKey)
	if err != nil {
		return nil, fmt.Errorf("ssh_key: %w", err)
	}
	if _, err := ssh.ParseRawPrivateKey(privateKey); err != nil {
		var passErr *ssh.PassphraseMissingError
		if !errors.As(err, &passErr) {
			return nil, fmt.Errorf("ssh_key %s is not a valid private key: %w", g.SSHKey, err)
		}
	}

	publicKey, err := os.ReadFile(g.SSHKeyPub)
	if err != nil {
		return nil, fmt.Errorf("ssh_key_pub: %w", err)
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey(publicKey); err != nil {
		return nil, fmt.Errorf("ssh_key_pub %s is not a valid SSH public key: %w", g.SSHKeyPub, err)
	}

	secrets := &Secrets{
		PrivateKey:     privateKey,
		PublicKey:      []byte(strings.TrimSpace(string(publicKey))),
		PrivateKeyName: filepath.Base(g.SSHKey),
	}

	if g.VaultPasswordFile != "" {
		vault, err := os.ReadFile(g.VaultPasswordFile)
		switch {
		case err == nil:
			secrets.VaultPassword = vault
		case errors.Is(err, fs.ErrNotExist) && !vaultExplicit:
		default:
			return nil, fmt.Errorf("vault_password_file: %w", err)
		}
	}

	return secrets, nil
}
