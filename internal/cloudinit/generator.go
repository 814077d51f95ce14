// Package cloudinit renders the per-instance cloud-config document handed to
// "multipass launch --cloud-init".
//
// Synthesis performs no I/O: the controller decides where the document is
// written and when it is removed.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/modules.html
package cloudinit

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/langburd/ubuntu-multipass-deployment/internal/config"
	"github.com/langburd/ubuntu-multipass-deployment/internal/naming"
)

const (
	// Header must be the first line of a cloud-config user-data document.
	Header = "#cloud-config\n"

	// NetplanPath is where the static network definition is written.
	NetplanPath = "/etc/netplan/99-mpdeploy-static.yaml"

	// AnsibleLogPath receives the output of the bootstrap playbook.
	AnsibleLogPath = "/var/log/mpdeploy-ansible.log"

	guestUser      = "ubuntu"
	guestHome      = "/home/" + guestUser
	guestSSHDir    = guestHome + "/.ssh"
	guestVaultPath = guestHome + "/.vault_pass"
	secretMode     = "0600"
)

// BasePackages are installed on every instance.
var BasePackages = []string{"net-tools", "ca-certificates", "curl"}

// ExtendedPackages are added when the secret bundle variant is configured.
var ExtendedPackages = []string{"git", "ansible"}

// UserData is the cloud-config document. Field order is the rendered order.
type UserData struct {
	Hostname          string      `yaml:"hostname"`
	PackageUpdate     bool        `yaml:"package_update"`
	PackageUpgrade    bool        `yaml:"package_upgrade"`
	Packages          []string    `yaml:"packages"`
	SSHImportID       []string    `yaml:"ssh_import_id,omitempty"`
	SSHAuthorizedKeys []string    `yaml:"ssh_authorized_keys,omitempty"`
	WriteFiles        []WriteFile `yaml:"write_files"`
	RunCmd            []string    `yaml:"runcmd"`
}

// WriteFile is one entry of the write_files module.
type WriteFile struct {
	Path        string `yaml:"path"`
	Owner       string `yaml:"owner"`
	Permissions string `yaml:"permissions"`
	Encoding    string `yaml:"encoding,omitempty"`
	Content     string `yaml:"content"`
	Defer       bool   `yaml:"defer,omitempty"` // apply in the final boot stage, after users exist
}

// MetaData is the NoCloud meta-data document used for seed ISOs.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// Document is a rendered cloud-config for one instance.
type Document struct {
	Instance string
	FileName string
	Content  []byte
}

// Synthesize renders the cloud-config document for spec.
func Synthesize(g *config.GlobalConfig, spec config.InstanceSpec) (*Document, error) {
	userData, err := BuildUserData(g, spec)
	if err != nil {
		return nil, err
	}

	content, err := userData.Render()
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", spec.Name, err)
	}

	return &Document{
		Instance: spec.Name,
		FileName: naming.CloudInitFileName(spec.Name),
		Content:  content,
	}, nil
}

// BuildUserData assembles the structured document for spec without rendering it.
func BuildUserData(g *config.GlobalConfig, spec config.InstanceSpec) (*UserData, error) {
	if g == nil {
		return nil, fmt.Errorf("global configuration cannot be nil")
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("instance name is required")
	}

	netplan, err := RenderNetplan(NetplanFromSpec(g, spec))
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", spec.Name, err)
	}

	ud := &UserData{
		Hostname:       spec.Name,
		PackageUpdate:  true,
		PackageUpgrade: true,
		Packages:       append([]string(nil), BasePackages...),
		WriteFiles: []WriteFile{
			{
				Path:        NetplanPath,
				Owner:       "root:root",
				Permissions: secretMode,
				Content:     netplan,
			},
		},
		RunCmd: []string{"netplan apply"},
	}

	if !g.Extended() {
		if ref := g.IdentityRef(); ref != "" {
			ud.SSHImportID = []string{ref}
		}
		return ud, nil
	}

	if g.Secrets == nil {
		return nil, fmt.Errorf("instance %s: secret material has not been loaded", spec.Name)
	}

	ud.Packages = append(ud.Packages, ExtendedPackages...)
	ud.SSHAuthorizedKeys = []string{strings.TrimSpace(string(g.Secrets.PublicKey))}
	ud.WriteFiles = append(ud.WriteFiles, secretFiles(g.Secrets)...)
	ud.RunCmd = append(ud.RunCmd, bootstrapCommands(g)...)

	return ud, nil
}

// Render serializes the document with the cloud-config header.
func (ud *UserData) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ud); err != nil {
		return nil, fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// GenerateMetaData renders NoCloud meta-data for spec. The instance-id is the
// instance name, so a recreated instance is treated as a first boot.
func GenerateMetaData(spec config.InstanceSpec) ([]byte, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("instance name is required")
	}

	out, err := yaml.Marshal(&MetaData{
		InstanceID:    spec.Name,
		LocalHostname: spec.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}

	return out, nil
}

func secretFiles(s *config.Secrets) []WriteFile {
	keyPath := guestSSHDir + "/" + s.PrivateKeyName

	files := []WriteFile{
		encodedFile(keyPath, s.PrivateKey),
		encodedFile(keyPath+".pub", s.PublicKey),
	}
	if s.HasVaultPassword() {
		files = append(files, encodedFile(guestVaultPath, s.VaultPassword))
	}

	return files
}

func encodedFile(path string, content []byte) WriteFile {
	return WriteFile{
		Path:        path,
		Owner:       guestUser + ":" + guestUser,
		Permissions: secretMode,
		Encoding:    "b64",
		Content:     base64.StdEncoding.EncodeToString(content),
		Defer:       true,
	}
}

func bootstrapCommands(g *config.GlobalConfig) []string {
	keyPath := guestSSHDir + "/" + g.Secrets.PrivateKeyName
	repoDir := guestHome + "/" + naming.RepositoryDir(g.GitRepository)

	playbook := "ansible-playbook -i localhost, -c local"
	if g.Secrets.HasVaultPassword() {
		playbook += " --vault-password-file " + guestVaultPath
	}
	playbook += " " + g.Playbook

	return []string{
		fmt.Sprintf("chown -R %s:%s %s", guestUser, guestUser, guestSSHDir),
		fmt.Sprintf("sudo -u %s sh -c 'ssh-keyscan -H %s >> %s/known_hosts'", guestUser, g.GitHost, guestSSHDir),
		fmt.Sprintf("sudo -u %s git -c core.sshCommand='ssh -i %s -o IdentitiesOnly=yes' clone %s %s",
			guestUser, keyPath, CloneURL(g.GitHost, g.GitRepository), repoDir),
		fmt.Sprintf("sh -c 'cd %s && sudo -u %s %s >> %s 2>&1'", repoDir, guestUser, playbook, AnsibleLogPath),
	}
}

// CloneURL returns the SSH clone URL of repo on host. Full URLs are returned
// unchanged.
func CloneURL(host, repo string) string {
	if strings.Contains(repo, "://") || strings.Contains(repo, "@") {
		return repo
	}
	if !strings.HasSuffix(repo, ".git") {
		repo += ".git"
	}
	return fmt.Sprintf("git@%s:%s", host, repo)
}
