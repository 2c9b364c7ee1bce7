package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strconv"

	"github.com/kevinburke/ssh_config"
	"github.com/pkg/sftp"
	"github.com/semmidev/kibotos/internal/config"
	"github.com/semmidev/kibotos/internal/domain"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPTransport uploads files over an SSH session using the caller's
// ambient credentials: ssh-agent first, then identity files. Host aliases
// are resolved through ~/.ssh/config like the ssh command would.
type SFTPTransport struct {
	conn      *ssh.Client
	client    *sftp.Client
	remoteDir string
}

func NewSFTP(cfg *config.DestinationConfig) (*SFTPTransport, error) {
	ep := resolveEndpoint(cfg.Host, nil)
	if cfg.Port != 0 && cfg.Port != 22 {
		ep.Port = strconv.Itoa(cfg.Port)
	}
	if cfg.User != "" {
		ep.User = cfg.User
	}
	if ep.User == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("failed to determine ssh user: %w", err)
		}
		ep.User = u.Username
	}
	if cfg.IdentityFile != "" {
		ep.IdentityFile = cfg.IdentityFile
	}

	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	auth := authMethods(ep.IdentityFile)
	if len(auth) == 0 {
		return nil, fmt.Errorf("no usable ssh credentials: no agent and no readable identity file")
	}

	conn, err := ssh.Dial("tcp", net.JoinHostPort(ep.Host, ep.Port), &ssh.ClientConfig{
		User:            ep.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ep.Host, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open sftp session: %w", err)
	}

	remoteDir := cfg.RemoteDir
	if remoteDir == "" {
		remoteDir = config.DefaultRemoteDir
	}

	return &SFTPTransport{
		conn:      conn,
		client:    client,
		remoteDir: remoteDir,
	}, nil
}

// Upload streams localPath to remoteDir/basename(localPath). A nil error
// means the full byte count was written remotely.
func (t *SFTPTransport) Upload(ctx context.Context, localPath string, progress domain.ProgressFunc) error {
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer local.Close()

	info, err := local.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}
	total := info.Size()

	remotePath := path.Join(t.remoteDir, filepath.Base(localPath))
	remote, err := t.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}

	buf := make([]byte, 128*1024)
	var transferred int64
	for {
		if err := ctx.Err(); err != nil {
			remote.Close()
			return err
		}

		n, rerr := local.Read(buf)
		if n > 0 {
			wn, werr := remote.Write(buf[:n])
			transferred += int64(wn)
			if progress != nil {
				progress(transferred, total)
			}
			if werr != nil {
				remote.Close()
				return fmt.Errorf("remote write failed: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			remote.Close()
			return fmt.Errorf("local read failed: %w", rerr)
		}
	}

	if err := remote.Close(); err != nil {
		return fmt.Errorf("failed to finalize remote file: %w", err)
	}
	if transferred != total {
		return fmt.Errorf("short transfer: wrote %d of %d bytes", transferred, total)
	}
	return nil
}

func (t *SFTPTransport) Close() error {
	cerr := t.client.Close()
	if err := t.conn.Close(); err != nil {
		return err
	}
	return cerr
}

type endpoint struct {
	Host         string
	Port         string
	User         string
	IdentityFile string
}

// resolveEndpoint expands an ssh_config host alias. A nil sshCfg consults
// the user's real ~/.ssh/config; tests pass a decoded config instead.
func resolveEndpoint(alias string, sshCfg *ssh_config.Config) endpoint {
	get := func(key string) string {
		if sshCfg == nil {
			return ssh_config.Get(alias, key)
		}
		v, _ := sshCfg.Get(alias, key)
		return v
	}

	ep := endpoint{Host: alias, Port: "22"}
	if h := get("HostName"); h != "" {
		ep.Host = h
	}
	if p := get("Port"); p != "" {
		ep.Port = p
	}
	ep.User = get("User")
	if f := get("IdentityFile"); f != "" && f != ssh_config.Default("IdentityFile") {
		ep.IdentityFile = f
	}
	return ep
}

// hostKeyCallback verifies against known_hosts by default. Trusting unknown
// hosts is the explicit insecure_ignore_host_key opt-in, kept for personal
// backup targets.
func hostKeyCallback(cfg *config.DestinationConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khPath := cfg.KnownHostsFile
	if khPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate known_hosts: %w", err)
		}
		khPath = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(khPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts (set destination.insecure_ignore_host_key to trust unknown hosts): %w", err)
	}
	return cb, nil
}

func authMethods(identityFile string) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	for _, p := range identityCandidates(identityFile) {
		key, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			continue
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	return methods
}

func identityCandidates(identityFile string) []string {
	home, err := os.UserHomeDir()
	if identityFile != "" {
		if err == nil && len(identityFile) > 1 && identityFile[:2] == "~/" {
			identityFile = filepath.Join(home, identityFile[2:])
		}
		return []string{identityFile}
	}
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}
