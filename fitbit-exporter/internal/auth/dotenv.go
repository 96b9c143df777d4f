package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/gitbit/gitbit/pkg/utils"
)

// DotenvStorage keeps credentials in a KEY=value env file.
type DotenvStorage struct {
	mu   sync.Mutex
	path string
}

// NewDotenvStorage returns a storage backed by the env file at path.
func NewDotenvStorage(path string) *DotenvStorage {
	return &DotenvStorage{path: path}
}

// Path returns the env file location.
func (d *DotenvStorage) Path() string { return d.path }

// Load reads the env file. ACCESS_TOKEN wins over the legacy TOKEN key.
func (d *DotenvStorage) Load(context.Context) (Credentials, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	env, err := godotenv.Read(d.path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read %s: %w", d.path, err)
	}
	access := env[KeyAccessToken]
	if access == "" {
		access = env[KeyLegacyToken]
	}
	return Credentials{
		AccessToken:  access,
		RefreshToken: env[KeyRefreshToken],
		ClientID:     env[KeyClientID],
		ClientSecret: env[KeyClientSecret],
		TokenURL:     env[KeyRefreshTokenURL],
		CallbackURL:  env[KeyCallbackURL],
	}, nil
}

// Save rewrites the ACCESS_TOKEN and REFRESH_TOKEN lines of the env file in
// place. Every other line, comments included, is kept byte for byte; missing
// token keys are appended. The file is replaced atomically via rename so both
// tokens land together.
func (d *DotenvStorage) Save(_ context.Context, c Credentials) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := os.ReadFile(d.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", d.path, err)
	}

	pending := []struct{ key, value string }{
		{KeyAccessToken, c.AccessToken},
		{KeyRefreshToken, c.RefreshToken},
	}
	set := make(map[string]string, len(pending))
	for _, p := range pending {
		line, err := envLine(p.key, p.value)
		if err != nil {
			return err
		}
		set[p.key] = line
	}

	text := strings.TrimSuffix(string(raw), "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	seen := make(map[string]bool, len(pending))
	for i, line := range lines {
		key := lineKey(line)
		if repl, ok := set[key]; ok {
			lines[i] = repl
			seen[key] = true
		}
	}
	for _, p := range pending {
		if !seen[p.key] {
			lines = append(lines, set[p.key])
		}
	}

	return utils.WriteFileAtomic(d.path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

// lineKey returns the key assigned on an env line, or "" for comments and blanks.
func lineKey(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return ""
	}
	s = strings.TrimPrefix(s, "export ")
	key, _, ok := strings.Cut(s, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(key)
}

// envLine single-quotes the value so godotenv reads it back literally, with no
// variable expansion or numeric reformatting.
func envLine(key, value string) (string, error) {
	if strings.ContainsAny(value, "'\n\r") {
		return "", fmt.Errorf("%s: value cannot be stored in an env file", key)
	}
	return key + "='" + value + "'", nil
}
