package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDotenvStorage_Load(t *testing.T) {
	path := writeEnv(t, `TOKEN=legacy
ACCESS_TOKEN=A1
REFRESH_TOKEN=R1
CLIENT_ID=23ABCD
CLIENT_SECRET=s3cret
CALLBACK_URL=http://localhost:8080/callback
REFRESH_TOKEN_URL=https://api.fitbit.com/oauth2/token
`)

	c, err := NewDotenvStorage(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ClientID:     "23ABCD",
		ClientSecret: "s3cret",
		TokenURL:     "https://api.fitbit.com/oauth2/token",
		CallbackURL:  "http://localhost:8080/callback",
	}, c)
}

func TestDotenvStorage_LoadFallsBackToLegacyToken(t *testing.T) {
	path := writeEnv(t, "TOKEN=legacy\nREFRESH_TOKEN=R1\n")

	c, err := NewDotenvStorage(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "legacy", c.AccessToken)
}

func TestDotenvStorage_LoadMissingFile(t *testing.T) {
	_, err := NewDotenvStorage(filepath.Join(t.TempDir(), "nope.env")).Load(context.Background())
	assert.Error(t, err)
}

func TestDotenvStorage_SaveReplacesPairOnly(t *testing.T) {
	path := writeEnv(t, "ACCESS_TOKEN=A1\nREFRESH_TOKEN=R1\nCLIENT_ID=23ABCD\nCLIENT_SECRET=s3cret\n")
	st := NewDotenvStorage(path)

	require.NoError(t, st.Save(context.Background(), Credentials{AccessToken: "A2", RefreshToken: "R2", ClientID: "ignored"}))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		KeyAccessToken:  "A2",
		KeyRefreshToken: "R2",
		KeyClientID:     "23ABCD",
		KeyClientSecret: "s3cret",
	}, env)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDotenvStorage_SaveCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, NewDotenvStorage(path).Save(context.Background(), Credentials{AccessToken: "A2", RefreshToken: "R2"}))

	c, err := NewDotenvStorage(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A2", c.AccessToken)
	assert.Equal(t, "R2", c.RefreshToken)
}

func TestDotenvStorage_SaveKeepsOtherLinesVerbatim(t *testing.T) {
	content := `# fitbit app
CLIENT_ID=0123456
CLIENT_SECRET='s3$cret!'
export ACCESS_TOKEN=A1
REFRESH_TOKEN=R1
CALLBACK_URL=http://localhost:8080/callback
`
	path := writeEnv(t, content)
	st := NewDotenvStorage(path)

	before, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0123456", before.ClientID)
	require.Equal(t, "s3$cret!", before.ClientSecret)

	require.NoError(t, st.Save(context.Background(), Credentials{AccessToken: "A2", RefreshToken: "R2"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `# fitbit app
CLIENT_ID=0123456
CLIENT_SECRET='s3$cret!'
ACCESS_TOKEN='A2'
REFRESH_TOKEN='R2'
CALLBACK_URL=http://localhost:8080/callback
`, string(raw))

	after, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0123456", after.ClientID)
	assert.Equal(t, "s3$cret!", after.ClientSecret)
	assert.Equal(t, "A2", after.AccessToken)
	assert.Equal(t, "R2", after.RefreshToken)
}

func TestDotenvStorage_SaveAppendsMissingKeys(t *testing.T) {
	path := writeEnv(t, "CLIENT_ID=0042")

	require.NoError(t, NewDotenvStorage(path).Save(context.Background(), Credentials{AccessToken: "A2", RefreshToken: "R2"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CLIENT_ID=0042\nACCESS_TOKEN='A2'\nREFRESH_TOKEN='R2'\n", string(raw))
}

func TestDotenvStorage_SaveRejectsUnquotableValue(t *testing.T) {
	path := writeEnv(t, "ACCESS_TOKEN=A1\nREFRESH_TOKEN=R1\n")

	err := NewDotenvStorage(path).Save(context.Background(), Credentials{AccessToken: "it's", RefreshToken: "R2"})
	require.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ACCESS_TOKEN=A1\nREFRESH_TOKEN=R1\n", string(raw))
}
