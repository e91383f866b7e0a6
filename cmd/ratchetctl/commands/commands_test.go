package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	doubleratchet "github.com/stalker-loki/heraldratchet"
)

const sharedHex = "eb8b51d2ab1aa4b6a5b38a0fb4fa7de91ae6b84b0f0c4ba8ca1d87bd8c3a6f15"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root, e := newRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := run(root, e)
	return strings.TrimSpace(out.String()), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()

	out, err := execute(t, args...)
	require.NoError(t, err)
	return out
}

// writeConfig writes a configuration for one party using its own database.
func writeConfig(t *testing.T, dir, backend, name string) string {
	t.Helper()

	f := filepath.Join(dir, name+".toml")
	body := fmt.Sprintf(`
[Logging]
  Disable = true

[Storage]
  Backend = %q
  Path = %q

[Metrics]
  Textfile = %q
`, backend, filepath.Join(dir, name+".db"), filepath.Join(dir, name+".prom"))
	require.NoError(t, os.WriteFile(f, []byte(body), 0600))
	return f
}

// field returns the value printed after "name: ".
func field(t *testing.T, out, name string) string {
	t.Helper()

	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+": "); ok {
			return v
		}
	}
	require.Failf(t, "missing field", "%q not in %q", name, out)
	return ""
}

func TestKeygen(t *testing.T) {
	// Act.
	out := mustExecute(t, "keygen")

	// Assert.
	priv, err := parseKey("private", field(t, out, "private"))
	require.NoError(t, err)
	pub, err := parseKey("public", field(t, out, "public"))
	require.NoError(t, err)

	pair, err := keyPairFromPrivate(priv)
	require.NoError(t, err)
	require.Equal(t, pub, pair.PublicKey())
}

func TestConversation(t *testing.T) {
	for _, backend := range []string{"bolt", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			// Arrange.
			dir := t.TempDir()
			aliceCfg := writeConfig(t, dir, backend, "alice")
			bobCfg := writeConfig(t, dir, backend, "bob")

			bobKeys := mustExecute(t, "keygen")
			out := mustExecute(t, "-c", aliceCfg, "init", "alice", "chat",
				"--shared", sharedHex, "--their", field(t, bobKeys, "public"))
			alicePub := field(t, out, "public")
			mustExecute(t, "-c", bobCfg, "init", "bob", "chat",
				"--shared", sharedHex, "--private", field(t, bobKeys, "private"), "--their", alicePub)

			// Act.
			_, errEarly := execute(t, "-c", bobCfg, "encrypt", "chat", "too early")
			m1 := mustExecute(t, "-c", aliceCfg, "encrypt", "--ad", "chat", "chat", "hi bob")
			m2 := mustExecute(t, "-c", aliceCfg, "encrypt", "--ad", "chat", "chat", "are you there?")
			pt2 := mustExecute(t, "-c", bobCfg, "decrypt", "--ad", "chat", "chat", m2)
			pt1 := mustExecute(t, "-c", bobCfg, "decrypt", "--ad", "chat", "chat", m1)
			reply := mustExecute(t, "-c", bobCfg, "encrypt", "--ad", "chat", "chat", "hi alice")
			ptReply := mustExecute(t, "-c", aliceCfg, "decrypt", "--ad", "chat", "chat", reply)

			// Assert.
			require.ErrorIs(t, errEarly, doubleratchet.ErrCannotSendYet)
			require.Equal(t, "hi bob", pt1)
			require.Equal(t, "are you there?", pt2)
			require.Equal(t, "hi alice", ptReply)

			metrics, err := os.ReadFile(filepath.Join(dir, "bob.prom"))
			require.NoError(t, err)
			require.Contains(t, string(metrics), "doubleratchet_")
		})
	}
}

func TestDecryptFailures(t *testing.T) {
	// Arrange.
	dir := t.TempDir()
	aliceCfg := writeConfig(t, dir, "bolt", "alice")
	bobCfg := writeConfig(t, dir, "bolt", "bob")

	bobKeys := mustExecute(t, "keygen")
	out := mustExecute(t, "-c", aliceCfg, "init", "alice", "chat",
		"--shared", sharedHex, "--their", field(t, bobKeys, "public"))
	mustExecute(t, "-c", bobCfg, "init", "bob", "chat",
		"--shared", sharedHex, "--private", field(t, bobKeys, "private"), "--their", field(t, out, "public"))
	m := mustExecute(t, "-c", aliceCfg, "encrypt", "--ad", "right", "chat", "secret")

	// Act.
	_, errAD := execute(t, "-c", bobCfg, "decrypt", "--ad", "wrong", "chat", m)
	_, errB64 := execute(t, "-c", bobCfg, "decrypt", "chat", "not base64!")
	_, errShort := execute(t, "-c", bobCfg, "decrypt", "chat", "AAAA")
	_, errSession := execute(t, "-c", bobCfg, "decrypt", "--ad", "right", "other", m)
	pt, errOK := execute(t, "-c", bobCfg, "decrypt", "--ad", "right", "chat", m)

	// Assert.
	require.ErrorIs(t, errAD, doubleratchet.ErrDecryptFailure)
	require.Error(t, errB64)
	require.Error(t, errShort)
	require.ErrorContains(t, errSession, `no session "other"`)
	require.NoError(t, errOK, "a failed decrypt must not advance the stored session")
	require.Equal(t, "secret", pt)
}

func TestInitValidatesKeys(t *testing.T) {
	// Arrange.
	cfg := writeConfig(t, t.TempDir(), "memory", "alice")

	// Act.
	_, errShared := execute(t, "-c", cfg, "init", "alice", "chat", "--shared", "abcd", "--their", sharedHex)
	_, errMissing := execute(t, "-c", cfg, "init", "bob", "chat", "--shared", sharedHex, "--their", sharedHex)

	// Assert.
	require.ErrorContains(t, errShared, "--shared must be 32 hex encoded bytes")
	require.Error(t, errMissing)
}

func TestInvalidConfig(t *testing.T) {
	// Arrange.
	f := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(f, []byte("[Storage]\n  Backend = \"tape\"\n"), 0600))

	// Act.
	_, err := execute(t, "-c", f, "encrypt", "chat", "hello")

	// Assert.
	require.ErrorContains(t, err, "Backend 'tape' is invalid")
}
