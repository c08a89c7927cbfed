package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncode(t *testing.T) {
	out, err := run(t, "encode", "G1", "X=10", "Y20.5", "F=3000", "--comment", "approach")
	require.NoError(t, err)
	assert.Equal(t, "G1 X10 Y20.5 F3000 ; approach\n", out)

	out, err = run(t, "encode", "g28", "X", "-v")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "G28 X", lines[0])
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "blocks_execution")

	_, err = run(t, "encode", "G5")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
name: good
components:
  "axis:X": {}
functions:
  park:
    operations:
      home:
        - component: "axis:X"
          action: home
`), 0o644))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
name: bad
components:
  "axis:X": {}
functions:
  park:
    operations:
      home:
        - component: "axis:Y"
          action: home
        - component: "axis:X"
          action: spin
`), 0o644))

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "good: valid (1 components, 1 functions")

	out, err = run(t, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, out, "bad: 2 problem(s)")
	assert.Contains(t, out, "STEP_002")
	assert.Contains(t, out, "STEP_003")

	_, err = run(t, "validate", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	t.Setenv("JWT_SECRET", secret)

	out, err := run(t, "token", "--subject", "bench", "--role", "admin")
	require.NoError(t, err)

	claims, err := auth.NewJWTHandler(secret, time.Minute).ValidateAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "bench", claims.Subject)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	_, err = run(t, "token", "--role", "root")
	assert.Error(t, err)
}
