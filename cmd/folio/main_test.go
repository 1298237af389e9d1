package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/folio/internal/auth"
)

func TestReadPassword(t *testing.T) {
	pw, err := readPassword([]string{"from-arg"}, strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-arg", pw)

	pw, err = readPassword(nil, strings.NewReader("from-stdin\r\nrest"))
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", pw)

	_, err = readPassword(nil, strings.NewReader(""))
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	hashPasswordCmd.SetOut(&out)
	hashPasswordCmd.SetIn(strings.NewReader("s3cret\n"))
	require.NoError(t, hashPasswordCmd.RunE(hashPasswordCmd, nil))

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, auth.CheckPassword(hash, "s3cret"))
	assert.Error(t, auth.CheckPassword(hash, "other"))
}
