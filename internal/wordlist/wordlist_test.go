package wordlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledDefault(t *testing.T) {
	l, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, l.words)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	assert.Error(t, err)
}

func TestLoadSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo\n\nbar\n   \nbaz\n"), 0o644))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar", "baz"}, l.words)
}

func TestLoadEmptyFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFragmentReturnsListMember(t *testing.T) {
	l := &List{words: []string{"only-one"}}
	assert.Equal(t, "only-one", l.Fragment())
}

func TestPeerIDFormat(t *testing.T) {
	l := &List{words: []string{"alpha"}}
	id, err := PeerID(l)
	require.NoError(t, err)

	hostname, err := os.Hostname()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, hostname+"/"))
	assert.Equal(t, hostname+"/alpha", id)
}
