package cloudinit

import (
	"bytes"
	"io"
	"testing"

	"github.com/kdomanski/iso9660"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSeedISO(t *testing.T) {
	doc, err := Synthesize(identityGlobal(), pihole1())
	require.NoError(t, err)
	meta, err := GenerateMetaData(pihole1())
	require.NoError(t, err)

	isoBytes, err := GenerateSeedISO(doc, meta)
	require.NoError(t, err)
	require.NotEmpty(t, isoBytes)

	img, err := iso9660.OpenImage(bytes.NewReader(isoBytes))
	require.NoError(t, err)

	label, err := img.Label()
	require.NoError(t, err)
	assert.Equal(t, "CIDATA", label)

	root, err := img.RootDir()
	require.NoError(t, err)
	children, err := root.GetChildren()
	require.NoError(t, err)
	require.Len(t, children, 2)

	want := map[string][]byte{
		"user-data": doc.Content,
		"meta-data": meta,
	}
	for _, child := range children {
		expected, ok := want[child.Name()]
		require.True(t, ok, "unexpected file %q in ISO", child.Name())

		content, err := io.ReadAll(child.Reader())
		require.NoError(t, err)
		assert.Equal(t, expected, content, "content mismatch for %s", child.Name())
	}
}

func TestGenerateSeedISO_Errors(t *testing.T) {
	_, err := GenerateSeedISO(nil, []byte("instance-id: x\n"))
	assert.EqualError(t, err, "cloud-init document cannot be nil")

	_, err = GenerateSeedISO(&Document{Instance: "x", Content: []byte(Header)}, nil)
	assert.EqualError(t, err, "instance x: meta-data cannot be empty")
}
