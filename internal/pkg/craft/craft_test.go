package craft

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	in := File{
		Type: TypeSPH,
		Name: "Shuttle Mk2",
		Data: []byte("ship = Shuttle Mk2\nversion = 1.0\n"),
	}
	encoded, err := in.Encode()
	require.NoError(t, err)
	require.Equal(t, byte(TypeSPH), encoded[0])

	var out File
	require.NoError(t, out.Decode(encoded))
	require.Equal(t, in, out)
}

func TestEncodeRejectsOversized(t *testing.T) {
	f := File{
		Type: TypeVAB,
		Name: "heavy",
		Data: make([]byte, MaxFileBytes),
	}
	_, err := f.Encode()
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeEmptyAndTruncated(t *testing.T) {
	var f File
	require.Error(t, f.Decode(nil))
	require.Error(t, f.Decode([]byte{byte(TypeVAB), 0xff, 0xff, 0xff}))
}

func TestFilterName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Kerbal X", "Kerbal X"},
		{`..\..\evil`, "....evil"},
		{"a/b:c*d?e", "abcde"},
		{`<pod>|"one"`, "podone"},
		{`///`, "craft"},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FilterName(tc.in), "input %q", tc.in)
	}
}

func TestSavePathByType(t *testing.T) {
	f := File{Type: TypeVAB, Name: "Kerbal X"}
	require.Equal(t, filepath.Join("saves", "default", "Ships", "VAB", "Kerbal X.craft"), f.SavePath("default"))

	f.Type = TypeSPH
	require.Equal(t, filepath.Join("saves", "default", "Ships", "SPH", "Kerbal X.craft"), f.SavePath("default"))

	f.Type = TypeSubassembly
	require.Equal(t, filepath.Join("saves", "default", "Ships", "Subassemblies", "Kerbal X.craft"), f.SavePath("default"))
}

func TestWriteTo(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	f := File{Type: TypeVAB, Name: "Lander Can", Data: []byte("part = landerCan")}
	path, err := f.WriteTo("career one")
	require.NoError(t, err)
	require.FileExists(t, path)
}
