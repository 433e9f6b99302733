// Package craft implements the craft-file relay payload: a single-message,
// size-capped binary transfer of a saved vehicle design.
package craft

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"livefeed/internal/pkg/protocol"
)

// MaxFileBytes caps len(name)+len(data) for a shared craft. Oversized crafts
// are rejected locally and never transmitted.
const MaxFileBytes = 1 << 20

// Type identifies which editor a craft was built in, which decides the
// subdirectory it is saved under.
type Type byte

const (
	TypeVAB Type = iota
	TypeSPH
	TypeSubassembly
)

func (t Type) String() string {
	switch t {
	case TypeVAB:
		return "VAB"
	case TypeSPH:
		return "SPH"
	case TypeSubassembly:
		return "Subassembly"
	}
	return "unknown"
}

// ErrTooLarge indicates a craft exceeding MaxFileBytes.
var ErrTooLarge = errors.New("craft file exceeds size cap")

// File is one shared craft.
type File struct {
	Type Type
	Name string
	Data []byte
}

// Encode frames the craft as [type:1][nameLength:4][name][fileBytes]. It
// enforces the sender-side size cap.
func (f *File) Encode() ([]byte, error) {
	if len(f.Name)+len(f.Data) > MaxFileBytes {
		return nil, errors.Wrapf(ErrTooLarge, "%q is %d bytes", f.Name, len(f.Name)+len(f.Data))
	}
	buf := make([]byte, 0, 1+4+len(f.Name)+len(f.Data))
	buf = append(buf, byte(f.Type))
	buf = protocol.AppendString(buf, f.Name)
	return append(buf, f.Data...), nil
}

// Decode parses a framed craft. The trailing bytes after the name are the
// file body; there is no separate length field for it.
func (f *File) Decode(payload []byte) error {
	if len(payload) < 1 {
		return errors.New("craft payload is empty")
	}
	f.Type = Type(payload[0])
	name, rest, err := protocol.ReadString(payload[1:])
	if err != nil {
		return errors.Wrap(err, "read craft name failed")
	}
	f.Name = name
	f.Data = append([]byte(nil), rest...)
	if len(f.Name)+len(f.Data) > MaxFileBytes {
		return errors.Wrapf(ErrTooLarge, "%q is %d bytes", f.Name, len(f.Name)+len(f.Data))
	}
	return nil
}

// illegal characters stripped from craft names before they touch the
// filesystem. Covers path separators plus the Windows-reserved set.
const illegalNameChars = `/\:*?"<>|`

// FilterName strips path-hostile characters from a craft name. A name that
// filters down to nothing becomes "craft" rather than an empty filename.
func FilterName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(illegalNameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "craft"
	}
	return out
}

func (t Type) dir() string {
	switch t {
	case TypeSPH:
		return "SPH"
	case TypeSubassembly:
		return "Subassemblies"
	default:
		return "VAB"
	}
}

// SavePath derives the on-disk destination for a received craft from the
// current save title and the filtered craft name.
func (f *File) SavePath(saveTitle string) string {
	return filepath.Join("saves", FilterName(saveTitle), "Ships", f.Type.dir(), FilterName(f.Name)+".craft")
}

// WriteTo saves the craft under the given save title, creating directories
// as needed. Failure is reported to the user by the caller, never treated as
// fatal to the connection.
func (f *File) WriteTo(saveTitle string) (string, error) {
	path := f.SavePath(saveTitle)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "create craft directory failed")
	}
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", errors.Wrap(err, "write craft file failed")
	}
	return path, nil
}
