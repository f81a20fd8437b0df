// Package bundle reads and writes game asset containers.
//
// A container holds typed objects (Texture2D, Font, Mesh and anything else
// the game ships) as independently compressed payload blocks behind a small
// directory. Callers work on an in-memory Environment: enumerate objects,
// decode the ones they care about, mutate them and Serialize the whole
// container back to bytes. Objects that were not touched are written back
// byte-for-byte.
package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Object type names as they appear in the container directory.
const (
	TypeTexture2D = "Texture2D"
	TypeFont      = "Font"
	TypeMesh      = "Mesh"
	TypeTextAsset = "TextAsset"
)

var magic = [8]byte{'A', 'S', 'B', 'U', 'N', 'D', 'L', 'E'}

const layoutRevision uint16 = 1

// ErrCorrupt is returned when a payload block does not match its digest
// or the container framing is truncated.
var ErrCorrupt = errors.New("bundle: corrupt container")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bundle: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("bundle: cbor decoder: " + err.Error())
	}
}

type dirEntry struct {
	PathID      int64       `cbor:"1,keyasint"`
	Type        string      `cbor:"2,keyasint"`
	Name        string      `cbor:"3,keyasint"`
	Compression Compression `cbor:"4,keyasint"`
	Size        int         `cbor:"5,keyasint"`
	Offset      int64       `cbor:"6,keyasint"`
	Length      int         `cbor:"7,keyasint"`
	Digest      [32]byte    `cbor:"8,keyasint"`
}

// Object is one entry of the container directory.
type Object struct {
	PathID      int64
	Type        string
	Name        string
	Compression Compression

	stored  []byte
	digest  [32]byte
	payload []byte
	dirty   bool
	decoded any
}

// Payload returns the decompressed payload bytes.
func (o *Object) Payload() []byte { return o.payload }

// setPayload replaces the payload and marks the object for re-compression.
func (o *Object) setPayload(p []byte) {
	o.payload = p
	o.stored = nil
	o.dirty = true
}

// Environment is a container loaded into memory.
type Environment struct {
	// HeaderVersion is the engine version string stored in the file. It is
	// empty or "0.0.0" when the build stripped it.
	HeaderVersion string
	// EngineVersion is the version used to decode typed objects, either the
	// header version or the fallback supplied in Options.
	EngineVersion EngineVersion

	objects []*Object
	nextID  int64
}

// Options controls how a container is decoded.
type Options struct {
	// FallbackVersion is used when the container's header version has been
	// stripped. An empty fallback makes such containers fail with
	// ErrVersionFallback.
	FallbackVersion string
}

// New returns an empty environment for the given engine version.
func New(version string) (*Environment, error) {
	v, err := ParseEngineVersion(version)
	if err != nil {
		return nil, err
	}
	return &Environment{HeaderVersion: version, EngineVersion: v, nextID: 1}, nil
}

// Open reads and decodes the container at path.
func Open(path string, opts Options) (*Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env, err := Load(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// Load decodes a container from memory.
func Load(data []byte, opts Options) (*Environment, error) {
	r := bytes.NewReader(data)

	var m [8]byte
	if _, err := io.ReadFull(r, m[:]); err != nil || m != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	var rev, verLen uint16
	if err := binary.Read(r, binary.LittleEndian, &rev); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	if rev != layoutRevision {
		return nil, fmt.Errorf("%w: layout revision %d", ErrCorrupt, rev)
	}
	if err := binary.Read(r, binary.LittleEndian, &verLen); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	ver := make([]byte, verLen)
	if _, err := io.ReadFull(r, ver); err != nil {
		return nil, fmt.Errorf("%w: truncated version", ErrCorrupt)
	}
	var dirLen uint32
	if err := binary.Read(r, binary.LittleEndian, &dirLen); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	dirBytes := make([]byte, dirLen)
	if _, err := io.ReadFull(r, dirBytes); err != nil {
		return nil, fmt.Errorf("%w: truncated directory", ErrCorrupt)
	}

	env := &Environment{HeaderVersion: string(ver), nextID: 1}
	v, err := resolveVersion(env.HeaderVersion, opts.FallbackVersion)
	if err != nil {
		return nil, err
	}
	env.EngineVersion = v

	var dir []dirEntry
	if err := decMode.Unmarshal(dirBytes, &dir); err != nil {
		return nil, fmt.Errorf("%w: directory: %v", ErrCorrupt, err)
	}

	blocks := data[len(data)-r.Len():]
	for _, d := range dir {
		end := d.Offset + int64(d.Length)
		if d.Offset < 0 || end > int64(len(blocks)) {
			return nil, fmt.Errorf("%w: object %d block out of range", ErrCorrupt, d.PathID)
		}
		stored := blocks[d.Offset:end]
		payload, err := decompressBlock(stored, d.Compression, d.Size)
		if err != nil {
			return nil, fmt.Errorf("%w: object %d: %v", ErrCorrupt, d.PathID, err)
		}
		if blake3.Sum256(payload) != d.Digest {
			return nil, fmt.Errorf("%w: object %d digest mismatch", ErrCorrupt, d.PathID)
		}
		env.objects = append(env.objects, &Object{
			PathID:      d.PathID,
			Type:        d.Type,
			Name:        d.Name,
			Compression: d.Compression,
			stored:      stored,
			digest:      d.Digest,
			payload:     payload,
		})
		if d.PathID >= env.nextID {
			env.nextID = d.PathID + 1
		}
	}
	return env, nil
}

// Objects returns every object in directory order.
func (e *Environment) Objects() []*Object { return e.objects }

// ObjectsOfType returns the objects whose type name matches typ, in
// directory order.
func (e *Environment) ObjectsOfType(typ string) []*Object {
	var out []*Object
	for _, o := range e.objects {
		if o.Type == typ {
			out = append(out, o)
		}
	}
	return out
}

// AddRaw appends an object with an opaque payload.
func (e *Environment) AddRaw(typ, name string, payload []byte, c Compression) *Object {
	o := &Object{PathID: e.nextID, Type: typ, Name: name, Compression: c}
	o.setPayload(payload)
	e.nextID++
	e.objects = append(e.objects, o)
	return o
}

// Serialize writes the whole container. Untouched objects keep their
// stored block; modified ones are re-compressed with their original tag.
func (e *Environment) Serialize() ([]byte, error) {
	var blocks bytes.Buffer
	dir := make([]dirEntry, 0, len(e.objects))
	for _, o := range e.objects {
		stored, digest, tag := o.stored, o.digest, o.Compression
		if o.dirty || stored == nil {
			var err error
			stored, tag, err = compressBlock(o.payload, o.Compression)
			if err != nil {
				return nil, fmt.Errorf("object %d: %w", o.PathID, err)
			}
			digest = blake3.Sum256(o.payload)
		}
		dir = append(dir, dirEntry{
			PathID:      o.PathID,
			Type:        o.Type,
			Name:        o.Name,
			Compression: tag,
			Size:        len(o.payload),
			Offset:      int64(blocks.Len()),
			Length:      len(stored),
			Digest:      digest,
		})
		blocks.Write(stored)
	}

	dirBytes, err := encMode.Marshal(dir)
	if err != nil {
		return nil, fmt.Errorf("encode directory: %w", err)
	}

	var out bytes.Buffer
	out.Write(magic[:])
	_ = binary.Write(&out, binary.LittleEndian, layoutRevision)
	_ = binary.Write(&out, binary.LittleEndian, uint16(len(e.HeaderVersion)))
	out.WriteString(e.HeaderVersion)
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(dirBytes)))
	out.Write(dirBytes)
	out.Write(blocks.Bytes())
	return out.Bytes(), nil
}
