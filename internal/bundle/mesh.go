package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type meshPayload struct {
	Name     string    `cbor:"1,keyasint"`
	Vertices []float32 `cbor:"2,keyasint"`
	Normals  []float32 `cbor:"3,keyasint"`
	UVs      []float32 `cbor:"4,keyasint"`
	Indices  []uint32  `cbor:"5,keyasint"`
}

// Mesh is a decoded Mesh object. Vertices and Normals are packed xyz
// triples, UVs packed uv pairs and Indices triangles.
type Mesh struct {
	Name     string
	Vertices []float32
	Normals  []float32
	UVs      []float32
	Indices  []uint32
}

// Meshes decodes every Mesh object in directory order.
func (e *Environment) Meshes() ([]*Mesh, error) {
	var out []*Mesh
	for _, o := range e.ObjectsOfType(TypeMesh) {
		var p meshPayload
		if err := decMode.Unmarshal(o.payload, &p); err != nil {
			return nil, fmt.Errorf("mesh %d: %w", o.PathID, err)
		}
		out = append(out, &Mesh{
			Name:     p.Name,
			Vertices: p.Vertices,
			Normals:  p.Normals,
			UVs:      p.UVs,
			Indices:  p.Indices,
		})
	}
	return out, nil
}

// AddMesh appends a Mesh object.
func (e *Environment) AddMesh(m *Mesh) error {
	payload, err := encMode.Marshal(meshPayload{
		Name:     m.Name,
		Vertices: m.Vertices,
		Normals:  m.Normals,
		UVs:      m.UVs,
		Indices:  m.Indices,
	})
	if err != nil {
		return fmt.Errorf("encode mesh %q: %w", m.Name, err)
	}
	e.AddRaw(TypeMesh, m.Name, payload, CompressionLZ4)
	return nil
}

// OBJ renders the mesh as Wavefront OBJ. The engine is left-handed, so x is
// mirrored and triangle winding reversed.
func (m *Mesh) OBJ() string {
	var b strings.Builder
	f := func(v float32) string { return strconv.FormatFloat(float64(v), 'f', -1, 32) }

	fmt.Fprintf(&b, "g %s\n", m.Name)
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		fmt.Fprintf(&b, "v %s %s %s\n", f(-m.Vertices[i]), f(m.Vertices[i+1]), f(m.Vertices[i+2]))
	}
	for i := 0; i+1 < len(m.UVs); i += 2 {
		fmt.Fprintf(&b, "vt %s %s\n", f(m.UVs[i]), f(m.UVs[i+1]))
	}
	for i := 0; i+2 < len(m.Normals); i += 3 {
		fmt.Fprintf(&b, "vn %s %s %s\n", f(-m.Normals[i]), f(m.Normals[i+1]), f(m.Normals[i+2]))
	}

	hasUV, hasNormal := len(m.UVs) > 0, len(m.Normals) > 0
	ref := func(i uint32) string {
		n := strconv.FormatUint(uint64(i)+1, 10)
		switch {
		case hasUV && hasNormal:
			return n + "/" + n + "/" + n
		case hasUV:
			return n + "/" + n
		case hasNormal:
			return n + "//" + n
		default:
			return n
		}
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		fmt.Fprintf(&b, "f %s %s %s\n", ref(m.Indices[i+2]), ref(m.Indices[i+1]), ref(m.Indices[i]))
	}
	return b.String()
}

// ExportMeshes writes every mesh into dir as <name>.obj and returns how
// many were written.
func ExportMeshes(env *Environment, dir string) (int, error) {
	meshes, err := env.Meshes()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range meshes {
		path := filepath.Join(dir, m.Name+".obj")
		if err := os.WriteFile(path, []byte(m.OBJ()), 0644); err != nil {
			return count, fmt.Errorf("write mesh %s: %w", path, err)
		}
		count++
	}
	return count, nil
}
