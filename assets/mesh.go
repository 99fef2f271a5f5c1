package assets

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// LoadQuad decodes the textured quad bundled with the package.
func LoadQuad() (*Mesh, error) {
	meshFile, err := fileSystem.Open("meshes/quad.obj")
	if err != nil {
		return nil, err
	}
	defer meshFile.Close()

	matFile, err := fileSystem.Open("meshes/quad.mtl")
	if err != nil {
		return nil, err
	}
	defer matFile.Close()

	return DecodeMesh(meshFile, matFile)
}

// DecodeMesh reads a Wavefront OBJ mesh, triangulating polygon faces and sharing vertices
// that reference the same position.
func DecodeMesh(meshReader, matReader io.Reader) (*Mesh, error) {
	decoder, err := obj.DecodeReader(meshReader, matReader)
	if err != nil {
		return nil, errors.Wrap(err, "decode obj mesh")
	}

	mesh := &Mesh{}
	uniqueVertices := make(map[int]uint32)

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			if !hasTexCoords(decoder, face) {
				return nil, errors.Newf("object %q has a face without texture coordinates", decodedObj.Name)
			}

			for i := 2; i < len(face.Vertices); i++ {
				mesh.addVertex(decoder, uniqueVertices, face, 0)
				mesh.addVertex(decoder, uniqueVertices, face, i-1)
				mesh.addVertex(decoder, uniqueVertices, face, i)
			}
		}
	}

	if len(mesh.Indices) == 0 {
		return nil, errors.New("mesh has no triangles")
	}

	return mesh, nil
}

func hasTexCoords(decoder *obj.Decoder, face obj.Face) bool {
	if len(face.Uvs) < len(face.Vertices) {
		return false
	}

	for _, uv := range face.Uvs {
		if uv < 0 || uv*2+1 >= len(decoder.Uvs) {
			return false
		}
	}

	return true
}

func (m *Mesh) addVertex(decoder *obj.Decoder, uniqueVertices map[int]uint32, face obj.Face, faceIndex int) {
	vertInd := face.Vertices[faceIndex]
	index, vertexExists := uniqueVertices[vertInd]

	if !vertexExists {
		vert := Vertex{
			Position: mgl32.Vec3{
				decoder.Vertices[vertInd*3],
				decoder.Vertices[vertInd*3+1],
				decoder.Vertices[vertInd*3+2],
			},
			Color: mgl32.Vec3{1, 1, 1},
		}

		// OBJ puts v=0 at the bottom of the image, Vulkan samples top-down.
		uvInd := face.Uvs[faceIndex]
		vert.TexCoord = mgl32.Vec2{
			decoder.Uvs[uvInd*2],
			1.0 - decoder.Uvs[uvInd*2+1],
		}

		index = uint32(len(m.Vertices))
		m.Vertices = append(m.Vertices, vert)
		uniqueVertices[vertInd] = index
	}

	m.Indices = append(m.Indices, index)
}
