package assets

import (
	"encoding/binary"
	"io/fs"

	"github.com/cockroachdb/errors"
)

const (
	ShaderVertex   = "vertex"
	ShaderFragment = "fragment"

	spirvMagic = 0x07230203
)

var shaderFiles = map[string]string{
	ShaderVertex:   "vert.spv",
	ShaderFragment: "frag.spv",
}

// LoadShader reads the compiled SPIR-V module for a logical shader name from fsys.
func LoadShader(fsys fs.FS, name string) ([]uint32, error) {
	fileName, ok := shaderFiles[name]
	if !ok {
		return nil, errors.Newf("unknown shader %q", name)
	}

	shaderBytes, err := fs.ReadFile(fsys, fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s shader", name)
	}

	byteCode, err := bytesToBytecode(shaderBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s shader from %s", name, fileName)
	}

	return byteCode, nil
}

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("spir-v size %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}

	if byteCode[0] != spirvMagic {
		return nil, errors.Newf("bad spir-v magic number 0x%08x", byteCode[0])
	}

	return byteCode, nil
}
