// Package assets loads the shaders, mesh and texture the renderer uploads at startup.
package assets

import (
	"context"
	"embed"
	"io/fs"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

//go:embed meshes images
var fileSystem embed.FS

type Assets struct {
	VertexShader   []uint32
	FragmentShader []uint32
	Mesh           *Mesh
	Texture        *Texture
}

// Load reads the compiled shaders from shaderFS and decodes the bundled mesh and texture
// concurrently. The first failure cancels the rest.
func Load(ctx context.Context, shaderFS fs.FS) (*Assets, error) {
	loaded := &Assets{}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		loaded.VertexShader, err = LoadShader(shaderFS, ShaderVertex)
		return err
	})

	group.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		loaded.FragmentShader, err = LoadShader(shaderFS, ShaderFragment)
		return err
	})

	group.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		loaded.Mesh, err = LoadQuad()
		return errors.Wrap(err, "load quad mesh")
	})

	group.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		loaded.Texture, err = LoadDefaultTexture()
		return errors.Wrap(err, "load texture")
	})

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return loaded, nil
}
