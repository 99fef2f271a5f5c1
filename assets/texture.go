package assets

import (
	"image"
	"image/png"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"
)

type Texture struct {
	Pixels    *image.RGBA
	MipLevels int
}

func (t *Texture) Width() int {
	return t.Pixels.Rect.Dx()
}

func (t *Texture) Height() int {
	return t.Pixels.Rect.Dy()
}

// LoadDefaultTexture decodes the texture bundled with the package.
func LoadDefaultTexture() (*Texture, error) {
	imageFile, err := fileSystem.Open("images/texture.png")
	if err != nil {
		return nil, err
	}
	defer imageFile.Close()

	return DecodeTexture(imageFile)
}

// DecodeTexture decodes a PNG into tightly packed RGBA8 rows starting at the origin, ready
// to be copied into a staging buffer.
func DecodeTexture(r io.Reader) (*Texture, error) {
	decodedImage, err := png.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode png texture")
	}

	bounds := decodedImage.Bounds()
	if bounds.Empty() {
		return nil, errors.New("texture has no pixels")
	}

	return &Texture{
		Pixels:    toRGBA(decodedImage),
		MipLevels: MipLevels(bounds.Dx(), bounds.Dy()),
	}, nil
}

func toRGBA(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && bounds.Min == (image.Point{}) && rgba.Stride == 4*bounds.Dx() {
		return rgba
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	return rgba
}

// MipLevels is the length of the full mip chain down to 1x1.
func MipLevels(width, height int) int {
	return int(math.Floor(math.Log2(math.Max(float64(width), float64(height))))) + 1
}
