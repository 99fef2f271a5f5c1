package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/assets"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const textureFormat = core1_0.FormatR8G8B8A8SRGB

// imageState is a layout together with the access and stage that last touched it, which is
// everything a barrier needs on either side.
type imageState struct {
	layout core1_0.ImageLayout
	access core1_0.AccessFlags
	stage  core1_0.PipelineStageFlags
}

var (
	freshImage   = imageState{core1_0.ImageLayoutUndefined, 0, core1_0.PipelineStageTopOfPipe}
	copyTarget   = imageState{core1_0.ImageLayoutTransferDstOptimal, core1_0.AccessTransferWrite, core1_0.PipelineStageTransfer}
	blitSource   = imageState{core1_0.ImageLayoutTransferSrcOptimal, core1_0.AccessTransferRead, core1_0.PipelineStageTransfer}
	shaderSample = imageState{core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.AccessShaderRead, core1_0.PipelineStageFragmentShader}
)

func colorLevels(base, count int) core1_0.ImageSubresourceRange {
	return core1_0.ImageSubresourceRange{
		AspectMask:   core1_0.ImageAspectColor,
		BaseMipLevel: base,
		LevelCount:   count,
		LayerCount:   1,
	}
}

func colorLayer(level int) core1_0.ImageSubresourceLayers {
	return core1_0.ImageSubresourceLayers{
		AspectMask: core1_0.ImageAspectColor,
		MipLevel:   level,
		LayerCount: 1,
	}
}

func levelBarrier(image core1_0.Image, levels core1_0.ImageSubresourceRange, from, to imageState) core1_0.ImageMemoryBarrier {
	return core1_0.ImageMemoryBarrier{
		SrcAccessMask:       from.access,
		DstAccessMask:       to.access,
		OldLayout:           from.layout,
		NewLayout:           to.layout,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Image:               image,
		SubresourceRange:    levels,
	}
}

// mipBlits returns the blits that build a mip chain: entry i halves level i into level i+1.
// Neither dimension drops below one texel.
func mipBlits(width, height, levels int) []core1_0.ImageBlit {
	var blits []core1_0.ImageBlit

	for level := 1; level < levels; level++ {
		nextWidth, nextHeight := max(width/2, 1), max(height/2, 1)

		blits = append(blits, core1_0.ImageBlit{
			SrcSubresource: colorLayer(level - 1),
			SrcOffsets:     [2]core1_0.Offset3D{{}, {X: width, Y: height, Z: 1}},
			DstSubresource: colorLayer(level),
			DstOffsets:     [2]core1_0.Offset3D{{}, {X: nextWidth, Y: nextHeight, Z: 1}},
		})

		width, height = nextWidth, nextHeight
	}

	return blits
}

func (u *upload) transition(image core1_0.Image, levels core1_0.ImageSubresourceRange, from, to imageState) error {
	return u.r.deviceDriver.CmdPipelineBarrier(u.commands, from.stage, to.stage, 0, nil, nil,
		[]core1_0.ImageMemoryBarrier{levelBarrier(image, levels, from, to)})
}

// texture records the copy of the decoded pixels into level zero of a new image and the blits
// that fill the remaining levels. Every level ends up ready for sampling.
func (u *upload) texture(texture *assets.Texture) error {
	r := u.r

	properties := r.instanceDriver.GetPhysicalDeviceFormatProperties(r.physicalDevice, textureFormat)
	if properties.OptimalTilingFeatures&core1_0.FormatFeatureSampledImageFilterLinear == 0 {
		return errors.Newf("%s does not support linear blits, cannot build mipmaps", textureFormat)
	}

	staging, _, err := u.stage(texture.Pixels.Pix)
	if err != nil {
		return err
	}

	width, height := texture.Width(), texture.Height()
	r.mipLevels = texture.MipLevels
	r.textureImage, r.textureImageMemory, err = r.createTextureImage(width, height, r.mipLevels)
	if err != nil {
		return err
	}
	image := r.textureImage

	err = u.transition(image, colorLevels(0, r.mipLevels), freshImage, copyTarget)
	if err != nil {
		return err
	}

	err = r.deviceDriver.CmdCopyBufferToImage(u.commands, staging, image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			ImageSubresource: colorLayer(0),
			ImageExtent:      core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		})
	if err != nil {
		return err
	}

	for level, blit := range mipBlits(width, height, r.mipLevels) {
		err = u.transition(image, colorLevels(level, 1), copyTarget, blitSource)
		if err != nil {
			return err
		}

		err = r.deviceDriver.CmdBlitImage(u.commands,
			image, core1_0.ImageLayoutTransferSrcOptimal,
			image, core1_0.ImageLayoutTransferDstOptimal,
			[]core1_0.ImageBlit{blit}, core1_0.FilterLinear)
		if err != nil {
			return err
		}

		err = u.transition(image, colorLevels(level, 1), blitSource, shaderSample)
		if err != nil {
			return err
		}
	}

	// The last level is only ever written.
	return u.transition(image, colorLevels(r.mipLevels-1, 1), copyTarget, shaderSample)
}

func (r *Renderer) createTextureImage(width, height, mipLevels int) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, _, err := r.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType:     core1_0.ImageType2D,
		Format:        textureFormat,
		Extent:        core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Samples:       core1_0.Samples1,
		Tiling:        core1_0.ImageTilingOptimal,
		Usage:         core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memory, err := r.allocate(r.deviceDriver.GetImageMemoryRequirements(image), core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return image, core1_0.DeviceMemory{}, err
	}

	_, err = r.deviceDriver.BindImageMemory(image, memory, 0)
	return image, memory, err
}

func (r *Renderer) createTextureImageView() error {
	var err error
	r.textureImageView, err = r.createImageView(r.textureImage, textureFormat, r.mipLevels)
	return err
}

func (r *Renderer) createSampler() error {
	properties, err := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
	if err != nil {
		return err
	}

	r.textureSampler, _, err = r.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    properties.Limits.MaxSamplerAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MaxLod:     float32(r.mipLevels),
	})
	return err
}

// createImageView views the color levels of image. Swapchain images have a single level.
func (r *Renderer) createImageView(image core1_0.Image, format core1_0.Format, mipLevels int) (core1_0.ImageView, error) {
	view, _, err := r.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:            image,
		ViewType:         core1_0.ImageViewType2D,
		Format:           format,
		SubresourceRange: colorLevels(0, mipLevels),
	})
	return view, err
}
