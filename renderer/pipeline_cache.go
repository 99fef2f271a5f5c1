package renderer

import (
	"bytes"
	"encoding/binary"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const (
	pipelineCacheHeaderVersionOne = 1

	// pipelineCacheHeaderSize is the length of the version one header: four 32-bit fields
	// followed by the cache UUID.
	pipelineCacheHeaderSize = 4*4 + 16
)

// pipelineCacheHeader is the prefix every driver writes at the start of pipeline cache data.
type pipelineCacheHeader struct {
	HeaderLength  uint32
	HeaderVersion uint32
	VendorID      uint32
	DeviceID      uint32
	CacheUUID     uuid.UUID
}

// cacheIdentity is what a device expects to find in the header of cache data it can reuse.
type cacheIdentity struct {
	VendorID  uint32
	DeviceID  uint32
	CacheUUID uuid.UUID
}

func parsePipelineCacheHeader(data []byte) (pipelineCacheHeader, error) {
	var header pipelineCacheHeader
	err := binary.Read(bytes.NewReader(data), common.ByteOrder, &header)
	if err != nil {
		return header, errors.Wrapf(err, "read pipeline cache header from %d bytes", len(data))
	}
	return header, nil
}

func (h pipelineCacheHeader) validate(expected cacheIdentity) error {
	if h.HeaderLength < pipelineCacheHeaderSize {
		return errors.Newf("bad header length %d", h.HeaderLength)
	}
	if h.HeaderVersion != pipelineCacheHeaderVersionOne {
		return errors.Newf("unsupported header version %d", h.HeaderVersion)
	}
	if h.VendorID != expected.VendorID {
		return errors.Newf("vendor id %#x, driver expects %#x", h.VendorID, expected.VendorID)
	}
	if h.DeviceID != expected.DeviceID {
		return errors.Newf("device id %#x, driver expects %#x", h.DeviceID, expected.DeviceID)
	}
	if h.CacheUUID != expected.CacheUUID {
		return errors.Newf("cache uuid %s, driver expects %s", h.CacheUUID, expected.CacheUUID)
	}
	return nil
}

// loadPipelineCache returns the cache data stored at path if it was written by the expected
// device and driver. A missing file yields no data and no error.
func loadPipelineCache(path string, expected cacheIdentity) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "read pipeline cache")
	}

	header, err := parsePipelineCacheHeader(data)
	if err != nil {
		return nil, err
	}

	err = header.validate(expected)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// discardPipelineCache deletes a cache file that failed validation. A failed removal is logged,
// not returned.
func discardPipelineCache(path string, reason error) {
	log.Printf("discarding pipeline cache %s: %v", path, reason)

	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("remove pipeline cache %s: %v", path, err)
	}
}

func (r *Renderer) createPipelineCache() error {
	var initialData []byte

	if r.cfg.PipelineCachePath != "" {
		properties, err := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
		if err != nil {
			return err
		}

		initialData, err = loadPipelineCache(r.cfg.PipelineCachePath, cacheIdentity{
			VendorID:  properties.VendorID,
			DeviceID:  properties.DeviceID,
			CacheUUID: properties.PipelineCacheUUID,
		})
		if err != nil {
			discardPipelineCache(r.cfg.PipelineCachePath, err)
			initialData = nil
		} else if initialData != nil && r.cfg.Verbose {
			log.Printf("loaded %d bytes of pipeline cache from %s", len(initialData), r.cfg.PipelineCachePath)
		}
	}

	var err error
	r.pipelineCache, _, err = r.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initialData,
	})
	return err
}

func (r *Renderer) savePipelineCache() error {
	if r.cfg.PipelineCachePath == "" {
		return nil
	}

	data, _, err := r.deviceDriver.GetPipelineCacheData(r.pipelineCache)
	if err != nil {
		return errors.Wrap(err, "read pipeline cache data")
	}

	err = os.WriteFile(r.cfg.PipelineCachePath, data, 0o644)
	if err != nil {
		return errors.Wrap(err, "write pipeline cache")
	}

	return nil
}
