package cmd

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cocosip/go-jp3d"
)

// rawVolumeMagic identifies this CLI's own minimal raw interchange
// format for a Volume: a fixed header followed by each component's
// packed sample bytes in turn, matching jp3d.Component's own
// little-endian packed layout so no transcoding is
// needed between this format and the in-memory type.
var rawVolumeMagic = [8]byte{'J', 'P', '3', 'D', 'R', 'A', 'W', '1'}

// componentHeaderLen is bitDepth, signed, subX, subY, subZ (one byte
// each) followed by a 4-byte big-endian data length.
const componentHeaderLen = 5 + 4

func writeRawVolume(w io.Writer, vol *jp3d.Volume) error {
	if _, err := w.Write(rawVolumeMagic[:]); err != nil {
		return err
	}
	var dims [16]byte
	binary.BigEndian.PutUint32(dims[0:4], uint32(vol.Width))
	binary.BigEndian.PutUint32(dims[4:8], uint32(vol.Height))
	binary.BigEndian.PutUint32(dims[8:12], uint32(vol.Depth))
	binary.BigEndian.PutUint32(dims[12:16], uint32(len(vol.Components)))
	if _, err := w.Write(dims[:]); err != nil {
		return err
	}
	for _, c := range vol.Components {
		var chdr [componentHeaderLen]byte
		chdr[0] = byte(c.BitDepth)
		if c.Signed {
			chdr[1] = 1
		}
		chdr[2], chdr[3], chdr[4] = byte(c.SubX), byte(c.SubY), byte(c.SubZ)
		binary.BigEndian.PutUint32(chdr[5:9], uint32(len(c.Data)))
		if _, err := w.Write(chdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(c.Data); err != nil {
			return err
		}
	}
	return nil
}

func readRawVolume(r io.Reader) (*jp3d.Volume, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, jp3d.WrapError(jp3d.KindParseError, "read raw volume magic", err)
	}
	if magic != rawVolumeMagic {
		return nil, jp3d.NewError(jp3d.KindParseError, "not a jp3d raw volume file")
	}
	var dims [16]byte
	if _, err := io.ReadFull(r, dims[:]); err != nil {
		return nil, jp3d.WrapError(jp3d.KindParseError, "read raw volume header", err)
	}
	width := int(binary.BigEndian.Uint32(dims[0:4]))
	height := int(binary.BigEndian.Uint32(dims[4:8]))
	depth := int(binary.BigEndian.Uint32(dims[8:12]))
	numComponents := int(binary.BigEndian.Uint32(dims[12:16]))

	components := make([]*jp3d.Component, 0, numComponents)
	for i := 0; i < numComponents; i++ {
		var chdr [componentHeaderLen]byte
		if _, err := io.ReadFull(r, chdr[:]); err != nil {
			return nil, jp3d.WrapError(jp3d.KindParseError, "read component header", err)
		}
		bitDepth := int(chdr[0])
		signed := chdr[1] != 0
		subX, subY, subZ := int(chdr[2]), int(chdr[3]), int(chdr[4])
		dataLen := binary.BigEndian.Uint32(chdr[5:9])

		data := make([]byte, dataLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, jp3d.WrapError(jp3d.KindTruncated, "read component data", err)
		}

		comp := jp3d.NewComponent(i, width, height, depth, bitDepth, signed, subX, subY, subZ)
		copy(comp.Data, data)
		components = append(components, comp)
	}

	vol, err := jp3d.NewVolume(width, height, depth, components)
	if err != nil {
		return nil, fmt.Errorf("build volume: %w", err)
	}
	return vol, nil
}
