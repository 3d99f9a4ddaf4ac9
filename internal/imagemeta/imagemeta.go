// Package imagemeta extracts pixel dimensions from raw image bytes without
// decoding the image. Input is attacker-reachable network data, so every read
// is bounds-checked and no path panics or returns an error; unrecognized or
// truncated input falls back to a default size.
package imagemeta

import (
	"bytes"
	"encoding/binary"
)

// DefaultWidth and DefaultHeight are returned when no supported signature
// matches or a header walk runs off the end of the buffer.
const (
	DefaultWidth  = 16
	DefaultHeight = 16
)

var (
	pngSignature = []byte{0x89, 0x50, 0x4E, 0x47}
	jpegSOI      = []byte{0xFF, 0xD8}
	icoSignature = []byte{0x00, 0x00, 0x01, 0x00}
	gifSignature = []byte("GIF")
)

// SniffDimensions returns the pixel width and height encoded in the header of
// a PNG, JPEG, ICO, or GIF image, or (16, 16) when it cannot tell.
func SniffDimensions(data []byte) (width, height int) {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return sniffPNG(data)
	case bytes.HasPrefix(data, jpegSOI):
		return sniffJPEG(data)
	case bytes.HasPrefix(data, icoSignature):
		return sniffICO(data)
	case bytes.HasPrefix(data, gifSignature):
		return sniffGIF(data)
	}
	return DefaultWidth, DefaultHeight
}

// sniffPNG reads the IHDR dimensions: big-endian u32 width at offset 16 and
// height at offset 20.
func sniffPNG(data []byte) (int, int) {
	if len(data) < 24 {
		return DefaultWidth, DefaultHeight
	}
	w := binary.BigEndian.Uint32(data[16:20])
	h := binary.BigEndian.Uint32(data[20:24])
	return int(w), int(h)
}

// sniffJPEG walks the marker segments after SOI, skipping each non-SOF
// segment by its declared length, until it reaches a baseline or progressive
// start-of-frame (C0, C1, C2). Within the SOF payload the height precedes
// the width, both big-endian u16.
func sniffJPEG(data []byte) (int, int) {
	off := 2
	for off+4 <= len(data) {
		if data[off] != 0xFF {
			break
		}
		marker := data[off+1]
		if marker == 0xC0 || marker == 0xC1 || marker == 0xC2 {
			if off+9 > len(data) {
				break
			}
			h := binary.BigEndian.Uint16(data[off+5 : off+7])
			w := binary.BigEndian.Uint16(data[off+7 : off+9])
			return int(w), int(h)
		}
		segLen := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		if segLen < 2 {
			break
		}
		off += 2 + segLen
	}
	return DefaultWidth, DefaultHeight
}

// sniffICO reads the first directory entry: single-byte width and height at
// offsets 6 and 7, where a stored 0 means 256.
func sniffICO(data []byte) (int, int) {
	if len(data) < 8 {
		return DefaultWidth, DefaultHeight
	}
	w := int(data[6])
	h := int(data[7])
	if w == 0 {
		w = 256
	}
	if h == 0 {
		h = 256
	}
	return w, h
}

// sniffGIF reads the logical screen descriptor: little-endian u16 width at
// offset 6 and height at offset 8.
func sniffGIF(data []byte) (int, int) {
	if len(data) < 10 {
		return DefaultWidth, DefaultHeight
	}
	w := binary.LittleEndian.Uint16(data[6:8])
	h := binary.LittleEndian.Uint16(data[8:10])
	return int(w), int(h)
}
