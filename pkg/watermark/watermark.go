// Package watermark embeds an invisible provenance mark into an image by
// writing a message into the pixels' least significant bits. The mark
// survives lossless re-encoding but not lossy compression; it complements
// the perceptual fingerprint rather than replacing it.
package watermark

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
)

// magic marks watermarked images so extraction can tell an unmarked image
// from a damaged mark.
var magic = []byte("hm01")

// headerBytes is the magic plus a big-endian message length.
const headerBytes = 8

// Embed hides the message in the image's least significant bits and
// returns the marked image encoded as PNG. PNG is forced on output: a
// lossy format would destroy the mark.
func Embed(imageData []byte, message string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, apperrors.DecodeError(err, "unreadable image input")
	}

	nrgba := imaging.Clone(img)
	w := nrgba.Rect.Dx()
	h := nrgba.Rect.Dy()

	payload := make([]byte, 0, headerBytes+len(message))
	payload = append(payload, magic...)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(message)))
	payload = append(payload, message...)

	// One payload bit per color channel, three channels per pixel.
	if len(payload)*8 > w*h*3 {
		return nil, apperrors.ValidationError(nil,
			fmt.Sprintf("image too small for a %d-byte watermark", len(message)))
	}

	bit := 0
	for _, b := range payload {
		for i := 7; i >= 0; i-- {
			px := bit / 3
			ch := bit % 3
			off := (px/w)*nrgba.Stride + (px%w)*4 + ch
			nrgba.Pix[off] = nrgba.Pix[off]&^1 | (b>>uint(i))&1
			bit++
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("encode watermarked image: %w", err)
	}
	return buf.Bytes(), nil
}

// Extract reads the embedded message back out of a marked image.
func Extract(imageData []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", apperrors.DecodeError(err, "unreadable image input")
	}

	nrgba := imaging.Clone(img)
	w := nrgba.Rect.Dx()
	h := nrgba.Rect.Dy()

	readBytes := func(byteOffset, n int) ([]byte, error) {
		if (byteOffset+n)*8 > w*h*3 {
			return nil, apperrors.ValidationError(nil, "image carries no watermark")
		}
		out := make([]byte, n)
		for i := 0; i < n*8; i++ {
			bit := byteOffset*8 + i
			px := bit / 3
			ch := bit % 3
			off := (px/w)*nrgba.Stride + (px%w)*4 + ch
			out[i/8] = out[i/8]<<1 | nrgba.Pix[off]&1
		}
		return out, nil
	}

	header, err := readBytes(0, headerBytes)
	if err != nil {
		return "", err
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return "", apperrors.ValidationError(nil, "image carries no watermark")
	}
	length := int(binary.BigEndian.Uint32(header[len(magic):]))
	msg, err := readBytes(headerBytes, length)
	if err != nil {
		return "", err
	}
	return string(msg), nil
}
