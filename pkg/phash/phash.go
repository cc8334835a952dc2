// Package phash computes DCT-based perceptual fingerprints of images and
// provides the distance and similarity primitives used to compare them.
//
// The hash concentrates an image's low-frequency energy into a fixed-length
// bit vector, so re-encoding, minor resizes and color tweaks perturb only a
// few bits while unrelated images differ in roughly half of them.
package phash

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	apperrors "github.com/hatchmark/hatchmark/pkg/app/errors"
)

const (
	// gridSize is the resample grid the DCT runs over.
	gridSize = 32
	// blockSize is the low-frequency block the hash bits come from.
	blockSize = 8

	// Bits is the protocol fingerprint width.
	Bits = blockSize * blockSize
	// HexLength is the serialized fingerprint length in hex characters.
	HexLength = Bits / 4
)

// Fingerprint is a fixed-length perceptual hash serialized as lowercase hex.
type Fingerprint string

// Bits reports the declared bit width of the fingerprint.
func (f Fingerprint) Bits() int {
	return len(f) * 4
}

// Validate checks that the fingerprint is protocol-length lowercase hex.
func (f Fingerprint) Validate() error {
	if len(f) != HexLength {
		return apperrors.ValidationError(nil,
			fmt.Sprintf("fingerprint must be %d hex characters, got %d", HexLength, len(f)))
	}
	for _, c := range f {
		if _, ok := hexVal(byte(c)); !ok {
			return apperrors.ValidationError(nil, "fingerprint must be lowercase hex")
		}
	}
	return nil
}

// ComputeBytes decodes an encoded image and computes its fingerprint.
// Returns a DecodeError when the input is not a readable image.
func ComputeBytes(data []byte) (Fingerprint, error) {
	return ComputeReader(bytes.NewReader(data))
}

// ComputeReader decodes an encoded image stream and computes its fingerprint.
func ComputeReader(r io.Reader) (Fingerprint, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", apperrors.DecodeError(err, "unreadable image input")
	}
	return Compute(img), nil
}

// Compute derives the perceptual fingerprint of decoded pixels.
// Deterministic and pure: identical pixels always produce identical hashes.
func Compute(img image.Image) Fingerprint {
	gray := luminanceGrid(imaging.Resize(img, gridSize, gridSize, imaging.Lanczos))

	coeffs := sharedBasis().transform2D(gray)

	// Median of the top-left block, DC excluded.
	block := make([]float64, 0, blockSize*blockSize-1)
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			if y == 0 && x == 0 {
				continue
			}
			block = append(block, coeffs[y][x])
		}
	}
	med := median(block)

	var sb strings.Builder
	sb.Grow(HexLength)
	var nibble byte
	bit := 0
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			nibble <<= 1
			// The DC position stays fixed at 0.
			if !(y == 0 && x == 0) && coeffs[y][x] > med {
				nibble |= 1
			}
			bit++
			if bit%4 == 0 {
				sb.WriteByte(hexDigit(nibble))
				nibble = 0
			}
		}
	}
	return Fingerprint(sb.String())
}

// luminanceGrid converts the resampled image to a gridSize×gridSize matrix
// of Rec. 601 luma values.
func luminanceGrid(img image.Image) [][]float64 {
	b := img.Bounds()
	grid := make([][]float64, gridSize)
	for y := 0; y < gridSize; y++ {
		grid[y] = make([]float64, gridSize)
		for x := 0; x < gridSize; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// RGBA returns 16-bit channels.
			grid[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return grid
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'a' + v - 10
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
