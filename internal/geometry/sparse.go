package geometry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Binary records matching the external SfM tool's on-disk sparse-model
// layout (cameras.bin / images.bin / points3D.bin, little-endian). Used to
// synthesize placeholder reconstruction data when the real SfM step is
// bypassed; real output always comes from the tool's own writer.

// CameraModelPinhole is the only camera model the synthesizer emits.
const CameraModelPinhole uint32 = 1

type SparseCamera struct {
	ID     uint32
	Model  uint32
	Width  uint64
	Height uint64
	Params [4]float64 // fx, fy, cx, cy
}

type SparseImage struct {
	ID       uint32
	Rotation Quaternion // world-to-camera, scalar first
	Trans    [3]float64
	CameraID uint32
	Name     string
}

type SparsePoint struct {
	ID    uint64
	XYZ   [3]float64
	Color Color
	Error float64
}

// EncodeCameras serialises the camera list.
func EncodeCameras(cams []SparseCamera) []byte {
	buf := &bytes.Buffer{}
	le := binary.LittleEndian

	writeU64(buf, le, uint64(len(cams)))
	for _, c := range cams {
		writeU32(buf, le, c.ID)
		writeU32(buf, le, c.Model)
		writeU64(buf, le, c.Width)
		writeU64(buf, le, c.Height)
		for _, p := range c.Params {
			writeF64(buf, le, p)
		}
	}
	return buf.Bytes()
}

// EncodeImages serialises the image/pose list. Each record closes with a
// NUL-terminated name and a zero 2D-point count.
func EncodeImages(images []SparseImage) []byte {
	buf := &bytes.Buffer{}
	le := binary.LittleEndian

	writeU64(buf, le, uint64(len(images)))
	for _, im := range images {
		writeU32(buf, le, im.ID)
		writeF64(buf, le, im.Rotation.W)
		writeF64(buf, le, im.Rotation.X)
		writeF64(buf, le, im.Rotation.Y)
		writeF64(buf, le, im.Rotation.Z)
		for _, t := range im.Trans {
			writeF64(buf, le, t)
		}
		writeU32(buf, le, im.CameraID)
		buf.WriteString(im.Name)
		buf.WriteByte(0)
		writeU64(buf, le, 0) // no 2D observations in synthetic data
	}
	return buf.Bytes()
}

// EncodePoints3D serialises the 3D point list with zero-length tracks.
func EncodePoints3D(points []SparsePoint) []byte {
	buf := &bytes.Buffer{}
	le := binary.LittleEndian

	writeU64(buf, le, uint64(len(points)))
	for _, p := range points {
		writeU64(buf, le, p.ID)
		for _, v := range p.XYZ {
			writeF64(buf, le, v)
		}
		buf.WriteByte(p.Color.R)
		buf.WriteByte(p.Color.G)
		buf.WriteByte(p.Color.B)
		writeF64(buf, le, p.Error)
		writeU64(buf, le, 0) // track length
	}
	return buf.Bytes()
}

// WriteSparseModel writes the three binary record files into dir.
func WriteSparseModel(dir string, cams []SparseCamera, images []SparseImage, points []SparsePoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sparse dir: %w", err)
	}
	files := map[string][]byte{
		"cameras.bin":  EncodeCameras(cams),
		"images.bin":   EncodeImages(images),
		"points3D.bin": EncodePoints3D(points),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func writeU32(buf *bytes.Buffer, le binary.ByteOrder, v uint32) {
	var b [4]byte
	le.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, le binary.ByteOrder, v uint64) {
	var b [8]byte
	le.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeF64(buf *bytes.Buffer, le binary.ByteOrder, v float64) {
	_ = binary.Write(buf, le, v)
}
