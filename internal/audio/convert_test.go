package audio

import (
	"math"
	"testing"
)

func TestFloat32ToInt16_Normal(t *testing.T) {
	out := Float32ToInt16([]float32{0.5, -0.5, 0})
	if out[2] != 0 {
		t.Fatalf("expected 0 for 0.0 input, got %d", out[2])
	}
	if out[0] <= 0 {
		t.Fatalf("expected positive for 0.5 input, got %d", out[0])
	}
	if out[1] >= 0 {
		t.Fatalf("expected negative for -0.5 input, got %d", out[1])
	}
}

func TestFloat32ToInt16_Clamp(t *testing.T) {
	out := Float32ToInt16([]float32{1.5, -1.5})
	if out[0] != math.MaxInt16 {
		t.Fatalf("expected %d (clamped to 1.0), got %d", math.MaxInt16, out[0])
	}
	if out[1] != -math.MaxInt16 {
		t.Fatalf("expected %d (clamped to -1.0), got %d", -math.MaxInt16, out[1])
	}
}

func TestInt16ToFloat32_Range(t *testing.T) {
	out := Int16ToFloat32([]int16{0, math.MaxInt16})
	if out[0] != 0 {
		t.Fatalf("expected 0.0, got %f", out[0])
	}
	if out[1] != 1.0 {
		t.Fatalf("expected 1.0 for MaxInt16, got %f", out[1])
	}
}

func TestInt16Bytes_LittleEndianRoundtrip(t *testing.T) {
	samples := []int16{0, 1, -1, 0x0102, -1000, math.MaxInt16, math.MinInt16}
	b := Int16ToBytes(samples)
	if b[6] != 0x02 || b[7] != 0x01 {
		t.Fatalf("expected little-endian layout for 0x0102, got [%#x %#x]", b[6], b[7])
	}
	result := BytesToInt16(b)
	if len(result) != len(samples) {
		t.Fatalf("length mismatch: expected %d, got %d", len(samples), len(result))
	}
	for i, s := range samples {
		if result[i] != s {
			t.Errorf("index %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestStereoBytesToMonoFloat32_Average(t *testing.T) {
	// 一帧：左 +1000，右 -1000，平均为 0
	b := Int16ToBytes([]int16{1000, -1000})
	out := StereoBytesToMonoFloat32(b)
	if len(out) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(out))
	}
	if out[0] != 0 {
		t.Fatalf("expected averaged 0.0, got %f", out[0])
	}
}

func TestStereoBytesToMonoFloat32_TruncatesPartialFrame(t *testing.T) {
	// 6 字节 = 1 个完整帧 + 半帧，半帧应被截掉
	b := Int16ToBytes([]int16{100, 100, 100})
	out := StereoBytesToMonoFloat32(b)
	if len(out) != 1 {
		t.Fatalf("expected partial frame dropped, got %d frames", len(out))
	}
}
