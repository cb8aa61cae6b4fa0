package boxspace

import "testing"

// BenchmarkIoU_NonOverlapping returns early on an empty intersection.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	a := NewCorner(0, 0, 100, 100, Pixel)
	o := NewCorner(200, 200, 300, 300, Pixel)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = IoU(a, o)
	}
}

// BenchmarkIoU_MixedEncodings converts a center box on every call.
func BenchmarkIoU_MixedEncodings(b *testing.B) {
	a := NewCorner(0, 0, 100, 100, Pixel)
	o := NewCenter(100, 100, 100, 100, Pixel)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = IoU(a, o)
	}
}

func BenchmarkNormalizeDenormalize(b *testing.B) {
	frame := NewSize(1920, 1080)
	box := NewCenter(960, 540, 320, 180, Pixel)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		n, err := Normalize(box, frame)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := Denormalize(n, frame); err != nil {
			b.Fatal(err)
		}
	}
}
