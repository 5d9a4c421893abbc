package entity

const (
	FrameFormatJPEG = "jpeg"
	FrameFormatPNG  = "png"
)

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// ContentType returns the MIME type of the encoded frame.
func (s *Screenshot) ContentType() string {
	if s == nil || s.Format == "" {
		return "application/octet-stream"
	}
	return "image/" + s.Format
}

type Viewport struct {
	Width  int
	Height int
}

// ToPixels converts normalized [0,1] coordinates to viewport pixels.
// Out-of-range input is clamped to the viewport edges.
func (v Viewport) ToPixels(xNorm, yNorm float64) (int, int) {
	return scale(xNorm, v.Width), scale(yNorm, v.Height)
}

func scale(norm float64, size int) int {
	px := int(clamp01(norm) * float64(size))
	if size > 0 && px >= size {
		px = size - 1
	}
	return px
}

func clamp01(f float64) float64 {
	if f != f || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// KeyInput carries either a named key or literal text, never both.
type KeyInput struct {
	Key  string
	Text string
}

func (k KeyInput) IsEmpty() bool {
	return k.Key == "" && k.Text == ""
}
