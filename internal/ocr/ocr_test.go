package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
)

type call struct {
	name string
	args []string
}

// fakeRunner renders a fixed page for pdftoppm and returns canned tesseract output.
type fakeRunner struct {
	mu         sync.Mutex
	calls      []call
	page       []byte // written to <prefix>.png; nil renders nothing
	ocrOut     string
	ocrErr     error
	sawPNGFile bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	switch name {
	case "pdftoppm":
		if f.page != nil {
			prefix := args[len(args)-1]
			if err := os.WriteFile(prefix+".png", f.page, 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		if _, err := os.Stat(args[0]); err == nil {
			f.sawPNGFile = true
		}
		if f.ocrErr != nil {
			return nil, []byte("boom"), f.ocrErr
		}
		return []byte(f.ocrOut), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{R: 240, G: 235, B: 230, A: 255}
			if x > 8 && x < 30 && y > 6 && y < 16 {
				c = color.NRGBA{R: 20, G: 30, B: 25, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want constants.MediaKind
	}{
		{"pdf signature", []byte("%PDF-1.7\n..."), constants.PDF},
		{"png", []byte{0x89, 'P', 'N', 'G'}, constants.IMAGE},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, constants.IMAGE},
		{"short garbage", []byte("%P"), constants.IMAGE},
		{"empty", nil, constants.UNKNOWN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 2, reflect101(-2, 5))
	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 2, reflect101(6, 5))
	assert.Equal(t, 0, reflect101(-1, 1))
	assert.Equal(t, 1, reflect101(-1, 2))
	assert.Equal(t, 0, reflect101(2, 2))
}

func TestGaussianBlur5UniformIsIdentity(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 7, 5))
	for i := range g.Pix {
		g.Pix[i] = 100
	}
	out := GaussianBlur5(g)
	for _, p := range out.Pix {
		require.Equal(t, uint8(100), p)
	}
}

func TestOtsuTwoLevels(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range g.Pix {
		if i < 50 {
			g.Pix[i] = 10
		} else {
			g.Pix[i] = 200
		}
	}
	th := OtsuThreshold(g)
	assert.Equal(t, uint8(10), th)

	bin := Binarize(g, th)
	assert.Equal(t, uint8(0), bin.Pix[0])
	assert.Equal(t, uint8(255), bin.Pix[99])
}

func TestOtsuUniformIsZero(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	assert.Equal(t, uint8(0), OtsuThreshold(g))
	assert.True(t, Bitmap{Image: Binarize(g, 0)}.IsBinary())
}

func TestNormalizeImageDeterministicBinary(t *testing.T) {
	n := NewNormalizer(nil, nil)
	raw := samplePNG(t)

	a, pages, err := n.Normalize(context.Background(), raw, constants.IMAGE)
	require.NoError(t, err)
	b, _, err := n.Normalize(context.Background(), raw, constants.IMAGE)
	require.NoError(t, err)

	assert.Equal(t, 1, pages)
	assert.True(t, a.IsBinary())
	assert.Equal(t, a.Image.Pix, b.Image.Pix)
	assert.Equal(t, a.Threshold, b.Threshold)
	assert.Equal(t, 40, a.Image.Rect.Dx())
	assert.Equal(t, 24, a.Image.Rect.Dy())

	// dark block becomes ink, paper becomes white
	assert.Equal(t, uint8(0), a.Image.GrayAt(20, 11).Y)
	assert.Equal(t, uint8(255), a.Image.GrayAt(1, 1).Y)
}

func TestNormalizeUndecodable(t *testing.T) {
	n := NewNormalizer(nil, nil)
	_, _, err := n.Normalize(context.Background(), []byte("definitely not an image"), constants.IMAGE)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDecode)
	assert.Equal(t, common.CodeDecode, common.CodeOf(err))
}

func TestExtractPDFRendersFirstPageOnly(t *testing.T) {
	fr := &fakeRunner{page: samplePNG(t), ocrOut: "REPUBLICA DE CHILE\r\nRUN 12.345.678-5  \n\n\n\n"}
	ex := NewExtractor(Config{}, nil, WithRunner(fr))

	res, err := ex.Extract(context.Background(), []byte("%PDF-1.4 not a real document"))
	require.NoError(t, err)

	assert.Equal(t, constants.PDF, res.Kind)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, "REPUBLICA DE CHILE\nRUN 12.345.678-5", res.Text)

	require.Len(t, fr.calls, 2)
	pdfCall := fr.calls[0]
	assert.Equal(t, "pdftoppm", pdfCall.name)
	assert.Equal(t, []string{"-r", "300", "-f", "1", "-l", "1", "-png", "-singlefile"}, pdfCall.args[:8])

	ocrCall := fr.calls[1]
	assert.Equal(t, "tesseract", ocrCall.name)
	assert.Equal(t, []string{"stdout", "-l", "spa"}, ocrCall.args[1:4])
	assert.True(t, fr.sawPNGFile)
}

func TestExtractPDFWithoutPage(t *testing.T) {
	fr := &fakeRunner{}
	ex := NewExtractor(Config{}, nil, WithRunner(fr))

	_, err := ex.Extract(context.Background(), []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConversion)
	assert.Len(t, fr.calls, 1)
}

func TestExtractImageEmptyText(t *testing.T) {
	fr := &fakeRunner{ocrOut: "  \n\f"}
	ex := NewExtractor(Config{PSM: 6, TessdataDir: "/opt/tessdata"}, nil, WithRunner(fr))

	res, err := ex.Extract(context.Background(), samplePNG(t))
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, constants.IMAGE, res.Kind)
	assert.Equal(t, 1, res.Pages)

	require.Len(t, fr.calls, 1)
	assert.Contains(t, fr.calls[0].args, "--psm")
	assert.Contains(t, fr.calls[0].args, "/opt/tessdata")
}

func TestExtractEngineFailure(t *testing.T) {
	fr := &fakeRunner{ocrErr: errors.New("exit status 1")}
	ex := NewExtractor(Config{}, nil, WithRunner(fr))

	_, err := ex.Extract(context.Background(), samplePNG(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOCR)
}

func TestExtractEmptyInput(t *testing.T) {
	ex := NewExtractor(Config{}, nil, WithRunner(&fakeRunner{}))
	_, err := ex.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrDecode)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a\tb", "a b"},
		{"a    b", "a b"},
		{"line1\r\nline2", "line1\nline2"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"top\n-----\nbottom", "top\n\nbottom"},
		{"RUN 10.000.000-0 O0", "RUN 10.000.000-0 O0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in), "input %q", tt.in)
	}
}
