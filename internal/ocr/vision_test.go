package ocr

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func fakeSource(resp *visionpb.BatchAnnotateImagesResponse, err error) (*VisionSource, *int) {
	calls := 0
	return &VisionSource{
		annotate: func(_ context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			calls++
			return resp, err
		},
		languageHints: []string{"it"},
	}, &calls
}

func textResponse(text string) *visionpb.BatchAnnotateImagesResponse {
	return &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			FullTextAnnotation: &visionpb.TextAnnotation{
				Text: text,
				Pages: []*visionpb.Page{{
					Confidence: 0.9,
					Property: &visionpb.TextAnnotation_TextProperty{
						DetectedLanguages: []*visionpb.TextAnnotation_DetectedLanguage{
							{LanguageCode: "it"}, {LanguageCode: "it"},
						},
					},
				}},
			},
		}},
	}
}

func TestImageText(t *testing.T) {
	src, calls := fakeSource(textResponse("Fornitore: Enel\nTotale € 85,50"), nil)

	res, err := src.ImageText(context.Background(), bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.Contains(t, res.Text, "Enel")
	assert.InDelta(t, 0.9, res.Confidence, 0.0001)
	assert.Equal(t, []string{"it"}, res.LanguageCodes)
	assert.False(t, res.ProcessedAt.IsZero())
}

func TestImageText_RejectedBeforeAPICall(t *testing.T) {
	tests := []struct {
		name    string
		image   []byte
		wantErr error
	}{
		{"empty", nil, ErrNoImage},
		{"not an image", []byte("%PDF-1.7 not an image"), ErrUnsupportedImage},
		{"too large", append(append([]byte{}, pngHeader...), make([]byte, MaxImageBytes)...), ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, calls := fakeSource(textResponse("x"), nil)
			_, err := src.ImageText(context.Background(), bytes.NewReader(tt.image))
			assert.ErrorIs(t, err, tt.wantErr)

			var ocrErr *OCRError
			assert.True(t, errors.As(err, &ocrErr))
			assert.Equal(t, 0, *calls)
		})
	}
}

func TestImageText_NilReader(t *testing.T) {
	src, _ := fakeSource(nil, nil)
	_, err := src.ImageText(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, "ocr: ImageText failed: no image selected", err.Error())
}

func TestImageText_TIFFAccepted(t *testing.T) {
	src, _ := fakeSource(textResponse("Descrizione: acqua"), nil)
	_, err := src.ImageText(context.Background(), strings.NewReader("II*\x00rest-of-tiff"))
	assert.NoError(t, err)
}

func TestImageText_APIFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    *visionpb.BatchAnnotateImagesResponse
		err     error
		wantErr error
	}{
		{"transport error", nil, errors.New("unavailable"), ErrOCRFailed},
		{"no responses", &visionpb.BatchAnnotateImagesResponse{}, nil, ErrOCRFailed},
		{"per-image error", &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{Error: &statuspb.Status{Message: "bad image"}}},
		}, nil, ErrOCRFailed},
		{"blank text", textResponse("  \n "), nil, ErrEmptyDocument},
		{"no annotation", &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{}},
		}, nil, ErrEmptyDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := fakeSource(tt.resp, tt.err)
			_, err := src.ImageText(context.Background(), bytes.NewReader(pngHeader))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestImageText_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src, _ := fakeSource(nil, errors.New("rpc canceled"))
	_, err := src.ImageText(ctx, bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, context.Canceled)
}
