// Package ocr turns photographed bills into text using Google Cloud Vision.
//
// Images are sent inline (no Cloud Storage upload) to the synchronous
// DOCUMENT_TEXT_DETECTION feature with Italian and English language hints.
// Credentials come from, in order: an inline JSON string, a service account
// file, or the application default credentials.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// MaxImageBytes is the largest image accepted for synchronous processing.
const MaxImageBytes = 20 * 1024 * 1024

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// TextSource extracts text from an image.
type TextSource interface {
	ImageText(ctx context.Context, image io.Reader) (*Result, error)
}

// Result is the text read from one image.
type Result struct {
	Text          string        `json:"text"`
	Confidence    float32       `json:"confidence"`
	LanguageCodes []string      `json:"language_codes,omitempty"`
	ProcessedAt   time.Time     `json:"processed_at"`
	Duration      time.Duration `json:"duration"`
}

// Credentials select how the Vision client authenticates. Both empty means
// application default credentials.
type Credentials struct {
	JSON string
	File string
}

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionSource implements TextSource with the Cloud Vision API.
type VisionSource struct {
	annotate      annotateFunc
	close         func() error
	languageHints []string
}

// NewVisionSource creates a Vision client from creds.
func NewVisionSource(ctx context.Context, creds Credentials) (*VisionSource, error) {
	const op = "NewVisionSource"

	var (
		client *vision.ImageAnnotatorClient
		err    error
	)
	switch {
	case creds.JSON != "":
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(creds.JSON)))
		if err != nil {
			return nil, wrapError(op, err, "failed to create client with inline credentials")
		}
	case creds.File != "":
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(creds.File))
		if err != nil {
			return nil, wrapError(op, err, "failed to create client with credentials file")
		}
	default:
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, wrapError(op, ErrMissingCredentials, err.Error())
		}
	}
	return NewVisionSourceWithClient(client), nil
}

// NewVisionSourceWithClient wraps an existing client.
func NewVisionSourceWithClient(client *vision.ImageAnnotatorClient) *VisionSource {
	return &VisionSource{
		annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return client.BatchAnnotateImages(ctx, req)
		},
		close:         client.Close,
		languageHints: []string{"it", "en"},
	}
}

// ImageText runs document text detection on one image.
func (v *VisionSource) ImageText(ctx context.Context, image io.Reader) (*Result, error) {
	const op = "ImageText"
	start := time.Now()

	data, err := readImage(image)
	if err != nil {
		return nil, wrapError(op, err, "")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: data},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: v.languageHints},
		}},
	}

	resp, err := v.annotate(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapError(op, ctxErr, "")
		}
		return nil, wrapError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if resp == nil || len(resp.Responses) == 0 {
		return nil, wrapError(op, ErrOCRFailed, "no response from Vision API")
	}

	result, err := fromResponse(resp.Responses[0])
	if err != nil {
		return nil, wrapError(op, err, "")
	}
	result.ProcessedAt = time.Now()
	result.Duration = result.ProcessedAt.Sub(start)
	return result, nil
}

// Close releases the Vision client.
func (v *VisionSource) Close() error {
	if v.close != nil {
		return v.close()
	}
	return nil
}

// readImage reads and checks image bytes before any API call.
func readImage(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, ErrNoImage
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	if ct := http.DetectContentType(data); !supportedTypes[ct] && !isTIFF(data) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
	}
	return data, nil
}

func isTIFF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*"))
}

func fromResponse(r *visionpb.AnnotateImageResponse) (*Result, error) {
	if r.Error != nil {
		return nil, fmt.Errorf("%w: Vision API error: %s", ErrOCRFailed, r.Error.Message)
	}
	doc := r.FullTextAnnotation
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmptyDocument
	}

	var (
		confSum   float32
		confCount int
		langs     []string
		seen      = make(map[string]bool)
	)
	for _, page := range doc.Pages {
		if page.Confidence > 0 {
			confSum += page.Confidence
			confCount++
		}
		if page.Property == nil {
			continue
		}
		for _, lang := range page.Property.DetectedLanguages {
			if lang.LanguageCode != "" && !seen[lang.LanguageCode] {
				seen[lang.LanguageCode] = true
				langs = append(langs, lang.LanguageCode)
			}
		}
	}

	var conf float32
	if confCount > 0 {
		conf = confSum / float32(confCount)
	}
	return &Result{Text: doc.Text, Confidence: conf, LanguageCodes: langs}, nil
}
