package image

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultMaxSourceBytes = 5 << 20
	defaultSourceMIMEType = "image/jpeg"
	responseModalityImage = "IMAGE"
)

type Request struct {
	Prompt      string
	AspectRatio AspectRatio
	Resolution  Resolution
	SourcePaths []string
	Sources     []Source
}

func (r Request) Edit() bool {
	return len(r.SourcePaths) > 0 || len(r.Sources) > 0
}

type Source struct {
	Name     string
	MIMEType string
	Data     []byte
}

type requestBody struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio AspectRatio `json:"aspectRatio,omitempty"`
	ImageSize   Resolution  `json:"image_size,omitempty"`
}

type Builder struct {
	MaxSourceBytes int64
}

// Build validates the request and renders the JSON body. It touches the
// filesystem only to read source images.
func (b Builder) Build(req Request) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &Error{Reason: ReasonEmptyPrompt, Detail: "prompt is required"}
	}
	if req.AspectRatio != "" && !req.AspectRatio.Valid() {
		return nil, &Error{
			Reason: ReasonInvalidAspectRatio,
			Detail: fmt.Sprintf("unsupported aspect ratio %q, supported: %s", req.AspectRatio,
				strings.Join(lo.Map(SupportedAspectRatios, func(a AspectRatio, _ int) string { return string(a) }), ", ")),
		}
	}
	if req.Resolution != "" && !req.Resolution.Valid() {
		return nil, &Error{Reason: ReasonInvalidResolution, Detail: fmt.Sprintf("unsupported resolution %q", req.Resolution)}
	}

	sources := make([]Source, 0, len(req.SourcePaths)+len(req.Sources))
	for _, path := range req.SourcePaths {
		src, err := LoadSource(path, b.maxSourceBytes())
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	for _, src := range req.Sources {
		if int64(len(src.Data)) > b.maxSourceBytes() {
			return nil, tooLarge(src.Name, int64(len(src.Data)), b.maxSourceBytes())
		}
		if src.MIMEType == "" {
			src.MIMEType = detectMIMEType(src.Name, src.Data)
		}
		sources = append(sources, src)
	}

	parts := []requestPart{{Text: req.Prompt}}
	for _, src := range sources {
		parts = append(parts, requestPart{InlineData: &inlineData{
			MIMEType: src.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(src.Data),
		}})
	}

	body := requestBody{
		Contents: []requestContent{{Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{responseModalityImage},
		},
	}
	if req.AspectRatio != "" || req.Resolution != "" {
		body.GenerationConfig.ImageConfig = &imageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.Resolution,
		}
	}
	return json.Marshal(body)
}

func (b Builder) maxSourceBytes() int64 {
	return lo.Ternary(b.MaxSourceBytes > 0, b.MaxSourceBytes, DefaultMaxSourceBytes)
}

// LoadSource reads a local image for edit mode. Any failure to stat or read
// the file is reported as SourceNotFound.
func LoadSource(path string, maxBytes int64) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, &Error{Reason: ReasonSourceNotFound, Detail: fmt.Sprintf("source image %s not found", path), Err: err}
	}
	if info.IsDir() {
		return Source{}, &Error{Reason: ReasonSourceNotFound, Detail: fmt.Sprintf("source image %s is a directory", path)}
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return Source{}, tooLarge(path, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, &Error{Reason: ReasonSourceNotFound, Detail: fmt.Sprintf("source image %s is not readable", path), Err: err}
	}
	return Source{
		Name:     filepath.Base(path),
		MIMEType: detectMIMEType(path, data),
		Data:     data,
	}, nil
}

func tooLarge(name string, size, limit int64) error {
	return &Error{
		Reason: ReasonSourceTooLarge,
		Detail: fmt.Sprintf("source image %s is %.2fMB, limit is %.2fMB", name, float64(size)/(1<<20), float64(limit)/(1<<20)),
	}
}

// detectMIMEType trusts the file extension first, then sniffs the content,
// and settles on image/jpeg when neither yields an image type.
func detectMIMEType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); strings.HasPrefix(t, "image/") {
		return strings.SplitN(t, ";", 2)[0]
	}
	if len(data) > 0 {
		if t := http.DetectContentType(data); strings.HasPrefix(t, "image/") {
			return t
		}
	}
	return defaultSourceMIMEType
}
