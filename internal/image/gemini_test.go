package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	*httptest.Server
	calls atomic.Int32

	mu       sync.Mutex
	lastBody []byte
}

func newFakeService(t *testing.T, status int, body []byte) *fakeService {
	t.Helper()
	f := &fakeService{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lastBody = b
		f.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeService) body() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeService) generator() *GeminiGenerator {
	return New(Config{APIKey: "sk-test", Endpoint: f.URL}, f.Client())
}

func TestGenerateTextToImage(t *testing.T) {
	want := []byte{0x01, 0x02, 0x03, 0x04}
	svc := newFakeService(t, http.StatusOK, inlineResponse("inlineData", want))

	res := svc.generator().Generate(context.Background(), Request{Prompt: "a red circle", AspectRatio: AspectRatio1x1})
	require.True(t, res.OK(), "%v", res.Failure())
	assert.NoError(t, res.Failure())
	assert.Equal(t, want, res.Image)
	assert.Equal(t, "image/png", res.MIMEType)

	body := decodeBody(t, svc.body())
	require.Len(t, body.Contents[0].Parts, 1)
	assert.Contains(t, body.Contents[0].Parts[0], "text")
	assert.JSONEq(t, `{"aspectRatio":"1:1"}`, string(body.GenerationConfig["imageConfig"]))
}

func TestGenerateEditSendsSourceBytes(t *testing.T) {
	src := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x42, 0x43}
	path := filepath.Join(t.TempDir(), "dog.png")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	svc := newFakeService(t, http.StatusOK, inlineResponse("inline_data", []byte("out")))
	res := svc.generator().Generate(context.Background(), Request{Prompt: "add a hat", AspectRatio: AspectRatio1x1, SourcePaths: []string{path}})
	require.True(t, res.OK(), "%v", res.Failure())

	parts := decodeBody(t, svc.body()).Contents[0].Parts
	require.Len(t, parts, 2)
	var inline struct {
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(parts[1]["inline_data"], &inline))
	sent, err := base64.StdEncoding.DecodeString(inline.Data)
	require.NoError(t, err)
	assert.Equal(t, src, sent)
}

func TestGenerateValidationSkipsNetwork(t *testing.T) {
	svc := newFakeService(t, http.StatusOK, inlineResponse("inlineData", []byte("x")))
	gen := svc.generator()

	for _, req := range []Request{
		{Prompt: "p", AspectRatio: "2:1"},
		{Prompt: "p", AspectRatio: "3:7"},
		{Prompt: "p", SourcePaths: []string{filepath.Join(t.TempDir(), "missing.png")}},
	} {
		res := gen.Generate(context.Background(), req)
		require.False(t, res.OK())
		assert.Equal(t, KindValidation, res.Err.Kind())
	}
	assert.Zero(t, svc.calls.Load())
}

func TestGenerateHTTPFailure(t *testing.T) {
	svc := newFakeService(t, http.StatusUnauthorized, []byte(`{"error":"invalid key"}`))

	res := svc.generator().Generate(context.Background(), Request{Prompt: "p"})
	require.False(t, res.OK())
	assert.Nil(t, res.Image)
	assert.Equal(t, ReasonHTTPError, res.Err.Reason)
	assert.Equal(t, http.StatusUnauthorized, res.Err.StatusCode)
	assert.Error(t, res.Failure())
}

func TestGenerateNoImageData(t *testing.T) {
	body := []byte(`{"candidates":[{"content":{"parts":[{"text":"no"}]}}]}`)
	svc := newFakeService(t, http.StatusOK, body)

	res := svc.generator().Generate(context.Background(), Request{Prompt: "p"})
	require.False(t, res.OK())
	assert.Equal(t, ReasonNoImageData, res.Err.Reason)
	assert.JSONEq(t, string(body), string(res.Err.Raw))
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	i := do.New()
	do.ProvideValue[Config](i, Config{})
	do.ProvideValue[*http.Client](i, http.DefaultClient)
	_, err := NewGeminiGenerator(i)
	assert.Error(t, err)

	i = do.New()
	do.ProvideValue[Config](i, Config{APIKey: "sk"})
	do.ProvideValue[*http.Client](i, http.DefaultClient)
	gen, err := NewGeminiGenerator(i)
	require.NoError(t, err)
	assert.IsType(t, &GeminiGenerator{}, gen)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("image/png"))
	assert.Equal(t, ".jpg", Extension("image/jpeg"))
	assert.Equal(t, ".webp", Extension("image/webp"))
	assert.Equal(t, ".png", Extension(""))
}
