package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iProgramme/AI-shouban/internal/image"
	"github.com/iProgramme/AI-shouban/internal/prompt"
	"github.com/iProgramme/AI-shouban/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local) }

type fakeGenerator struct {
	result image.Result
	got    []image.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req image.Request) image.Result {
	f.got = append(f.got, req)
	return f.result
}

type recordingUploader struct {
	uploads []store.UploadParams
	err     error
}

func (r *recordingUploader) Upload(_ context.Context, p store.UploadParams) (store.Artifact, error) {
	if r.err != nil {
		return store.Artifact{}, r.err
	}
	r.uploads = append(r.uploads, p)
	return store.Artifact{Location: "mem://" + p.Name, Key: "images/" + p.Name, Size: len(p.Data)}, nil
}

type recordingInvalidator struct {
	paths []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths []string) error {
	r.paths = append(r.paths, paths...)
	return nil
}

func TestHandleSavesImage(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{result: image.Result{Image: []byte("jpeg!"), MIMEType: "image/jpeg", Elapsed: time.Second}}
	h := New(gen, &store.FileUploader{Dir: dir}, "NanoBananaPro", WithClock(fixedNow))

	out, err := h.Handle(context.Background(), Input{Prompt: "a cat", AspectRatio: image.AspectRatio16x9, Resolution: image.Resolution2K})
	require.NoError(t, err)

	want := filepath.Join(dir, "NanoBananaPro_20250102_030405.jpg")
	assert.Equal(t, want, out.Location)
	assert.Equal(t, 5, out.Size)
	assert.Equal(t, time.Second, out.Elapsed)
	assert.Nil(t, out.Image)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg!"), data)

	require.Len(t, gen.got, 1)
	assert.Equal(t, image.Request{Prompt: "a cat", AspectRatio: image.AspectRatio16x9, Resolution: image.Resolution2K}, gen.got[0])
}

func TestHandleExplicitNameAndPrefix(t *testing.T) {
	up := &recordingUploader{}
	h := New(&fakeGenerator{result: image.Result{Image: []byte{1}}}, up, "default", WithClock(fixedNow))

	_, err := h.Handle(context.Background(), Input{Prompt: "p", Prefix: "gemini_edited"})
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), Input{Prompt: "p", Name: "cover.png"})
	require.NoError(t, err)

	require.Len(t, up.uploads, 2)
	assert.Equal(t, "gemini_edited_20250102_030405.png", up.uploads[0].Name)
	assert.Equal(t, "image/png", up.uploads[0].ContentType)
	assert.Equal(t, "t2i", up.uploads[0].Metadata["mode"])
	assert.Equal(t, "cover.png", up.uploads[1].Name)
}

func TestHandleGenerationFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	fail := &image.Error{Reason: image.ReasonHTTPError, StatusCode: 500, Detail: "boom"}
	h := New(&fakeGenerator{result: image.Result{Err: fail}}, &store.FileUploader{Dir: dir}, "x")

	_, err := h.Handle(context.Background(), Input{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, image.IsKind(err, image.KindTransport))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleSaveFailureKeepsImage(t *testing.T) {
	diskFull := errors.New("no space left on device")
	h := New(&fakeGenerator{result: image.Result{Image: []byte("img")}}, &recordingUploader{err: diskFull}, "x")

	out, err := h.Handle(context.Background(), Input{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, image.ReasonWriteFailed, image.ReasonOf(err))
	assert.True(t, image.IsKind(err, image.KindIO))
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, []byte("img"), out.Image)
}

func TestHandleUsesPresetWhenPromptMissing(t *testing.T) {
	gen := &fakeGenerator{result: image.Result{Image: []byte{1}}}
	r := prompt.New([]string{"21:9|a neon city"}, rand.New(rand.NewSource(1)))
	h := New(gen, &recordingUploader{}, "x", WithRandomizer(r))

	out, err := h.Handle(context.Background(), Input{Resolution: image.Resolution1K})
	require.NoError(t, err)
	assert.Equal(t, "a neon city", out.Prompt)
	assert.Equal(t, image.AspectRatio21x9, gen.got[0].AspectRatio)

	_, err = h.Handle(context.Background(), Input{AspectRatio: image.AspectRatio1x1})
	require.NoError(t, err)
	assert.Equal(t, image.AspectRatio1x1, gen.got[1].AspectRatio)
}

func TestHandleInlineSource(t *testing.T) {
	gen := &fakeGenerator{result: image.Result{Image: []byte{1}}}
	up := &recordingUploader{}
	h := New(gen, up, "x")

	_, err := h.Handle(context.Background(), Input{Prompt: "p", Image: base64.StdEncoding.EncodeToString([]byte("src")), ImageName: "a.png"})
	require.NoError(t, err)
	assert.Equal(t, []image.Source{{Name: "a.png", Data: []byte("src")}}, gen.got[0].Sources)
	assert.Equal(t, "i2i", up.uploads[0].Metadata["mode"])

	_, err = h.Handle(context.Background(), Input{Prompt: "p", Image: "%%%"})
	assert.True(t, image.IsKind(err, image.KindValidation))
	assert.Len(t, gen.got, 1)
}

func TestHandleLatestAlias(t *testing.T) {
	up := &recordingUploader{}
	inv := &recordingInvalidator{}
	h := New(&fakeGenerator{result: image.Result{Image: []byte{1}, MIMEType: "image/png"}}, up, "kb",
		WithInvalidator(inv), WithClock(fixedNow))

	_, err := h.Handle(context.Background(), Input{Prompt: "p"})
	require.NoError(t, err)

	require.Len(t, up.uploads, 2)
	assert.Equal(t, "latest.png", up.uploads[1].Name)
	assert.Equal(t, []string{"/images/kb_20250102_030405.png", "/images/latest.png"}, inv.paths)
}

func inlineResponse(data []byte) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"%s"}}]}}]}`,
		base64.StdEncoding.EncodeToString(data))
}

func TestHandleEndToEnd(t *testing.T) {
	want := []byte{0xca, 0xfe, 0xba, 0xbe}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(inlineResponse(want)))
	}))
	defer srv.Close()

	dir := t.TempDir()
	gen := image.New(image.Config{APIKey: "sk", Endpoint: srv.URL}, srv.Client())
	h := New(gen, &store.FileUploader{Dir: dir}, "NanoBananaPro")

	out, err := h.Handle(context.Background(), Input{Prompt: "a red circle", AspectRatio: image.AspectRatio1x1})
	require.NoError(t, err)

	data, err := os.ReadFile(out.Location)
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestHandleEndToEndHTTPErrorWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := t.TempDir()
	gen := image.New(image.Config{APIKey: "sk", Endpoint: srv.URL}, srv.Client())
	h := New(gen, &store.FileUploader{Dir: dir}, "x")

	_, err := h.Handle(context.Background(), Input{Prompt: "a red circle", AspectRatio: image.AspectRatio1x1})

	var e *image.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusBadGateway, e.StatusCode)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestHandleRejectsEscapingNamesBeforeGenerating(t *testing.T) {
	gen := &fakeGenerator{result: image.Result{Image: []byte{1}}}
	h := New(gen, &store.FileUploader{Dir: t.TempDir()}, "x")

	for _, in := range []Input{
		{Prompt: "p", Name: "../x.png"},
		{Prompt: "p", Prefix: "../../x"},
	} {
		_, err := h.Handle(context.Background(), in)
		assert.Equal(t, image.ReasonInvalidName, image.ReasonOf(err))
		assert.True(t, image.IsKind(err, image.KindValidation))
	}
	assert.Empty(t, gen.got)
}
