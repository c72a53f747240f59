package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// fakePutter records PutObject calls.
type fakePutter struct {
	calls []*s3.PutObjectInput
	body  []string
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.calls = append(f.calls, in)
	f.body = append(f.body, string(data))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_Store(t *testing.T) {
	fp := &fakePutter{}
	u := NewS3Uploader(fp, "remarketing", "https://files.example.com/")

	obj, err := u.Store(context.Background(), Object{
		Name:        "Promo.PNG",
		Kind:        model.KindImage,
		ContentType: "image/png",
		Size:        5,
		Body:        strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if !strings.HasPrefix(obj.Key, "remarketing/") || !strings.HasSuffix(obj.Key, ".png") {
		t.Errorf("Key = %q, want remarketing/<id>.png", obj.Key)
	}
	if obj.Bucket != "remarketing" {
		t.Errorf("Bucket = %q", obj.Bucket)
	}
	if want := "https://files.example.com/remarketing/" + obj.Key; obj.URL != want {
		t.Errorf("URL = %q, want %q", obj.URL, want)
	}

	if len(fp.calls) != 1 {
		t.Fatalf("PutObject calls = %d, want 1", len(fp.calls))
	}
	in := fp.calls[0]
	if aws.ToString(in.Bucket) != "remarketing" || aws.ToString(in.Key) != obj.Key {
		t.Errorf("PutObject bucket/key = %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != "image/png" {
		t.Errorf("ContentType = %q", aws.ToString(in.ContentType))
	}
	if aws.ToInt64(in.ContentLength) != 5 || fp.body[0] != "hello" {
		t.Errorf("body = %q (len %d)", fp.body[0], aws.ToInt64(in.ContentLength))
	}
}

func TestS3Uploader_RejectsExtension(t *testing.T) {
	for _, tc := range []struct {
		name string
		kind model.BlockKind
	}{
		{"song.mp3", model.KindImage},
		{"run.exe", model.KindDocument},
		{"noext", model.KindVideo},
		{"note.txt", model.KindText},
	} {
		fp := &fakePutter{}
		u := NewS3Uploader(fp, "b", "http://minio:9000")
		_, err := u.Store(context.Background(), Object{Name: tc.name, Kind: tc.kind, Body: strings.NewReader("x")})
		if !errors.Is(err, ErrExtensionNotAllowed) {
			t.Errorf("Store(%q as %s) error = %v, want ErrExtensionNotAllowed", tc.name, tc.kind, err)
		}
		if len(fp.calls) != 0 {
			t.Errorf("Store(%q as %s) uploaded despite rejection", tc.name, tc.kind)
		}
	}
}

func TestS3Uploader_DefaultContentType(t *testing.T) {
	fp := &fakePutter{}
	u := NewS3Uploader(fp, "b", "http://minio:9000")
	if _, err := u.Store(context.Background(), Object{Name: "a.pdf", Kind: model.KindDocument, Body: strings.NewReader("%PDF")}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if got := aws.ToString(fp.calls[0].ContentType); got != "application/octet-stream" {
		t.Errorf("ContentType = %q, want application/octet-stream", got)
	}
}

func TestS3Uploader_TransferFailure(t *testing.T) {
	fp := &fakePutter{err: errors.New("connection refused")}
	u := NewS3Uploader(fp, "b", "http://minio:9000")
	_, err := u.Store(context.Background(), Object{Name: "a.ogg", Kind: model.KindAudio, Body: strings.NewReader("x")})
	if err == nil || errors.Is(err, ErrExtensionNotAllowed) {
		t.Errorf("expected transfer error, got %v", err)
	}
}
