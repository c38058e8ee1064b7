package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	put     *s3.PutObjectInput
	signed  *s3.PutObjectInput
	body    []byte
	err     error
	expires time.Duration
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	f.signed = in
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + aws.ToString(in.Key), Method: "PUT"}, f.err
}

func TestS3StoreUpload(t *testing.T) {
	fake := &fakeS3{}
	store := &S3Store{client: fake, presign: fake, opts: S3Options{Bucket: "photos", Region: "ap-northeast-2"}}

	url, err := store.Upload(context.Background(), "reports/u/1.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://photos.s3.ap-northeast-2.amazonaws.com/reports/u/1.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if aws.ToString(fake.put.Bucket) != "photos" || aws.ToInt64(fake.put.ContentLength) != 9 || string(fake.body) != "png-bytes" {
		t.Fatalf("unexpected put %+v", fake.put)
	}

	fake.err = errors.New("access denied")
	if _, err := store.Upload(context.Background(), "k", "image/png", nil); err == nil || !strings.Contains(err.Error(), "put object k") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestS3StorePresign(t *testing.T) {
	fake := &fakeS3{}
	store := &S3Store{client: fake, presign: fake, opts: S3Options{Bucket: "photos"}}
	url, err := store.PresignUpload(context.Background(), "reports/u/1.jpg", "image/jpeg", 48213, 15*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if url != "https://signed.example/reports/u/1.jpg" || fake.expires != 15*time.Minute {
		t.Fatalf("unexpected presign %q %v", url, fake.expires)
	}
	if aws.ToInt64(fake.signed.ContentLength) != 48213 || aws.ToString(fake.signed.ContentType) != "image/jpeg" {
		t.Fatalf("presigned PUT must pin length and type, got %+v", fake.signed)
	}
}

func TestS3StoreURL(t *testing.T) {
	cases := []struct {
		opts S3Options
		want string
	}{
		{S3Options{Bucket: "b", PublicURL: "https://cdn.example.com/"}, "https://cdn.example.com/k.jpg"},
		{S3Options{Bucket: "b", Endpoint: "http://localhost:4566"}, "http://localhost:4566/b/k.jpg"},
		{S3Options{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com/k.jpg"},
	}
	for _, tc := range cases {
		if got := (&S3Store{opts: tc.opts}).URL("k.jpg"); got != tc.want {
			t.Fatalf("URL() = %q, want %q", got, tc.want)
		}
	}
}
