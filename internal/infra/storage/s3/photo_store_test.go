package s3

import (
	"context"
	"strings"
	"testing"
)

func TestStorePhotoRejectsNonImagePayloads(t *testing.T) {
	b := &Bucket{bucket: "photos", publicBaseURL: "http://cdn.local"}

	_, err := b.StorePhoto(context.Background(), "listings/l1/a.pdf", strings.NewReader("%PDF"), "application/pdf")
	if err == nil || !strings.Contains(err.Error(), "must be images") {
		t.Fatalf("expected image content-type error, got %v", err)
	}
	if _, err := b.StorePhoto(context.Background(), "listings/l1/a.jpg", nil, "image/jpeg"); err == nil {
		t.Fatal("expected error for nil reader")
	}
	if _, err := b.StorePhoto(context.Background(), "  /  ", strings.NewReader("x"), "image/jpeg"); err == nil {
		t.Fatal("expected error for blank key")
	}
}

func TestPhotoURLJoinsBaseBucketAndKey(t *testing.T) {
	b := &Bucket{bucket: "photos", publicBaseURL: "http://cdn.local"}
	got := b.photoURL("listings/l1/a.jpg")
	want := "http://cdn.local/photos/listings/l1/a.jpg"
	if got != want {
		t.Fatalf("photoURL = %q, want %q", got, want)
	}
}

func TestHostOfStripsScheme(t *testing.T) {
	cases := map[string]string{
		"http://minio:9000":  "minio:9000",
		"https://s3.eu:9000": "s3.eu:9000",
		"minio:9000":         "minio:9000",
	}
	for endpoint, want := range cases {
		if got := hostOf(endpoint); got != want {
			t.Fatalf("hostOf(%q) = %q, want %q", endpoint, got, want)
		}
	}
}

func TestDisabledStoreFails(t *testing.T) {
	if _, err := (Disabled{}).StorePhoto(context.Background(), "k", strings.NewReader("x"), "image/png"); err == nil {
		t.Fatal("expected error from disabled photo store")
	}
}
