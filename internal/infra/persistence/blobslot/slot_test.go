package blobslot

import (
	"context"
	"errors"
	"testing"

	"procureflow/internal/blob"
	"procureflow/internal/infra/blob/s3/s3test"
)

func openStore(t *testing.T, cfg blob.Config) blob.Store {
	t.Helper()
	store, err := blob.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open %s: %v", cfg.Driver, err)
	}
	return store
}

func TestSlotRoundTripAcrossDrivers(t *testing.T) {
	ctx := context.Background()
	srv := s3test.NewServer(t)
	cases := []struct {
		name   string
		cfg    blob.Config
		driver string
	}{
		{"memory", blob.Config{Driver: blob.DriverMemory}, "blob:memory"},
		{"fs", blob.Config{Driver: blob.DriverFilesystem, FSRoot: t.TempDir()}, "blob:fs"},
		{"s3", blob.Config{Driver: blob.DriverS3, S3: blob.S3Config{
			Bucket: s3test.Bucket, Endpoint: srv.URL, AccessKeyID: "k", SecretAccessKey: "s", PathStyle: true,
		}}, "blob:s3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := New(openStore(t, tc.cfg), "")
			if slot.Driver() != tc.driver {
				t.Fatalf("expected driver %s, got %s", tc.driver, slot.Driver())
			}
			if got, err := slot.Load(ctx); err != nil || got != nil {
				t.Fatalf("expected empty slot, got %q %v", got, err)
			}
			for _, payload := range []string{`{"v":1}`, `{"v":2}`} {
				if err := slot.Save(ctx, []byte(payload)); err != nil {
					t.Fatalf("save: %v", err)
				}
			}
			got, err := slot.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if string(got) != `{"v":2}` {
				t.Fatalf("unexpected payload %q", got)
			}
			if err := slot.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if err := slot.Clear(ctx); err != nil {
				t.Fatalf("clear of empty slot: %v", err)
			}
			if got, err := slot.Load(ctx); err != nil || got != nil {
				t.Fatalf("expected cleared slot, got %q %v", got, err)
			}
		})
	}
}

type brokenStore struct{ blob.Store }

func (brokenStore) Read(context.Context, string) (blob.Object, error) {
	return blob.Object{}, errors.New("permission denied")
}

func (brokenStore) Write(context.Context, string, []byte) (blob.Object, error) {
	return blob.Object{}, errors.New("quota exceeded")
}

func (brokenStore) Remove(context.Context, string) (bool, error) {
	return false, errors.New("read only")
}

func TestSlotPropagatesStoreErrors(t *testing.T) {
	ctx := context.Background()
	slot := New(brokenStore{}, "custom.json")
	if _, err := slot.Load(ctx); err == nil {
		t.Fatalf("expected load error")
	}
	if err := slot.Save(ctx, []byte("{}")); err == nil {
		t.Fatalf("expected save error")
	}
	if err := slot.Clear(ctx); err == nil {
		t.Fatalf("expected clear error")
	}
}
