package publish_test

import (
	"context"
	"github.com/myrjola/sagaboard/internal/publish"
	"github.com/myrjola/sagaboard/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	status  int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.objects[r.URL.Path] = body
	f.types[r.URL.Path] = r.Header.Get("Content-Type")
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, server
}

func newPublisher(t *testing.T, endpoint string) *publish.Publisher {
	t.Helper()
	p, err := publish.New(context.Background(), publish.Config{
		Bucket:    "sagas",
		Endpoint:  endpoint,
		Region:    "eu-north-1",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		PathStyle: true,
	}, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	return p
}

func TestPublish(t *testing.T) {
	fake, server := newFakeS3(t)
	p := newPublisher(t, server.URL)

	path := filepath.Join(t.TempDir(), "Lost_Mines_montage.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 fake"), 0o600))

	before := time.Now()
	published, err := p.Publish(context.Background(), path, "application/pdf")
	require.NoError(t, err)

	require.Equal(t, "montages/Lost_Mines_montage.pdf", published.Key)
	require.Contains(t, published.URL, server.URL+"/sagas/montages/Lost_Mines_montage.pdf")
	require.Contains(t, published.URL, "X-Amz-Expires=900")
	require.Contains(t, published.URL, "X-Amz-Signature=")
	require.WithinDuration(t, before.Add(publish.DefaultExpiry), published.ExpiresAt, 5*time.Second)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, []byte("%PDF-1.3 fake"), fake.objects["/sagas/montages/Lost_Mines_montage.pdf"])
	require.Equal(t, "application/pdf", fake.types["/sagas/montages/Lost_Mines_montage.pdf"])
}

func TestPublish_UploadRejected(t *testing.T) {
	fake, server := newFakeS3(t)
	fake.status = http.StatusForbidden
	p := newPublisher(t, server.URL)

	path := filepath.Join(t.TempDir(), "saga.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4"), 0o600))

	_, err := p.Publish(context.Background(), path, "video/mp4")
	require.ErrorContains(t, err, "upload artifact")
}

func TestPublish_MissingFile(t *testing.T) {
	_, server := newFakeS3(t)
	p := newPublisher(t, server.URL)

	_, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), "application/pdf")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := publish.New(context.Background(), publish.Config{}, testhelpers.NewLogger(io.Discard))
	require.ErrorIs(t, err, publish.ErrMissingBucket)
}
