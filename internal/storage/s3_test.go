package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers just enough of the S3 REST API for the service.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestService(t *testing.T) (*S3Service, *fakeS3) {
	t.Helper()

	none := filepath.Join(t.TempDir(), "none")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", none)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", none)
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := NewS3Service(context.Background(), Config{
		Bucket:   "attachments",
		Region:   "us-east-1",
		Endpoint: srv.URL,
		MaxSize:  1 << 10,
	})
	require.NoError(t, err)
	return svc, fake
}

func TestNewS3ServiceRequiresBucket(t *testing.T) {
	_, err := NewS3Service(context.Background(), Config{})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestAttachmentKey(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", "tasks/7/" + id.String() + "/report.pdf"},
		{"../../etc/passwd", "tasks/7/" + id.String() + "/passwd"},
		{`C:\docs\notes.txt`, "tasks/7/" + id.String() + "/notes.txt"},
		{"", "tasks/7/" + id.String() + "/file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AttachmentKey(7, id, tt.name))
		})
	}
}

func TestUploadExistsDelete(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	res, err := svc.UploadAttachment(ctx, 7, "notes.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(sum[:]), res.FileHash)
	assert.EqualValues(t, 5, res.FileSize)
	assert.Equal(t, "attachments", res.S3Bucket)
	assert.True(t, strings.HasPrefix(res.S3Key, "tasks/7/"))
	assert.True(t, strings.HasSuffix(res.S3Key, "/notes.txt"))

	fake.mu.Lock()
	assert.Contains(t, fake.objects, "/attachments/"+res.S3Key)
	fake.mu.Unlock()

	ok, err := svc.CheckFileExists(ctx, res.S3Key)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.DeleteFile(ctx, res.S3Key))

	ok, err = svc.CheckFileExists(ctx, res.S3Key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUploadRejectsLargeFiles(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UploadAttachment(context.Background(), 7, "big.bin", "", strings.NewReader(strings.Repeat("x", 2<<10)))
	require.Error(t, err)
}

func TestGeneratePresignedURL(t *testing.T) {
	svc, _ := newTestService(t)

	url, err := svc.GeneratePresignedURL(context.Background(), "tasks/7/abc/notes.txt", 5*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "/attachments/tasks/7/abc/notes.txt")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=300")
}
