package objectstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records PUT requests and answers everything else with 501.
type fakeS3 struct {
	mu     sync.Mutex
	status int
	puts   []*http.Request
	bodies [][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: 501, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	f.puts = append(f.puts, req)
	f.bodies = append(f.bodies, body)

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {`"etag"`}}}, nil
}

func newTestArchive(t *testing.T, rt *fakeS3) *Archive {
	t.Helper()
	a, err := New(context.Background(), Config{
		Bucket:          "voicexp-backups",
		Endpoint:        "https://mock.s3.local",
		Prefix:          "guild-1",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: rt},
	})
	require.NoError(t, err)
	return a
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestKey(t *testing.T) {
	a := &Archive{prefix: "guild-1"}
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("x", -2*3600))

	assert.Equal(t, "guild-1/2026/03/10/b1.json", a.Key(at, "b1.json"))
	assert.Equal(t, "2026/03/10/b1.json", (&Archive{}).Key(at, "b1.json"))
}

func TestPut(t *testing.T) {
	rt := &fakeS3{}
	a := newTestArchive(t, rt)

	err := a.Put(context.Background(), "guild-1/2026/03/10/b1.json", []byte(`[{"memberId":"a","xp":3}]`),
		"application/json", map[string]string{"digest": "abc"})

	require.NoError(t, err)
	require.Len(t, rt.puts, 1)
	req := rt.puts[0]
	assert.Equal(t, "/voicexp-backups/guild-1/2026/03/10/b1.json", req.URL.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "abc", req.Header.Get("X-Amz-Meta-Digest"))
	assert.True(t, strings.Contains(string(rt.bodies[0]), `[{"memberId":"a","xp":3}]`))
}

func TestPut_ServerError(t *testing.T) {
	rt := &fakeS3{status: http.StatusForbidden}
	a := newTestArchive(t, rt)

	err := a.Put(context.Background(), "k", []byte("x"), "", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object k")
}
