package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobs) Put(_ context.Context, p string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[p] = b
	m.types[p] = contentType
	return nil
}

func (m *memBlobs) Get(_ context.Context, p string) (io.ReadCloser, error) {
	b, ok := m.objects[p]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", p, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) Exists(_ context.Context, p string) (bool, error) {
	_, ok := m.objects[p]
	return ok, nil
}

func TestRoundPath(t *testing.T) {
	assert.Equal(t, "rounds/solana/42.json", RoundPath("rounds", "solana", 42))
	assert.Equal(t, "evm/7.json", RoundPath("", "evm", 7))
}

func TestRoundArchiver_ArchiveAndFetch(t *testing.T) {
	blobs := newMemBlobs()
	a := NewRoundArchiver(blobs, blobs, "rounds")
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return at }

	round := domain.Round{ID: 42, LockedPrice: 14000, FinalPrice: 14500, Resolved: true, Outcome: domain.OutcomeUp, UpPool: 3_000_000}
	report := domain.TickReport{ID: "tick-1", Chain: "solana", RoundID: 42, Decision: domain.DecisionResolve, Actions: []domain.ActionRecord{}}

	require.NoError(t, a.ArchiveRound(context.Background(), round, report))
	assert.Equal(t, "application/json", blobs.types["rounds/solana/42.json"])
	assert.Contains(t, string(blobs.objects["rounds/solana/42.json"]), `"outcome": "up"`)

	got, err := a.Fetch(context.Background(), "solana", 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUp, got.Round.Outcome)
	assert.Equal(t, "tick-1", got.Report.ID)
	assert.True(t, got.ArchivedAt.Equal(at))

	_, err = a.Fetch(context.Background(), "solana", 43)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://s3.example.com", normaliseEndpoint("s3.example.com", false))
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("https://e2.example.com", false))
}

func TestRoundArchiver_KeepsExistingDocument(t *testing.T) {
	blobs := newMemBlobs()
	blobs.objects["rounds/evm/9.json"] = []byte(`{"chain":"evm"}`)
	a := NewRoundArchiver(blobs, blobs, "rounds")

	err := a.ArchiveRound(context.Background(), domain.Round{ID: 9, Resolved: true}, domain.TickReport{Chain: "evm"})
	require.NoError(t, err)
	assert.Equal(t, `{"chain":"evm"}`, string(blobs.objects["rounds/evm/9.json"]))
}

type fakeObjectAPI struct {
	objects map[string]string
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(b))}, nil
}

func (f *fakeObjectAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestObjects(t *testing.T) {
	ctx := context.Background()
	o := &Objects{api: &fakeObjectAPI{objects: map[string]string{}}, bucket: "archive"}

	ok, err := o.Exists(ctx, "rounds/solana/1.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = o.Get(ctx, "rounds/solana/1.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, o.Put(ctx, "rounds/solana/1.json", strings.NewReader("{}"), "application/json"))
	ok, err = o.Exists(ctx, "rounds/solana/1.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := o.Get(ctx, "rounds/solana/1.json")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, isNotFound(nil))
	assert.False(t, isNotFound(errors.New("timeout")))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
}
