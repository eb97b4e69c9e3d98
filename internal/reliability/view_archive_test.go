package reliability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memoryUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[aws.ToString(input.Key)] = body
	return &manager.UploadOutput{Key: input.Key}, nil
}

func sampleView() *domain.OpportunityView {
	return &domain.OpportunityView{
		InvestorID:       "inv-1",
		FilterSetVersion: 4,
		CatalogRevision:  10,
		GeneratedAt:      testingpkg.FixtureEpoch,
		Entries:          []domain.ViewEntry{{DealID: "DGT-2026-001", Score: domain.Float(1), SubmittedAt: testingpkg.FixtureEpoch}},
	}
}

func TestViewArchive_UploadsViews(t *testing.T) {
	up := &memoryUploader{}
	archive := NewViewArchive(up, "views-bucket", "archive", 4, zerolog.Nop())
	archive.Start()

	view := sampleView()
	archive.Archive(context.Background(), view)
	archive.Stop()

	key := "archive/inv-1/v000004/20260105T090000.000000000Z.json"
	assert.Equal(t, key, archive.Key(view))
	require.Contains(t, up.objects, key)

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(up.objects[key], &stored))
	assert.Equal(t, "inv-1", stored["investor_id"])
	assert.Equal(t, ArchiveStats{Uploaded: 1}, archive.Stats())

	// Archiving after Stop is ignored.
	archive.Archive(context.Background(), view)
	assert.Equal(t, ArchiveStats{Uploaded: 1}, archive.Stats())
}

func TestViewArchive_CountsFailures(t *testing.T) {
	up := &memoryUploader{err: errors.New("access denied")}
	archive := NewViewArchive(up, "views-bucket", "", 4, zerolog.Nop())
	archive.Start()

	archive.Archive(context.Background(), sampleView())
	archive.Stop()

	assert.Equal(t, int64(1), archive.Stats().Failed)
	assert.Empty(t, up.objects)
}

func TestViewArchive_DropsWhenQueueFull(t *testing.T) {
	up := &memoryUploader{}
	archive := NewViewArchive(up, "views-bucket", "", 1, zerolog.Nop())

	// Not started, so the queue fills up.
	archive.Archive(context.Background(), sampleView())
	archive.Archive(context.Background(), sampleView())
	assert.Equal(t, int64(1), archive.Stats().Dropped)

	archive.Start()
	archive.Stop()
	assert.Equal(t, int64(1), archive.Stats().Uploaded)
}
