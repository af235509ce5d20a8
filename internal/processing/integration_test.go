package processing

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RMahshie/sleepsense/internal/analysis"
	"github.com/RMahshie/sleepsense/internal/navigation"
	"github.com/RMahshie/sleepsense/internal/repository/postgres"
	"github.com/RMahshie/sleepsense/internal/session"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/internal/storage"
	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

// TestContainer holds test infrastructure
type TestContainer struct {
	postgresContainer testcontainers.Container
	minioContainer    testcontainers.Container
	dbURL             string
	minioURL          string
	bucketName        string
}

// SetupIntegrationTest sets up PostgreSQL and MinIO containers for integration testing
func SetupIntegrationTest(t *testing.T) *TestContainer {
	t.Helper()

	ctx := context.Background()

	pg, err := pgContainer.Run(ctx,
		"postgres:15-alpine",
		pgContainer.WithDatabase("sleepsense_test"),
		pgContainer.WithUsername("testuser"),
		pgContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dbURL, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	minioContainer, err := minio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		minio.WithUsername(minioUser),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err)

	minioURL, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	bucketName := "sleepsense-test-" + uuid.New().String()[:8]
	require.NoError(t, createMinioBucket(ctx, minioURL, bucketName))

	return &TestContainer{
		postgresContainer: pg,
		minioContainer:    minioContainer,
		dbURL:             dbURL,
		minioURL:          minioURL,
		bucketName:        bucketName,
	}
}

// CleanupIntegrationTest cleans up test containers
func (tc *TestContainer) CleanupIntegrationTest(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if tc.minioContainer != nil {
		require.NoError(t, tc.minioContainer.Terminate(ctx))
	}
	if tc.postgresContainer != nil {
		require.NoError(t, tc.postgresContainer.Terminate(ctx))
	}
}

// createMinioBucket creates the report bucket in MinIO
func createMinioBucket(ctx context.Context, minioURL, bucketName string) error {
	client, err := miniogo.New(minioURL, &miniogo.Options{
		Creds:  miniocreds.NewStaticV4(minioUser, minioPassword, ""),
		Secure: false,
	})
	if err != nil {
		return err
	}
	return client.MakeBucket(ctx, bucketName, miniogo.MakeBucketOptions{})
}

// TestReportPipeline_Integration runs open, summarize, export, archive and persist against real services
func TestReportPipeline_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := SetupIntegrationTest(t)
	defer tc.CleanupIntegrationTest(t)

	ctx := context.Background()

	db, err := postgres.Open(ctx, tc.dbURL)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, postgres.Migrate(ctx, db))

	repo := postgres.NewPostgresStudyRepository(db)

	s3Service, err := storage.NewS3Service(storage.S3Config{
		Bucket:    tc.bucketName,
		Endpoint:  tc.minioURL,
		AccessKey: minioUser,
		SecretKey: minioPassword,
	})
	require.NoError(t, err)

	store := signal.NewStore(signal.Options{MockDurationSeconds: 3600, MockSeed: 21}, s3Service)
	manager := session.NewManager(store, analysis.NewThresholdSummarizer(), navigation.Config{}, repo)

	sess, err := manager.Open(ctx, "missing.csv")
	require.NoError(t, err)

	study, err := repo.GetStudy(ctx, sess.ID())
	require.NoError(t, err)
	assert.True(t, study.Synthetic)
	require.NotNil(t, study.FallbackReason)

	svc := NewReportService(Dependencies{
		Summaries: repo,
		Reports:   repo,
		Archive:   s3Service,
	})

	rep, err := svc.GenerateReport(ctx, sess, filepath.Join(t.TempDir(), "report.pdf"))
	require.NoError(t, err)
	require.NotNil(t, rep.ArchiveKey)

	archived, err := s3Service.DownloadFile(ctx, *rep.ArchiveKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(archived), "%PDF"))

	reports, err := repo.GetReportsBySession(ctx, sess.ID())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, rep.ID, reports[0].ID)

	stored, err := repo.GetSummary(ctx, sess.Record().Fingerprint())
	require.NoError(t, err)
	assert.InDelta(t, rep.AHI, stored.AHI, 1e-9)

	// an archived recording loads through the same store
	var csv strings.Builder
	csv.WriteString("time,pos,pulse,spo2,a,b,c,airflow,d,e\n")
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&csv, "%d,0,60,97,0,0,0,%.3f,0,0\n", i*100, math.Sin(float64(i)/4))
	}
	require.NoError(t, s3Service.UploadFile(ctx, "recordings/short.csv", storage.ContentTypeCSV, []byte(csv.String())))
	rec, err := store.Load(ctx, signal.S3Prefix+"recordings/short.csv")
	require.NoError(t, err)
	assert.InDelta(t, 60.0, rec.Duration(), 1e-6)
}
