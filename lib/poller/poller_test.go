package poller_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib/adapters"
	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/metrics"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/fiffu/versionwatch/lib/models/modelstest"
	"github.com/fiffu/versionwatch/lib/poller"
	"github.com/fiffu/versionwatch/senders/mocks"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	clock    *testclock.Clock
	alerter  *mocks.MockOperatorAlerter
	catalog  *catalog.Catalog
	fetchers adapters.Registry
	metrics  *metrics.Metrics
	poller   *poller.Poller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	aws := catalog.Platform{Name: "aws", Label: "AWS"}
	gcp := catalog.Platform{Name: "gcp", Label: "GCP"}
	cat, err := catalog.New([]catalog.Platform{aws, gcp}, []catalog.Service{
		{Key: "aws_aurora", Platform: aws, Label: "Aurora MySQL (MySQL 5.6 compatible)", Public: true},
		{Key: "aws_activemq", Platform: aws, Label: "ActiveMQ", Public: true},
		{Key: "aws_mysql", Platform: aws, Label: "MySQL", Public: true},
		{Key: "aws_unpolled", Platform: aws, Public: true},
		{Key: "gcp_gke", Platform: gcp, Label: "GKE", Public: true},
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Poll.Concurrency = 2

	f := &fixture{
		db:       modelstest.NewDB(t),
		clock:    testclock.NewClock(epoch),
		alerter:  mocks.NewMockOperatorAlerter(gomock.NewController(t)),
		catalog:  cat,
		fetchers: adapters.Registry{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.poller = poller.NewPoller(cfg, zap.NewNop(), f.db, f.catalog, f.fetchers, f.alerter, f.metrics, f.clock)
	return f
}

func (f *fixture) service(t *testing.T, key string) catalog.Service {
	t.Helper()
	svc, ok := f.catalog.Lookup(key)
	require.True(t, ok)
	return svc
}

func (f *fixture) seed(t *testing.T, key string, labels ...string) {
	t.Helper()
	for _, l := range labels {
		require.NoError(t, f.db.Create(&models.Version{ServiceKey: key, VersionLabel: l, CreatedAt: epoch.Add(-time.Hour)}).Error)
	}
}

// stored returns every version of the service keyed by label.
func (f *fixture) stored(t *testing.T, key string) map[string]models.Version {
	t.Helper()
	var rows []models.Version
	require.NoError(t, f.db.Where("service_key = ?", key).Find(&rows).Error)

	out := make(map[string]models.Version, len(rows))
	for _, v := range rows {
		out[v.VersionLabel] = v
	}
	return out
}

func static(labels ...string) adapters.FetcherFunc {
	return func(context.Context) ([]string, error) { return labels, nil }
}

func failing(err error) adapters.FetcherFunc {
	return func(context.Context) ([]string, error) { return nil, err }
}

func TestPoll_SetDifference(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "aws_aurora", "1.0", "2.0")

	result, err := f.poller.Poll(context.Background(), f.service(t, "aws_aurora"), static("2.0", "3.0"))
	require.NoError(t, err)

	assert.Equal(t, []string{"3.0"}, result.Added)
	assert.Equal(t, []string{"1.0"}, result.Deprecated)
	assert.Empty(t, result.Reinstated)

	rows := f.stored(t, "aws_aurora")
	require.Len(t, rows, 3)
	assert.True(t, rows["1.0"].DeprecatedAt.Valid)
	assert.True(t, rows["1.0"].DeprecatedAt.Time.Equal(epoch))
	assert.False(t, rows["2.0"].DeprecatedAt.Valid)
	assert.True(t, rows["2.0"].CreatedAt.Equal(epoch.Add(-time.Hour)), "existing rows keep created_at")
	assert.False(t, rows["3.0"].DeprecatedAt.Valid)
	assert.True(t, rows["3.0"].CreatedAt.Equal(epoch))
}

func TestPoll_Idempotent(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t, "aws_mysql")
	fetch := static("5.7.44", "8.0.36", "8.0.36", " 8.4.0 ", "")

	first, err := f.poller.Poll(context.Background(), svc, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"5.7.44", "8.0.36", "8.4.0"}, first.Added)

	f.clock.Advance(time.Hour)
	second, err := f.poller.Poll(context.Background(), svc, fetch)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Deprecated)
	assert.False(t, second.Changed())

	assert.Len(t, f.stored(t, "aws_mysql"), 3)
}

func TestPoll_DeprecatesOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "aws_activemq", "5.15.16", "5.17.6")
	svc := f.service(t, "aws_activemq")

	result, err := f.poller.Poll(context.Background(), svc, static("5.17.6"))
	require.NoError(t, err)
	assert.Equal(t, []string{"5.15.16"}, result.Deprecated)

	f.clock.Advance(24 * time.Hour)
	result, err = f.poller.Poll(context.Background(), svc, static("5.17.6"))
	require.NoError(t, err)
	assert.Empty(t, result.Deprecated)

	rows := f.stored(t, "aws_activemq")
	assert.True(t, rows["5.15.16"].DeprecatedAt.Time.Equal(epoch), "deprecated_at keeps the first detection time")
}

func TestPoll_ReinstatesDeprecatedLabel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&models.Version{
		ServiceKey:   "aws_aurora",
		VersionLabel: "5.6.10a",
		CreatedAt:    epoch.Add(-48 * time.Hour),
		DeprecatedAt: sql.NullTime{Time: epoch.Add(-24 * time.Hour), Valid: true},
	}).Error)
	f.seed(t, "aws_aurora", "5.6.mysql_aurora.1.22.2")

	result, err := f.poller.Poll(context.Background(), f.service(t, "aws_aurora"), static("5.6.10a", "5.6.mysql_aurora.1.22.2"))
	require.NoError(t, err)

	assert.Equal(t, []string{"5.6.10a"}, result.Added)
	assert.Equal(t, []string{"5.6.10a"}, result.Reinstated)
	assert.Empty(t, result.Deprecated)

	var available int64
	require.NoError(t, f.db.Model(&models.Version{}).Scopes(models.Available).
		Where("service_key = ?", "aws_aurora").Count(&available).Error)
	assert.EqualValues(t, 2, available)

	rows := f.stored(t, "aws_aurora")
	assert.Len(t, rows, 2, "no duplicate row for the reinstated label")
	assert.True(t, rows["5.6.10a"].CreatedAt.Equal(epoch.Add(-48*time.Hour)))
}

func TestPoll_FetchFailureLeavesRowsUntouched(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "aws_aurora", "1.0")
	before := f.stored(t, "aws_aurora")

	f.alerter.EXPECT().NotifyOperator(gomock.Any(), gomock.Any()).Times(2)

	_, err := f.poller.Poll(context.Background(), f.service(t, "aws_aurora"), failing(errors.New("connection reset")))
	assert.True(t, errors.Is(err, poller.ErrFetchFailed), "got %v", err)
	assert.ErrorContains(t, err, "connection reset")

	_, err = f.poller.Poll(context.Background(), f.service(t, "aws_aurora"), static(" ", ""))
	assert.True(t, errors.Is(err, poller.ErrFetchFailed))
	assert.True(t, errors.Is(err, adapters.ErrNoVersions))

	assert.Equal(t, before, f.stored(t, "aws_aurora"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PollOutcomes.WithLabelValues("aws_aurora", "failed")))
}

func TestPollPlatform_IsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.fetchers["aws_aurora"] = failing(errors.New("throttled"))
	f.fetchers["aws_activemq"] = static("5.17.6")
	f.fetchers["aws_mysql"] = static("8.0.36")
	f.fetchers["gcp_gke"] = static("1.29")

	f.alerter.EXPECT().
		NotifyOperator(gomock.Any(), "Error occurred while polling service aws_aurora: throttled").
		Times(1)

	summary, err := f.poller.PollPlatform(context.Background(), "aws")
	require.NoError(t, err)

	assert.Contains(t, summary.Failed, "aws_aurora")
	assert.Len(t, summary.Results, 2)
	assert.Equal(t, []string{"aws_unpolled"}, summary.Skipped)
	assert.Equal(t, []string{"5.17.6"}, summary.Results["aws_activemq"].Added)
	assert.Len(t, summary.Changed(), 2)

	assert.Empty(t, f.stored(t, "aws_aurora"))
	assert.Len(t, f.stored(t, "aws_mysql"), 1)
	assert.Empty(t, f.stored(t, "gcp_gke"), "other platforms are not polled")
}

func TestPollPlatform_UnknownPlatform(t *testing.T) {
	f := newFixture(t)

	_, err := f.poller.PollPlatform(context.Background(), "oracle")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestPollAll(t *testing.T) {
	f := newFixture(t)
	f.fetchers["aws_mysql"] = static("8.0.36")
	f.fetchers["gcp_gke"] = static("1.29", "1.30")

	summaries, err := f.poller.PollAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "aws", summaries[0].Platform)
	assert.Equal(t, "gcp", summaries[1].Platform)
	assert.Equal(t, []string{"1.29", "1.30"}, summaries[1].Results["gcp_gke"].Added)
}
