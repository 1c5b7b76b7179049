package models_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/fiffu/versionwatch/lib/models"
	"github.com/fiffu/versionwatch/lib/models/modelstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionScopes(t *testing.T) {
	db := modelstest.NewDB(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	versions := []models.Version{
		{ServiceKey: "aws_mysql", VersionLabel: "5.7", CreatedAt: now.Add(-48 * time.Hour), DeprecatedAt: sql.NullTime{Time: now, Valid: true}},
		{ServiceKey: "aws_mysql", VersionLabel: "8.0", CreatedAt: now.Add(-24 * time.Hour)},
		{ServiceKey: "aws_postgres", VersionLabel: "16", CreatedAt: now},
	}
	require.NoError(t, db.Create(&versions).Error)
	for _, v := range versions {
		assert.Len(t, v.ID, 36)
	}

	var available []string
	require.NoError(t, db.Model(&models.Version{}).Scopes(models.Available).
		Where("service_key = ?", "aws_mysql").Pluck("version_label", &available).Error)
	assert.Equal(t, []string{"8.0"}, available)

	var unsupported []string
	require.NoError(t, db.Model(&models.Version{}).Scopes(models.Unsupported).
		Pluck("version_label", &unsupported).Error)
	assert.Equal(t, []string{"5.7"}, unsupported)

	bigBang, err := models.BigBang(db, "aws_mysql")
	require.NoError(t, err)
	assert.True(t, bigBang.Equal(now.Add(-48*time.Hour)), "got %s", bigBang)
}

func TestVersionUniquePerService(t *testing.T) {
	db := modelstest.NewDB(t)

	require.NoError(t, db.Create(&models.Version{ServiceKey: "gcp_gke", VersionLabel: "1.29", CreatedAt: time.Now()}).Error)
	err := db.Create(&models.Version{ServiceKey: "gcp_gke", VersionLabel: "1.29", CreatedAt: time.Now()}).Error
	assert.Error(t, err)

	require.NoError(t, db.Create(&models.Version{ServiceKey: "azure_aks", VersionLabel: "1.29", CreatedAt: time.Now()}).Error)
}

func TestVersionReleased(t *testing.T) {
	now := time.Now()

	assert.True(t, (&models.Version{}).Released(now))
	assert.True(t, (&models.Version{ReleasedOn: sql.NullTime{Time: now.Add(-time.Hour), Valid: true}}).Released(now))
	assert.False(t, (&models.Version{ReleasedOn: sql.NullTime{Time: now.Add(time.Hour), Valid: true}}).Released(now))
}

func TestChangeOf(t *testing.T) {
	assert.Equal(t, models.ChangeAdded, models.ChangeOf(&models.Version{}))
	assert.Equal(t, models.ChangeDeprecated, models.ChangeOf(&models.Version{DeprecatedAt: sql.NullTime{Time: time.Now(), Valid: true}}))
}
