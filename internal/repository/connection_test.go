package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoSettings_ClientOptions(t *testing.T) {
	opts := MongoSettings{
		URI:            "mongodb://db:27017",
		Database:       "bagdb",
		MaxPoolSize:    40,
		MinPoolSize:    4,
		ConnectTimeout: 3 * time.Second,
	}.clientOptions()

	require.NoError(t, opts.Validate())
	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(40), *opts.MaxPoolSize)
	require.NotNil(t, opts.MinPoolSize)
	assert.Equal(t, uint64(4), *opts.MinPoolSize)
	require.NotNil(t, opts.ConnectTimeout)
	assert.Equal(t, 3*time.Second, *opts.ConnectTimeout)
	require.NotNil(t, opts.ServerSelectionTimeout)
	assert.Equal(t, 3*time.Second, *opts.ServerSelectionTimeout)
	require.NotNil(t, opts.AppName)
	assert.Equal(t, "bag-service", *opts.AppName)
	assert.Equal(t, []string{"db:27017"}, opts.Hosts)
}

func TestMongoSettings_ZeroValuesUseDriverDefaults(t *testing.T) {
	opts := MongoSettings{URI: "mongodb://db:27017"}.clientOptions()

	assert.Nil(t, opts.MaxPoolSize)
	assert.Nil(t, opts.MinPoolSize)
	assert.Nil(t, opts.ConnectTimeout)
}

func TestConnectMongoDB_InvalidURI(t *testing.T) {
	_, err := ConnectMongoDB(context.Background(), MongoSettings{URI: "http://db:27017", Database: "bagdb"})
	assert.ErrorContains(t, err, "failed to connect to MongoDB")
}
