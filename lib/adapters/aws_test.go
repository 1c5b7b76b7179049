package adapters

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	kafkatypes "github.com/aws/aws-sdk-go-v2/service/kafka/types"
	"github.com/aws/aws-sdk-go-v2/service/mq"
	mqtypes "github.com/aws/aws-sdk-go-v2/service/mq/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRDS struct {
	engines []string
	pages   [][]string
}

func (f *fakeRDS) DescribeDBEngineVersions(ctx context.Context, in *rds.DescribeDBEngineVersionsInput, _ ...func(*rds.Options)) (*rds.DescribeDBEngineVersionsOutput, error) {
	f.engines = append(f.engines, aws.ToString(in.Engine))

	page := 0
	if in.Marker != nil {
		page = 1
	}
	out := &rds.DescribeDBEngineVersionsOutput{}
	for _, v := range f.pages[page] {
		out.DBEngineVersions = append(out.DBEngineVersions, rdstypes.DBEngineVersion{EngineVersion: aws.String(v)})
	}
	if page+1 < len(f.pages) {
		out.Marker = aws.String("next")
	}
	return out, nil
}

type fakeElastiCache struct{}

func (fakeElastiCache) DescribeCacheEngineVersions(ctx context.Context, in *elasticache.DescribeCacheEngineVersionsInput, _ ...func(*elasticache.Options)) (*elasticache.DescribeCacheEngineVersionsOutput, error) {
	return nil, errors.New("throttled")
}

type fakeKafka struct{}

func (fakeKafka) ListKafkaVersions(ctx context.Context, in *kafka.ListKafkaVersionsInput, _ ...func(*kafka.Options)) (*kafka.ListKafkaVersionsOutput, error) {
	if in.NextToken == nil {
		return &kafka.ListKafkaVersionsOutput{
			KafkaVersions: []kafkatypes.KafkaVersion{
				{Version: aws.String("2.8.1"), Status: kafkatypes.KafkaVersionStatusActive},
				{Version: aws.String("1.1.1"), Status: kafkatypes.KafkaVersionStatusDeprecated},
			},
			NextToken: aws.String("page2"),
		}, nil
	}
	return &kafka.ListKafkaVersionsOutput{
		KafkaVersions: []kafkatypes.KafkaVersion{
			{Version: aws.String("3.5.1"), Status: kafkatypes.KafkaVersionStatusActive},
		},
	}, nil
}

type fakeMQ struct{}

func (fakeMQ) DescribeBrokerEngineTypes(ctx context.Context, in *mq.DescribeBrokerEngineTypesInput, _ ...func(*mq.Options)) (*mq.DescribeBrokerEngineTypesOutput, error) {
	return &mq.DescribeBrokerEngineTypesOutput{
		BrokerEngineTypes: []mqtypes.BrokerEngineType{
			{
				EngineType:     mqtypes.EngineTypeActivemq,
				EngineVersions: []mqtypes.EngineVersion{{Name: aws.String("5.17.6")}, {Name: aws.String("5.18")}},
			},
			{
				EngineType:     mqtypes.EngineTypeRabbitmq,
				EngineVersions: []mqtypes.EngineVersion{{Name: aws.String("3.11.20")}},
			},
		},
	}, nil
}

func TestRDSEnginePaginates(t *testing.T) {
	fake := &fakeRDS{pages: [][]string{{"8.0.35", "8.0.36"}, {"8.0.36", "8.4.0"}}}
	r := Registry{}
	r.addAWS(&awsClients{rds: fake})

	versions, err := r["aws_mysql"].Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"8.0.35", "8.0.36", "8.4.0"}, versions)
	assert.Equal(t, []string{"mysql", "mysql"}, fake.engines)
}

func TestRDSCoversNeptuneAndDocDB(t *testing.T) {
	fake := &fakeRDS{pages: [][]string{{"1.2.1.0"}}}
	r := Registry{}
	r.addAWS(&awsClients{rds: fake})

	_, err := r["aws_neptune"].Fetch(context.Background())
	require.NoError(t, err)
	_, err = r["aws_docdb"].Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"neptune", "docdb"}, fake.engines)
}

func TestKafkaSkipsDeprecated(t *testing.T) {
	c := &awsClients{kafka: fakeKafka{}}

	versions, err := c.kafkaVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2.8.1", "3.5.1"}, versions)
}

func TestBrokerEngineFiltersByType(t *testing.T) {
	c := &awsClients{mq: fakeMQ{}}

	versions, err := c.brokerEngine(mqtypes.EngineTypeActivemq)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"5.17.6", "5.18"}, versions)

	versions, err = c.brokerEngine(mqtypes.EngineTypeRabbitmq)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"3.11.20"}, versions)
}

func TestCacheEngineError(t *testing.T) {
	c := &awsClients{elasticache: fakeElastiCache{}}

	_, err := c.cacheEngine("redis")(context.Background())
	assert.ErrorContains(t, err, "throttled")
}

func TestAddAWSRegistersEveryService(t *testing.T) {
	r := Registry{}
	r.addAWS(&awsClients{})

	for _, key := range []string{
		"aws_aurora", "aws_aurora_mysql", "aws_aurora_postgres", "aws_mariadb", "aws_mysql", "aws_postgres",
		"aws_oracle_ee", "aws_oracle_ee_cdb", "aws_oracle_se2", "aws_oracle_se2_cdb",
		"aws_sqlserver_ee", "aws_sqlserver_se", "aws_sqlserver_ex", "aws_sqlserver_web",
		"aws_neptune", "aws_docdb", "aws_elasticache_redis", "aws_elasticache_memcached",
		"aws_kafka", "aws_opensearch", "aws_es", "aws_memorydb", "aws_rabbitmq", "aws_activemq",
	} {
		_, ok := r.Lookup(key)
		assert.True(t, ok, key)
	}
	assert.Len(t, r, 24)
}
