package adapters

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticsearchservice"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	kafkatypes "github.com/aws/aws-sdk-go-v2/service/kafka/types"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	"github.com/aws/aws-sdk-go-v2/service/mq"
	mqtypes "github.com/aws/aws-sdk-go-v2/service/mq/types"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/juju/errors"
)

type kafkaAPI interface {
	ListKafkaVersions(context.Context, *kafka.ListKafkaVersionsInput, ...func(*kafka.Options)) (*kafka.ListKafkaVersionsOutput, error)
}

type openSearchAPI interface {
	ListVersions(context.Context, *opensearch.ListVersionsInput, ...func(*opensearch.Options)) (*opensearch.ListVersionsOutput, error)
}

type elasticsearchAPI interface {
	ListElasticsearchVersions(context.Context, *elasticsearchservice.ListElasticsearchVersionsInput, ...func(*elasticsearchservice.Options)) (*elasticsearchservice.ListElasticsearchVersionsOutput, error)
}

type memoryDBAPI interface {
	DescribeEngineVersions(context.Context, *memorydb.DescribeEngineVersionsInput, ...func(*memorydb.Options)) (*memorydb.DescribeEngineVersionsOutput, error)
}

type mqAPI interface {
	DescribeBrokerEngineTypes(context.Context, *mq.DescribeBrokerEngineTypesInput, ...func(*mq.Options)) (*mq.DescribeBrokerEngineTypesOutput, error)
}

type awsClients struct {
	rds           rds.DescribeDBEngineVersionsAPIClient
	elasticache   elasticache.DescribeCacheEngineVersionsAPIClient
	kafka         kafkaAPI
	opensearch    openSearchAPI
	elasticsearch elasticsearchAPI
	memorydb      memoryDBAPI
	mq            mqAPI
}

func newAWSClients(cfg aws.Config) *awsClients {
	return &awsClients{
		rds:           rds.NewFromConfig(cfg),
		elasticache:   elasticache.NewFromConfig(cfg),
		kafka:         kafka.NewFromConfig(cfg),
		opensearch:    opensearch.NewFromConfig(cfg),
		elasticsearch: elasticsearchservice.NewFromConfig(cfg),
		memorydb:      memorydb.NewFromConfig(cfg),
		mq:            mq.NewFromConfig(cfg),
	}
}

// rdsEngine lists versions of an engine served through the RDS API, which
// also covers Neptune and DocumentDB.
func (c *awsClients) rdsEngine(engine string) FetcherFunc {
	return func(ctx context.Context) ([]string, error) {
		var versions []string
		p := rds.NewDescribeDBEngineVersionsPaginator(c.rds, &rds.DescribeDBEngineVersionsInput{
			Engine: aws.String(engine),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, errors.Annotatef(err, "describing %s engine versions", engine)
			}
			for _, v := range page.DBEngineVersions {
				versions = append(versions, aws.ToString(v.EngineVersion))
			}
		}
		return dedupe(versions), nil
	}
}

func (c *awsClients) cacheEngine(engine string) FetcherFunc {
	return func(ctx context.Context) ([]string, error) {
		var versions []string
		p := elasticache.NewDescribeCacheEngineVersionsPaginator(c.elasticache, &elasticache.DescribeCacheEngineVersionsInput{
			Engine: aws.String(engine),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, errors.Annotatef(err, "describing %s cache engine versions", engine)
			}
			for _, v := range page.CacheEngineVersions {
				versions = append(versions, aws.ToString(v.EngineVersion))
			}
		}
		return dedupe(versions), nil
	}
}

// kafkaVersions skips versions MSK already reports as deprecated.
func (c *awsClients) kafkaVersions(ctx context.Context) ([]string, error) {
	var (
		versions []string
		token    *string
	)
	for {
		out, err := c.kafka.ListKafkaVersions(ctx, &kafka.ListKafkaVersionsInput{NextToken: token})
		if err != nil {
			return nil, errors.Annotate(err, "listing kafka versions")
		}
		for _, v := range out.KafkaVersions {
			if v.Status == kafkatypes.KafkaVersionStatusDeprecated {
				continue
			}
			versions = append(versions, aws.ToString(v.Version))
		}
		if token = out.NextToken; token == nil {
			return dedupe(versions), nil
		}
	}
}

func (c *awsClients) openSearchVersions(ctx context.Context) ([]string, error) {
	var (
		versions []string
		token    *string
	)
	for {
		out, err := c.opensearch.ListVersions(ctx, &opensearch.ListVersionsInput{NextToken: token})
		if err != nil {
			return nil, errors.Annotate(err, "listing opensearch versions")
		}
		versions = append(versions, out.Versions...)
		if token = out.NextToken; token == nil {
			return dedupe(versions), nil
		}
	}
}

func (c *awsClients) elasticsearchVersions(ctx context.Context) ([]string, error) {
	var (
		versions []string
		token    *string
	)
	for {
		out, err := c.elasticsearch.ListElasticsearchVersions(ctx, &elasticsearchservice.ListElasticsearchVersionsInput{NextToken: token})
		if err != nil {
			return nil, errors.Annotate(err, "listing elasticsearch versions")
		}
		versions = append(versions, out.ElasticsearchVersions...)
		if token = out.NextToken; token == nil {
			return dedupe(versions), nil
		}
	}
}

func (c *awsClients) memoryDBVersions(ctx context.Context) ([]string, error) {
	var (
		versions []string
		token    *string
	)
	for {
		out, err := c.memorydb.DescribeEngineVersions(ctx, &memorydb.DescribeEngineVersionsInput{NextToken: token})
		if err != nil {
			return nil, errors.Annotate(err, "describing memorydb engine versions")
		}
		for _, v := range out.EngineVersions {
			versions = append(versions, aws.ToString(v.EngineVersion))
		}
		if token = out.NextToken; token == nil {
			return dedupe(versions), nil
		}
	}
}

func (c *awsClients) brokerEngine(engine mqtypes.EngineType) FetcherFunc {
	return func(ctx context.Context) ([]string, error) {
		var (
			versions []string
			token    *string
		)
		for {
			out, err := c.mq.DescribeBrokerEngineTypes(ctx, &mq.DescribeBrokerEngineTypesInput{
				EngineType: aws.String(string(engine)),
				NextToken:  token,
			})
			if err != nil {
				return nil, errors.Annotatef(err, "describing %s broker engine", engine)
			}
			for _, t := range out.BrokerEngineTypes {
				if t.EngineType != engine {
					continue
				}
				for _, v := range t.EngineVersions {
					versions = append(versions, aws.ToString(v.Name))
				}
			}
			if token = out.NextToken; token == nil {
				return dedupe(versions), nil
			}
		}
	}
}

func (r Registry) addAWS(c *awsClients) {
	rdsEngines := map[string]string{
		"aws_aurora":          "aurora",
		"aws_aurora_mysql":    "aurora-mysql",
		"aws_aurora_postgres": "aurora-postgresql",
		"aws_mariadb":         "mariadb",
		"aws_mysql":           "mysql",
		"aws_postgres":        "postgres",
		"aws_oracle_ee":       "oracle-ee",
		"aws_oracle_ee_cdb":   "oracle-ee-cdb",
		"aws_oracle_se2":      "oracle-se2",
		"aws_oracle_se2_cdb":  "oracle-se2-cdb",
		"aws_sqlserver_ee":    "sqlserver-ee",
		"aws_sqlserver_se":    "sqlserver-se",
		"aws_sqlserver_ex":    "sqlserver-ex",
		"aws_sqlserver_web":   "sqlserver-web",
		"aws_neptune":         "neptune",
		"aws_docdb":           "docdb",
	}
	for key, engine := range rdsEngines {
		r[key] = c.rdsEngine(engine)
	}

	r["aws_elasticache_redis"] = c.cacheEngine("redis")
	r["aws_elasticache_memcached"] = c.cacheEngine("memcached")
	r["aws_kafka"] = FetcherFunc(c.kafkaVersions)
	r["aws_opensearch"] = FetcherFunc(c.openSearchVersions)
	r["aws_es"] = FetcherFunc(c.elasticsearchVersions)
	r["aws_memorydb"] = FetcherFunc(c.memoryDBVersions)
	r["aws_rabbitmq"] = c.brokerEngine(mqtypes.EngineTypeRabbitmq)
	r["aws_activemq"] = c.brokerEngine(mqtypes.EngineTypeActivemq)
}
