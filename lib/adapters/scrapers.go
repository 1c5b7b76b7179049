package adapters

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/juju/errors"
)

const lambdaRuntimesURL = "https://docs.aws.amazon.com/lambda/latest/dg/lambda-runtimes.html"

var redisVersionList = regexp.MustCompile(`\(([0-9]+(?:,\s?[0-9]+)*)\)`)

// extractor picks the version label out of one table row.
type extractor func(cells []string) (string, bool)

// tableScrape reads versions from the first table after each anchor on a
// documentation page. Every anchor must yield at least one version.
type tableScrape struct {
	url     string
	anchors []string
	extract extractor
}

func (t tableScrape) fetcher(s *scraper) FetcherFunc {
	return func(ctx context.Context) ([]string, error) {
		doc, err := s.document(ctx, t.url)
		if err != nil {
			return nil, err
		}

		var versions []string
		for _, anchor := range t.anchors {
			rows, err := s.rows(doc, anchor)
			if err != nil {
				return nil, errors.Annotatef(err, "scraping %s", t.url)
			}

			found := 0
			for _, cells := range rows {
				if v, ok := t.extract(cells); ok {
					versions = append(versions, v)
					found++
				}
			}
			if found == 0 {
				return nil, errors.Annotatef(ErrNoVersions, "table after #%s on %s", anchor, t.url)
			}
		}
		return dedupe(versions), nil
	}
}

func column(i int) extractor {
	return func(cells []string) (string, bool) {
		if i >= len(cells) || cells[i] == "" {
			return "", false
		}
		return cells[i], true
	}
}

// unlessRetired drops labels the page marks as retired.
func unlessRetired(next extractor) extractor {
	return func(cells []string) (string, bool) {
		v, ok := next(cells)
		if !ok || strings.Contains(strings.ToLower(v), "retired") {
			return "", false
		}
		return v, true
	}
}

// unlessStarred drops labels with a trailing footnote marker, which the AKS
// calendar uses for versions that are not yet generally available.
func unlessStarred(next extractor) extractor {
	return func(cells []string) (string, bool) {
		v, ok := next(cells)
		if !ok || strings.HasSuffix(v, "*") {
			return "", false
		}
		return v, true
	}
}

func withPrefix(prefix string, next extractor) extractor {
	return func(cells []string) (string, bool) {
		v, ok := next(cells)
		if !ok || !strings.HasPrefix(v, prefix) {
			return "", false
		}
		return v, true
	}
}

var supportDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"January 2006",
	"Jan 2006",
}

func parseSupportDate(s string) (time.Time, bool) {
	for _, layout := range supportDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// supportedUntil keeps versions whose end of support, read from column col,
// is still in the future.
func supportedUntil(col int, now func() time.Time, next extractor) extractor {
	return func(cells []string) (string, bool) {
		v, ok := next(cells)
		if !ok || col >= len(cells) {
			return "", false
		}
		end, ok := parseSupportDate(cells[col])
		if !ok || !end.After(now()) {
			return "", false
		}
		return v, true
	}
}

// azureRedisVersions reads the version list out of the redisVersion property
// description, e.g. "Valid values: (4, 6)".
func azureRedisVersions(cells []string) []string {
	if len(cells) < 3 || cells[0] != "properties.redisVersion" {
		return nil
	}
	m := redisVersionList.FindStringSubmatch(cells[2])
	if m == nil {
		return nil
	}
	var out []string
	for _, v := range strings.Split(m[1], ",") {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func (s *scraper) azureRedis(ctx context.Context) ([]string, error) {
	const url = "https://docs.microsoft.com/en-us/rest/api/redis/redis/update"

	doc, err := s.document(ctx, url)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows(doc, "request-body")
	if err != nil {
		return nil, errors.Annotatef(err, "scraping %s", url)
	}
	for _, cells := range rows {
		if versions := azureRedisVersions(cells); len(versions) > 0 {
			return versions, nil
		}
	}
	return nil, errors.Annotatef(ErrNoVersions, "redisVersion property on %s", url)
}

func (r Registry) addScrapers(s *scraper) {
	scrapes := map[string]tableScrape{
		"aws_eks": {
			url:     "https://docs.aws.amazon.com/eks/latest/userguide/kubernetes-versions.html",
			anchors: []string{"kubernetes-release-calendar"},
			extract: supportedUntil(3, s.now, column(0)),
		},
		"azure_mariadb_server": {
			url:     "https://docs.microsoft.com/en-us/rest/api/mariadb/servers/create",
			anchors: []string{"serverversion"},
			extract: column(0),
		},
		"azure_postgresql_server": {
			url:     "https://docs.microsoft.com/en-us/azure/postgresql/concepts-version-policy",
			anchors: []string{"supported--postgresql-versions"},
			extract: unlessRetired(column(0)),
		},
		"azure_mysql_server": {
			url:     "https://docs.microsoft.com/en-us/azure/mysql/concepts-version-policy",
			anchors: []string{"supported-mysql-versions"},
			extract: unlessRetired(column(1)),
		},
		"azure_aks": {
			url:     "https://docs.microsoft.com/en-us/azure/aks/supported-kubernetes-versions",
			anchors: []string{"aks-kubernetes-release-calendar"},
			extract: unlessStarred(column(0)),
		},
		"azure_hdinsight": {
			url:     "https://docs.microsoft.com/en-us/azure/hdinsight/hdinsight-component-versioning",
			anchors: []string{"supported-hdinsight-versions"},
			extract: column(0),
		},
		"azure_databricks": {
			url:     "https://docs.microsoft.com/en-us/azure/databricks/release-notes/runtime/releases",
			anchors: []string{"--supported-databricks-runtime-releases-and-support-schedule"},
			extract: column(0),
		},
		"gcp_dataproc": {
			url:     "https://cloud.google.com/dataproc/docs/concepts/versioning/dataproc-versions",
			anchors: []string{"debian_images", "ubuntu_images", "rocky_linux_images"},
			extract: column(0),
		},
		"gcp_dataproc_os": {
			url:     "https://cloud.google.com/dataproc/docs/concepts/versioning/overview",
			anchors: []string{"how_versioning_works"},
			extract: column(0),
		},
		"gcp_memorystore_redis": {
			url:     "https://cloud.google.com/memorystore/docs/redis/supported-versions",
			anchors: []string{"current_versions"},
			extract: column(1),
		},
	}

	lambdas := map[string]string{
		"aws_lambda_nodejs": "nodejs",
		"aws_lambda_python": "python",
		"aws_lambda_ruby":   "ruby",
		"aws_lambda_java":   "java",
		"aws_lambda_go":     "go",
		"aws_lambda_dotnet": "dotnet",
		"aws_lambda_custom": "provided",
	}
	for key, prefix := range lambdas {
		scrapes[key] = tableScrape{
			url:     lambdaRuntimesURL,
			anchors: []string{"runtimes-supported"},
			extract: withPrefix(prefix, column(1)),
		}
	}

	for key, scrape := range scrapes {
		r[key] = scrape.fetcher(s)
	}
	r["azure_redis_server"] = FetcherFunc(s.azureRedis)
}
