// Package adapters fetches the currently supported version labels of each
// tracked service from its provider.
package adapters

import (
	"context"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fiffu/versionwatch/config"
	"github.com/juju/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const ErrNoVersions = errors.ConstError("no versions found")

// Fetcher returns the provider's authoritative list of supported version
// labels for one service. Order is not significant.
type Fetcher interface {
	Fetch(ctx context.Context) ([]string, error)
}

type FetcherFunc func(ctx context.Context) ([]string, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Registry maps catalog service keys to their fetchers.
type Registry map[string]Fetcher

func (r Registry) Lookup(serviceKey string) (Fetcher, bool) {
	f, ok := r[serviceKey]
	return f, ok
}

func NewRegistry(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) (Registry, error) {
	ctx := context.Background()
	r := Registry{}

	r.addScrapers(newScraper(transport, time.Now))

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithHTTPClient(&http.Client{Transport: transport}),
	)
	if err != nil {
		return nil, errors.Annotate(err, "loading aws config")
	}
	r.addAWS(newAWSClients(awsCfg))

	if cfg.GCP.CredentialsJSON == "" || cfg.GCP.Project == "" {
		log.Sugar().Warnw("GCP credentials are not configured, GKE and CloudSQL will not be polled")
	} else {
		gcp, err := newGCPClients(ctx, cfg.GCP.Project, cfg.GCP.Location,
			option.WithCredentialsJSON([]byte(cfg.GCP.CredentialsJSON)),
		)
		if err != nil {
			return nil, err
		}
		r.addGCP(gcp)
	}

	log.Sugar().Infow("Adapters registered", "count", len(r))
	return r, nil
}

// dedupe keeps the first occurrence of every label.
func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := labels[:0]
	for _, l := range labels {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
