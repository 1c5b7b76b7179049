package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"
	container "google.golang.org/api/container/v1"
	"google.golang.org/api/option"
	sqladmin "google.golang.org/api/sqladmin/v1"
)

type gcpClients struct {
	sqladmin  *sqladmin.Service
	container *container.Service
	parent    string
}

func newGCPClients(ctx context.Context, project, location string, opts ...option.ClientOption) (*gcpClients, error) {
	sql, err := sqladmin.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "creating sqladmin client")
	}
	gke, err := container.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "creating container client")
	}
	return &gcpClients{
		sqladmin:  sql,
		container: gke,
		parent:    fmt.Sprintf("projects/%s/locations/%s", project, location),
	}, nil
}

// cloudSQL collects the database versions that CloudSQL flags apply to and
// keeps those of one engine, e.g. "POSTGRES_15" for "postgres".
func (c *gcpClients) cloudSQL(engine string) FetcherFunc {
	return func(ctx context.Context) ([]string, error) {
		flags, err := c.sqladmin.Flags.List().Context(ctx).Do()
		if err != nil {
			return nil, errors.Annotate(err, "listing cloudsql flags")
		}

		var versions []string
		for _, flag := range flags.Items {
			for _, v := range flag.AppliesTo {
				if strings.HasPrefix(strings.ToLower(v), engine) {
					versions = append(versions, v)
				}
			}
		}
		return dedupe(versions), nil
	}
}

func (c *gcpClients) gkeMasterVersions(ctx context.Context) ([]string, error) {
	cfg, err := c.container.Projects.Locations.GetServerConfig(c.parent).Context(ctx).Do()
	if err != nil {
		return nil, errors.Annotatef(err, "getting server config for %s", c.parent)
	}
	return dedupe(cfg.ValidMasterVersions), nil
}

func (r Registry) addGCP(c *gcpClients) {
	r["gcp_gke"] = FetcherFunc(c.gkeMasterVersions)
	r["gcp_cloudsql_postgres"] = c.cloudSQL("postgres")
	r["gcp_cloudsql_sqlserver"] = c.cloudSQL("sqlserver")
	r["gcp_cloudsql_mysql"] = c.cloudSQL("mysql")
}
