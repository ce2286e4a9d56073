package squid

import (
	"context"
	"net/http"

	"github.com/machinebox/graphql"
)

// graphqlRunner adapts the machinebox GraphQL client to our Runner interface.
type graphqlRunner struct {
	client *graphql.Client
}

// NewRunner creates a Runner that posts queries to a GraphQL endpoint.
// If httpClient is nil, http.DefaultClient is used.
func NewRunner(endpoint string, httpClient *http.Client) Runner {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &graphqlRunner{
		client: graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
	}
}

func (r *graphqlRunner) Run(ctx context.Context, q Query, out any) error {
	req := graphql.NewRequest(q.Text)
	for k, v := range q.Vars {
		req.Var(k, v)
	}
	return r.client.Run(ctx, req, out)
}
