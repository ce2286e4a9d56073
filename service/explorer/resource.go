// Package explorer holds the data services behind the explorer pages. Each
// service builds a GraphQL query, picks the backend the network supports and
// normalizes the response into a paginated item list.
package explorer

import (
	"errors"
	"strconv"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// Pagination describes the page a response holds.
type Pagination struct {
	Offset      int  `json:"offset"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"hasNextPage"`
	TotalCount  int  `json:"totalCount"`
}

// PaginationOptions is the requested window.
type PaginationOptions struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// DefaultPageSize is used when a request does not name a limit.
const DefaultPageSize = 10

// Normalize clamps the window to sane values.
func (p PaginationOptions) Normalize() PaginationOptions {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// ItemsResponse is one page of normalized items.
type ItemsResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// emptyResponse is returned when a network lacks the backend a query needs.
func emptyResponse[T any]() *ItemsResponse[T] {
	return &ItemsResponse[T]{
		Data: []T{},
		Pagination: Pagination{
			Offset:      0,
			Limit:       0,
			HasNextPage: false,
			TotalCount:  0,
		},
	}
}

// DataError is the error a table or chart renders in place of data.
type DataError struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *DataError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

// NewDataError converts a service error into its display form.
func NewDataError(err error) *DataError {
	switch {
	case errors.Is(err, squid.ErrUnknownNetwork):
		return &DataError{Message: "Unknown network", Detail: err.Error()}
	case errors.Is(err, squid.ErrBackendNotSupported):
		return &DataError{Message: "Not supported on this network", Detail: err.Error()}
	default:
		return &DataError{Message: "Unexpected error while fetching data", Detail: err.Error()}
	}
}

// PaginatedResource is the state a table renders: exactly one of loading,
// not found, error or data applies.
type PaginatedResource[T any] struct {
	Data       []T        `json:"data"`
	Loading    bool       `json:"loading"`
	NotFound   bool       `json:"notFound"`
	Error      *DataError `json:"error,omitempty"`
	Pagination Pagination `json:"pagination"`
}

// NewResource wraps the outcome of a service call.
func NewResource[T any](resp *ItemsResponse[T], err error) PaginatedResource[T] {
	if err != nil {
		return PaginatedResource[T]{Error: NewDataError(err)}
	}
	if resp == nil || len(resp.Data) == 0 {
		r := PaginatedResource[T]{NotFound: true, Data: []T{}}
		if resp != nil {
			r.Pagination = resp.Pagination
		}
		return r
	}
	return PaginatedResource[T]{Data: resp.Data, Pagination: resp.Pagination}
}

// LoadingResource is the placeholder rendered before data arrives.
func LoadingResource[T any]() PaginatedResource[T] {
	return PaginatedResource[T]{Loading: true}
}

// Resource is the non-paginated counterpart of PaginatedResource.
type Resource[T any] struct {
	Data     T          `json:"data"`
	Loading  bool       `json:"loading"`
	NotFound bool       `json:"notFound"`
	Error    *DataError `json:"error,omitempty"`
}

// NewListResource wraps a list result; an empty list is not found.
func NewListResource[T any](data []T, err error) Resource[[]T] {
	if err != nil {
		return Resource[[]T]{Error: NewDataError(err)}
	}
	return Resource[[]T]{Data: data, NotFound: len(data) == 0}
}

// itemsConnection is the relay-style connection shape of the archive and main-squid backends.
type itemsConnection[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
	PageInfo   pageInfo `json:"pageInfo"`
	TotalCount int      `json:"totalCount"`
}

type pageInfo struct {
	EndCursor       string `json:"endCursor"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor"`
}

// nodesConnection is the postgraphile shape the delegation indexer returns.
type nodesConnection[T any] struct {
	Nodes      []T      `json:"nodes"`
	PageInfo   pageInfo `json:"pageInfo"`
	TotalCount int      `json:"totalCount"`
}

// extractConnectionItems flattens a connection into an ItemsResponse, converting each node.
func extractConnectionItems[N, T any](conn itemsConnection[N], opts PaginationOptions, transform func(N) (T, error)) (*ItemsResponse[T], error) {
	data := make([]T, 0, len(conn.Edges))
	for _, e := range conn.Edges {
		item, err := transform(e.Node)
		if err != nil {
			return nil, err
		}
		data = append(data, item)
	}
	return &ItemsResponse[T]{
		Data: data,
		Pagination: Pagination{
			Offset:      opts.Offset,
			Limit:       opts.Limit,
			HasNextPage: conn.PageInfo.HasNextPage,
			TotalCount:  conn.TotalCount,
		},
	}, nil
}

// extractNodeItems is extractConnectionItems for the postgraphile shape.
func extractNodeItems[N, T any](conn nodesConnection[N], opts PaginationOptions, transform func(N) (T, error)) (*ItemsResponse[T], error) {
	data := make([]T, 0, len(conn.Nodes))
	for _, n := range conn.Nodes {
		item, err := transform(n)
		if err != nil {
			return nil, err
		}
		data = append(data, item)
	}
	return &ItemsResponse[T]{
		Data: data,
		Pagination: Pagination{
			Offset:      opts.Offset,
			Limit:       opts.Limit,
			HasNextPage: conn.PageInfo.HasNextPage,
			TotalCount:  conn.TotalCount,
		},
	}, nil
}

// afterCursor is the relay cursor for an offset; the first page has none.
func afterCursor(offset int) any {
	if offset == 0 {
		return nil
	}
	return strconv.Itoa(offset)
}
