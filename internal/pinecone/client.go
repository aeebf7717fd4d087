// Package pinecone adapts the official Pinecone Go SDK to the small set of
// control and data plane calls pdfrag makes.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sdk "github.com/pinecone-io/go-pinecone/v3/pinecone"
)

// DefaultControllerURL is the global control plane endpoint.
const DefaultControllerURL = "https://api.pinecone.io"

// Control is the part of the SDK client used to manage indexes.
type Control interface {
	ListIndexes(ctx context.Context) ([]*sdk.Index, error)
	CreateServerlessIndex(ctx context.Context, in *sdk.CreateServerlessIndexRequest) (*sdk.Index, error)
	DescribeIndex(ctx context.Context, name string) (*sdk.Index, error)
	DeleteIndex(ctx context.Context, name string) error
}

// DataPlane is the part of an SDK index connection used to read and write
// vectors.
type DataPlane interface {
	UpsertVectors(ctx context.Context, in []*sdk.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *sdk.QueryByVectorValuesRequest) (*sdk.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*sdk.DescribeIndexStatsResponse, error)
	Close() error
}

// Dialer opens a data plane connection to the index served at host.
type Dialer func(host string) (DataPlane, error)

// IsNotFound reports whether err is a 404 from Pinecone.
func IsNotFound(err error) bool {
	var pcErr *sdk.PineconeError
	return errors.As(err, &pcErr) && pcErr.Code == http.StatusNotFound
}

// Client talks to the control plane and hands out index connections.
type Client struct {
	control Control
	dial    Dialer

	// PollInterval is the delay between readiness checks after CreateIndex.
	PollInterval time.Duration
}

// New creates a Client backed by the SDK. An empty controllerURL selects
// DefaultControllerURL.
func New(apiKey, controllerURL string) (*Client, error) {
	if controllerURL == "" {
		controllerURL = DefaultControllerURL
	}
	pc, err := sdk.NewClient(sdk.NewClientParams{
		ApiKey:     apiKey,
		Host:       controllerURL,
		RestClient: &http.Client{Timeout: 60 * time.Second},
		SourceTag:  "pdfrag",
	})
	if err != nil {
		return nil, fmt.Errorf("creating pinecone client: %w", err)
	}
	dial := func(host string) (DataPlane, error) {
		conn, err := pc.Index(sdk.NewIndexConnParams{Host: host})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return NewWithBackends(pc, dial), nil
}

// NewWithBackends builds a Client from an explicit control plane and dialer.
func NewWithBackends(control Control, dial Dialer) *Client {
	return &Client{control: control, dial: dial, PollInterval: 2 * time.Second}
}

// CreateIndexRequest describes a dense serverless index.
type CreateIndexRequest struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

// ListIndexes returns every index in the project.
func (c *Client) ListIndexes(ctx context.Context) ([]*sdk.Index, error) {
	indexes, err := c.control.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	return indexes, nil
}

// CreateIndex creates a serverless index. It returns as soon as the control
// plane accepted the request; use WaitUntilReady before writing to it.
func (c *Client) CreateIndex(ctx context.Context, req CreateIndexRequest) (*sdk.Index, error) {
	dim := int32(req.Dimension)
	metric := sdk.IndexMetric(req.Metric)
	vectorType := "dense"
	model, err := c.control.CreateServerlessIndex(ctx, &sdk.CreateServerlessIndexRequest{
		Name:       req.Name,
		Cloud:      sdk.Cloud(req.Cloud),
		Region:     req.Region,
		Metric:     &metric,
		Dimension:  &dim,
		VectorType: &vectorType,
	})
	if err != nil {
		return nil, fmt.Errorf("creating index %s: %w", req.Name, err)
	}
	return model, nil
}

// DescribeIndex returns the current state of an index.
func (c *Client) DescribeIndex(ctx context.Context, name string) (*sdk.Index, error) {
	model, err := c.control.DescribeIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("describing index %s: %w", name, err)
	}
	return model, nil
}

// DeleteIndex deletes an index and all of its vectors.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	if err := c.control.DeleteIndex(ctx, name); err != nil {
		return fmt.Errorf("deleting index %s: %w", name, err)
	}
	return nil
}

// WaitUntilReady polls DescribeIndex until the index reports ready or ctx
// is done.
func (c *Client) WaitUntilReady(ctx context.Context, name string) (*sdk.Index, error) {
	for {
		model, err := c.DescribeIndex(ctx, name)
		if err != nil {
			return nil, err
		}
		if model.Status != nil && model.Status.Ready {
			return model, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for index %s: %w", name, ctx.Err())
		case <-time.After(c.PollInterval):
		}
	}
}

// Index opens a data plane connection to the index served at host.
func (c *Client) Index(host string) (*Index, error) {
	conn, err := c.dial(host)
	if err != nil {
		return nil, fmt.Errorf("connecting to index host %s: %w", host, err)
	}
	return &Index{conn: conn}, nil
}
