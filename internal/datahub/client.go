// Package datahub is the HTTP client for a DataHub instance: entity fetch
// via the GraphQL endpoint and change-proposal submission via the aspects
// ingest endpoint.
package datahub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datahub-tools/metamigrate/internal/entity"
	"github.com/datahub-tools/metamigrate/internal/proposal"
)

// Connection identifies one DataHub environment.
type Connection struct {
	// Name is the operator-facing environment name ("dev", "prod").
	Name string
	// Server is the DataHub frontend/GMS base URL.
	Server string
	// Token is an optional personal access token.
	Token string
}

// Client talks to one DataHub environment. Fetches and submissions are
// retried with a bounded attempt count; a request that keeps failing is an
// error for its caller to record, not a process abort.
type Client struct {
	conn       Connection
	httpClient *http.Client
	// maxAttempts bounds retries per request.
	maxAttempts int
	// retryDelay is the base delay between attempts, scaled linearly.
	retryDelay time.Duration
}

// NewClient builds a client for the given connection.
func NewClient(conn Connection) *Client {
	return &Client{
		conn:        conn,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		retryDelay:  500 * time.Millisecond,
	}
}

// pageSize is the scroll batch size for entity fetches.
const pageSize = 100

// scrollQuery pulls everything the matcher and generator need: identity
// fields in all their schema variants plus the five supported aspects.
const scrollQuery = `query scroll($types: [EntityType!], $count: Int!, $scrollId: String) {
  scrollAcrossEntities(input: {types: $types, query: "*", count: $count, scrollId: $scrollId}) {
    nextScrollId
    searchResults {
      entity {
        urn
        type
        ... on Entity {
          name
          properties { name }
          editableProperties { name }
          browsePaths
          browsePathV2 { path { entity { urn properties { name } } } }
          globalTags { tags { tag } }
          glossaryTerms { terms { urn } }
          domain { domains }
          structuredProperties { properties { propertyUrn values } }
          schemaMetadata { fields { fieldPath tags { tags { tag } } glossaryTerms { terms { urn } } } }
        }
      }
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type scrollResponse struct {
	Data struct {
		ScrollAcrossEntities struct {
			NextScrollID  string `json:"nextScrollId"`
			SearchResults []struct {
				Entity entity.Record `json:"entity"`
			} `json:"searchResults"`
		} `json:"scrollAcrossEntities"`
	} `json:"data"`
	Errors []graphqlError `json:"errors,omitempty"`
}

// FetchEntities scrolls all entities of the given types out of the
// environment. A nil or empty type list fetches every type the server
// returns. Entities come back in server scroll order.
func (c *Client) FetchEntities(ctx context.Context, types []string) ([]entity.Record, error) {
	var records []entity.Record
	scrollID := ""
	for {
		vars := map[string]any{"count": pageSize}
		if len(types) > 0 {
			vars["types"] = types
		}
		if scrollID != "" {
			vars["scrollId"] = scrollID
		}

		var resp scrollResponse
		err := c.withRetry(ctx, "fetch entities", func(ctx context.Context) error {
			// A failed attempt can leave partially decoded fields (a stale
			// scroll id in particular), so start each attempt from zero.
			resp = scrollResponse{}
			return c.graphql(ctx, graphqlRequest{Query: scrollQuery, Variables: vars}, &resp)
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("graphql error from %s: %s", c.conn.Name, resp.Errors[0].Message)
		}

		for _, result := range resp.Data.ScrollAcrossEntities.SearchResults {
			records = append(records, result.Entity)
		}
		scrollID = resp.Data.ScrollAcrossEntities.NextScrollID
		if scrollID == "" {
			return records, nil
		}
	}
}

// ingestProposal is the wire form of one change proposal submission. The
// aspect payload travels as a generic JSON aspect.
type ingestProposal struct {
	EntityURN  string        `json:"entityUrn"`
	EntityType string        `json:"entityType"`
	AspectName string        `json:"aspectName"`
	ChangeType string        `json:"changeType"`
	Aspect     genericAspect `json:"aspect"`
}

type genericAspect struct {
	ContentType string `json:"contentType"`
	Value       string `json:"value"`
}

// SubmitProposal submits one change proposal. Submission failures are
// retried up to the attempt bound; what comes back is a per-proposal error,
// never a batch abort.
func (c *Client) SubmitProposal(ctx context.Context, p proposal.ChangeProposal) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s aspect for %s: %w", p.AspectName, p.EntityURN, err)
	}
	body, err := json.Marshal(map[string]any{
		"proposal": ingestProposal{
			EntityURN:  p.EntityURN,
			EntityType: p.EntityType,
			AspectName: string(p.AspectName),
			ChangeType: p.ChangeType,
			Aspect:     genericAspect{ContentType: "application/json", Value: string(payload)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode proposal for %s: %w", p.EntityURN, err)
	}

	return c.withRetry(ctx, "submit proposal", func(ctx context.Context) error {
		return c.post(ctx, "/aspects?action=ingestProposal", body, nil)
	})
}

func (c *Client) graphql(ctx context.Context, req graphqlRequest, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}
	return c.post(ctx, "/api/graphql", body, out)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	url := strings.TrimRight(c.conn.Server, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.conn.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.conn.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, truncate(string(data), 200))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
	}
	return nil
}

// withRetry runs fn up to maxAttempts times with linear backoff. Context
// cancellation stops retrying immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt < c.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, c.maxAttempts, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
