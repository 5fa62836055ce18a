// Package contact is the client for the Contact Store: the marketing
// contact database this service syncs profile traits into. It fetches the
// store's dynamic custom-field schema and submits contact upserts, and
// classifies every failure as retryable or not.
package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/audienceops/traitsync/pkg/httpclient"
	"github.com/audienceops/traitsync/pkg/metrics"
	"github.com/audienceops/traitsync/pkg/syncerrors"
	"github.com/audienceops/traitsync/pkg/tracing"
)

// Client calls the Contact Store API with bearer-token authentication.
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	logger  ectologger.Logger
}

// NewClient creates a Contact Store client. baseURL is the API root
// without a trailing slash (e.g. "https://api.sendgrid.com/v3").
func NewClient(http *httpclient.Client, baseURL, apiKey string, logger ectologger.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

// FetchFieldSchema retrieves the store's current custom-field definitions
// and returns a freshly allocated name->identifier mapping. An absent
// custom_fields list is treated as an empty schema. Statuses >= 500 and
// 429 are retryable; any other non-2xx is fatal because the schema cannot
// be safely inferred.
func (c *Client) FetchFieldSchema(ctx context.Context) (FieldSchema, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.FetchFieldSchema")
	defer span.End()

	url := c.baseURL + "/marketing/field_definitions"

	resp, err := c.http.Get(ctx, url, httpclient.BearerHeaders(c.apiKey))
	if err != nil {
		return nil, syncerrors.NewRetryablef(0, "contact store field definitions request failed: %v", err)
	}

	if !resp.OK() {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"status": resp.StatusCode,
			"body":   string(resp.Body),
		}).Error("Contact store field definitions request returned an error")

		if syncerrors.RetryableStatus(resp.StatusCode) {
			return nil, syncerrors.NewRetryablef(resp.StatusCode, "contact store get custom fields retryable error: %d", resp.StatusCode)
		}
		return nil, syncerrors.NewFatalf(resp.StatusCode, "contact store get custom fields non-retryable error: %s", resp.Status)
	}

	var body fieldDefinitionsResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, syncerrors.NewFatalf(resp.StatusCode, "failed to parse field definitions response: %v", err)
	}

	schema := make(FieldSchema, len(body.CustomFields))
	for _, field := range body.CustomFields {
		schema[field.Name] = field.ID
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"custom_fields": len(schema),
	}).Debug("Fetched contact store field schema")

	return schema, nil
}

// Upsert submits the assembled batch as a single PUT request and returns
// the destination job identifier. Classification: 2xx success, >= 500 or
// 429 retryable, 400 validation (non-retryable, job_id and per-contact
// errors surfaced), any other non-2xx fatal.
func (c *Client) Upsert(ctx context.Context, records []Record) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Upsert")
	defer span.End()

	url := c.baseURL + "/marketing/contacts"

	reqBody, err := json.Marshal(upsertRequest{Contacts: records})
	if err != nil {
		return "", syncerrors.NewFatalf(0, "failed to serialize upsert request: %v", err)
	}

	resp, err := c.http.Put(ctx, url, httpclient.BearerHeaders(c.apiKey), reqBody)
	if err != nil {
		return "", syncerrors.NewRetryablef(0, "contact store upsert request failed: %v", err)
	}

	if resp.OK() {
		var body upsertResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Contact upsert succeeded but response body could not be parsed")
		}

		metrics.ContactsUpsertedTotal.Add(float64(len(records)))
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"status":   resp.StatusCode,
			"job_id":   body.JobID,
			"contacts": len(records),
		}).Info("Contact upsert request accepted")

		return body.JobID, nil
	}

	// Non-2xx: log the full request/response context before propagating
	c.logger.WithContext(ctx).WithFields(map[string]any{
		"status":   resp.StatusCode,
		"body":     string(resp.Body),
		"request":  string(reqBody),
		"contacts": len(records),
	}).Error("Contact upsert request returned an error")

	if syncerrors.RetryableStatus(resp.StatusCode) {
		return "", syncerrors.NewRetryablef(resp.StatusCode, "contact store upsert retryable error: %s, contacts sent: %d", resp.Status, len(records))
	}

	if resp.StatusCode == http.StatusBadRequest {
		var body upsertResponse
		_ = json.Unmarshal(resp.Body, &body)

		detail := ""
		if len(body.Errors) > 0 {
			details := make([]string, 0, len(body.Errors))
			for _, e := range body.Errors {
				details = append(details, e.Message)
			}
			detail = ": " + strings.Join(details, "; ")
		}

		return "", &syncerrors.Error{
			Kind:       syncerrors.KindValidation,
			StatusCode: resp.StatusCode,
			JobID:      body.JobID,
			Message:    fmt.Sprintf("contact store rejected upsert: %s%s, job_id: %s, contacts sent: %d", resp.Status, detail, body.JobID, len(records)),
		}
	}

	return "", syncerrors.NewFatalf(resp.StatusCode, "contact store upsert non-retryable error: %s, contacts sent: %d", resp.Status, len(records))
}
