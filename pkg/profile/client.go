// Package profile is the client for the Profile Store: the upstream
// service holding computed user traits and audience memberships. It
// resolves a profile identifier from an identify event, fetches the
// user's full trait snapshot and enriches it with active-audience
// membership.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/audienceops/traitsync/pkg/events"
	"github.com/audienceops/traitsync/pkg/httpclient"
	"github.com/audienceops/traitsync/pkg/metrics"
	"github.com/audienceops/traitsync/pkg/syncerrors"
	"github.com/audienceops/traitsync/pkg/tracing"
)

// traitLimit caps how many traits are requested per profile lookup.
const traitLimit = 200

// AudienceTraitName is the synthetic trait added to a snapshot when the
// event carries an active-audience reference. Its value is a single-entry
// mapping from the audience name to the membership value.
const AudienceTraitName = "audience"

// TraitSnapshot maps trait names to trait values (number, string, bool,
// null or an array of scalars) for one user. Consumed immediately by the
// reconciler, never retained.
type TraitSnapshot map[string]any

// Client calls the Profile Store traits API. Authentication is basic auth
// with the API key as username and an empty password.
type Client struct {
	http    *httpclient.Client
	baseURL string
	spaceID string
	apiKey  string
	logger  ectologger.Logger
}

// NewClient creates a Profile Store client. baseURL is the API root
// without a trailing slash (e.g. "https://profiles.segment.com/v1").
func NewClient(http *httpclient.Client, baseURL, spaceID, apiKey string, logger ectologger.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		spaceID: spaceID,
		apiKey:  apiKey,
		logger:  logger,
	}
}

type traitsResponse struct {
	Traits map[string]any `json:"traits"`
}

// Identifier resolves the profile lookup key for an event: the stable
// user id when present, otherwise the email trait.
func Identifier(ev *events.Event) (string, error) {
	if ev.UserID != "" {
		return "user_id:" + ev.UserID, nil
	}
	if email := ev.Email(); email != "" {
		return "email:" + email, nil
	}
	return "", syncerrors.NewValidationf("identify event carries neither a userId nor an email trait")
}

// FetchTraits retrieves the user's full trait snapshot. When the event
// context names an active audience, a synthetic "audience" trait is added
// holding {audienceName: membershipValue}; the membership value may be
// null when the user is not currently a member, which is preserved.
// Statuses >= 500 and 429 are retryable (the caller should re-run the
// whole batch); any other non-2xx is fatal.
func (c *Client) FetchTraits(ctx context.Context, ev *events.Event) (TraitSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.FetchTraits")
	defer span.End()

	identifier, err := Identifier(ev)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/spaces/%s/collections/users/profiles/%s/traits?limit=%d",
		c.baseURL, c.spaceID, url.PathEscape(identifier), traitLimit)

	start := time.Now()
	resp, err := c.http.Get(ctx, reqURL, httpclient.BasicHeaders(c.apiKey, ""))
	if err != nil {
		return nil, syncerrors.NewRetryablef(0, "profile traits request failed for %s: %v", identifier, err)
	}
	metrics.TraitFetchDuration.Observe(time.Since(start).Seconds())

	if !resp.OK() {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"status":     resp.StatusCode,
			"body":       string(resp.Body),
			"identifier": identifier,
		}).Error("Profile traits request returned an error")

		if syncerrors.RetryableStatus(resp.StatusCode) {
			return nil, syncerrors.NewRetryablef(resp.StatusCode, "profile traits retryable error: %s, user %s", resp.Status, identifier)
		}
		return nil, syncerrors.NewFatalf(resp.StatusCode, "profile traits non-retryable error: %s, user %s", resp.Status, identifier)
	}

	var body traitsResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, syncerrors.NewFatalf(resp.StatusCode, "failed to parse profile traits response for %s: %v", identifier, err)
	}

	traits := TraitSnapshot(body.Traits)
	if traits == nil {
		traits = TraitSnapshot{}
	}

	// Append the active audience membership to the snapshot
	if audienceName := ev.AudienceKey(); audienceName != "" {
		traits[AudienceTraitName] = map[string]any{audienceName: traits[audienceName]}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"identifier": identifier,
		"traits":     len(traits),
	}).Debug("Fetched profile traits")

	return traits, nil
}
