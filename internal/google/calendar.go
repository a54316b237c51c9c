package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/carrieskye/calendar/internal/models"
)

const credentialsFile = "credentials.json"

// CalendarClient wraps the Google Calendar API for one authenticated account.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	account    string
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates an authenticated Calendar client for one account. Tokens
// live in per-account files written by the auth flow.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := fmt.Sprintf("token-%s.json", accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{
		service:    service,
		logger:     logger,
		account:    accountName,
		maxRetries: 3,
		retryDelay: 30 * time.Second,
	}, nil
}

// Account returns the account name the client was created for.
func (c *CalendarClient) Account() string { return c.account }

// Events fetches all events in the window, expanded and ordered by start.
func (c *CalendarClient) Events(ctx context.Context, calendarID string, start, end time.Time, maxResults int64) ([]models.Event, error) {
	c.logger.Debug("Fetching calendar events",
		"calendarID", calendarID, "start", start, "end", end)

	var events *calendar.Events
	err := c.withRetry(ctx, "events.list", func() error {
		var callErr error
		events, callErr = c.service.Events.List(calendarID).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			MaxResults(maxResults).
			OrderBy("startTime").
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	return c.toInternalEvents(events.Items, calendarID), nil
}

// CreateEvent inserts a new event into the calendar.
func (c *CalendarClient) CreateEvent(ctx context.Context, calendarID string, event models.Event) error {
	c.logger.Info("Creating calendar event",
		"calendarID", calendarID, "summary", event.Summary, "start", event.Start.Time)

	return c.withRetry(ctx, "events.insert", func() error {
		_, err := c.service.Events.Insert(calendarID, toGoogleEvent(event)).Context(ctx).Do()
		return err
	})
}

// UpdateEvent rewrites an existing event.
func (c *CalendarClient) UpdateEvent(ctx context.Context, calendarID, eventID string, event models.Event) error {
	c.logger.Info("Updating calendar event",
		"calendarID", calendarID, "eventID", eventID, "summary", event.Summary)

	return c.withRetry(ctx, "events.update", func() error {
		_, err := c.service.Events.Update(calendarID, eventID, toGoogleEvent(event)).Context(ctx).Do()
		return err
	})
}

// DeleteEvent removes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	c.logger.Info("Deleting calendar event", "calendarID", calendarID, "eventID", eventID)

	return c.withRetry(ctx, "events.delete", func() error {
		return c.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
}

// Calendars returns the account's calendar names mapped to their ids.
func (c *CalendarClient) Calendars(ctx context.Context) (map[string]string, error) {
	var list *calendar.CalendarList
	err := c.withRetry(ctx, "calendarList.list", func() error {
		var callErr error
		list, callErr = c.service.CalendarList.List().Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make(map[string]string, len(list.Items))
	for _, item := range list.Items {
		name := item.Summary
		if item.SummaryOverride != "" {
			name = item.SummaryOverride
		}
		calendars[name] = item.Id
	}
	return calendars, nil
}

// withRetry runs call, retrying a bounded number of times with a fixed delay
// when the API reports rate limiting. Anything else propagates immediately.
func (c *CalendarClient) withRetry(ctx context.Context, operation string, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		if !isRateLimited(err) {
			return err
		}
		if attempt >= c.maxRetries {
			return fmt.Errorf("%s rate limited after %d attempts: %w", operation, attempt+1, err)
		}
		c.logger.Warn("Rate limited, backing off",
			"operation", operation, "delay", c.retryDelay, "attempt", attempt+1)
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == 429 {
		return true
	}
	if apiErr.Code == 403 {
		for _, e := range apiErr.Errors {
			if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

// toInternalEvents converts provider events to the internal model, keeping
// each endpoint's time zone.
func (c *CalendarClient) toInternalEvents(googleEvents []*calendar.Event, calendarID string) []models.Event {
	var events []models.Event
	for _, item := range googleEvents {
		// All-day events have no specific times and are not reconciled.
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}

		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			c.logger.Warn("Skipping event with malformed start time",
				"eventID", item.Id, "summary", item.Summary, "error", err)
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			c.logger.Warn("Skipping event with malformed end time",
				"eventID", item.Id, "summary", item.Summary, "error", err)
			continue
		}

		events = append(events, models.Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Start:       models.EventTime{Time: start, TimeZone: item.Start.TimeZone},
			End:         models.EventTime{Time: end, TimeZone: item.End.TimeZone},
			Calendar:    calendarID,
			Owner:       c.account,
			UID:         item.ICalUID,
			Source:      fmt.Sprintf("google-%s", calendarID),
		})
	}
	return events
}

func toGoogleEvent(event models.Event) *calendar.Event {
	return &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.Time.Format(time.RFC3339),
			TimeZone: event.Start.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.Time.Format(time.RFC3339),
			TimeZone: event.End.TimeZone,
		},
		Visibility: "default",
	}
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(context.Background(), authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// TokenAccounts lists the accounts that have a saved token file.
func TokenAccounts() ([]string, error) {
	files, err := os.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
