package thingspeak

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/jwalitptl/postop-monitor/internal/device"
	"github.com/jwalitptl/postop-monitor/internal/model"
)

// Channel field layout used by the wearable bands
const (
	fieldHeartRate   = "field1"
	fieldSpO2        = "field2"
	fieldTemperature = "field3"
	fieldSystolic    = "field4"
	fieldDiastolic   = "field5"
	fieldSteps       = "field6"
)

var ErrNoChannel = errors.New("no thingspeak channel configured for patient")

// Options configures the client
type Options struct {
	BaseURL        string
	DefaultChannel string
	ReadAPIKey     string
	Timeout        time.Duration
	RetryCount     int
}

// FeedEntry is one row of a ThingSpeak channel feed
type FeedEntry struct {
	CreatedAt string  `json:"created_at"`
	EntryID   int64   `json:"entry_id"`
	Field1    *string `json:"field1"`
	Field2    *string `json:"field2"`
	Field3    *string `json:"field3"`
	Field4    *string `json:"field4"`
	Field5    *string `json:"field5"`
	Field6    *string `json:"field6"`
}

func (e *FeedEntry) fields() map[string]*string {
	return map[string]*string{
		fieldHeartRate:   e.Field1,
		fieldSpO2:        e.Field2,
		fieldTemperature: e.Field3,
		fieldSystolic:    e.Field4,
		fieldDiastolic:   e.Field5,
		fieldSteps:       e.Field6,
	}
}

// Client reads the latest entry of a patient's ThingSpeak channel
type Client struct {
	http           *resty.Client
	cb             *gobreaker.CircuitBreaker[*FeedEntry]
	defaultChannel string
	apiKey         string
	logger         zerolog.Logger

	mu sync.Mutex
	// newest entry id returned per patient and channel
	lastSeen map[string]int64
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	cb := gobreaker.NewCircuitBreaker[*FeedEntry](gobreaker.Settings{
		Name:        "thingspeak",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// an empty channel is a healthy answer
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, device.ErrNoNewData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		http:           httpClient,
		cb:             cb,
		defaultChannel: opts.DefaultChannel,
		apiKey:         opts.ReadAPIKey,
		logger:         logger,
		lastSeen:       make(map[string]int64),
	}
}

// Read returns the channel's newest entry as a reading. An entry already
// returned to the same patient, or an empty channel, yields
// device.ErrNoNewData. Patients sharing the default channel each receive
// every entry.
func (c *Client) Read(ctx context.Context, patient *model.User, now time.Time) (*model.VitalsReading, error) {
	channel := c.defaultChannel
	if patient.BandID != nil && *patient.BandID != "" {
		channel = *patient.BandID
	}
	if channel == "" {
		return nil, ErrNoChannel
	}

	entry, err := c.cb.Execute(func() (*FeedEntry, error) {
		return c.fetchLast(ctx, channel)
	})
	if err != nil {
		return nil, err
	}

	key := patient.ID.String() + "/" + channel
	c.mu.Lock()
	last, seen := c.lastSeen[key]
	if seen && entry.EntryID <= last {
		c.mu.Unlock()
		return nil, device.ErrNoNewData
	}
	c.lastSeen[key] = entry.EntryID
	c.mu.Unlock()

	return toReading(patient, channel, entry, now), nil
}

func (c *Client) fetchLast(ctx context.Context, channel string) (*FeedEntry, error) {
	var entry FeedEntry
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("channel", channel).
		SetResult(&entry)
	if c.apiKey != "" {
		req.SetQueryParam("api_key", c.apiKey)
	}

	resp, err := req.Get("/channels/{channel}/feeds/last.json")
	if err != nil {
		return nil, fmt.Errorf("failed to call thingspeak: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("thingspeak returned status %d for channel %s", resp.StatusCode(), channel)
	}
	if entry.EntryID == 0 {
		return nil, fmt.Errorf("thingspeak channel %s has no entries: %w", channel, device.ErrNoNewData)
	}
	return &entry, nil
}

func toReading(patient *model.User, channel string, entry *FeedEntry, now time.Time) *model.VitalsReading {
	recorded := now
	if t, err := time.Parse(time.RFC3339, entry.CreatedAt); err == nil {
		recorded = t.UTC()
	}

	raw := &model.DeviceMetadata{
		ChannelID: channel,
		EntryID:   entry.EntryID,
		Fields:    make(map[string]string),
	}
	for name, v := range entry.fields() {
		if v != nil {
			raw.Fields[name] = *v
		}
	}

	reading := &model.VitalsReading{
		PatientID:   patient.ID,
		DeviceID:    channel,
		RecordedAt:  recorded,
		HeartRate:   parseFloat(entry.Field1),
		SpO2:        parseFloat(entry.Field2),
		Temperature: parseFloat(entry.Field3),
		Systolic:    parseFloat(entry.Field4),
		Diastolic:   parseFloat(entry.Field5),
		Source:      model.SourceThingSpeak,
		Raw:         raw,
	}
	if steps := parseFloat(entry.Field6); steps != nil {
		reading.Steps = model.Int(int(*steps))
	}
	return reading
}

// parseFloat returns nil for absent or non-numeric fields
func parseFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}
	return &v
}

var _ device.Source = (*Client)(nil)
