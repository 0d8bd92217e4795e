package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"bikeshare-trips/internal/bike"
)

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
	Close()
}

// NATSPublisher is a trip sink that emits one JSON message per trip.
type NATSPublisher struct {
	nc          conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, subjectPrefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bikeshare-trips"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, subjectPrefix, logSubjects, m), nil
}

func newPublisher(nc conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "bikes.trips"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) Name() string { return "nats" }

type TripMessage struct {
	RunID           string    `json:"runId"`
	BikeNumber      string    `json:"bikeNumber"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int64     `json:"durationSeconds"`
	Weekend         bool      `json:"weekend"`
	IsStation       bool      `json:"isStation"`
	StartLat        float64   `json:"startLat"`
	StartLon        float64   `json:"startLon"`
	StartName       string    `json:"startName"`
	EndLat          float64   `json:"endLat"`
	EndLon          float64   `json:"endLon"`
	EndName         string    `json:"endName"`
}

func NewTripMessage(runID string, t bike.Trip) TripMessage {
	return TripMessage{
		RunID:           runID,
		BikeNumber:      t.BikeID,
		StartTime:       t.StartTime,
		EndTime:         t.EndTime,
		DurationSeconds: int64(t.Duration / time.Second),
		Weekend:         t.Weekend,
		IsStation:       t.IsStation,
		StartLat:        t.Start.Lat,
		StartLon:        t.Start.Lng,
		StartName:       t.Start.PlaceName,
		EndLat:          t.End.Lat,
		EndLon:          t.End.Lng,
		EndName:         t.End.PlaceName,
	}
}

// Subject returns the subject a trip of bikeID is published on.
func (p *NATSPublisher) Subject(bikeID string) string {
	return fmt.Sprintf("%s.%s", p.prefix, subjectToken(bikeID))
}

// PublishTrip publishes a single trip message.
func (p *NATSPublisher) PublishTrip(runID string, t bike.Trip) error {
	subject := p.Subject(t.BikeID)
	b, err := json.Marshal(NewTripMessage(runID, t))
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// WriteTrips publishes every trip and flushes the connection. It stops at the
// first publish error.
func (p *NATSPublisher) WriteTrips(ctx context.Context, runID string, trips []bike.Trip) error {
	for i, t := range trips {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.PublishTrip(runID, t); err != nil {
			return fmt.Errorf("publish trip %d (bike %s): %w", i, t.BikeID, err)
		}
	}
	return p.nc.FlushWithContext(ctx)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
