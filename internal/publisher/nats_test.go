package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-trips/internal/bike"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs    []published
	failOn  int // 1-based publish call that fails, 0 never
	flushed bool
	closed  bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.failOn > 0 && len(c.msgs)+1 == c.failOn {
		return errors.New("nats: connection closed")
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error {
	c.flushed = true
	return nil
}

func (c *fakeConn) Drain() error { return nil }
func (c *fakeConn) Close()       { c.closed = true }

type countingMetrics struct {
	published, errs, observed int
	connected                 bool
}

func (m *countingMetrics) NATSPublishedInc()            { m.published++ }
func (m *countingMetrics) NATSPublishErrInc()           { m.errs++ }
func (m *countingMetrics) PublishObserve(time.Duration) { m.observed++ }
func (m *countingMetrics) NATSSetConnected(b bool)      { m.connected = b }

func sampleTrip(bikeID string) bike.Trip {
	start := time.Date(2019, 6, 3, 9, 0, 0, 0, time.UTC)
	return bike.Trip{
		BikeID:    bikeID,
		StartTime: start,
		EndTime:   start.Add(10 * time.Minute),
		Duration:  10 * time.Minute,
		Start:     bike.Position{Lng: 8.47, Lat: 49.48, PlaceName: "Paradeplatz", PlaceType: "0"},
		End:       bike.Position{Lng: 8.46, Lat: 49.49, PlaceName: "Schloss", PlaceType: "0"},
		IsStation: true,
	}
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "12345", subjectToken(" 12345 "))
	assert.Equal(t, "a_b_c_d", subjectToken("a.b>c*d"))
	assert.Equal(t, "_", subjectToken(""))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "nextbike.trips.7", newPublisher(&fakeConn{}, "nextbike.trips.", false, nil).Subject("7"))
	assert.Equal(t, "bikes.trips.B_1", newPublisher(&fakeConn{}, "", false, nil).Subject("B 1"))
}

func TestWriteTrips(t *testing.T) {
	nc := &fakeConn{}
	m := &countingMetrics{}
	p := newPublisher(nc, "nextbike", false, m)
	assert.Equal(t, "nats", p.Name())

	require.NoError(t, p.WriteTrips(context.Background(), "run-1", []bike.Trip{sampleTrip("1"), sampleTrip("2")}))
	require.Len(t, nc.msgs, 2)
	assert.True(t, nc.flushed)
	assert.Equal(t, "nextbike.1", nc.msgs[0].subject)
	assert.Equal(t, "nextbike.2", nc.msgs[1].subject)
	assert.Equal(t, 2, m.published)
	assert.Equal(t, 2, m.observed)

	var msg TripMessage
	require.NoError(t, json.Unmarshal(nc.msgs[0].data, &msg))
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, "1", msg.BikeNumber)
	assert.EqualValues(t, 600, msg.DurationSeconds)
	assert.Equal(t, "Schloss", msg.EndName)
	assert.Equal(t, 49.48, msg.StartLat)
	assert.Equal(t, 8.47, msg.StartLon)

	p.Close()
	assert.True(t, nc.closed)
}

func TestWriteTripsStopsOnError(t *testing.T) {
	nc := &fakeConn{failOn: 2}
	m := &countingMetrics{}
	p := newPublisher(nc, "nextbike", false, m)

	err := p.WriteTrips(context.Background(), "run-1", []bike.Trip{sampleTrip("1"), sampleTrip("2"), sampleTrip("3")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bike 2")
	assert.Len(t, nc.msgs, 1)
	assert.False(t, nc.flushed)
	assert.Equal(t, 1, m.errs)
}

func TestWriteTripsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	nc := &fakeConn{}
	err := newPublisher(nc, "x", false, nil).WriteTrips(ctx, "run", []bike.Trip{sampleTrip("1")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, nc.msgs)
}
