package bridge

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"

	"github.com/tphakala/birdnet-api2ha/internal/datastore"
	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

// fakeSource is an in-memory detection table keyed by id.
type fakeSource struct {
	mu        sync.Mutex
	ids       []int64
	available bool
	maxErr    error
	listErr   error
}

func newFakeSource(ids ...int64) *fakeSource {
	return &fakeSource{ids: ids, available: true}
}

// addRange inserts ids from..to inclusive.
func (f *fakeSource) addRange(from, to int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := from; id <= to; id++ {
		f.ids = append(f.ids, id)
	}
}

func (f *fakeSource) setErrors(maxErr, listErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxErr, f.listErr = maxErr, listErr
}

func (f *fakeSource) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeSource) MaxDetectionID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxErr != nil {
		return 0, f.maxErr
	}
	if len(f.ids) == 0 {
		return 0, nil
	}
	return slices.Max(f.ids), nil
}

func (f *fakeSource) ListDetections(_ context.Context, q datastore.DetectionQuery) ([]datastore.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	ids := slices.Clone(f.ids)
	slices.Sort(ids)
	var out []datastore.Detection
	for _, id := range ids {
		if q.AfterID != nil && id <= *q.AfterID {
			continue
		}
		out = append(out, datastore.Detection{
			ID:             strconv.FormatInt(id, 10),
			Timestamp:      "2024-05-01T06:30:00Z",
			CommonName:     "Eurasian Blackbird",
			ScientificName: "Turdus merula",
			Confidence:     0.9,
			AudioPath:      "clips/" + strconv.FormatInt(id, 10) + ".wav",
		})
		if len(out) == datastore.NormalizeLimit(q.Limit) {
			break
		}
	}
	return out, nil
}

// fakeClient records published payloads.
type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	publishErr   error
	published    [][]byte
	topics       []string
	disconnected bool
}

func (c *fakeClient) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.topics = append(c.topics, topic)
	c.published = append(c.published, payload)
	return nil
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) failPublish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishErr = err
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

// messages decodes every published payload.
func (c *fakeClient) messages() ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, len(c.published))
	for _, p := range c.published {
		var m Message
		if err := json.Unmarshal(p, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

var errStorage = errors.NewStd("database is locked")
