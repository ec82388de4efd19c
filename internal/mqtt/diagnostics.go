// diagnostics.go provides staged MQTT connectivity checks for the inspect command
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Timeout constants for the diagnostic stages
const (
	dnsTimeout  = 5 * time.Second
	tcpTimeout  = 5 * time.Second
	mqttTimeout = 10 * time.Second
	pubTimeout  = 5 * time.Second
)

// Stage identifies one step of a connectivity check.
type Stage int

const (
	DNSResolution Stage = iota
	TCPConnection
	MQTTConnection
	MessagePublish
)

// String returns the string representation of a stage
func (s Stage) String() string {
	switch s {
	case DNSResolution:
		return "DNS Resolution"
	case TCPConnection:
		return "TCP Connection"
	case MQTTConnection:
		return "MQTT Connection"
	case MessagePublish:
		return "Message Publishing"
	default:
		return "Unknown Stage"
	}
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Stage    Stage         `json:"-"`
	Name     string        `json:"stage"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Diagnose runs DNS, TCP, MQTT connect and, when publish is set, a test
// publish to "<topic>/test". It stops at the first failing stage. The
// client is created from cfg and disconnected afterwards.
func Diagnose(ctx context.Context, cfg Config, publish bool, opts ...Option) []StageResult {
	var results []StageResult

	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Host == "" {
		return append(results, StageResult{
			Stage: DNSResolution,
			Name:  DNSResolution.String(),
			Error: fmt.Sprintf("invalid broker URL %q", cfg.Broker),
		})
	}
	host := u.Hostname()

	run := func(stage Stage, timeout time.Duration, fn func(context.Context) error) bool {
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		err := fn(stageCtx)
		r := StageResult{Stage: stage, Name: stage.String(), Success: err == nil, Duration: time.Since(start)}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
		return r.Success
	}

	if net.ParseIP(host) == nil {
		if !run(DNSResolution, dnsTimeout, func(ctx context.Context) error {
			_, err := net.DefaultResolver.LookupHost(ctx, host)
			return err
		}) {
			return results
		}
	} else {
		results = append(results, StageResult{Stage: DNSResolution, Name: DNSResolution.String(), Success: true, Skipped: true})
	}

	if !run(TCPConnection, tcpTimeout, func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return err
		}
		return conn.Close()
	}) {
		return results
	}

	c, err := NewClient(cfg, opts...)
	if err != nil {
		return append(results, StageResult{Stage: MQTTConnection, Name: MQTTConnection.String(), Error: err.Error()})
	}
	defer c.Disconnect()

	if !run(MQTTConnection, mqttTimeout, c.Connect) || !publish {
		return results
	}

	run(MessagePublish, pubTimeout, func(ctx context.Context) error {
		payload, err := json.Marshal(map[string]any{
			"id":              "0",
			"timestamp":       time.Now().UTC().Format("2006-01-02T15:04:05Z"),
			"common_name":     "Whooper Swan",
			"scientific_name": "Cygnus cygnus",
			"confidence":      0.95,
		})
		if err != nil {
			return err
		}
		return c.Publish(ctx, testTopic(cfg.Topic), payload)
	})
	return results
}

// testTopic derives the diagnostic topic from the base topic.
func testTopic(base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return "birdnet_api2ha/test"
	}
	return base + "/test"
}

// Passed reports whether every stage succeeded.
func Passed(results []StageResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}
