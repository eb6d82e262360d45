// Package dispatch delivers actuator commands to grow pod devices over
// their local HTTPS API.
package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Command is one actuator write against a device.
type Command struct {
	Actuator string
	Params   json.RawMessage
}

// Result is the outcome of a single actuator write. The shape doubles as
// the per-actuator entry inside execution log response_data.
type Result struct {
	Actuator string `json:"actuator"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Dispatcher sends one actuator command to a device endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, address string, port int, cmd Command) Result
}

// Config holds transport options for talking to pods. Pods serve
// self-signed certificates on their LAN address, so verification is
// either pinned to the fleet CA or skipped.
type Config struct {
	Timeout            time.Duration
	CACertPath         string
	ClientCertPath     string
	ClientKeyPath      string
	InsecureSkipVerify bool
}

type HTTPDispatcher struct {
	client *http.Client
}

var _ Dispatcher = (*HTTPDispatcher)(nil)

func NewHTTPDispatcher(cfg Config) (*HTTPDispatcher, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no usable certificates in %s", cfg.CACertPath)
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.ClientCertPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return &HTTPDispatcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}, nil
}

// Dispatch POSTs the command params to the device's actuator endpoint.
// Any 2xx status counts as success; everything else, including transport
// errors, is reported in Result.Error.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, address string, port int, cmd Command) Result {
	url := fmt.Sprintf("https://%s:%d/api/actuators/%s", address, port, cmd.Actuator)

	body := cmd.Params
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Actuator: cmd.Actuator, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{Actuator: cmd.Actuator, Error: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Actuator: cmd.Actuator, Error: fmt.Sprintf("device returned %s", resp.Status)}
	}
	return Result{Actuator: cmd.Actuator, Success: true}
}
