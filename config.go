package libwsrx

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = time.Second
	defaultCloseGracePeriod = time.Second
)

// SocketConfig describes a websocket endpoint and the timings of a WsSocket.
//
//	url: wss://stream.example.com/ws
//	headers:
//	  Authorization: Bearer xxx
//	handshake_timeout: 10s
//	write_timeout: 1s
//	close_grace_period: 1s
//	ping_interval: 15s
type SocketConfig struct {
	URL              string            `yaml:"url"`
	Headers          map[string]string `yaml:"headers"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration     `yaml:"write_timeout"`
	CloseGracePeriod time.Duration     `yaml:"close_grace_period"`
	// PingInterval enables the keep-alive built by NewKeepAliveFromConfig when greater than zero.
	PingInterval time.Duration `yaml:"ping_interval"`
}

func LoadSocketConfig(path string) (*SocketConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read socket config %s", path)
	}
	return ParseSocketConfig(b)
}

// ParseSocketConfig decodes a YAML document, applies defaults and validates the result.
func ParseSocketConfig(b []byte) (*SocketConfig, error) {
	var c SocketConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = defaultCloseGracePeriod
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *SocketConfig) Validate() error {
	if c.URL == "" {
		return errors.Wrap(ErrInvalidConfig, "url is required")
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.Wrapf(ErrInvalidConfig, "unsupported scheme %q", u.Scheme)
	}

	if c.HandshakeTimeout < 0 || c.WriteTimeout < 0 || c.CloseGracePeriod < 0 || c.PingInterval < 0 {
		return errors.Wrap(ErrInvalidConfig, "durations cannot be negative")
	}

	return nil
}

// OpenConnectionParams builds the dial parameters described by the config.
func (c *SocketConfig) OpenConnectionParams() (OpenConnectionParams, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return OpenConnectionParams{}, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	header := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		header.Set(k, v)
	}

	return OpenConnectionParams{URL: *u, Header: header}, nil
}

type (
	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	// OpenConnectionParamsGetter resolves the dial parameters right before each connection, so
	// that short-lived tokens or rotating endpoints can be used.
	OpenConnectionParamsGetter func(ctx context.Context) (OpenConnectionParams, error)

	OpenConnectionParamsRepo struct {
		logger logger
		getter OpenConnectionParamsGetter
	}
)

func (r OpenConnectionParamsRepo) Get(ctx context.Context) (OpenConnectionParams, error) {
	params, err := r.getter(ctx)
	if err != nil {
		r.logger.Errorf("cannot fetch open connection params: %s", err)
		return OpenConnectionParams{}, err
	}
	return params, nil
}

func NewOpenConnectionParamsRepo(
	logger logger,
	getter OpenConnectionParamsGetter,
) OpenConnectionParamsRepo {
	return OpenConnectionParamsRepo{getter: getter, logger: logger}
}

// StaticOpenConnectionParams always resolves to params.
func StaticOpenConnectionParams(params OpenConnectionParams) OpenConnectionParamsGetter {
	return func(context.Context) (OpenConnectionParams, error) {
		return params, nil
	}
}
