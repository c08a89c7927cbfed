package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/state"
	"go.uber.org/zap"
)

type Config struct {
	Address         string        `mapstructure:"address"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
}

var ErrNotConnected = errors.New("not connected")

// Client speaks the line protocol over TCP: one command per line, responses
// end with an "ok" or error line. Calls are serialized.
type Client struct {
	address     string
	dialTimeout time.Duration
	timeout     time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	conn      net.Conn
	reader    *bufio.Reader
	connected bool

	netMu   sync.RWMutex
	network state.NetworkInfo
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 30 * time.Second
	}
	return &Client{
		address:     cfg.Address,
		dialTimeout: cfg.DialTimeout,
		timeout:     cfg.ResponseTimeout,
		logger:      logger,
	}
}

// Connect stellt die TCP-Verbindung her
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	c.attach(conn)
	c.logger.Info("Connected to device", zap.String("address", c.address))
	return nil
}

// Attach uses an already established connection.
func (c *Client) Attach(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attach(conn)
}

func (c *Client) attach(conn net.Conn) {
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected = true
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	err := c.conn.Close()
	c.connected = false
	c.conn = nil
	c.reader = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SendLine writes one line without waiting for a response.
func (c *Client) SendLine(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.write(ctx, line)
}

// Query writes one line and collects response lines until a terminal line
// arrives. If the device goes quiet after sending something, the partial
// response is returned.
func (c *Client) Query(ctx context.Context, line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(ctx, line); err != nil {
		return "", err
	}

	var lines []string
	for {
		raw, err := c.reader.ReadString('\n')
		text := strings.TrimRight(raw, "\r\n")
		if text != "" {
			lines = append(lines, text)
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) && len(lines) > 0 {
				return strings.Join(lines, "\n"), nil
			}
			return "", fmt.Errorf("read failed: %w", err)
		}
		if terminal(text) {
			return strings.Join(lines, "\n"), nil
		}
	}
}

func (c *Client) write(ctx context.Context, line string) error {
	if !c.connected {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Timeout setzen
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline failed: %w", err)
	}

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	c.logger.Debug("Line written", zap.String("line", line))
	return nil
}

// terminal reports whether a response line ends the exchange.
func terminal(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(l, "ok") ||
		strings.HasPrefix(l, "error") ||
		strings.HasPrefix(l, "!!") ||
		l == "start"
}

// UpdateNetworkInfo records network facts extracted from responses.
func (c *Client) UpdateNetworkInfo(ip, st string) {
	c.netMu.Lock()
	defer c.netMu.Unlock()
	if ip != "" {
		c.network.IP = ip
	}
	if st != "" {
		c.network.State = st
	}
	c.logger.Info("Device network updated", zap.String("ip", c.network.IP), zap.String("state", c.network.State))
}

func (c *Client) NetworkInfo() state.NetworkInfo {
	c.netMu.RLock()
	defer c.netMu.RUnlock()
	return c.network
}

func (c *Client) Address() string {
	return c.address
}
