// Package client is a Go client for kioku servers. Keys are spread over the
// configured servers by hash; each server gets one connection used for one
// request at a time.
package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/avast/retry-go/v5"
	"github.com/catatsuy/kioku/internal/protocol"
	"github.com/cespare/xxhash/v2"
)

var (
	ErrNoServers       = errors.New("client: no server addresses")
	ErrInvalidKey      = errors.New("client: invalid key")
	ErrInvalidValue    = errors.New("client: value contains the separator")
	ErrServerRejected  = errors.New("client: server rejected request")
	ErrInvalidResponse = errors.New("client: invalid response")
	ErrClosed          = errors.New("client: closed")
)

type Item struct {
	Key   string
	Value []byte
	Flags uint16
}

type options struct {
	separator    string
	dialTimeout  time.Duration
	dialAttempts uint
	retryDelay   time.Duration
}

type Option func(*options)

// WithSeparator must match the separator the servers are configured with.
func WithSeparator(sep string) Option {
	return func(o *options) { o.separator = sep }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

func WithDialAttempts(n uint) Option {
	return func(o *options) { o.dialAttempts = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(o *options) { o.retryDelay = d }
}

type Client struct {
	opts  options
	nodes []*node
}

type node struct {
	addr string

	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	closed bool
}

// New connects to every address. It fails if any server cannot be reached
// within the configured dial attempts.
func New(ctx context.Context, addrs []string, opts ...Option) (*Client, error) {
	if len(addrs) == 0 {
		return nil, ErrNoServers
	}

	o := options{
		separator:    protocol.DefaultSeparator,
		dialTimeout:  3 * time.Second,
		dialAttempts: 3,
		retryDelay:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.separator == "" {
		return nil, protocol.ErrEmptySeparator
	}
	if o.dialAttempts == 0 {
		o.dialAttempts = 1
	}

	c := &Client{opts: o}
	for _, addr := range addrs {
		n := &node{addr: addr}
		if err := c.connect(ctx, n); err != nil {
			_ = c.Close()
			return nil, err
		}
		c.nodes = append(c.nodes, n)
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context, n *node) error {
	d := net.Dialer{Timeout: c.opts.dialTimeout}
	conn, err := retry.NewWithData[net.Conn](
		retry.Context(ctx),
		retry.Attempts(c.opts.dialAttempts),
		retry.Delay(c.opts.retryDelay),
		retry.LastErrorOnly(true),
	).Do(func() (net.Conn, error) {
		return d.DialContext(ctx, "tcp", n.addr)
	})
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", n.addr, err)
	}

	n.conn = conn
	n.r = bufio.NewReader(conn)
	return nil
}

// pick routes key to a server.
func (c *Client) pick(key string) *node {
	if len(c.nodes) == 1 {
		return c.nodes[0]
	}
	return c.nodes[xxhash.Sum64String(key)%uint64(len(c.nodes))]
}

// Addr reports which server key is routed to.
func (c *Client) Addr(key string) string {
	return c.pick(key).addr
}

func (c *Client) Set(ctx context.Context, key string, value []byte, flags uint16, exptime int64) (bool, error) {
	return c.store(ctx, protocol.VerbSet, key, value, flags, exptime)
}

// Add stores value only if key holds no live item.
func (c *Client) Add(ctx context.Context, key string, value []byte, flags uint16, exptime int64) (bool, error) {
	return c.store(ctx, protocol.VerbAdd, key, value, flags, exptime)
}

// Replace stores value only if key is present.
func (c *Client) Replace(ctx context.Context, key string, value []byte, flags uint16, exptime int64) (bool, error) {
	return c.store(ctx, protocol.VerbReplace, key, value, flags, exptime)
}

func (c *Client) Append(ctx context.Context, key string, value []byte) (bool, error) {
	return c.store(ctx, protocol.VerbAppend, key, value, 0, 0)
}

func (c *Client) Prepend(ctx context.Context, key string, value []byte) (bool, error) {
	return c.store(ctx, protocol.VerbPrepend, key, value, 0, 0)
}

func (c *Client) store(ctx context.Context, verb protocol.Verb, key string, value []byte, flags uint16, exptime int64) (bool, error) {
	if err := c.checkKey(key); err != nil {
		return false, err
	}
	if bytes.Contains(value, []byte(c.opts.separator)) {
		return false, ErrInvalidValue
	}

	req := protocol.AppendStorage(nil, verb, key, flags, exptime, value, false, c.opts.separator)

	var stored bool
	err := c.pick(key).do(ctx, c, req, func(r *bufio.Reader) error {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		switch line {
		case protocol.Stored:
			stored = true
			return nil
		case protocol.NotStored:
			return nil
		default:
			return replyError(line)
		}
	})
	return stored, err
}

// Get returns the live item stored under key. ok is false on a miss.
func (c *Client) Get(ctx context.Context, key string) (item Item, ok bool, err error) {
	if err := c.checkKey(key); err != nil {
		return Item{}, false, err
	}

	req := protocol.AppendRetrieval(nil, key, c.opts.separator)
	err = c.pick(key).do(ctx, c, req, func(r *bufio.Reader) error {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		if line == protocol.End {
			return nil
		}

		item, err = readValue(r, line)
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return Item{}, false, err
	}
	return item, ok, nil
}

// readValue parses `VALUE <key> <flags> <length>\r\n<value>\r\nEND\r\n` after
// the header line has been read.
func readValue(r *bufio.Reader, header string) (Item, error) {
	fields := strings.Fields(header)
	if len(fields) != 4 || fields[0] != "VALUE" {
		return Item{}, replyError(header)
	}
	flags, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return Item{}, fmt.Errorf("%w: flags %q", ErrInvalidResponse, fields[2])
	}
	length, err := strconv.Atoi(fields[3])
	if err != nil || length < 0 {
		return Item{}, fmt.Errorf("%w: length %q", ErrInvalidResponse, fields[3])
	}

	buf := make([]byte, length+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Item{}, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return Item{}, fmt.Errorf("%w: value block not terminated", ErrInvalidResponse)
	}

	end, err := r.ReadString('\n')
	if err != nil {
		return Item{}, err
	}
	if end != protocol.End {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidResponse, end)
	}

	return Item{Key: fields[1], Value: buf[:length], Flags: uint16(flags)}, nil
}

func replyError(line string) error {
	msg := strings.TrimRight(line, "\r\n")
	if msg == "wrong command" || strings.HasPrefix(msg, "wrong number of arguments") {
		return fmt.Errorf("%w: %s", ErrServerRejected, msg)
	}
	return fmt.Errorf("%w: %q", ErrInvalidResponse, msg)
}

func (c *Client) checkKey(key string) error {
	if key == "" || strings.ContainsFunc(key, unicode.IsSpace) || strings.Contains(key, c.opts.separator) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// do sends one request and reads its reply while holding the node. A
// transport failure drops the connection; the next request redials.
func (n *node) do(ctx context.Context, c *Client, req []byte, read func(*bufio.Reader) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.conn == nil {
		if err := c.connect(ctx, n); err != nil {
			return err
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = n.conn.SetDeadline(deadline)
	} else {
		_ = n.conn.SetDeadline(time.Time{})
	}
	conn := n.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	err := func() error {
		if _, err := n.conn.Write(req); err != nil {
			return err
		}
		return read(n.r)
	}()
	if err != nil && !errors.Is(err, ErrServerRejected) {
		_ = n.conn.Close()
		n.conn, n.r = nil, nil
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func (c *Client) Close() error {
	var errs []error
	for _, n := range c.nodes {
		n.mu.Lock()
		n.closed = true
		if n.conn != nil {
			errs = append(errs, n.conn.Close())
			n.conn, n.r = nil, nil
		}
		n.mu.Unlock()
	}
	return errors.Join(errs...)
}
