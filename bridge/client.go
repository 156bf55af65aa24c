package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"i4.energy/across/atbridge/at"
)

// ErrNoResponse is returned by Client when the bridge relayed nothing
// from the modem.
var ErrNoResponse = errors.New("no response received from modem")

// Client sends commands to a running bridge over its Unix socket. Each
// Send uses a fresh connection.
type Client struct {
	// Path is the bridge socket path
	Path string
	// Timeout bounds one exchange; zero or less waits as long as ctx
	// allows, since a cell scan can hold the modem indefinitely
	Timeout time.Duration
}

// Send writes cmd to the bridge and reads the reply until the bridge
// closes the connection. An empty reply or the bridge's no-response
// sentinel yields ErrNoResponse.
func (c *Client) Send(ctx context.Context, cmd string) (string, error) {
	path := c.Path
	if path == "" {
		path = DefaultSocketPath
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return "", fmt.Errorf("dial bridge %s: %w", path, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return "", fmt.Errorf("set deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, strings.TrimSpace(cmd)); err != nil {
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return "", fmt.Errorf("close write: %w", err)
		}
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("read reply to %q: %w", cmd, ctx.Err())
		}
		// the socket deadline mirrors ctx and can fire just before it
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", fmt.Errorf("read reply to %q: %w", cmd, context.DeadlineExceeded)
		}
		return "", fmt.Errorf("read reply to %q: %w", cmd, err)
	}

	resp := string(data)
	if resp == "" || resp == at.NoResponse {
		return "", ErrNoResponse
	}
	return resp, nil
}
