package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
	"go.uber.org/zap"
)

// DefaultSocket is the qemu:///system daemon socket.
const DefaultSocket = "/var/run/libvirt/libvirt-sock"

// conn is the subset of the go-libvirt RPC surface the client calls.
type conn interface {
	ConnectGetLibVersion() (uint64, error)
	Disconnect() error

	NetworkLookupByName(name string) (libvirt.Network, error)
	NetworkGetXMLDesc(net libvirt.Network, flags uint32) (string, error)
	NetworkDefineXML(xml string) (libvirt.Network, error)
	NetworkCreate(net libvirt.Network) error
	NetworkUndefine(net libvirt.Network) error
	NetworkSetAutostart(net libvirt.Network, autostart int32) error

	ConnectListAllInterfaces(needResults int32, flags libvirt.ConnectListAllInterfacesFlags) ([]libvirt.Interface, uint32, error)
	InterfaceGetXMLDesc(iface libvirt.Interface, flags uint32) (string, error)
}

// Client holds a libvirt connection used to look up and create the network
// instances are bridged onto.
type Client struct {
	libvirt conn
	logger  *zap.Logger
}

// ConnectWithContext dials the local daemon and checks the connection answers
// before returning. An empty socketPath means DefaultSocket and a zero
// timeout means 5 seconds. The Client must be closed by the caller.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		l := libvirt.NewWithDialer(dialers.NewLocal(
			dialers.WithSocket(socketPath),
			dialers.WithLocalTimeout(timeout),
		))
		if err := l.Connect(); err != nil {
			resultCh <- result{err: fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)}
			return
		}

		c := newClient(l, logger)
		if err := c.Ping(); err != nil {
			_ = c.Close()
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{client: c}
	}()

	select {
	case <-ctx.Done():
		// A late connection is released once it arrives.
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

func newClient(c conn, logger *zap.Logger) *Client {
	return &Client{libvirt: c, logger: logger}
}

// Close disconnects from the daemon. Calling it again is a no-op.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	err := c.libvirt.Disconnect()
	c.libvirt = nil
	if err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Ping asks the daemon for its version.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}
