// Package libvirt provides a client wrapper for interacting with libvirt.
//
// This package wraps github.com/digitalocean/go-libvirt to provide:
//   - Connection management with a post-connect health check
//   - Network lookup and bridge-forward network creation
//   - Host interface discovery, with Linux bridges marked
//
// Multipass on Linux bridges instances onto a host bridge. A switch is a
// libvirt network forwarding to such a bridge; when it does not exist the
// resolver asks the operator for a bridge and defines the network:
//
//	client, err := libvirt.ConnectWithContext(ctx, "", 0, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if _, err := client.LookupNetwork("lan"); errors.Is(err, libvirt.ErrNetworkNotFound) {
//	    err = client.CreateBridgeNetwork("lan", "br0")
//	}
//
// The generated network XML looks like:
//
//	<network>
//	  <name>lan</name>
//	  <forward mode="bridge"></forward>
//	  <bridge name="br0"></bridge>
//	</network>
package libvirt
