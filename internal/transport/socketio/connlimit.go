package socketio

import (
	"net"
	"net/netip"
	"strings"
	"sync"
)

// ConnectionLimiter caps concurrent remote now-playing displays.
// Loopback clients (the kiosk on the box itself) are never counted. When a
// remote client goes over the cap the oldest remote client is evicted.
type ConnectionLimiter struct {
	mu        sync.Mutex
	maxRemote int
	remote    []string          // remote client ids, oldest first
	addrs     map[string]string // client id -> host
}

// NewConnectionLimiter allows up to maxRemote remote clients. A non-positive
// maxRemote disables the cap.
func NewConnectionLimiter(maxRemote int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxRemote: maxRemote,
		addrs:     make(map[string]string),
	}
}

// TryAdd registers a client and returns the id of the client it evicts, if any.
func (cl *ConnectionLimiter) TryAdd(clientID, remoteAddr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.addrs[clientID]; ok {
		return ""
	}

	host := hostOf(remoteAddr)
	cl.addrs[clientID] = host
	if isLoopback(host) {
		return ""
	}

	cl.remote = append(cl.remote, clientID)
	if cl.maxRemote <= 0 || len(cl.remote) <= cl.maxRemote {
		return ""
	}

	evictedID = cl.remote[0]
	cl.remote = cl.remote[1:]
	delete(cl.addrs, evictedID)
	return evictedID
}

// Remove forgets a disconnected client.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	host, ok := cl.addrs[clientID]
	if !ok {
		return
	}
	delete(cl.addrs, clientID)

	if isLoopback(host) {
		return
	}
	for i, id := range cl.remote {
		if id == clientID {
			cl.remote = append(cl.remote[:i:i], cl.remote[i+1:]...)
			break
		}
	}
}

// Remote returns the number of tracked remote clients.
func (cl *ConnectionLimiter) Remote() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.remote)
}

// hostOf strips an optional port.
func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return ip.Unmap().IsLoopback()
}
