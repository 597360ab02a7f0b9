package tchannel2

import (
	"fmt"
	"io"
	"sync"
)

// Dialer opens an outbound byte-duplex to addr ("host:port"). The core
// never opens sockets itself (§1's socket-I/O abstraction); cmd/tchand
// supplies a real net.Dial-backed Dialer.
type Dialer func(addr string) (io.ReadWriteCloser, error)

// Channel is the per-node hub of §4.5: it owns the peer table, the
// endpoint registry, and request dispatch, and is the lifecycle root a
// caller Quits.
type Channel struct {
	selfAddr    string
	processName string
	cfg         *Config
	dial        Dialer

	endpoints *endpointRegistry

	mut       sync.Mutex
	peers     map[string]*peerEntry
	destroyed bool
}

// NewChannel constructs a Channel identified by cfg.ServerAddr. dial is
// used to open outbound connections; pass a net.Dial-backed Dialer for a
// real TCP deployment, or an in-memory one for tests.
func NewChannel(cfg *Config, dial Dialer) *Channel {
	cfg.normalize()
	return &Channel{
		selfAddr:    cfg.ServerAddr,
		processName: cfg.ProcessName,
		cfg:         cfg,
		dial:        dial,
		endpoints:   newEndpointRegistry(),
		peers:       make(map[string]*peerEntry),
	}
}

// RegisterService registers a handler under name, rejecting a duplicate
// registration. This corresponds to the reference's registerService +
// service.register(endpoint, handler) split (Open Question (a)); the
// reference's unconditional-throw bug on re-registration is not
// reproduced.
func (ch *Channel) RegisterService(name string, h Handler) error {
	return ch.endpoints.register(name, h)
}

func (ch *Channel) lookupEndpoint(name []byte) (Handler, bool) {
	return ch.endpoints.lookup(name)
}

// AcceptConnection adopts an already-accepted inbound byte-duplex (e.g.
// one net.Listener.Accept returned) as a new inbound Connection.
func (ch *Channel) AcceptConnection(conn io.ReadWriteCloser, remoteAddr string) *Connection {
	return newConnection(ch, conn, directionIn, remoteAddr)
}

// getPeer returns the preferred (outbound-first) connection to addr, or
// nil if none exists (§4.5 "Peer lookup").
func (ch *Channel) getPeer(addr string) *Connection {
	ch.mut.Lock()
	pe, ok := ch.peers[addr]
	ch.mut.Unlock()
	if !ok {
		return nil
	}
	return pe.head()
}

// addPeer returns the connection to addr, dialing a new outbound one if
// none exists in the peer table (§4.5 "addPeer").
func (ch *Channel) addPeer(addr string) (*Connection, error) {
	if IsSelfAddr(ch.selfAddr, addr) {
		return nil, fmt.Errorf("refusing to peer with self (%s)", addr)
	}
	if c := ch.getPeer(addr); c != nil {
		return c, nil
	}
	conn, err := ch.dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newConnection(ch, conn, directionOut, addr), nil
}

// registerIdentified attaches a Connection to the peer table under name
// once its handshake half completes, inserting outbound at the head and
// inbound at the tail (§3, §4.5).
func (ch *Channel) registerIdentified(name string, c *Connection) {
	ch.mut.Lock()
	pe, ok := ch.peers[name]
	if !ok {
		pe = &peerEntry{}
		ch.peers[name] = pe
	}
	ch.mut.Unlock()
	pe.insert(c)
}

// removePeerConnection splices c out of its peer sequence on reset (§4.4
// "Reset", §8 "Peer removal"): the connection must no longer be present
// in the channel's peer sequence under its remote name afterward.
func (ch *Channel) removePeerConnection(name string, c *Connection) {
	ch.mut.Lock()
	pe, ok := ch.peers[name]
	if !ok {
		ch.mut.Unlock()
		return
	}
	ch.mut.Unlock()
	if empty := pe.remove(c); empty {
		ch.mut.Lock()
		if cur, ok := ch.peers[name]; ok && cur == pe && len(pe.all()) == 0 {
			delete(ch.peers, name)
		}
		ch.mut.Unlock()
	}
}

// onSocketClose is the "forward socketClose up to the channel" lifecycle
// listener §4.5 describes attaching when a peer is added.
func (ch *Channel) onSocketClose(c *Connection, err error) {
	ch.cfg.Logger.Infof("channel %s: connection to %s closed: %v", ch.selfAddr, c.remoteAddr, err)
}

// CallOptions configures one outbound request-response exchange.
type CallOptions struct {
	Host     string
	Timeout  uint32 // ms; 0 means Config.DefaultCallTimeout
	Service  string
	Headers  []Header
	Checksum ChecksumType
}

// Send builds a CallRequest from arg1/arg2/arg3 and dispatches it to
// options.Host, invoking sink on completion (§4.5 "Request dispatch").
func (ch *Channel) Send(opts CallOptions, arg1, arg2, arg3 []byte, sink CompletionSink) error {
	if opts.Host == "" {
		return fmt.Errorf("CallOptions.Host is required")
	}
	ttl := opts.Timeout
	if ttl == 0 {
		ttl = uint32(ch.cfg.DefaultCallTimeout.Milliseconds())
	}
	if ttl == 0 {
		return newProtoErr(errInvalidTTL, "ttl must be nonzero")
	}

	csumType := opts.Checksum
	if csumType == 0 {
		csumType = ch.cfg.ChecksumType
	}

	conn, err := ch.addPeer(opts.Host)
	if err != nil {
		return err
	}

	body := &callRequestBody{
		ttl:      ttl,
		service:  []byte(opts.Service),
		headers:  opts.Headers,
		arg1:     arg1,
		arg2:     arg2,
		arg3:     arg3,
		csumType: csumType,
	}
	return conn.send(body, sink)
}

// Quit marks the channel destroyed, resets every connection, and invokes
// sink once all of them have reported closed (§4.5 "Quit").
func (ch *Channel) Quit(sink func()) {
	ch.mut.Lock()
	if ch.destroyed {
		ch.mut.Unlock()
		if sink != nil {
			sink()
		}
		return
	}
	ch.destroyed = true
	var all []*Connection
	for _, pe := range ch.peers {
		all = append(all, pe.all()...)
	}
	ch.mut.Unlock()

	var wg sync.WaitGroup
	for _, c := range all {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			c.resetAll(fmt.Errorf("shutdown from quit"))
			<-c.halt.Done.Chan
		}(c)
	}
	wg.Wait()
	if sink != nil {
		sink()
	}
}
