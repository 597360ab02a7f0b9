package tchannel2

import "sync"

// peerEntry is the ordered sequence of connections to one "host:port"
// peer (§3 "Peer table"). Outbound connections are inserted at the head,
// inbound at the tail; lookup returns the head, preferring outbound.
type peerEntry struct {
	mut   sync.Mutex
	conns []*Connection
}

func (p *peerEntry) insert(c *Connection) {
	p.mut.Lock()
	defer p.mut.Unlock()
	if c.dir == directionOut {
		p.conns = append([]*Connection{c}, p.conns...)
	} else {
		p.conns = append(p.conns, c)
	}
}

// head returns the preferred connection (outbound-first by construction
// of insert), or nil if the sequence is empty.
func (p *peerEntry) head() *Connection {
	p.mut.Lock()
	defer p.mut.Unlock()
	if len(p.conns) == 0 {
		return nil
	}
	return p.conns[0]
}

// remove splices c out of the sequence; no implicit promotion of another
// connection occurs (the new head, if any, is simply whatever was next).
func (p *peerEntry) remove(c *Connection) (empty bool) {
	p.mut.Lock()
	defer p.mut.Unlock()
	for i, cc := range p.conns {
		if cc == c {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			break
		}
	}
	return len(p.conns) == 0
}

func (p *peerEntry) all() []*Connection {
	p.mut.Lock()
	defer p.mut.Unlock()
	out := make([]*Connection, len(p.conns))
	copy(out, p.conns)
	return out
}
