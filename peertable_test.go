package tchannel2

import "testing"

func TestPeerEntryOutboundPreferredAtHead(t *testing.T) {
	pe := &peerEntry{}
	in1 := &Connection{dir: directionIn}
	out1 := &Connection{dir: directionOut}
	in2 := &Connection{dir: directionIn}

	pe.insert(in1)
	pe.insert(out1)
	pe.insert(in2)

	if pe.head() != out1 {
		t.Fatalf("expected outbound connection at head")
	}
	all := pe.all()
	if len(all) != 3 || all[0] != out1 {
		t.Fatalf("unexpected order: %v", all)
	}
}

func TestPeerEntryRemoveSplicesOut(t *testing.T) {
	pe := &peerEntry{}
	a := &Connection{dir: directionIn}
	b := &Connection{dir: directionIn}
	pe.insert(a)
	pe.insert(b)

	empty := pe.remove(a)
	if empty {
		t.Fatalf("expected sequence to still have one entry")
	}
	if pe.head() != b {
		t.Fatalf("expected b to remain after removing a")
	}

	empty = pe.remove(b)
	if !empty {
		t.Fatalf("expected sequence to be empty after removing last entry")
	}
}
