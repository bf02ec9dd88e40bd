package network

import (
	"net"
	"time"

	"github.com/Arceliar/phony"

	"github.com/Arceliar/hopper/cryptde"
)

type Debug struct {
	c *core
}

func (d *Debug) init(c *core) {
	d.c = c
}

type DebugSelfInfo struct {
	Key     cryptde.PublicKey
	Peers   uint64
	Pending uint64 // keys with a link still being dialed
}

type DebugPeerInfo struct {
	Key       cryptde.PublicKey
	Port      uint64
	RX        uint64
	TX        uint64
	Queued    uint64
	Skipped   uint64
	Connected time.Time
	Conn      net.Conn
}

func (d *Debug) GetSelf() (info DebugSelfInfo) {
	info.Key = d.c.crypto.PublicKey().Clone()
	phony.Block(&d.c.peers, func() {
		info.Peers = uint64(len(d.c.peers.peers))
		info.Pending = uint64(len(d.c.peers.pending))
	})
	return
}

func (d *Debug) GetPeers() (infos []DebugPeerInfo) {
	var ps []*peer
	phony.Block(&d.c.peers, func() {
		for _, p := range d.c.peers.peers {
			ps = append(ps, p)
		}
	})
	for _, p := range ps {
		var info DebugPeerInfo
		phony.Block(p, func() {
			info.Key = p.key.Clone()
			info.Port = uint64(p.port)
			info.RX = p.rx
			info.TX = p.tx
			info.Queued = uint64(p.queue.count())
			info.Skipped = p.skipped
			info.Connected = p.time
			info.Conn = p.conn
		})
		infos = append(infos, info)
	}
	return
}
