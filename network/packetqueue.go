package network

import (
	"container/heap"
	"time"
)

type pqFrameInfo struct {
	frame []byte
	size  uint64
	time  time.Time
}

// pqSource holds the frames that arrived over one inbound link (port 0 is local traffic).
type pqSource struct {
	port  peerPort
	infos []pqFrameInfo
	size  uint64
}

type packetQueue struct {
	sources []pqSource
	size    uint64
}

// drop removes the oldest frame from the largest source queue.
// It returns the removed frame, or false if the queue was empty.
func (q *packetQueue) drop() (info pqFrameInfo, ok bool) {
	if q.size == 0 {
		return
	}
	var sIdx int
	for idx := range q.sources {
		if q.sources[idx].size > q.sources[sIdx].size {
			sIdx = idx
		}
	}
	source := q.sources[sIdx]
	info = source.infos[0]
	source.infos = source.infos[1:]
	source.size -= info.size
	q.sources[sIdx] = source
	if source.size > 0 {
		heap.Fix(q, sIdx)
	} else {
		heap.Remove(q, sIdx)
	}
	q.size -= info.size
	return info, true
}

// push adds a frame to the queue of the source port, creating it if needed.
func (q *packetQueue) push(port peerPort, frame []byte) {
	info := pqFrameInfo{frame: frame, size: uint64(len(frame)), time: time.Now()}
	sIdx := -1
	source := pqSource{port: port}
	for idx, s := range q.sources {
		if s.port == port {
			sIdx, source = idx, s
			break
		}
	}
	source.infos = append(source.infos, info)
	source.size += info.size
	if sIdx < 0 {
		// Newest head, so appending keeps the heap ordered.
		q.sources = append(q.sources, source)
	} else {
		q.sources[sIdx] = source
	}
	q.size += info.size
}

// pop removes and returns the oldest frame across all sources.
func (q *packetQueue) pop() (info pqFrameInfo, ok bool) {
	if len(q.sources) == 0 {
		return
	}
	source := q.sources[0]
	info = source.infos[0]
	source.size -= info.size
	q.size -= info.size
	if len(source.infos) > 1 {
		source.infos = source.infos[1:]
		q.sources[0] = source
		heap.Fix(q, 0)
	} else {
		source.infos = nil
		q.sources[0] = source
		heap.Remove(q, 0)
	}
	return info, true
}

func (q *packetQueue) peek() (info pqFrameInfo, ok bool) {
	if len(q.sources) > 0 {
		return q.sources[0].infos[0], true
	}
	return
}

// count returns the number of queued frames.
func (q *packetQueue) count() (n int) {
	for _, s := range q.sources {
		n += len(s.infos)
	}
	return
}

////////////////////////////////////////////////////////////////////////////////

// Interface methods for packetQueue to satisfy heap.Interface

func (q *packetQueue) Len() int {
	return len(q.sources)
}

func (q *packetQueue) Less(i, j int) bool {
	return q.sources[i].infos[0].time.Before(q.sources[j].infos[0].time)
}

func (q *packetQueue) Swap(i, j int) {
	q.sources[i], q.sources[j] = q.sources[j], q.sources[i]
}

func (q *packetQueue) Push(x interface{}) {
	source := x.(pqSource)
	q.sources = append(q.sources, source)
	q.size += source.size
}

func (q *packetQueue) Pop() interface{} {
	idx := len(q.sources) - 1
	source := q.sources[idx]
	q.sources = q.sources[:idx]
	q.size -= source.size
	return source
}
