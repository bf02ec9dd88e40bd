package route

import (
	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/types"
)

// Segment is a sub-path of a route: the keys it visits in order, and the
// component that receives the payload at its last key.
type Segment struct {
	Keys      []cryptde.PublicKey
	Component types.Component
}

func NewSegment(keys []cryptde.PublicKey, component types.Component) Segment {
	seg := Segment{Component: component}
	for _, key := range keys {
		seg.Keys = append(seg.Keys, key.Clone())
	}
	return seg
}

func (s Segment) first() cryptde.PublicKey {
	return s.Keys[0]
}

func (s Segment) last() cryptde.PublicKey {
	return s.Keys[len(s.Keys)-1]
}

func checkSegments(segments []Segment) error {
	if len(segments) == 0 {
		return MalformedError{Reason: "no segments"}
	}
	for idx, seg := range segments {
		if len(seg.Keys) == 0 {
			return MalformedError{Reason: "empty segment"}
		}
		for _, key := range seg.Keys {
			if len(key) == 0 {
				return MalformedError{Reason: "empty key"}
			}
		}
		if !seg.Component.Valid() {
			return MalformedError{Reason: "unknown component"}
		}
		if idx > 0 && !segments[idx-1].last().Equal(seg.first()) {
			return DiscontinuousError{Index: idx}
		}
	}
	return nil
}
