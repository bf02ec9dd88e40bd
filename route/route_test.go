package route

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/types"
)

func nullNodes(n int) []*cryptde.Null {
	var nodes []*cryptde.Null
	for idx := 0; idx < n; idx++ {
		nodes = append(nodes, cryptde.NewNullRandom())
	}
	return nodes
}

func keysOf(nodes ...*cryptde.Null) []cryptde.PublicKey {
	var keys []cryptde.PublicKey
	for _, n := range nodes {
		keys = append(keys, n.PublicKey())
	}
	return keys
}

func TestNewHopCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sender := cryptde.NewNull()
	nodes := nullNodes(6)
	for iter := 0; iter < 50; iter++ {
		var segments []Segment
		var total int
		prev := nodes[rng.Intn(len(nodes))]
		for s := 0; s < 1+rng.Intn(3); s++ {
			keys := []cryptde.PublicKey{prev.PublicKey()}
			for k := 0; k < rng.Intn(4); k++ {
				prev = nodes[rng.Intn(len(nodes))]
				keys = append(keys, prev.PublicKey())
			}
			segments = append(segments, NewSegment(keys, types.ComponentProxyClient))
			total += len(keys)
		}
		r, err := New(segments, sender)
		require.NoError(t, err)
		require.Equal(t, total, r.Len())
	}
}

func TestShiftSequence(t *testing.T) {
	sender := cryptde.NewNull()
	nodes := nullNodes(5)
	r, err := New([]Segment{NewSegment(keysOf(nodes...), types.ComponentProxyServer)}, sender)
	require.NoError(t, err)
	require.Equal(t, 5, r.Len())
	for idx, n := range nodes {
		outcome, rest, err := r.Shift(n.PrivateKey(), n)
		require.NoError(t, err)
		require.Equal(t, r.Len()-1, rest.Len())
		if idx < len(nodes)-1 {
			require.Equal(t, Forward, outcome.Kind)
			require.True(t, outcome.Next.Equal(nodes[idx+1].PublicKey()))
		} else {
			require.Equal(t, DeliverLocally, outcome.Kind)
			require.Equal(t, types.ComponentProxyServer, outcome.Component)
		}
		r = rest
	}
	require.True(t, r.IsEmpty())
	_, _, err = r.Shift(nodes[0].PrivateKey(), nodes[0])
	require.ErrorIs(t, err, EmptyRouteError{})
}

func TestShiftWithEd25519(t *testing.T) {
	var nodes []*cryptde.Ed25519
	var keys []cryptde.PublicKey
	for idx := 0; idx < 3; idx++ {
		n, err := cryptde.NewEd25519(nil)
		require.NoError(t, err)
		nodes = append(nodes, n)
		keys = append(keys, n.PublicKey())
	}
	r, err := New([]Segment{NewSegment(keys, types.ComponentNeighborhood)}, nodes[0])
	require.NoError(t, err)
	for idx, n := range nodes {
		outcome, err := r.ShiftInPlace(n.PrivateKey(), n)
		require.NoError(t, err)
		if idx < len(nodes)-1 {
			require.Equal(t, Forward, outcome.Kind)
		} else {
			require.Equal(t, DeliverLocally, outcome.Kind)
		}
	}
	require.Equal(t, 0, r.Len())
}

func TestShiftWrongKeyLeavesRoute(t *testing.T) {
	sender := cryptde.NewNull()
	nodes := nullNodes(3)
	r, err := New([]Segment{NewSegment(keysOf(nodes...), types.ComponentNeighborhood)}, sender)
	require.NoError(t, err)
	before := r.Clone()
	intruder := cryptde.NewNullRandom()
	_, err = r.ShiftInPlace(intruder.PrivateKey(), intruder)
	require.ErrorAs(t, err, new(CannotDecryptError))
	require.Equal(t, 3, r.Len())
	require.True(t, before.Equal(r))
	// The second hop is not for the first node either.
	_, _, err = Route{Hops: r.Hops[1:]}.Shift(nodes[0].PrivateKey(), nodes[0])
	require.ErrorAs(t, err, new(CannotDecryptError))
}

func TestShiftDetectsTamperedRemainder(t *testing.T) {
	sender := cryptde.NewNull()
	nodes := nullNodes(3)
	r, err := New([]Segment{NewSegment(keysOf(nodes...), types.ComponentNeighborhood)}, sender)
	require.NoError(t, err)
	tampered := r.Clone()
	tampered.Hops = tampered.Hops[:2]
	_, _, err = tampered.Shift(nodes[0].PrivateKey(), nodes[0])
	require.ErrorAs(t, err, new(CannotDecryptError))
	tampered = r.Clone()
	tampered.Hops[2] = append(tampered.Hops[2], 0)
	_, _, err = tampered.Shift(nodes[0].PrivateKey(), nodes[0])
	require.ErrorAs(t, err, new(CannotDecryptError))
}

func TestShiftGarbageNeverPanics(t *testing.T) {
	n := cryptde.NewNull()
	rng := rand.New(rand.NewSource(2))
	for iter := 0; iter < 200; iter++ {
		bs := make([]byte, rng.Intn(64))
		rng.Read(bs)
		bs = append(append([]byte(nil), n.PublicKey()...), bs...)
		r := Route{Hops: [][]byte{bs}}
		require.NotPanics(t, func() {
			_, _, _ = r.Shift(n.PrivateKey(), n)
		})
	}
}

func TestNewErrors(t *testing.T) {
	sender := cryptde.NewNull()
	a, b, c := cryptde.NewNullRandom(), cryptde.NewNullRandom(), cryptde.NewNullRandom()
	_, err := New(nil, sender)
	require.ErrorAs(t, err, new(MalformedError))
	_, err = New([]Segment{NewSegment(nil, types.ComponentHopper)}, sender)
	require.ErrorAs(t, err, new(MalformedError))
	_, err = New([]Segment{NewSegment([]cryptde.PublicKey{nil}, types.ComponentHopper)}, sender)
	require.ErrorAs(t, err, new(MalformedError))
	_, err = New([]Segment{
		NewSegment(keysOf(a, b), types.ComponentProxyClient),
		NewSegment(keysOf(c, a), types.ComponentProxyServer),
	}, sender)
	var disc DiscontinuousError
	require.ErrorAs(t, err, &disc)
	require.Equal(t, 1, disc.Index)
	var keys []cryptde.PublicKey
	for idx := 0; idx < 5; idx++ {
		keys = append(keys, a.PublicKey())
	}
	_, err = New([]Segment{NewSegment(keys, types.ComponentHopper)}, sender, WithMaxHops(4))
	require.ErrorAs(t, err, new(TooManyHopsError))
	_, err = New([]Segment{NewSegment(keys, types.ComponentHopper)}, sender, WithMaxHops(0))
	require.NoError(t, err)
}

func TestReturnRoute(t *testing.T) {
	sender := cryptde.NewNull()
	a, b, c := cryptde.NewNullRandom(), cryptde.NewNullRandom(), cryptde.NewNullRandom()
	r, err := New([]Segment{
		NewSegment(keysOf(a, b, c), types.ComponentProxyClient),
		NewSegment(keysOf(c, b, a), types.ComponentProxyServer),
	}, sender)
	require.NoError(t, err)
	require.Equal(t, 6, r.Len())
	path := []*cryptde.Null{a, b, c}
	for _, n := range path {
		_, err := r.ShiftInPlace(n.PrivateKey(), n)
		require.NoError(t, err)
	}
	// c received the request; what is left leads back to a.
	require.Equal(t, 3, r.Len())
	for idx, n := range []*cryptde.Null{c, b, a} {
		outcome, err := r.ShiftInPlace(n.PrivateKey(), n)
		require.NoError(t, err)
		if idx == 2 {
			require.Equal(t, DeliverLocally, outcome.Kind)
			require.Equal(t, types.ComponentProxyServer, outcome.Component)
		}
	}
}

func TestMarshalBinary(t *testing.T) {
	sender := cryptde.NewNull()
	nodes := nullNodes(2)
	r, err := New([]Segment{NewSegment(keysOf(nodes...), types.ComponentNeighborhood)}, sender)
	require.NoError(t, err)
	bs, err := r.MarshalBinary()
	require.NoError(t, err)
	var decoded Route
	require.NoError(t, decoded.UnmarshalBinary(bs))
	require.True(t, r.Equal(decoded))
	require.Error(t, decoded.UnmarshalBinary([]byte{0xff, 0x00}))
}
