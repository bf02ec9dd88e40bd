package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/types"
)

func TestParseSegments(t *testing.T) {
	segs, err := parseSegments([]string{"neighborhood:0a0b,0c0d", "ProxyClient:0c0d,0a0b"})
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, types.ComponentNeighborhood, segs[0].Component)
	assert.Equal(t, []cryptde.PublicKey{{0x0a, 0x0b}, {0x0c, 0x0d}}, segs[0].Keys)
	assert.Equal(t, types.ComponentProxyClient, segs[1].Component)

	for _, bad := range [][]string{
		nil,
		{"0a0b,0c0d"},
		{"nowhere:0a0b"},
		{"hopper:0a0b,zz"},
		{"hopper:"},
	} {
		_, err := parseSegments(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestFirstHop(t *testing.T) {
	self := cryptde.PublicKey{1}
	other := cryptde.PublicKey{2}
	assert.Equal(t, other, firstHop([]cryptde.PublicKey{self, other}, self))
	assert.Equal(t, other, firstHop([]cryptde.PublicKey{other, self}, self))
	assert.Equal(t, self, firstHop([]cryptde.PublicKey{self}, self))
}

func TestCommands(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "keygen", "send", "await-shutdown"}, names)
}
