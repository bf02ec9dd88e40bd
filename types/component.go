package types

import (
	"errors"
	"strings"
)

// Component names the local subsystem that receives a package at the end of a route segment.
type Component uint8

const (
	ComponentHopper Component = iota
	ComponentNeighborhood
	ComponentProxyClient
	ComponentProxyServer
)

var componentNames = [...]string{
	ComponentHopper:       "Hopper",
	ComponentNeighborhood: "Neighborhood",
	ComponentProxyClient:  "ProxyClient",
	ComponentProxyServer:  "ProxyServer",
}

func (c Component) String() string {
	if int(c) < len(componentNames) {
		return componentNames[c]
	}
	return "Unknown"
}

// Valid reports whether c is one of the known components.
func (c Component) Valid() bool {
	return int(c) < len(componentNames)
}

// ParseComponent is the inverse of Component.String, ignoring case.
func ParseComponent(s string) (Component, error) {
	for idx, name := range componentNames {
		if strings.EqualFold(name, s) {
			return Component(idx), nil
		}
	}
	return 0, errors.New("unknown component: " + s)
}

func (c Component) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.New("unknown component")
	}
	return []byte(c.String()), nil
}

func (c *Component) UnmarshalText(text []byte) error {
	parsed, err := ParseComponent(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
