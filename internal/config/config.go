// Package config loads hopper node settings from a YAML file, HOPPER_* environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/viper"

	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/directory"
	"github.com/Arceliar/hopper/internal/logger"
	"github.com/Arceliar/hopper/masquerade"
	"github.com/Arceliar/hopper/route"
)

const (
	HOPPER_BASE_DIR = ".hopper"
	EnvPrefix       = "HOPPER"
)

var log = logger.GetLogger()

type Config struct {
	Listen         string
	KeyFile        string
	DirectoryPath  string
	MaxHops        int
	MaxFrameSize   int
	Masquerader    string
	Discriminators []string
	MetricsListen  string
	LogLevel       string
	Peers          map[string]string // hex public key -> host:port
}

func BuildHopperDirPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return HOPPER_BASE_DIR
	}
	return filepath.Join(home, HOPPER_BASE_DIR)
}

// Defaults returns the settings used when nothing else is given.
func Defaults() Config {
	base := BuildHopperDirPath()
	return Config{
		Listen:         "0.0.0.0:5333",
		KeyFile:        filepath.Join(base, "node.key"),
		DirectoryPath:  "",
		MaxHops:        route.DefaultMaxHops,
		MaxFrameSize:   masquerade.DefaultMaxSize,
		Masquerader:    "json",
		Discriminators: []string{"json", "tls"},
		MetricsListen:  "",
		LogLevel:       "warn",
		Peers:          map[string]string{},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("key_file", d.KeyFile)
	v.SetDefault("directory_path", d.DirectoryPath)
	v.SetDefault("max_hops", d.MaxHops)
	v.SetDefault("max_frame_size", d.MaxFrameSize)
	v.SetDefault("masquerader", d.Masquerader)
	v.SetDefault("discriminators", d.Discriminators)
	v.SetDefault("metrics_listen", d.MetricsListen)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("peers", d.Peers)
}

// NewViper returns a viper instance with the defaults and environment binding in place.
// If cfgFile is empty, config.yaml is searched for in the hopper directory and may be absent.
func NewViper(cfgFile string) *viper.Viper {
	return newViper(cfgFile, BuildHopperDirPath())
}

func newViper(cfgFile, dir string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load reads the config file known to v, if any, and returns the validated settings.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, oops.In("config").With("file", v.ConfigFileUsed()).Wrapf(err, "failed to read config file")
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.WithField("file", v.ConfigFileUsed()).Debug("Using config file")
	}
	cfg := &Config{
		Listen:         v.GetString("listen"),
		KeyFile:        v.GetString("key_file"),
		DirectoryPath:  v.GetString("directory_path"),
		MaxHops:        v.GetInt("max_hops"),
		MaxFrameSize:   v.GetInt("max_frame_size"),
		Masquerader:    v.GetString("masquerader"),
		Discriminators: v.GetStringSlice("discriminators"),
		MetricsListen:  v.GetString("metrics_listen"),
		LogLevel:       v.GetString("log_level"),
		Peers:          v.GetStringMapString("peers"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.MaxHops < 0 {
		return oops.In("config").With("max_hops", c.MaxHops).Errorf("max_hops must not be negative")
	}
	if c.MaxFrameSize <= 0 {
		return oops.In("config").With("max_frame_size", c.MaxFrameSize).Errorf("max_frame_size must be positive")
	}
	if _, err := c.Factories(); err != nil {
		return err
	}
	if _, err := c.OutboundMasquerader(); err != nil {
		return err
	}
	if _, err := c.PeerKeys(); err != nil {
		return err
	}
	return nil
}

// Factories returns the discriminator factories named by Discriminators, in order.
func (c *Config) Factories() ([]masquerade.DiscriminatorFactory, error) {
	if len(c.Discriminators) == 0 {
		return nil, oops.In("config").Errorf("no discriminators configured")
	}
	var fs []masquerade.DiscriminatorFactory
	for _, name := range c.Discriminators {
		f, ok := masquerade.FactoryByName(name, masquerade.WithMaxSize(c.MaxFrameSize))
		if !ok {
			return nil, oops.In("config").With("discriminator", name).Errorf("unknown discriminator")
		}
		fs = append(fs, f)
	}
	return fs, nil
}

func (c *Config) OutboundMasquerader() (masquerade.Masquerader, error) {
	m, ok := masquerade.MasqueraderByName(c.Masquerader, masquerade.WithMaxSize(c.MaxFrameSize))
	if !ok {
		return nil, oops.In("config").With("masquerader", c.Masquerader).Errorf("unknown masquerader")
	}
	return m, nil
}

// PeerKeys decodes the keys of the peer seed list.
func (c *Config) PeerKeys() (map[string]cryptde.PublicKey, error) {
	keys := make(map[string]cryptde.PublicKey, len(c.Peers))
	for k, addr := range c.Peers {
		key, err := hex.DecodeString(k)
		if err != nil || len(key) == 0 {
			return nil, oops.In("config").With("peer", k).Errorf("peer key is not hex")
		}
		if addr == "" {
			return nil, oops.In("config").With("peer", k).Errorf("peer has no address")
		}
		keys[k] = cryptde.PublicKey(key)
	}
	return keys, nil
}

// SeedDirectory records every configured peer in d.
func (c *Config) SeedDirectory(d directory.Directory) error {
	keys, err := c.PeerKeys()
	if err != nil {
		return err
	}
	for k, key := range keys {
		if err := d.Put(key, c.Peers[k]); err != nil {
			return oops.In("config").With("peer", k).Wrapf(err, "failed to seed directory")
		}
	}
	return nil
}
