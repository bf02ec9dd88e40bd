package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Arceliar/hopper/cores"
	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/directory"
	"github.com/Arceliar/hopper/harness"
	"github.com/Arceliar/hopper/internal/config"
	"github.com/Arceliar/hopper/internal/logger"
	"github.com/Arceliar/hopper/network"
	"github.com/Arceliar/hopper/route"
	"github.com/Arceliar/hopper/types"
)

var log = logger.GetLogger()

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "hopper",
		Short:        "Onion-routing relay for CORES packages",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "path to the configuration file (YAML)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error, off); defaults to warn")
	load := func(cmd *cobra.Command) (*config.Config, error) {
		v := config.NewViper(cfgFile)
		if err := v.BindPFlag("log_level", cmd.Flags().Lookup("log-level")); err != nil {
			return nil, err
		}
		for _, name := range []string{"listen", "key_file", "max_hops"} {
			if f := cmd.Flags().Lookup(strings.ReplaceAll(name, "_", "-")); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return nil, err
				}
			}
		}
		cfg, err := config.Load(v)
		if err != nil {
			return nil, err
		}
		log.SetLevelString(cfg.LogLevel)
		return cfg, nil
	}
	cmd.AddCommand(
		newRunCommand(load),
		newKeygenCommand(load),
		newSendCommand(load),
		newAwaitShutdownCommand(),
	)
	return cmd
}

type loader func(cmd *cobra.Command) (*config.Config, error)

func newRunCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a relay node until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return runNode(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("listen", "", "TCP address to accept connections on")
	cmd.Flags().String("key-file", "", "path to the node's private key")
	cmd.Flags().Int("max-hops", 0, "longest route accepted (0 disables the check)")
	return cmd
}

func runNode(ctx context.Context, cfg *config.Config) error {
	cde, err := config.LoadKey(cfg.KeyFile)
	if err != nil {
		return oops.Hint("create one with 'hopper keygen'").Wrap(err)
	}
	var dir directory.Directory = directory.NewMemory()
	if cfg.DirectoryPath != "" {
		bdir, err := directory.OpenBolt(cfg.DirectoryPath)
		if err != nil {
			return err
		}
		defer bdir.Close()
		dir = bdir
	}
	if err := cfg.SeedDirectory(dir); err != nil {
		return err
	}
	factories, err := cfg.Factories()
	if err != nil {
		return err
	}
	masq, err := cfg.OutboundMasquerader()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	node, err := network.NewNode(cde,
		network.WithFactories(factories...),
		network.WithMasquerader(masq),
		network.WithDirectory(dir),
		network.WithMaxFrameSize(cfg.MaxFrameSize),
		network.WithMaxHops(cfg.MaxHops),
		network.WithMetrics(reg),
		network.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer node.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l, err := node.Listen(ctx, cfg.Listen)
	if err != nil {
		return err
	}
	fmt.Printf("Node %s listening on %s\n", node.PublicKey(), l.Addr())

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	// Log whatever arrives for components nobody on this node serves.
	go func() {
		for {
			p, err := node.ReadExpired()
			if err != nil {
				return
			}
			log.WithFields(logger.Fields{
				"component": p.Component.String(),
				"peer":      p.ImmediateNeighbor.String(),
				"bytes":     len(p.Payload),
			}).Info("Package delivered")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	return nil
}

func newKeygenCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the node's private key and print its public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			cde, err := config.GenerateKey(cfg.KeyFile)
			if err != nil {
				return err
			}
			fmt.Println(cde.PublicKey())
			return nil
		},
	}
	cmd.Flags().String("key-file", "", "where to write the private key")
	return cmd
}

func newSendCommand(load loader) *cobra.Command {
	var addr, payload, masqName string
	var segments []string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a CORES package along a route, starting at the node at --addr",
		Example: `  # Loop a package through the node listening on port 5333
  hopper send --addr 127.0.0.1:5333 --segment neighborhood:<self>,<node> --payload hello`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			cde, err := config.LoadKey(cfg.KeyFile)
			if err != nil {
				return err
			}
			segs, err := parseSegments(segments)
			if err != nil {
				return err
			}
			r, err := route.New(segs, cde, route.WithMaxHops(cfg.MaxHops))
			if err != nil {
				return err
			}
			last := segs[len(segs)-1]
			p, err := cores.NewIncipient(r, payload, last.Keys[len(last.Keys)-1], cde)
			if err != nil {
				return err
			}
			if masqName != "" {
				cfg.Masquerader = masqName
			}
			m, err := cfg.OutboundMasquerader()
			if err != nil {
				return err
			}
			client := harness.NewCoresClient(addr, cde)
			_, err = client.TransmitPackage(p, m, firstHop(segs[0].Keys, cde.PublicKey()))
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5333", "address of the route's first node")
	cmd.Flags().StringArrayVar(&segments, "segment", nil, "route segment as component:hexkey,hexkey,... (repeatable)")
	cmd.Flags().StringVar(&payload, "payload", "", "payload text")
	cmd.Flags().StringVar(&masqName, "masquerader", "", "protocol to mask the package with (json or tls)")
	cmd.Flags().String("key-file", "", "path to the sender's private key")
	return cmd
}

// parseSegments turns "component:key,key,..." arguments into route segments.
func parseSegments(args []string) ([]route.Segment, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one --segment is required")
	}
	var segs []route.Segment
	for _, arg := range args {
		name, list, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("segment %q has no component", arg)
		}
		component, err := types.ParseComponent(name)
		if err != nil {
			return nil, err
		}
		var keys []cryptde.PublicKey
		for _, k := range strings.Split(list, ",") {
			key, err := hex.DecodeString(strings.TrimSpace(k))
			if err != nil || len(key) == 0 {
				return nil, fmt.Errorf("segment %q has a bad key %q", arg, k)
			}
			keys = append(keys, key)
		}
		segs = append(segs, route.NewSegment(keys, component))
	}
	return segs, nil
}

// firstHop is the node the package is handed to: the second key when the sender owns the first.
func firstHop(keys []cryptde.PublicKey, self cryptde.PublicKey) cryptde.PublicKey {
	if len(keys) > 1 && keys[0].Equal(self) {
		return keys[1]
	}
	return keys[0]
}

func newAwaitShutdownCommand() *cobra.Command {
	var addr string
	var interval time.Duration
	var attempts int
	cmd := &cobra.Command{
		Use:   "await-shutdown",
		Short: "Wait until nothing accepts connections at --addr",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return harness.AwaitShutdown(addr, interval, attempts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5333", "address to poll")
	cmd.Flags().DurationVar(&interval, "interval", harness.DefaultShutdownInterval, "time between attempts")
	cmd.Flags().IntVar(&attempts, "attempts", harness.DefaultShutdownAttempts, "attempts before giving up")
	return cmd
}
