// Command bucketdist runs a standalone bucket-distributor peer against a
// RabbitMQ broker: it seeds (or joins) the shared bucket pool and maintains
// cluster membership via broadcast gossip. It logs its peer id and cluster
// on startup and blocks until signaled; it is a reference host for the
// internal/distributor package, not a server that exposes the acquired
// bucket set to an external client.
package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bucketdist/bucketdist/internal/broker/amqpgw"
	"github.com/bucketdist/bucketdist/internal/config"
	"github.com/bucketdist/bucketdist/internal/distributor"
	"github.com/bucketdist/bucketdist/internal/logging"
	"github.com/bucketdist/bucketdist/internal/wordlist"
)

var bucketsFile string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bucketdist",
		Short: "Run a bucket-distributor peer",
		RunE:  runDistributor,
	}
	root.Flags().StringVar(&bucketsFile, "buckets", "", "path to a newline-delimited file of default bucket names (required on first cluster bootstrap)")
	return root
}

func runDistributor(cmd *cobra.Command, _ []string) error {
	opts, err := config.Load(viper.New())
	if err != nil {
		return err
	}

	logging.Init(parseLevel(opts.LogLevel), os.Stderr)

	buckets, err := readBuckets(bucketsFile)
	if err != nil {
		return err
	}

	words, err := wordlist.Load(opts.WordlistPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gateway := amqpgw.New()
	conn, err := gateway.Connect(ctx, opts.BrokerURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	d, err := distributor.Start(ctx, conn, opts.ClusterName, buckets, words, distributor.Options{
		PeersPeriod:      opts.PeersPeriod,
		ExpirationPeriod: opts.ExpirationPeriod,
		PartitionDelay:   opts.PartitionDelay,
		PartitionPeriod:  opts.PartitionPeriod,
	}, func() int64 { return time.Now().UnixMilli() })
	if err != nil {
		return err
	}

	logging.Info("bucket distributor started", "peer_id", d.PeerID(), "cluster", opts.ClusterName)

	<-ctx.Done()
	logging.Info("shutting down", "peer_id", d.PeerID())
	d.Stop(context.Background())
	return nil
}

func readBuckets(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
