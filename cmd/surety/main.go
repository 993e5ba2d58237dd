package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/eigerco/surety/internal/config"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/entropy"
	"github.com/eigerco/surety/internal/events"
	"github.com/eigerco/surety/internal/host"
	"github.com/eigerco/surety/internal/ledger"
	"github.com/eigerco/surety/internal/oraclesim"
	"github.com/eigerco/surety/internal/store"
	"github.com/eigerco/surety/internal/wallet"
	"github.com/eigerco/surety/pkg/db/pebble"
	"github.com/eigerco/surety/pkg/log"
)

// main starts a ledger node.
// go run ./cmd/surety -config examples/surety.yaml -ops examples/scenario.yaml -exit
func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration")
	logLevel := flag.String("log-level", "", "Log level, overrides the configuration")
	opsPath := flag.String("ops", "", "Operation script to replay after start")
	exit := flag.Bool("exit", false, "Exit once the operation script was replayed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	if err := initLogging(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *opsPath, *exit); err != nil && !errors.Is(err, context.Canceled) {
		log.Root.Fatal().Err(err).Msg("node stopped")
	}
}

func initLogging(c config.LogConfig) error {
	level, err := log.ParseLogLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	typ, err := log.ParseLoggerType(c.Type)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: typ})
	return nil
}

func run(ctx context.Context, cfg config.Config, opsPath string, exitAfterOps bool) error {
	opts := []pebble.Option{pebble.WithPath(cfg.Store.Path)}
	if cfg.Store.InMemory {
		opts = []pebble.Option{pebble.WithInMemory()}
	}
	kv, err := pebble.NewKVStore(opts...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	records := store.NewLedger(kv)
	defer records.Close()

	restored, err := records.Load()
	if err != nil {
		return fmt.Errorf("load ledger state: %w", err)
	}

	// The draw stream continues from the restored height instead of replaying
	// the indices drawn before a restart.
	seed := cfg.Seed()
	src := entropy.NewBlake2bSource(crypto.HashData(binary.BigEndian.AppendUint64(seed[:], restored.Height)))

	escrow := wallet.New(0)
	bus := events.NewBus()
	l, err := ledger.New(ledger.Config{
		Administrator:  cfg.Administrator(),
		GenesisAirline: cfg.GenesisAirline(),
		Params:         cfg.LedgerParams(),
		Entropy:        src,
		Publisher:      bus,
		Store:          records,
		Transferer:     escrow,
		State:          restored,
	})
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}
	log.Root.Info().Uint64("height", l.Height()).Stringer("administrator", l.Administrator()).
		Int("airlines", l.RegisteredCount()).Msg("ledger ready")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := host.New(l, host.WithDepositor(escrow))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(gctx) })
	// Stops the workers before the deferred store close.
	fail := func(err error) error {
		cancel()
		_ = g.Wait()
		return err
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()
		if err := client.Ping(gctx).Err(); err != nil {
			log.Root.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable, forwarding anyway")
		}
		fwd := events.NewRedisForwarder(client, cfg.Redis.Channel, 256)
		bus.Subscribe(fwd.Handle)
		g.Go(func() error { return fwd.Run(gctx) })
	}

	if cfg.Oracles.PoolSize > 0 {
		responses := entropy.NewBlake2bSource(crypto.HashData(append(seed[:], "responses"...)))
		sim := oraclesim.New(h, oraclesim.NewRandom(responses), oraclesim.WithFee(cfg.LedgerParams().RegistrationFee))
		bus.Subscribe(sim.Handle)
		g.Go(func() error { return sim.Run(gctx) })
		if err := sim.Register(gctx, cfg.Oracles.PoolSize); err != nil {
			return fail(fmt.Errorf("register oracle pool: %w", err))
		}
	}

	if opsPath != "" {
		steps, err := host.ReadScript(opsPath)
		if err != nil {
			return fail(err)
		}
		if err := h.Replay(gctx, steps, bus); err != nil {
			return fail(fmt.Errorf("replay %s: %w", opsPath, err))
		}
		var height uint64
		if err := h.Query(gctx, func(l *ledger.Ledger) { height = l.Height() }); err != nil {
			return fail(err)
		}
		log.Root.Info().Int("steps", len(steps)).Uint64("height", height).Msg("operation script replayed")
		if exitAfterOps {
			cancel()
		}
	}

	err = g.Wait()
	log.Root.Info().Msg("shutting down")
	return err
}
