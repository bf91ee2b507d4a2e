// Command tickdemo drives a tickbus with a few concurrent producers, or
// replays a captured tape through the same consumers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/rawbytedev/tickbus"
	"github.com/rawbytedev/tickbus/pkg/frame"
	"github.com/rawbytedev/tickbus/pkg/hostloop"
	"github.com/rawbytedev/tickbus/pkg/tape"
)

type position struct {
	Entity uint32
	X, Y   float32
}

type damage struct {
	Entity uint32
	Amount int32
}

type spawn struct {
	Entity uint32
	Kind   uint16
}

// movement reads positions through an embedded inbox.
type movement struct {
	tickbus.Inbox[position]
	log   *slog.Logger
	moves int
}

func (c *movement) Update(context.Context) error {
	c.moves += c.Len()
	if p, ok := c.Message(); ok {
		c.log.Debug("movement", "count", c.Len(), "first_entity", p.Entity)
	}
	return nil
}

// combat sums damage from an aliased slice field.
type combat struct {
	hits  []damage
	total int64
}

func (c *combat) MessagesField() *[]damage { return &c.hits }

func (c *combat) Update(context.Context) error {
	for _, h := range c.hits {
		c.total += int64(h.Amount)
	}
	return nil
}

// spawner only cares about the first spawn of a tick.
type spawner struct {
	last   spawn
	spawns int
}

func (c *spawner) MessageField() *spawn { return &c.last }

func (c *spawner) Update(context.Context) error {
	c.spawns++
	return nil
}

type consumers struct {
	movement *movement
	combat   *combat
	spawner  *spawner
}

func register(bus *tickbus.Bus, log *slog.Logger) (*consumers, error) {
	cs := &consumers{
		movement: &movement{log: log},
		combat:   &combat{},
		spawner:  &spawner{},
	}
	if err := tickbus.Register[position](bus, "movement", cs.movement); err != nil {
		return nil, err
	}
	if err := tickbus.Register[damage](bus, "combat", cs.combat); err != nil {
		return nil, err
	}
	if err := tickbus.Register[spawn](bus, "spawner", cs.spawner); err != nil {
		return nil, err
	}
	return cs, nil
}

func producer(id uint32) hostloop.Producer {
	return hostloop.ProducerFunc(func(_ context.Context, tick uint64, m *tickbus.Messenger) error {
		base := id * 1000
		moves := make([]position, 8)
		for i := range moves {
			moves[i] = position{Entity: base + uint32(i), X: rand.Float32(), Y: rand.Float32()}
		}
		err := tickbus.SendRange(m, moves)
		if rand.IntN(4) == 0 {
			err = errors.Join(err, tickbus.Send(m, damage{Entity: base, Amount: rand.Int32N(50)}))
		}
		if tick%30 == 0 {
			err = errors.Join(err, tickbus.Send(m, spawn{Entity: base + uint32(tick), Kind: uint16(id)}))
		}
		return err
	})
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		ticks      = flag.Int("ticks", 600, "ticks to run, 0 runs until interrupted")
		producers  = flag.Int("producers", 4, "concurrent producers")
		pprofAddr  = flag.String("pprof", "", "serve net/http/pprof on this address")
		replay     = flag.String("replay", "", "replay a tape instead of producing")
	)
	flag.Parse()

	cfg, err := tickbus.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tickdemo:", err)
		os.Exit(2)
	}
	lvl, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)

	if *pprofAddr != "" {
		go func() {
			log.Info("pprof listening", "addr", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				log.Error("pprof server", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *replay != "" {
		err = runReplay(ctx, cfg, log, *replay)
	} else {
		err = run(ctx, cfg, log, *ticks, *producers)
	}
	if err != nil {
		log.Error("tickdemo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg tickbus.Config, log *slog.Logger, ticks, producers int) error {
	opts := []tickbus.Option{tickbus.WithLogger(log)}
	if cfg.TapePath != "" {
		f, err := os.Create(cfg.TapePath)
		if err != nil {
			return fmt.Errorf("create tape: %w", err)
		}
		defer f.Close()
		rec, err := tape.NewRecorder(f)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Error("close tape", "error", err)
				return
			}
			log.Info("tape written", "path", cfg.TapePath, "ticks", rec.Ticks(), "bytes", rec.Bytes())
		}()
		opts = append(opts, tickbus.WithRecorder(rec))
	}

	bus, err := tickbus.New(cfg, opts...)
	if err != nil {
		return err
	}
	cs, err := register(bus, log)
	if err != nil {
		return err
	}
	bus.Seal()

	ps := make([]hostloop.Producer, producers)
	for i := range ps {
		ps[i] = producer(uint32(i + 1))
	}
	loop := hostloop.New(bus, hostloop.Config{}, ps...).WithLogger(log)
	if ticks > 0 {
		err = loop.RunTicks(ctx, ticks)
	} else {
		err = loop.Run(ctx)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	report(log, bus, cs)
	return err
}

func runReplay(ctx context.Context, cfg tickbus.Config, log *slog.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tape: %w", err)
	}
	defer f.Close()
	rd, err := tape.NewReader(f)
	if err != nil {
		return err
	}
	defer rd.Close()

	bus, err := tickbus.New(cfg, tickbus.WithLogger(log))
	if err != nil {
		return err
	}
	cs, err := register(bus, log)
	if err != nil {
		return err
	}
	sizes := map[uint32]int{
		tickbus.TypeHash[position](): tickbus.TypeSize[position](),
		tickbus.TypeHash[damage]():   tickbus.TypeSize[damage](),
		tickbus.TypeHash[spawn]():    tickbus.TypeSize[spawn](),
	}
	sizer := frame.SizerFunc(func(hash uint32) (int, bool) {
		n, ok := sizes[hash]
		return n, ok
	})

	for ctx.Err() == nil {
		tk, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		frames := 0
		if err := frame.Walk(tk.Frames, sizer, func(frame.Frame) error {
			frames++
			return nil
		}); err != nil {
			return fmt.Errorf("tick %d: %w", tk.Number, err)
		}
		log.Debug("replaying tick", "tick", tk.Number, "frames", frames, "bytes", len(tk.Frames))
		if len(tk.Frames) > bus.Capacity() {
			if err := bus.EnsureCapacity(len(tk.Frames)); err != nil {
				return fmt.Errorf("tick %d: %w", tk.Number, err)
			}
		}
		if err := bus.Messenger().AppendFrames(tk.Frames); err != nil {
			return fmt.Errorf("tick %d: %w", tk.Number, err)
		}
		if err := bus.Drain(ctx); err != nil {
			return err
		}
	}
	report(log, bus, cs)
	return nil
}

func report(log *slog.Logger, bus *tickbus.Bus, cs *consumers) {
	st := bus.Stats()
	log.Info("run complete",
		"ticks", st.Ticks,
		"frames", st.Frames,
		"bytes", st.Bytes,
		"dispatches", st.Dispatches,
		"dropped", st.Dropped,
		"grows", st.Grows,
		"capacity", st.Capacity,
		"moves", cs.movement.moves,
		"damage", cs.combat.total,
		"spawns", cs.spawner.spawns,
	)
	for _, b := range bus.Bindings() {
		log.Debug("binding", "name", b.Name, "type", b.TypeName, "strategy", b.Strategy.String(), "rebinds", b.Rebinds)
	}
}
