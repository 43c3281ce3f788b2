package linksim

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type component struct {
	cfg   *ComponentConfig
	elem  *Element
	ports []*port // in connection order
	sent  int
}

// A port is one connected end of a link.
type port struct {
	name     string
	link     *LinkConfig
	peer     *component
	peerPort string
}

func (c *component) port(name string) *port {
	for _, p := range c.ports {
		if p.name == name {
			return p
		}
	}
	return nil
}

// A Simulation is a validated model ready to run.
type Simulation struct {
	components []*component
	byName     map[string]*component
	logger     *zap.Logger
}

// Build checks the model and wires its links. Model errors are returned as
// *FatalError.
func Build(m *Model, logger *zap.Logger) (*Simulation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulation{
		byName: make(map[string]*component),
		logger: logger,
	}

	for _, cfg := range m.Components {
		elem, err := LookupElement(cfg.Type)
		if err != nil {
			return nil, fatalf("%s", err)
		}
		c := &component{cfg: cfg, elem: elem}
		s.components = append(s.components, c)
		s.byName[cfg.Name] = c
	}

	for _, l := range m.Links {
		if err := s.connect(l); err != nil {
			return nil, err
		}
	}

	logger.Info("built model", zap.Int("components", len(s.components)), zap.Int("links", len(m.Links)))
	return s, nil
}

type endpoint struct {
	comp *component
	port string
}

func (s *Simulation) endpoint(l *LinkConfig, spec string) (endpoint, error) {
	name, portName, ok := splitEndpoint(spec)
	if !ok {
		return endpoint{}, fatalf("Link %s has malformed endpoint %q, expected component.port.", l.Name, spec)
	}
	c, ok := s.byName[name]
	if !ok {
		return endpoint{}, fatalf("Link %s connects to unknown component %s.", l.Name, name)
	}
	if !c.elem.ValidPort(portName) {
		return endpoint{}, fatalf("Attempting to connect to unknown port: %s, in component %s of type %s.", portName, name, c.cfg.Type)
	}
	if p := c.port(portName); p != nil {
		return endpoint{}, fatalf("Port %s of component %s is connected to both %s and %s.", portName, name, p.link.Name, l.Name)
	}
	return endpoint{comp: c, port: portName}, nil
}

func (s *Simulation) connect(l *LinkConfig) error {
	if l.Left == "" && l.Right == "" {
		return fatalf("Found dangling link: %s. It is not connected to any component.", l.Name)
	}
	if l.Left == "" || l.Right == "" {
		name, _, _ := strings.Cut(l.Left+l.Right, ".")
		return fatalf("Found dangling link: %s. It is connected on one side to component %s.", l.Name, name)
	}
	if l.Left == l.Right {
		return fatalf("Link %s connects %s to itself.", l.Name, l.Left)
	}

	left, err := s.endpoint(l, l.Left)
	if err != nil {
		return err
	}
	right, err := s.endpoint(l, l.Right)
	if err != nil {
		return err
	}

	left.comp.ports = append(left.comp.ports, &port{name: left.port, link: l, peer: right.comp, peerPort: right.port})
	right.comp.ports = append(right.comp.ports, &port{name: right.port, link: l, peer: left.comp, peerPort: left.port})
	return nil
}

type RunOptions struct {
	// Threads is the number of destination components handled concurrently
	// at each simulated time.
	Threads int
	// StopAt, when positive, ends the simulation before any event later
	// than this time (in ns).
	StopAt int64
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// Run delivers events until none are left and returns the final simulated
// time in ns.
func (s *Simulation) Run(ctx context.Context, w io.Writer, opts RunOptions) (int64, error) {
	threads := max(opts.Threads, 1)
	for i := len(s.components); i < threads; i++ {
		fmt.Fprintf(w, "WARNING: No components are assigned to thread %d.\n", i)
	}

	q := newEventQueue()
	for _, c := range s.components {
		if !c.elem.Sends {
			continue
		}
		for _, p := range c.ports {
			for range c.cfg.SendCount {
				q.push(p.transmit(0, c.cfg.Name, c.sent, 0))
				c.sent++
			}
		}
	}

	out := &lockedWriter{w: w}
	var now int64
	for q.len() > 0 {
		if err := ctx.Err(); err != nil {
			return now, err
		}
		if opts.StopAt > 0 && q.peek().when > opts.StopAt {
			s.logger.Info("stopping early", zap.Int64("stop_at", opts.StopAt), zap.Int("pending", q.len()))
			now = opts.StopAt
			break
		}

		batch := q.popBatch()
		now = batch[0].when
		groups := groupByDestination(batch)
		s.logger.Debug("delivering batch", zap.Int64("time", now), zap.Int("events", len(batch)), zap.Int("components", len(groups)))

		next := make([][]*event, len(groups))
		g := new(errgroup.Group)
		g.SetLimit(threads)
		for i, group := range groups {
			g.Go(func() error {
				var err error
				next[i], err = deliver(out, now, group)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return now, err
		}

		// Scheduling follows group order, not completion order.
		for _, events := range next {
			for _, e := range events {
				q.push(e)
			}
		}
	}
	return now, nil
}

// transmit creates the event that leaves through p at time now.
func (p *port) transmit(now int64, origin string, n, hops int) *event {
	return &event{
		when:   now + p.link.Latency,
		origin: origin,
		n:      n,
		hops:   hops,
		dst:    p.peer,
		port:   p.peerPort,
	}
}

// groupByDestination splits a batch by receiving component, keeping the
// order of first appearance and the order within each group.
func groupByDestination(batch []*event) [][]*event {
	index := make(map[*component]int)
	var groups [][]*event
	for _, e := range batch {
		i, ok := index[e.dst]
		if !ok {
			i = len(groups)
			index[e.dst] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], e)
	}
	return groups
}

// deliver hands events to their common destination and returns the events
// it forwards.
func deliver(w io.Writer, now int64, events []*event) ([]*event, error) {
	var forwarded []*event
	for _, e := range events {
		c := e.dst
		if _, err := fmt.Fprintf(w, "%d ns: %s received event %s:%d on port %s (hop %d)\n", now, c.cfg.Name, e.origin, e.n, e.port, e.hops); err != nil {
			return nil, err
		}
		if e.hops >= c.cfg.ForwardHops {
			continue
		}
		for _, p := range c.ports {
			if p.name == e.port {
				continue
			}
			forwarded = append(forwarded, p.transmit(now, e.origin, e.n, e.hops+1))
		}
	}
	return forwarded, nil
}
