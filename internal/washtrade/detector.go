// Package washtrade finds value-conserving transfer cycles in a token's
// transfer window.
package washtrade

import (
	"fmt"
	"math"
	"sort"
	"time"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/riskerr"
)

// Cycle is a flagged closed walk, rooted at its smallest address.
type Cycle struct {
	Nodes   []string
	Volume  float64 // sum of edge volumes
	StartMs int64   // earliest transfer on the cycle
	EndMs   int64   // latest transfer on the cycle
}

// Analysis is the result of a cycle search over one window.
type Analysis struct {
	Cycles       []Cycle
	WashedVolume float64 // volume of distinct edges on flagged cycles
	TotalVolume  float64 // volume of every transfer in the window
	Ratio        float64 // WashedVolume / TotalVolume
}

// Detector searches transfer graphs for wash cycles.
type Detector struct {
	policy config.WashPolicy
}

// NewDetector creates a wash-trading Detector.
func NewDetector(p config.WashPolicy) *Detector {
	return &Detector{policy: p}
}

// Name returns the detector name.
func (d *Detector) Name() string {
	return "washtrade"
}

func (d *Detector) Signals() []domain.SignalName {
	return []domain.SignalName{domain.SignalWashTradingDetected}
}

// Detect analyses the snapshot transfer window.
func (d *Detector) Detect(s *domain.Snapshot) domain.Finding {
	var f domain.Finding
	name := domain.SignalWashTradingDetected

	if !s.TransfersResolved {
		detail := riskerr.DataUnavailable("get_transfer_window", nil).Error()
		if reason, ok := s.Unavailable[domain.FactTransfers]; ok {
			detail += ": " + reason
		}
		f.Add(domain.Unknown(name))
		f.Note(name, domain.NoteDataUnavailable, detail)
		return f
	}

	a, err := d.Analyze(s.Transfers)
	if err != nil {
		f.Note(name, domain.NoteInsufficientEvidence, err.Error())
		return f
	}

	if a.Ratio >= d.policy.MaterialityThreshold && a.WashedVolume > 0 {
		f.Add(domain.Observed(name, math.Min(1, a.Ratio)))
		f.Note(name, domain.NoteObservation, fmt.Sprintf("%d cycles, washed %.4f of %.4f", len(a.Cycles), a.WashedVolume, a.TotalVolume))
	}
	if s.TransfersPartial && len(f.Signals) > 0 {
		f.Downgrade()
		f.Note(name, domain.NoteDataUnavailable, "transfer window truncated")
	}
	return f
}

// Analyze builds the transfer graph and returns every flagged cycle.
func (d *Detector) Analyze(events []domain.TransferEvent) (Analysis, error) {
	g := buildGraph(events, d.policy.MaxFanOut)
	if len(events) == 0 || g.total <= 0 {
		return Analysis{}, riskerr.InsufficientEvidence("transfer_window", len(events), 1)
	}

	s := &search{
		g:       g,
		policy:  d.policy,
		flagged: make(map[*edge]struct{}),
	}
	for _, start := range g.nodes {
		s.start = start
		s.path = []string{start}
		s.visit(start, walk{min: math.Inf(1)})
	}

	a := Analysis{Cycles: s.cycles, TotalVolume: g.total}
	flagged := make([]*edge, 0, len(s.flagged))
	for e := range s.flagged {
		flagged = append(flagged, e)
	}
	// summation order fixes the float result
	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].from != flagged[j].from {
			return flagged[i].from < flagged[j].from
		}
		return flagged[i].to < flagged[j].to
	})
	for _, e := range flagged {
		a.WashedVolume += e.volume
	}
	a.Ratio = a.WashedVolume / a.TotalVolume

	sort.SliceStable(a.Cycles, func(i, j int) bool {
		return lessNodes(a.Cycles[i].Nodes, a.Cycles[j].Nodes)
	})
	return a, nil
}

// edge aggregates every transfer from one address to another.
type edge struct {
	from, to string
	volume   float64
	firstMs  int64
	lastMs   int64
}

type graph struct {
	nodes []string
	adj   map[string][]*edge
	total float64
}

// buildGraph aggregates events per (from,to). Each adjacency list keeps the
// maxFanOut largest edges (ties by address) and is then ordered by address.
func buildGraph(events []domain.TransferEvent, maxFanOut int) *graph {
	g := &graph{adj: make(map[string][]*edge)}
	byPair := make(map[[2]string]*edge)

	for _, ev := range events {
		if ev.Amount <= 0 {
			continue
		}
		g.total += ev.Amount
		if ev.Source == "" || ev.Destination == "" || ev.Source == ev.Destination {
			continue
		}
		key := [2]string{ev.Source, ev.Destination}
		e, ok := byPair[key]
		if !ok {
			e = &edge{from: ev.Source, to: ev.Destination, firstMs: ev.TimestampMs, lastMs: ev.TimestampMs}
			byPair[key] = e
			g.adj[ev.Source] = append(g.adj[ev.Source], e)
		}
		e.volume += ev.Amount
		if ev.TimestampMs < e.firstMs {
			e.firstMs = ev.TimestampMs
		}
		if ev.TimestampMs > e.lastMs {
			e.lastMs = ev.TimestampMs
		}
	}

	for from, edges := range g.adj {
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].volume != edges[j].volume {
				return edges[i].volume > edges[j].volume
			}
			return edges[i].to < edges[j].to
		})
		if maxFanOut > 0 && len(edges) > maxFanOut {
			edges = edges[:maxFanOut]
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].to < edges[j].to })
		g.adj[from] = edges
		g.nodes = append(g.nodes, from)
	}
	sort.Strings(g.nodes)
	return g
}

// walk carries the running edge statistics of the current path.
type walk struct {
	edges   []*edge
	min     float64
	max     float64
	firstMs int64
	lastMs  int64
}

func (w walk) extend(e *edge) walk {
	next := walk{
		edges:   append(append([]*edge(nil), w.edges...), e),
		min:     math.Min(w.min, e.volume),
		max:     math.Max(w.max, e.volume),
		firstMs: e.firstMs,
		lastMs:  e.lastMs,
	}
	if len(w.edges) > 0 {
		if w.firstMs < next.firstMs {
			next.firstMs = w.firstMs
		}
		if w.lastMs > next.lastMs {
			next.lastMs = w.lastMs
		}
	}
	return next
}

type search struct {
	g       *graph
	policy  config.WashPolicy
	start   string
	path    []string
	cycles  []Cycle
	flagged map[*edge]struct{}
}

// visit extends the path from node. Only addresses greater than the start
// are entered so each cycle is found once, from its smallest address.
func (s *search) visit(node string, w walk) {
	for _, e := range s.g.adj[node] {
		if e.to == s.start {
			if len(s.path) >= 2 {
				s.close(w.extend(e))
			}
			continue
		}
		if e.to < s.start || len(s.path) >= s.policy.CycleLengthLimit || s.onPath(e.to) {
			continue
		}
		next := w.extend(e)
		if next.min/next.max < s.policy.RetentionTolerance {
			continue
		}
		s.path = append(s.path, e.to)
		s.visit(e.to, next)
		s.path = s.path[:len(s.path)-1]
	}
}

func (s *search) close(w walk) {
	if (w.max-w.min)/w.max > s.policy.ConservationTolerance {
		return
	}
	if time.Duration(w.lastMs-w.firstMs)*time.Millisecond > s.policy.CycleMaxSpan {
		return
	}

	c := Cycle{
		Nodes:   append([]string(nil), s.path...),
		StartMs: w.firstMs,
		EndMs:   w.lastMs,
	}
	for _, e := range w.edges {
		c.Volume += e.volume
		s.flagged[e] = struct{}{}
	}
	s.cycles = append(s.cycles, c)
}

func (s *search) onPath(addr string) bool {
	for _, p := range s.path {
		if p == addr {
			return true
		}
	}
	return false
}

func lessNodes(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
