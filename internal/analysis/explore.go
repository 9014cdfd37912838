package analysis

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"staticflow/internal/disasm"
	"staticflow/internal/model"
	"staticflow/internal/tags"
)

// ExploreFunction walks the blocks reachable from start without following
// calls. A block ends at a jump, return or halt, or where its fallthrough
// reaches a known block start; blocks are never split. Addresses that do
// not decode are tagged undecoded and end their block.
//
// When start carries its own arch tag, every address reached from it is
// decoded with that architecture.
func (s *Static) ExploreFunction(start uint64) (*model.Function, error) {
	a, err := s.Tags(start).ArchTag()
	if err != nil {
		return nil, err
	}
	override := a != s.Arch()
	fn := s.function(start)
	callees := s.callSet(start)

	starts := map[uint64]bool{start: true}
	work := []uint64{start}
	for len(work) > 0 {
		bs := work[len(work)-1]
		work = work[:len(work)-1]
		blk := s.block(bs)
		fn.AddBlock(blk)

		for addr := bs; ; {
			blk.Add(addr)
			t := s.Tags(addr)
			if override && !t.Has(tags.Arch) {
				if err := t.Set(tags.Arch, a); err != nil {
					return fn, err
				}
			}
			insn, err := t.Instruction()
			if err != nil {
				if !errors.Is(err, disasm.ErrDecodeFailure) && !errors.Is(err, disasm.ErrEmptyInput) {
					return fn, fmt.Errorf("explore %#x: %w", start, err)
				}
				s.logger.Debug("undecoded", "addr", fmt.Sprintf("%#x", addr), "err", err)
				if err := t.Set(tags.Undecoded, true); err != nil {
					return fn, err
				}
				break
			}

			var (
				next    uint64
				follows bool
			)
			for _, d := range insn.Dests() {
				switch d.Kind {
				case disasm.DestImplicit:
					next, follows = d.Addr, true
				case disasm.DestCall:
					s.AddCref(addr, d.Addr)
					callees.Add(d.Addr)
				default:
					s.AddCref(addr, d.Addr)
					if !starts[d.Addr] {
						starts[d.Addr] = true
						work = append(work, d.Addr)
					}
				}
			}
			if !follows || insn.IsHalt() {
				break
			}
			if insn.IsEnding() {
				if !starts[next] {
					starts[next] = true
					work = append(work, next)
				}
				break
			}
			if starts[next] {
				break
			}
			addr = next
		}
	}
	s.logger.Debug("explored", "start", fmt.Sprintf("%#x", start), "blocks", len(fn.Blocks()))
	return fn, nil
}

func blockHash(b *model.Block) uint64 { return b.Start() }

// FunctionGraph builds the control-flow graph of fn. Vertices are blocks
// keyed by start address; each edge carries a "kind" attribute naming the
// destination kind. Calls are not edges.
func (s *Static) FunctionGraph(fn *model.Function) (graph.Graph[uint64, *model.Block], error) {
	g := graph.New(blockHash, graph.Directed())
	blocks := fn.Blocks()
	for _, b := range blocks {
		err := g.AddVertex(b, graph.VertexAttribute("label", s.blockLabel(b)), graph.VertexAttribute("shape", "box"))
		if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, err
		}
	}
	for _, b := range blocks {
		t := s.Tags(b.End())
		if t.Has(tags.Undecoded) {
			continue
		}
		insn, err := t.Instruction()
		if err != nil {
			continue
		}
		for _, d := range insn.Dests() {
			if d.Kind == disasm.DestCall {
				continue
			}
			if _, ok := fn.Block(d.Addr); !ok {
				continue
			}
			err := g.AddEdge(b.Start(), d.Addr, graph.EdgeAttribute("kind", d.Kind.String()), graph.EdgeAttribute("label", d.Kind.String()))
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, err
			}
		}
	}
	return g, nil
}

// Successors returns the successor block starts of every block in fn.
func (s *Static) Successors(fn *model.Function) (map[uint64][]uint64, error) {
	g, err := s.FunctionGraph(fn)
	if err != nil {
		return nil, err
	}
	adj, err := g.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	out := make(map[uint64][]uint64, len(adj))
	for from, edges := range adj {
		succ := make([]uint64, 0, len(edges))
		for to := range edges {
			succ = append(succ, to)
		}
		slices.Sort(succ)
		out[from] = succ
	}
	return out, nil
}

// WriteDOT renders the control-flow graph of fn in Graphviz DOT.
func (s *Static) WriteDOT(w io.Writer, fn *model.Function) error {
	g, err := s.FunctionGraph(fn)
	if err != nil {
		return err
	}
	return draw.DOT(g, w, draw.GraphAttribute("label", s.label(fn.Start())))
}

func (s *Static) label(addr uint64) string {
	if n, ok := s.Name(addr); ok {
		return n
	}
	return fmt.Sprintf("loc_%x", addr)
}

func (s *Static) blockLabel(b *model.Block) string {
	return fmt.Sprintf("%s\\n%#x-%#x", s.label(b.Start()), b.Start(), b.End())
}

func sortFunctions(fns []*model.Function) {
	slices.SortFunc(fns, func(a, b *model.Function) int { return cmp.Compare(a.Start(), b.Start()) })
}
