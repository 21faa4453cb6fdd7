package indicator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"tradefabric/internal/errkind"
	"tradefabric/pkg/types"
)

// ErrCyclicDependency is the sentinel wrapped by errkind when
// computeExecutionOrder finds a dependency cycle. A cycle is a contract
// violation: fatal at startup (the caller should refuse to serve traffic),
// recoverable at runtime in the sense that Run simply returns the error
// without invoking any indicator.
var ErrCyclicDependency = errors.New("cyclic dependency detected")

// DAG registers indicators with their dependencies and runs them in
// topological order once per bar, isolating any single indicator's failure
// from the rest. Grounded one-for-one on
// strategy/engine/indicator_dag.py's IndicatorDAG.
type DAG struct {
	mu           sync.Mutex
	indicators   map[types.IndicatorType]Indicator
	dependencies map[types.IndicatorType][]types.IndicatorType
	registered   []types.IndicatorType // insertion order, for deterministic iteration
	order        []types.IndicatorType // memoized execution order, cleared on Register
	logger       *slog.Logger
}

func NewDAG(logger *slog.Logger) *DAG {
	return &DAG{
		indicators:   make(map[types.IndicatorType]Indicator),
		dependencies: make(map[types.IndicatorType][]types.IndicatorType),
		logger:       logger.With("component", "indicator_dag"),
	}
}

// Register adds or replaces an indicator under its own type, clearing the
// memoized execution order so the next Run recomputes it.
func (d *DAG) Register(ind Indicator) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := ind.Type()
	if _, exists := d.indicators[t]; !exists {
		d.registered = append(d.registered, t)
	}
	d.indicators[t] = ind
	d.dependencies[t] = ind.Requirements().Dependencies
	d.order = nil
	d.logger.Debug("registered indicator", "type", t.String(), "dependencies", d.dependencies[t])
}

// computeExecutionOrder performs a DFS topological sort over dependencies.
// A node re-entered while still on the DFS stack is a cycle. Dependencies
// naming an indicator type that was never registered are skipped with a
// warning, matching the original's "log and skip" behavior for unknown
// deps rather than failing the whole sort.
func (d *DAG) computeExecutionOrder() ([]types.IndicatorType, error) {
	if d.order != nil {
		return d.order, nil
	}

	visited := make(map[types.IndicatorType]bool)
	tempMark := make(map[types.IndicatorType]bool)
	var order []types.IndicatorType

	var visit func(node types.IndicatorType) error
	visit = func(node types.IndicatorType) error {
		if tempMark[node] {
			return errkind.WrapContract(ErrCyclicDependency, "cycle involves indicator %q", node.String())
		}
		if visited[node] {
			return nil
		}
		tempMark[node] = true
		for _, dep := range d.dependencies[node] {
			if _, ok := d.indicators[dep]; !ok {
				d.logger.Warn("dependency not registered, skipping", "indicator", node.String(), "dependency", dep.String())
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(tempMark, node)
		visited[node] = true
		order = append(order, node)
		return nil
	}

	for _, node := range d.registered {
		if !visited[node] {
			if err := visit(node); err != nil {
				return nil, err
			}
		}
	}

	d.order = order
	d.logger.Info("computed indicator execution order", "order", stringify(order))
	return order, nil
}

func stringify(ts []types.IndicatorType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

// Run executes indicators in dependency order over the given candle window
// and market contexts. When requested is non-nil, only those indicators and
// their transitive dependencies run; nil runs every registered indicator.
// A single indicator's error is isolated: its result becomes {"error": msg}
// and downstream indicators see that in their dependency slot via
// Data.Result, exactly as spec.md §4.4 step 3 describes.
func (d *DAG) Run(ctx context.Context, candles []types.Candle, marketContexts []types.MarketContext, requested []types.IndicatorType) (map[string]any, error) {
	d.mu.Lock()
	order, err := d.computeExecutionOrder()
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	indicators := make(map[types.IndicatorType]Indicator, len(d.indicators))
	for k, v := range d.indicators {
		indicators[k] = v
	}
	dependencies := make(map[types.IndicatorType][]types.IndicatorType, len(d.dependencies))
	for k, v := range d.dependencies {
		dependencies[k] = v
	}
	d.mu.Unlock()

	if requested != nil {
		order = filterRequired(order, dependencies, requested)
	}

	data := newData(candles, marketContexts)
	results := make(map[string]any, len(order)+2)

	for _, t := range order {
		ind, ok := indicators[t]
		if !ok {
			continue
		}
		res, err := ind.Calculate(ctx, data)
		if err != nil {
			d.logger.Error("indicator failed", "indicator", t.String(), "error", err)
			errResult := map[string]any{"error": err.Error()}
			results[t.String()] = errResult
			data.setResult(t, errResult)
			continue
		}
		results[t.String()] = res
		data.setResult(t, res)
	}

	results["market_contexts"] = marketContexts
	if len(candles) > 0 {
		results["current_price"] = candles[len(candles)-1].Close
	}
	return results, nil
}

// filterRequired restricts order to the transitive closure of requested
// over dependencies, preserving order's relative ordering.
func filterRequired(order []types.IndicatorType, dependencies map[types.IndicatorType][]types.IndicatorType, requested []types.IndicatorType) []types.IndicatorType {
	required := make(map[types.IndicatorType]bool, len(requested)*2)
	queue := append([]types.IndicatorType{}, requested...)
	for _, r := range requested {
		required[r] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range dependencies[cur] {
			if !required[dep] {
				required[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	filtered := make([]types.IndicatorType, 0, len(order))
	for _, t := range order {
		if required[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
