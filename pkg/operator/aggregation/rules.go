package aggregation

import "github.com/cuemby/flowdb/pkg/flowexpr"

// FieldRule describes one output column: either a group-key dimension or an
// accumulated measure. Rules are supplied in output-column order.
type FieldRule interface {
	isFieldRule()
}

// Dimension is a GROUP BY key expression. Included controls whether it also
// appears as an output column (some dimensions participate in grouping
// without being projected).
type Dimension struct {
	Expr     flowexpr.Expression
	Included bool
	Name     string
}

func (Dimension) isFieldRule() {}

// Measure accumulates Expr over each group via Aggregator.
type Measure struct {
	Expr       flowexpr.Expression
	Aggregator Aggregator
	Name       string
}

func (Measure) isFieldRule() {}

// outDimension and outMeasure are a rule paired with the output column
// index it occupies, computed once in New from the FieldRule list — mirrors
// populate_rules in the grounding source.
type outDimension struct {
	expr     flowexpr.Expression
	outIndex int
}

type outMeasure struct {
	expr       flowexpr.Expression
	aggregator Aggregator
	outIndex   int
}

// populateRules splits the rule list into: every dimension's expression (in
// rule order — these all contribute to the group hash, included or not, per
// the Dimension contract), the subset of dimensions that also occupy an
// output column, and every measure. A dimension with Included=false
// contributes to allDims but is skipped entirely from the output, so
// outIndex is assigned against the compacted column layout (included
// dimensions and measures only, in rule order) rather than the raw rule
// index — an excluded dimension must not leave a gap in the output row.
func populateRules(rules []FieldRule) (allDims []flowexpr.Expression, outDims []outDimension, measures []outMeasure) {
	outIdx := 0
	for _, rule := range rules {
		switch r := rule.(type) {
		case Dimension:
			allDims = append(allDims, r.Expr)
			if r.Included {
				outDims = append(outDims, outDimension{expr: r.Expr, outIndex: outIdx})
				outIdx++
			}
		case Measure:
			measures = append(measures, outMeasure{expr: r.Expr, aggregator: r.Aggregator, outIndex: outIdx})
			outIdx++
		}
	}
	return allDims, outDims, measures
}
