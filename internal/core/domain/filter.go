package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FilterFunc names follow CSS filter functions.
type FilterFunc string

const (
	FilterGrayscale  FilterFunc = "grayscale"
	FilterSepia      FilterFunc = "sepia"
	FilterInvert     FilterFunc = "invert"
	FilterBlur       FilterFunc = "blur"
	FilterBrightness FilterFunc = "brightness"
	FilterContrast   FilterFunc = "contrast"
	FilterSaturate   FilterFunc = "saturate"
)

// defaultAmounts is what a bare function name (or empty parens) means.
var defaultAmounts = map[FilterFunc]float64{
	FilterGrayscale:  1,
	FilterSepia:      1,
	FilterInvert:     1,
	FilterBlur:       0,
	FilterBrightness: 1,
	FilterContrast:   1,
	FilterSaturate:   1,
}

// MaxBlurRadius and MaxFilterFactor bound the amounts a filter may carry.
const (
	MaxBlurRadius   = 100.0
	MaxFilterFactor = 10.0
)

var maxAmounts = map[FilterFunc]float64{
	FilterBlur:       MaxBlurRadius,
	FilterBrightness: MaxFilterFactor,
	FilterContrast:   MaxFilterFactor,
	FilterSaturate:   MaxFilterFactor,
}

type FilterOp struct {
	Func   FilterFunc `json:"func"`
	Amount float64    `json:"amount"`
}

func (op FilterOp) String() string {
	if op.Func == FilterBlur {
		return fmt.Sprintf("blur(%spx)", strconv.FormatFloat(op.Amount, 'f', -1, 64))
	}
	return fmt.Sprintf("%s(%s)", op.Func, strconv.FormatFloat(op.Amount, 'f', -1, 64))
}

// DisplayFilter is a parsed CSS-style filter chain such as
// "grayscale(100%) blur(2px)". The zero value is "none".
type DisplayFilter struct {
	Ops []FilterOp `json:"ops"`
}

func (f DisplayFilter) IsNone() bool {
	return len(f.Ops) == 0
}

func (f DisplayFilter) String() string {
	if f.IsNone() {
		return "none"
	}
	parts := make([]string, len(f.Ops))
	for i, op := range f.Ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, " ")
}

// ParseFilter parses a filter chain. Accepted forms per function: bare name,
// name(), name(N), name(N%) and for blur name(Npx).
func ParseFilter(s string) (DisplayFilter, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return DisplayFilter{}, nil
	}

	var ops []FilterOp
	for _, tok := range splitFilterTokens(s) {
		op, err := parseFilterOp(tok)
		if err != nil {
			return DisplayFilter{}, err
		}
		ops = append(ops, op)
	}
	return DisplayFilter{Ops: ops}, nil
}

// splitFilterTokens splits on whitespace outside parentheses.
func splitFilterTokens(s string) []string {
	var (
		tokens []string
		cur    strings.Builder
		depth  int
	)
	for _, r := range s {
		switch {
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && depth == 0:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func parseFilterOp(tok string) (FilterOp, error) {
	name, arg := tok, ""
	if i := strings.IndexByte(tok, '('); i >= 0 {
		if !strings.HasSuffix(tok, ")") {
			return FilterOp{}, fmt.Errorf("%w: unbalanced parentheses in %q", ErrInvalidFilter, tok)
		}
		name = tok[:i]
		arg = strings.TrimSpace(tok[i+1 : len(tok)-1])
	}

	fn := FilterFunc(name)
	def, ok := defaultAmounts[fn]
	if !ok {
		return FilterOp{}, fmt.Errorf("%w: unknown function %q", ErrInvalidFilter, name)
	}
	if arg == "" {
		return FilterOp{Func: fn, Amount: def}, nil
	}

	amount, err := parseFilterAmount(fn, arg)
	if err != nil {
		return FilterOp{}, err
	}
	return FilterOp{Func: fn, Amount: amount}, nil
}

func parseFilterAmount(fn FilterFunc, arg string) (float64, error) {
	scale := 1.0
	switch {
	case fn == FilterBlur:
		arg = strings.TrimSuffix(arg, "px")
	case strings.HasSuffix(arg, "%"):
		arg = strings.TrimSuffix(arg, "%")
		scale = 0.01
	}

	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad amount %q for %s", ErrInvalidFilter, arg, fn)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: amount for %s must be finite", ErrInvalidFilter, fn)
	}
	v *= scale
	if v < 0 {
		return 0, fmt.Errorf("%w: negative amount for %s", ErrInvalidFilter, fn)
	}
	if limit, ok := maxAmounts[fn]; ok && v > limit {
		return 0, fmt.Errorf("%w: amount for %s exceeds %g", ErrInvalidFilter, fn, limit)
	}

	// grayscale, sepia and invert saturate at 100%.
	switch fn {
	case FilterGrayscale, FilterSepia, FilterInvert:
		if v > 1 {
			v = 1
		}
	}
	return v, nil
}
