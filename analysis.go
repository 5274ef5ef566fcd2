/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package flake

import (
	"math"

	"github.com/mewkiz/flac/frame"
)

const (
	riceParamMax = 14
	// Largest residual magnitude accepted from a predictor.
	maxResidual = 1 << 30

	subframeHeaderBits = 8
	residualHeaderBits = 2 + 4
	riceParamBits      = 4
	lpcHeaderBits      = 4 + 5
	// Rough frame header and footer cost, used to compare block splits.
	frameOverheadBits = 12 * 8

	noCost = math.MaxInt
)

// subframePlan is the outcome of analysing one channel of one block.
type subframePlan struct {
	pred      frame.Pred
	order     int
	coeffs    []int32
	precision int
	shift     int
	partOrder int
	params    []uint
	bits      int
}

func (p *subframePlan) subHeader() frame.SubHeader {
	hdr := frame.SubHeader{Pred: p.pred, Order: p.order}

	if p.pred == frame.PredFixed || p.pred == frame.PredFIR {
		parts := make([]frame.RicePartition, len(p.params))
		for i, k := range p.params {
			parts[i] = frame.RicePartition{Param: k}
		}

		hdr.ResidualCodingMethod = frame.ResidualCodingMethodRice1
		hdr.RiceSubframe = &frame.RiceSubframe{
			PartOrder:  p.partOrder,
			Partitions: parts,
		}
	}

	if p.pred == frame.PredFIR {
		hdr.CoeffPrec = uint(p.precision) //nolint:gosec // precision is 5-15.
		hdr.CoeffShift = int32(p.shift)   //nolint:gosec // shift is 0-15.
		hdr.Coeffs = p.coeffs
	}

	return hdr
}

// analyzer holds the scratch space used to pick a subframe coding. One
// analyzer serves one encoder and is never shared.
type analyzer struct {
	params *Params

	zigzag   []uint32
	windowed []float64
	autoc    []float64
	lpc      [][]float64
	lpcErr   []float64
	qcoeffs  []int32
	riceTmp  []uint
	riceBest []uint
}

func newAnalyzer(params *Params, blockSize int) *analyzer {
	lpc := make([][]float64, MaxLPCOrder)
	for i := range lpc {
		lpc[i] = make([]float64, i+1)
	}

	return &analyzer{
		params:   params,
		zigzag:   make([]uint32, blockSize),
		windowed: make([]float64, blockSize),
		autoc:    make([]float64, MaxLPCOrder+1),
		lpc:      lpc,
		lpcErr:   make([]float64, MaxLPCOrder),
		qcoeffs:  make([]int32, MaxLPCOrder),
		riceTmp:  make([]uint, 1<<MaxPartitionOrder),
		riceBest: make([]uint, 1<<MaxPartitionOrder),
	}
}

// analyze picks the cheapest coding for one channel of bps-bit samples.
func (a *analyzer) analyze(x []int32, bps int) subframePlan {
	n := len(x)

	best := subframePlan{
		pred: frame.PredVerbatim,
		bits: subframeHeaderBits + n*bps,
	}

	if isConstant(x) {
		return subframePlan{
			pred: frame.PredConstant,
			bits: subframeHeaderBits + bps,
		}
	}

	var candidate subframePlan

	switch a.params.PredictionType {
	case PredictionFixed:
		candidate = a.bestFixed(x, bps)
	case PredictionLevinson:
		candidate = a.bestLPC(x, bps)
	default:
		return best
	}

	if candidate.bits < best.bits {
		best = candidate
	}

	return best
}

func isConstant(x []int32) bool {
	for _, s := range x[1:] {
		if s != x[0] {
			return false
		}
	}

	return true
}

// orderRange clamps the configured prediction order bounds to what a block
// of n samples can carry.
func (a *analyzer) orderRange(n, ceiling int) (int, int) {
	maxOrder := min(a.params.MaxPredictionOrder, ceiling, n-1)
	minOrder := min(a.params.MinPredictionOrder, maxOrder)

	return minOrder, maxOrder
}

func (a *analyzer) bestFixed(x []int32, bps int) subframePlan {
	minOrder, maxOrder := a.orderRange(len(x), MaxFixedOrder)

	if a.params.OrderMethod == OrderMax {
		minOrder = maxOrder
	}

	best := subframePlan{bits: noCost}

	for order := minOrder; order <= maxOrder; order++ {
		plan := a.evalFixed(x, bps, order)
		if plan.bits < best.bits {
			best = plan
		}
	}

	return best
}

func (a *analyzer) evalFixed(x []int32, bps, order int) subframePlan {
	res := a.zigzag[:len(x)-order]
	if !fixedResiduals(res, x, order) {
		return subframePlan{bits: noCost}
	}

	partOrder, riceBits := a.rice(res, len(x), order)

	return subframePlan{
		pred:      frame.PredFixed,
		order:     order,
		partOrder: partOrder,
		params:    append([]uint(nil), a.riceBest[:1<<partOrder]...),
		bits:      subframeHeaderBits + order*bps + riceBits,
	}
}

// fixedResiduals writes the zigzag-folded residuals of a fixed predictor.
// It reports false if a residual exceeds the codable range.
func fixedResiduals(dst []uint32, x []int32, order int) bool {
	for i := order; i < len(x); i++ {
		var pred int64

		switch order {
		case 1:
			pred = int64(x[i-1])
		case 2:
			pred = 2*int64(x[i-1]) - int64(x[i-2])
		case 3:
			pred = 3*int64(x[i-1]) - 3*int64(x[i-2]) + int64(x[i-3])
		case 4:
			pred = 4*int64(x[i-1]) - 6*int64(x[i-2]) + 4*int64(x[i-3]) - int64(x[i-4])
		}

		r := int64(x[i]) - pred
		if r >= maxResidual || r <= -maxResidual {
			return false
		}

		dst[i-order] = zigzag(r)
	}

	return true
}

func lpcResiduals(dst []uint32, x, coeffs []int32, shift int) bool {
	order := len(coeffs)

	for i := order; i < len(x); i++ {
		var sum int64
		for j, c := range coeffs {
			sum += int64(c) * int64(x[i-1-j])
		}

		r := int64(x[i]) - sum>>shift
		if r >= maxResidual || r <= -maxResidual {
			return false
		}

		dst[i-order] = zigzag(r)
	}

	return true
}

func zigzag(r int64) uint32 {
	return uint32((r << 1) ^ (r >> 63)) //nolint:gosec // r is bounded by maxResidual.
}

func (a *analyzer) bestLPC(x []int32, bps int) subframePlan {
	n := len(x)
	minOrder, maxOrder := a.orderRange(n, MaxLPCOrder)
	minOrder = max(minOrder, 1)

	if maxOrder < 1 {
		return a.evalFixed(x, bps, 0)
	}

	welchWindow(a.windowed[:n], x)
	autocorrelate(a.autoc, a.windowed[:n], maxOrder)

	computed := levinson(a.autoc, maxOrder, a.lpc, a.lpcErr)
	if computed == 0 {
		return a.evalFixed(x, bps, 0)
	}

	maxOrder = min(maxOrder, computed)
	minOrder = min(minOrder, maxOrder)

	var plans [MaxLPCOrder + 1]*subframePlan

	eval := func(order int) int {
		if plans[order] == nil {
			plan := a.evalLPC(x, bps, order)
			plans[order] = &plan
		}

		return plans[order].bits
	}

	switch a.params.OrderMethod {
	case OrderMax:
		eval(maxOrder)
	case OrderEstimate:
		eval(a.estimateOrder(n, bps, minOrder, maxOrder))
	case Order2Level, Order4Level, Order8Level:
		levels := 2 << int(a.params.OrderMethod-Order2Level)
		span := maxOrder - minOrder + 1

		for i := 1; i <= levels; i++ {
			eval(minOrder + max(0, span*i/levels-1))
		}
	case OrderSearch:
		for order := minOrder; order <= maxOrder; order++ {
			eval(order)
		}
	case OrderLog:
		logSearch(minOrder, maxOrder, eval)
	}

	best := subframePlan{bits: noCost}

	for _, plan := range plans {
		if plan != nil && plan.bits < best.bits {
			best = *plan
		}
	}

	return best
}

// logSearch probes orders at a coarse power-of-two step, then halves the step
// around the best order found so far.
func logSearch(minOrder, maxOrder int, eval func(int) int) {
	step := 1
	for step*2 <= maxOrder-minOrder+1 {
		step *= 2
	}

	bestOrder, bestBits := maxOrder, eval(maxOrder)

	for order := minOrder + step - 1; order <= maxOrder; order += step {
		if bits := eval(order); bits < bestBits {
			bestOrder, bestBits = order, bits
		}
	}

	for step >>= 1; step > 0; step >>= 1 {
		center := bestOrder

		for _, order := range []int{center - step, center + step} {
			if order < minOrder || order > maxOrder {
				continue
			}

			if bits := eval(order); bits < bestBits {
				bestOrder, bestBits = order, bits
			}
		}
	}
}

// estimateOrder picks the order with the lowest expected cost from the
// Levinson-Durbin prediction errors, without coding any residual.
func (a *analyzer) estimateOrder(n, bps, minOrder, maxOrder int) int {
	best, bestBits := maxOrder, math.Inf(1)

	for order := minOrder; order <= maxOrder; order++ {
		overhead := float64(order * (bps + coeffPrecision(n, bps, order)))

		bits := expectedBits(a.lpcErr[order-1], n-order) + overhead
		if bits < bestBits {
			best, bestBits = order, bits
		}
	}

	return best
}

func (a *analyzer) evalLPC(x []int32, bps, order int) subframePlan {
	n := len(x)
	prec := coeffPrecision(n, bps, order)
	coeffs := a.qcoeffs[:order]
	shift := quantize(coeffs, a.lpc[order-1], prec)

	res := a.zigzag[:n-order]
	if !lpcResiduals(res, x, coeffs, shift) {
		return subframePlan{bits: noCost}
	}

	partOrder, riceBits := a.rice(res, n, order)

	return subframePlan{
		pred:      frame.PredFIR,
		order:     order,
		coeffs:    append([]int32(nil), coeffs...),
		precision: prec,
		shift:     shift,
		partOrder: partOrder,
		params:    append([]uint(nil), a.riceBest[:1<<partOrder]...),
		bits:      subframeHeaderBits + order*bps + lpcHeaderBits + order*prec + riceBits,
	}
}

// rice finds the cheapest partition order for the residuals of an order-th
// predictor over an n-sample block. It returns the partition order and the
// total residual cost in bits; the per-partition parameters are left in
// a.riceBest.
func (a *analyzer) rice(res []uint32, n, order int) (int, int) {
	minPart := a.params.MinPartitionOrder
	maxPart := a.params.MaxPartitionOrder
	bestOrder, bestBits := 0, noCost

	for p := maxPart; p >= minPart; p-- {
		if n%(1<<p) != 0 || n>>p <= order {
			continue
		}

		bits := a.partitionCost(res, n, order, p, a.riceTmp)
		if bits < bestBits {
			bestOrder, bestBits = p, bits
			copy(a.riceBest, a.riceTmp[:1<<p])
		}
	}

	if bestBits == noCost {
		bestBits = a.partitionCost(res, n, order, 0, a.riceTmp)
		copy(a.riceBest, a.riceTmp[:1])
	}

	return bestOrder, bestBits
}

func (a *analyzer) partitionCost(res []uint32, n, order, p int, params []uint) int {
	partSize := n >> p
	total := residualHeaderBits
	start := 0

	for i := range 1 << p {
		end := (i+1)*partSize - order
		k, bits := bestRiceParam(res[start:end])
		params[i] = k
		total += riceParamBits + bits
		start = end
	}

	return total
}

// bestRiceParam returns the Rice parameter that codes part in the fewest
// bits, trying the estimate from the mean and its two neighbours.
func bestRiceParam(part []uint32) (uint, int) {
	if len(part) == 0 {
		return 0, 0
	}

	var sum uint64
	for _, u := range part {
		sum += uint64(u)
	}

	m := uint64(len(part))

	k := 0
	for k < riceParamMax && m<<(k+1) <= sum {
		k++
	}

	lo, hi := max(0, k-1), min(riceParamMax, k+1)

	var sums [3]uint64

	for _, u := range part {
		for j := range hi - lo + 1 {
			sums[j] += uint64(u >> (lo + j))
		}
	}

	bestK, bestBits := lo, uint64(math.MaxUint64)

	for j := range hi - lo + 1 {
		bits := m*uint64(lo+j+1) + sums[j] //nolint:gosec // lo+j is 0-14.
		if bits < bestBits {
			bestK, bestBits = lo+j, bits
		}
	}

	return uint(bestK), int(bestBits) //nolint:gosec // bounded by block size times residual width.
}
