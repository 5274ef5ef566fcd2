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
	"math/bits"
)

const (
	maxCoeffPrecision = 15
	minCoeffPrecision = 5
	maxCoeffShift     = 15
)

// welchWindow applies a Welch window to x, writing the result into dst.
func welchWindow(dst []float64, x []int32) {
	n := len(x)
	if n == 1 {
		dst[0] = float64(x[0])

		return
	}

	c := float64(n-1) / 2 //nolint:mnd // window centre.

	for i, s := range x {
		w := (float64(i) - c) / c
		dst[i] = float64(s) * (1 - w*w)
	}
}

// autocorrelate fills autoc[0..lag] with the autocorrelation of data.
func autocorrelate(autoc, data []float64, lag int) {
	for l := 0; l <= lag; l++ {
		var sum float64

		for i := l; i < len(data); i++ {
			sum += data[i] * data[i-l]
		}

		autoc[l] = sum
	}
}

// levinson runs the Levinson-Durbin recursion over autoc and stores the
// predictor of every order 1..maxOrder in coeffs[order-1], along with the
// prediction error in errs[order-1]. It returns the highest order computed,
// which is lower than maxOrder when the error reaches zero.
func levinson(autoc []float64, maxOrder int, coeffs [][]float64, errs []float64) int {
	if autoc[0] <= 0 {
		return 0
	}

	var lpc [MaxLPCOrder]float64

	errv := autoc[0]

	for i := range maxOrder {
		r := -autoc[i+1]
		for j := range i {
			r -= lpc[j] * autoc[i-j]
		}

		r /= errv

		lpc[i] = r
		for j := range i >> 1 {
			tmp := lpc[j]
			lpc[j] += r * lpc[i-1-j]
			lpc[i-1-j] += r * tmp
		}

		if i&1 != 0 {
			lpc[i>>1] += lpc[i>>1] * r
		}

		errv *= 1 - r*r

		for j := 0; j <= i; j++ {
			coeffs[i][j] = -lpc[j]
		}

		errs[i] = errv

		if errv <= 0 {
			return i + 1
		}
	}

	return maxOrder
}

// coeffPrecision returns the quantization precision for a block of n samples
// predicted at the given order. The precision is reduced so that the
// prediction sum of bps-bit samples always fits in 32 bits.
func coeffPrecision(n, bps, order int) int {
	var prec int

	switch {
	case n <= 192:
		prec = 7
	case n <= 384:
		prec = 8
	case n <= 576:
		prec = 9
	case n <= 1152:
		prec = 10
	case n <= 2304:
		prec = 11
	case n <= 4608:
		prec = 12
	default:
		prec = 13
	}

	limit := 32 - bps - bits.Len(uint(order)) //nolint:gosec // order is 1-32.

	return max(minCoeffPrecision, min(prec, limit, maxCoeffPrecision))
}

// quantize converts floating point predictor coefficients to integers of the
// given precision and returns the right shift to apply to the prediction sum.
func quantize(dst []int32, lpc []float64, prec int) int {
	var cmax float64
	for _, c := range lpc {
		cmax = max(cmax, math.Abs(c))
	}

	if cmax <= 0 {
		clear(dst)

		return 0
	}

	_, log2cmax := math.Frexp(cmax)
	log2cmax--

	shift := prec - 1 - log2cmax - 1
	shift = max(0, min(shift, maxCoeffShift))

	qmax := int32(1)<<(prec-1) - 1
	qmin := -qmax - 1

	var errv float64

	for i, c := range lpc {
		errv += c * float64(int(1)<<shift)
		q := int32(math.Round(errv))
		q = max(qmin, min(q, qmax))
		errv -= float64(q)
		dst[i] = q
	}

	return shift
}

// expectedBits estimates the cost in bits of coding n residuals with the
// given prediction error energy.
func expectedBits(errv float64, n int) float64 {
	if errv <= 0 || n <= 0 {
		return 0
	}

	perSample := 0.5 * math.Log2(errv*0.5/float64(n)) //nolint:mnd // libFLAC error scale.

	return max(perSample, 0) * float64(n)
}
