package tracking

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// priorVariance is the diagonal of the covariance prior restored on reset.
const priorVariance = 10.0

// KalmanFilter estimates a target's pixel position and velocity with a
// constant-velocity model. State is [x, y, vx, vy]; measurements are the
// bounding-box center.
type KalmanFilter struct {
	processNoise     float64
	measurementNoise float64

	x           *mat.VecDense // 4x1 state
	p           *mat.Dense    // 4x4 covariance
	initialized bool
}

// NewKalmanFilter creates a filter with the given noise densities.
func NewKalmanFilter(processNoise, measurementNoise float64) *KalmanFilter {
	k := &KalmanFilter{
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
		x:                mat.NewVecDense(4, nil),
		p:                mat.NewDense(4, 4, nil),
	}
	k.Reset()
	return k
}

// SetNoise updates the noise densities without touching the state.
func (k *KalmanFilter) SetNoise(processNoise, measurementNoise float64) {
	k.processNoise = processNoise
	k.measurementNoise = measurementNoise
}

// Reset clears the state and restores the covariance prior.
func (k *KalmanFilter) Reset() {
	k.p.Zero()
	for i := 0; i < 4; i++ {
		k.x.SetVec(i, 0)
		k.p.Set(i, i, priorVariance)
	}
	k.initialized = false
}

// Initialized reports whether the filter has absorbed a measurement.
func (k *KalmanFilter) Initialized() bool {
	return k.initialized
}

// Predict advances the state by dt seconds and returns the predicted pixel
// position. Before the first measurement this is a no-op.
func (k *KalmanFilter) Predict(dt float64) (x, y float64) {
	if !k.initialized {
		return k.x.AtVec(0), k.x.AtVec(1)
	}

	f := transition(dt)

	var xNext mat.VecDense
	xNext.MulVec(f, k.x)
	k.x.CopyVec(&xNext)

	// P = F P F^T + Q
	var fp, fpf mat.Dense
	fp.Mul(f, k.p)
	fpf.Mul(&fp, f.T())
	for i := 0; i < 4; i++ {
		fpf.Set(i, i, fpf.At(i, i)+k.processNoise)
	}
	k.p.Copy(&fpf)

	return k.x.AtVec(0), k.x.AtVec(1)
}

// Update corrects the state with a measured pixel position and returns the
// corrected position. The first measurement seeds the state directly.
func (k *KalmanFilter) Update(zx, zy float64) (x, y float64) {
	if !k.initialized {
		k.x.SetVec(0, zx)
		k.x.SetVec(1, zy)
		k.x.SetVec(2, 0)
		k.x.SetVec(3, 0)
		k.initialized = true
		return zx, zy
	}

	h := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	z := mat.NewVecDense(2, []float64{zx, zy})

	// Residual y = z - H x
	var hx, resid mat.VecDense
	hx.MulVec(h, k.x)
	resid.SubVec(z, &hx)

	// Innovation covariance S = H P H^T + R
	var hp, s mat.Dense
	hp.Mul(h, k.p)
	s.Mul(&hp, h.T())
	s.Set(0, 0, s.At(0, 0)+k.measurementNoise)
	s.Set(1, 1, s.At(1, 1)+k.measurementNoise)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// Singular innovation: the state is unusable.
		k.x.SetVec(0, math.NaN())
		return k.x.AtVec(0), k.x.AtVec(1)
	}

	// Gain K = P H^T S^-1
	var pht, gain mat.Dense
	pht.Mul(k.p, h.T())
	gain.Mul(&pht, &sInv)

	// State x = x + K y
	var ky mat.VecDense
	ky.MulVec(&gain, &resid)
	k.x.AddVec(k.x, &ky)

	// Covariance P = (I - K H) P
	var kh, ikh, pNext mat.Dense
	kh.Mul(&gain, h)
	ikh.Scale(-1, &kh)
	for i := 0; i < 4; i++ {
		ikh.Set(i, i, ikh.At(i, i)+1)
	}
	pNext.Mul(&ikh, k.p)
	k.p.Copy(&pNext)
	k.symmetrize()

	return k.x.AtVec(0), k.x.AtVec(1)
}

// Healthy reports whether state and covariance are finite.
func (k *KalmanFilter) Healthy() bool {
	for i := 0; i < 4; i++ {
		if !finite(k.x.AtVec(i)) {
			return false
		}
		for j := 0; j < 4; j++ {
			if !finite(k.p.At(i, j)) {
				return false
			}
		}
	}
	return true
}

// Covariance returns a copy of the covariance matrix.
func (k *KalmanFilter) Covariance() *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	out.Copy(k.p)
	return out
}

// symmetrize removes the round-off asymmetry the update introduces.
func (k *KalmanFilter) symmetrize() {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			v := (k.p.At(i, j) + k.p.At(j, i)) / 2
			k.p.Set(i, j, v)
			k.p.Set(j, i, v)
		}
	}
}

// transition builds the constant-velocity F for a dt step.
func transition(dt float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
