package grid

import (
	"testing"

	"github.com/radioastro/visim/correlate"
)

// go test -bench=. -benchmem ./backends/grid
//
// Compare against the pool backend's numbers to see what the tiled staging
// costs and buys at different batch shapes.

func benchmarkCorrelate(b *testing.B, numStations, numSources int, gaussian bool) {
	be := New("")
	defer be.Finalize()
	fx := makeFixture(numStations, numSources, gaussian)
	vis, jones, src, coords := fx.stage(b, be)

	op := be.CorrelatePoint
	if gaussian {
		op = be.CorrelateGaussian
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := op(vis, jones, src, coords, 1.0/0.21, 0.01, numStations, numSources); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(correlate.NumBaselines(numStations)*numSources), "products/op")
}

func BenchmarkCorrelatePoint(b *testing.B) {
	benchmarkCorrelate(b, 50, 512, false)
}

func BenchmarkCorrelatePointLargeBatch(b *testing.B) {
	benchmarkCorrelate(b, 50, 4*sourceTile, false)
}

func BenchmarkCorrelateGaussian(b *testing.B) {
	benchmarkCorrelate(b, 50, 512, true)
}
