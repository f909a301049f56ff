package ransac

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestTrialCount(t *testing.T) {
	n, err := TrialCount(0.99, 0.5, 4, -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 72)

	n, err = TrialCount(0.99, 0.1, 4, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 5)

	t.Run("no outliers", func(t *testing.T) {
		for _, epsilon := range []float64{0, 1e-4, -0.5} {
			n, err := TrialCount(0.99, epsilon, 4, 100)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, n, test.ShouldEqual, 1)
		}
	})

	t.Run("capped", func(t *testing.T) {
		n, err := TrialCount(0.99, 0.9, 4, 1000)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, 1000)

		n, err = TrialCount(0.99, 0.9, 4, -1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, 46050)
	})

	t.Run("probability clamped", func(t *testing.T) {
		n, err := TrialCount(1, 0.5, 4, -1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, 559)

		clamped, err := TrialCount(3, 0.5, 4, -1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, clamped, test.ShouldEqual, n)
	})

	t.Run("degenerate", func(t *testing.T) {
		for _, epsilon := range []float64{1, 2} {
			n, err := TrialCount(0.99, epsilon, 4, 100)
			test.That(t, n, test.ShouldEqual, 0)
			test.That(t, errors.Is(err, ErrDegenerateConfiguration), test.ShouldBeTrue)
		}
	})
}
