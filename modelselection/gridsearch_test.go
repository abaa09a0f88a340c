package modelselection

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
)

// biasRegressor predicts the training mean plus a fixed bias. Larger |bias|
// scores worse, which makes the grid search verdict predictable.
type biasRegressor struct {
	bias float64
	mean float64
}

func (b *biasRegressor) Fit(X, y mat.Matrix) error {
	n, _ := y.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		sum += y.At(i, 0)
	}
	b.mean = sum / float64(n)
	return nil
}

func (b *biasRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, b.mean+b.bias)
	}
	return out, nil
}

func biasFactory(params map[string]interface{}) model.Regressor {
	return &biasRegressor{bias: params["bias"].(float64)}
}

func constantishData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		// Mild variation keeps the fold targets non-degenerate.
		y.Set(i, 0, 10+float64(i%3))
	}
	return X, y
}

func TestGridSearchCVPicksSmallestBias(t *testing.T) {
	X, y := constantishData(60)

	gs := NewGridSearchCV(biasFactory, map[string][]interface{}{
		"bias": {8.0, 0.0, -4.0},
	}, NewKFold(5, true, 42))

	if err := gs.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if got := gs.BestParams["bias"].(float64); got != 0.0 {
		t.Errorf("BestParams[bias] = %v, want 0", got)
	}
	if len(gs.Results) != 3 {
		t.Errorf("got %d grid results, want 3", len(gs.Results))
	}
	for _, res := range gs.Results {
		if res.MeanScore > gs.BestScore {
			t.Errorf("result %v outranks the reported best score %v", res, gs.BestScore)
		}
	}

	pred, err := gs.Predict(X)
	if err != nil {
		t.Fatalf("Predict after Fit failed: %v", err)
	}
	if r, c := pred.Dims(); r != 60 || c != 1 {
		t.Errorf("prediction shape = (%d, %d), want (60, 1)", r, c)
	}
}

func TestGridSearchCVCartesianProduct(t *testing.T) {
	combos, err := expandGrid(map[string][]interface{}{
		"a": {1, 2},
		"b": {"x", "y", "z"},
		"c": {true},
	})
	if err != nil {
		t.Fatalf("expandGrid failed: %v", err)
	}
	if len(combos) != 6 {
		t.Fatalf("got %d combinations, want 6", len(combos))
	}

	seen := make(map[string]bool)
	for _, combo := range combos {
		if len(combo) != 3 {
			t.Errorf("combination %v is missing keys", combo)
		}
		key := ""
		for _, k := range []string{"a", "b", "c"} {
			key += "|"
			switch v := combo[k].(type) {
			case int:
				key += string(rune('0' + v))
			case string:
				key += v
			case bool:
				key += "t"
			}
		}
		if seen[key] {
			t.Errorf("duplicate combination %v", combo)
		}
		seen[key] = true
	}
}

func TestGridSearchCVEmptyGrid(t *testing.T) {
	X, y := constantishData(20)

	gs := NewGridSearchCV(biasFactory, map[string][]interface{}{}, NewKFold(2, false, 0))
	if err := gs.Fit(X, y); err == nil {
		t.Error("an empty grid must be rejected")
	}

	gs = NewGridSearchCV(biasFactory, map[string][]interface{}{"bias": {}}, NewKFold(2, false, 0))
	if err := gs.Fit(X, y); err == nil {
		t.Error("a grid dimension with no values must be rejected")
	}
}

func TestGridSearchCVPredictBeforeFit(t *testing.T) {
	gs := NewGridSearchCV(biasFactory, map[string][]interface{}{"bias": {0.0}}, NewKFold(2, false, 0))
	if _, err := gs.Predict(mat.NewDense(2, 1, nil)); err == nil {
		t.Error("Predict before Fit should fail")
	}
}
