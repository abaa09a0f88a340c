// Package linear は線形回帰モデルを提供します。
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/core/model"
	"github.com/YuminosukeSato/streamforecast/core/parallel"
	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

// Regression は最小二乗法による線形回帰モデル
type Regression struct {
	model.BaseEstimator

	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
	NFeatures int           // 特徴量の数
}

// NewRegression は新しい線形回帰モデルを作成する
func NewRegression() *Regression {
	return &Regression{}
}

// Fit はモデルを訓練データで学習させる
// 切片列を付加した計画行列に対する最小二乗問題を SVD で解く
func (lr *Regression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	// 再学習の間は前回の学習状態を無効化する
	lr.Reset()
	lr.NFeatures = c

	// 切片項のために X に 1 の列を追加
	// X_with_intercept = [1, X]
	XWithIntercept := mat.NewDense(r, c+1, nil)

	// 行数が閾値を超える場合のみ並列化
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			XWithIntercept.Set(i, 0, 1.0) // 切片項
			for j := 0; j < c; j++ {
				XWithIntercept.Set(i, j+1, X.At(i, j))
			}
		}
	})

	// 最小二乗問題を SVD で解く。ランク落ちした計画行列（定数列・重複列
	// など）でも最小ノルム解が得られる
	var svd mat.SVD
	if ok := svd.Factorize(XWithIntercept, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	// 有効ランクの判定しきい値: eps * max(r, c+1) * σ_max
	values := svd.Values(nil)
	eps := math.Nextafter(1, 2) - 1
	tol := eps * float64(max(r, c+1)) * values[0]
	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	if rank == 0 {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	yDense := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		yDense.Set(i, 0, y.At(i, 0))
	}

	var solution mat.Dense
	svd.SolveTo(&solution, yDense, rank)

	// 切片と重みを分離
	lr.Intercept = solution.At(0, 0)
	lr.Weights = mat.NewVecDense(c, nil)
	for i := 0; i < c; i++ {
		lr.Weights.SetVec(i, solution.At(i+1, 0))
	}

	lr.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *Regression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	// 予測: y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Weights.AtVec(j)
		}
		predictions.Set(i, 0, pred)
	}

	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *Regression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LinearRegression", "Score")
	}

	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	r, _ := y.Dims()

	var yMean float64
	for i := 0; i < r; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(r)

	// 全変動 (TSS) と残差変動 (RSS) を計算
	var tss, rss float64
	for i := 0; i < r; i++ {
		yTrue := y.At(i, 0)
		yPredVal := yPred.At(i, 0)

		tss += (yTrue - yMean) * (yTrue - yMean)
		rss += (yTrue - yPredVal) * (yTrue - yPredVal)
	}

	if tss == 0 {
		return 0, errors.Wrap(errors.ErrZeroVariance, "LinearRegression.Score")
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// GetWeights は学習された重み（係数）を返す
func (lr *Regression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}

	weights := make([]float64, lr.Weights.Len())
	for i := 0; i < lr.Weights.Len(); i++ {
		weights[i] = lr.Weights.AtVec(i)
	}
	return weights
}

// GetIntercept は学習された切片を返す
func (lr *Regression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}
