// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/streamforecast/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}

	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MAE", "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}

	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// 全てのyTrueが同じ値の場合、全変動がゼロとなりR²は定義できないため
// ErrZeroVarianceを返す。NaNを番兵値として扱いたい場合はNewReportを使用する。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("R2Score", "empty vector")
	}

	if yPred.Len() != n {
		return 0, errors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	// yTrueの平均を計算
	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)

		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	if tss == 0 {
		return 0, errors.Wrap(errors.ErrZeroVariance, "R2Score: total sum of squares is zero (no variance in yTrue)")
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// Report は同一の予測/正解ペアから計算された4つの評価指標の組
type Report struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
}

// NewReport は1組の予測/正解ペアから全指標をまとめて計算する。
//
// 目的変数の分散がゼロでR²が定義できない場合は、失敗ではなく
// UndefinedMetricWarningを発行してR²にNaNを設定する。
func NewReport(yTrue, yPred *mat.VecDense) (Report, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}

	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}

	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		if !errors.Is(err, errors.ErrZeroVariance) {
			return Report{}, err
		}
		r2 = math.NaN()
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "zero variance in yTrue", r2))
	}

	return Report{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  mae,
		R2:   r2,
	}, nil
}

// VecFromColumn はn×1行列をVecDenseに変換するヘルパー
func VecFromColumn(m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if c != 1 {
		return nil, errors.NewValueError("VecFromColumn", "must be a column vector (n×1 matrix)")
	}

	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}
