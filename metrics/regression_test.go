package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     *mat.VecDense
		yPred     *mat.VecDense
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction",
			yTrue:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:      0.0,
			tolerance: 1e-10,
			wantErr:   false,
		},
		{
			name:      "uniform half-unit residuals",
			yTrue:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred:     mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:      0.25, // ((0.5)² + (0.5)² + (-0.5)² + (-0.5)²) / 4
			tolerance: 1e-10,
			wantErr:   false,
		},
		{
			name:      "dimension mismatch",
			yTrue:     mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:     mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr:   true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("MSE() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("MSE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRMSEIsSqrtOfMSE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0})
	yPred := mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5})

	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		t.Fatalf("RMSE() error = %v", err)
	}
	if math.Abs(rmse-0.5) > 1e-10 {
		t.Errorf("RMSE() = %v, want 0.5", rmse)
	}
}

func TestMAE(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{10.0, 20.0, 30.0})
	yPred := mat.NewVecDense(3, []float64{12.0, 18.0, 33.0})

	mae, err := MAE(yTrue, yPred)
	if err != nil {
		t.Fatalf("MAE() error = %v", err)
	}
	want := 7.0 / 3.0 // (2 + 2 + 3) / 3
	if math.Abs(mae-want) > 1e-10 {
		t.Errorf("MAE() = %v, want %v", mae, want)
	}
}

func TestR2Score(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     *mat.VecDense
		yPred     *mat.VecDense
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect prediction gives R2 of 1",
			yTrue:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			want:      1.0,
			tolerance: 1e-10,
		},
		{
			name:      "mean prediction gives R2 of 0",
			yTrue:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred:     mat.NewVecDense(4, []float64{2.5, 2.5, 2.5, 2.5}),
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:    "zero variance target is an error",
			yTrue:   mat.NewVecDense(3, []float64{5.0, 5.0, 5.0}),
			yPred:   mat.NewVecDense(3, []float64{5.0, 5.0, 5.0}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("R2Score() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("R2Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewReport(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0})
	yPred := mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0})

	report, err := NewReport(yTrue, yPred)
	if err != nil {
		t.Fatalf("NewReport() error = %v", err)
	}

	if report.MSE != 0 || report.RMSE != 0 || report.MAE != 0 {
		t.Errorf("perfect prediction should zero all error metrics: %+v", report)
	}
	if math.Abs(report.R2-1.0) > 1e-10 {
		t.Errorf("R2 = %v, want 1", report.R2)
	}
}

func TestNewReportZeroVarianceTarget(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{7.0, 7.0, 7.0})
	yPred := mat.NewVecDense(3, []float64{6.0, 7.0, 8.0})

	report, err := NewReport(yTrue, yPred)
	if err != nil {
		t.Fatalf("NewReport() should not fail on zero-variance target: %v", err)
	}
	if !math.IsNaN(report.R2) {
		t.Errorf("R2 = %v, want NaN sentinel", report.R2)
	}
	if report.MSE <= 0 {
		t.Errorf("MSE should still be computed, got %v", report.MSE)
	}
}

func TestVecFromColumn(t *testing.T) {
	m := mat.NewDense(3, 1, []float64{1, 2, 3})
	v, err := VecFromColumn(m)
	if err != nil {
		t.Fatalf("VecFromColumn() error = %v", err)
	}
	if v.Len() != 3 || v.AtVec(2) != 3 {
		t.Errorf("unexpected vector: %v", v.RawVector().Data)
	}

	if _, err := VecFromColumn(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("wide matrix should be rejected")
	}
}
