package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/courtsideml/grove/pkg/errors"
)

// Evaluation は回帰モデルの評価レポート
type Evaluation struct {
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// Evaluate は実測値と予測値からEvaluationをまとめて計算する
//
// いずれの指標も評価対象のサンプル集合自身の平均を基準とする。
// 長さ不一致や空入力はエラーとなる。
func Evaluate(actual, predicted []float64) (Evaluation, error) {
	if len(actual) == 0 {
		return Evaluation{}, errors.NewValueError("Evaluate", "empty input")
	}
	if len(actual) != len(predicted) {
		return Evaluation{}, errors.NewDimensionError("Evaluate", len(actual), len(predicted), 0)
	}

	yTrue := mat.NewVecDense(len(actual), actual)
	yPred := mat.NewVecDense(len(predicted), predicted)

	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return Evaluation{}, err
	}
	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		return Evaluation{}, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return Evaluation{}, err
	}

	return Evaluation{R2: r2, RMSE: rmse, MAE: mae}, nil
}
