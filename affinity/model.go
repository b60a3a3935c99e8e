// Package affinity 实现用户-物品亲和度模型：
// 输入用户在物品空间上的互动行（0/1），输出每个物品 [0,1] 的相关度分数。
//
// 结构为三层前馈网络 items → hidden1(relu) → hidden2(relu) → items(sigmoid)，
// 以二元交叉熵训练。训练完成后的 Model 不再修改，可被多个请求并发读取。
package affinity

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"flic_feed/models"
)

const snapshotVersion = 1

// layer 全连接层，W 按行主序存储 Out×In。
// w 是共享 W 底层数组的矩阵视图，优化器原地更新 W 后视图自动一致。
type layer struct {
	In  int       `json:"in"`
	Out int       `json:"out"`
	W   []float64 `json:"w"`
	B   []float64 `json:"b"`

	w *mat.Dense
}

func (l *layer) bind() {
	l.w = mat.NewDense(l.Out, l.In, l.W)
}

// newLayer Glorot uniform 初始化
func newLayer(in, out int, rng *rand.Rand) *layer {
	limit := math.Sqrt(6.0 / float64(in+out))
	l := &layer{In: in, Out: out, W: make([]float64, in*out), B: make([]float64, out)}
	for i := range l.W {
		l.W[i] = (rng.Float64()*2 - 1) * limit
	}
	return l
}

// forward z = W·x + b
func (l *layer) forward(x, z []float64) {
	mat.NewVecDense(l.Out, z).MulVec(l.w, mat.NewVecDense(l.In, x))
	floats.Add(z, l.B)
}

func (l *layer) valid() bool {
	return l != nil && l.In > 0 && l.Out > 0 && len(l.W) == l.In*l.Out && len(l.B) == l.Out
}

func relu(z, a []float64) {
	for i, v := range z {
		if v > 0 {
			a[i] = v
		} else {
			a[i] = 0
		}
	}
}

func sigmoid(z, a []float64) {
	for i, v := range z {
		a[i] = 1 / (1 + math.Exp(-v))
	}
}

// TrainReport 一次训练的摘要，随模型快照持久化
type TrainReport struct {
	Users     int           `json:"users"`
	Items     int           `json:"items"`
	Epochs    int           `json:"epochs"`
	FinalLoss float64       `json:"final_loss"`
	Duration  time.Duration `json:"duration"`
	Source    string        `json:"source"`
	TrainedAt time.Time     `json:"trained_at"`
}

// Model 训练好的亲和度模型，参数只读
type Model struct {
	itemIDs []string
	index   map[string]int
	layers  []*layer
	report  TrainReport
}

func newModel(itemIDs []string, layers []*layer) *Model {
	index := make(map[string]int, len(itemIDs))
	for i, id := range itemIDs {
		index[id] = i
	}
	for _, l := range layers {
		l.bind()
	}
	return &Model{itemIDs: itemIDs, index: index, layers: layers}
}

// NumItems 模型物品空间大小
func (m *Model) NumItems() int {
	return len(m.itemIDs)
}

// ItemIDs 物品空间中的 id，按列顺序
func (m *Model) ItemIDs() []string {
	out := make([]string, len(m.itemIDs))
	copy(out, m.itemIDs)
	return out
}

// ItemIndex 物品 id 对应的列下标
func (m *Model) ItemIndex(id string) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

func (m *Model) Report() TrainReport {
	return m.report
}

// RowFor 把用户互动过的物品 id 转成互动行，不在物品空间中的 id 被忽略
func (m *Model) RowFor(ids []string) []float64 {
	row := make([]float64, len(m.itemIDs))
	for _, id := range ids {
		if i, ok := m.index[id]; ok {
			row[i] = 1
		}
	}
	return row
}

// activations 一次前向传播的中间结果
type activations struct {
	z1, a1, z2, a2, z3, y []float64
}

func (m *Model) newActivations() *activations {
	h1, h2, n := m.layers[0].Out, m.layers[1].Out, m.layers[2].Out
	return &activations{
		z1: make([]float64, h1), a1: make([]float64, h1),
		z2: make([]float64, h2), a2: make([]float64, h2),
		z3: make([]float64, n), y: make([]float64, n),
	}
}

func (m *Model) forward(x []float64, act *activations) {
	m.layers[0].forward(x, act.z1)
	relu(act.z1, act.a1)
	m.layers[1].forward(act.a1, act.z2)
	relu(act.z2, act.a2)
	m.layers[2].forward(act.a2, act.z3)
	sigmoid(act.z3, act.y)
}

// Score 对用户互动行打分，返回与物品空间同序的分数，均在 [0,1]。
// 只依赖模型参数和输入，结果确定；可并发调用。
func (m *Model) Score(row []float64) ([]float64, error) {
	if len(row) != m.NumItems() {
		return nil, &models.ShapeMismatchError{What: "user row items", Expected: m.NumItems(), Actual: len(row)}
	}
	act := m.newActivations()
	m.forward(row, act)
	return act.y, nil
}

type snapshot struct {
	Version int         `json:"version"`
	ItemIDs []string    `json:"item_ids"`
	Layers  []*layer    `json:"layers"`
	Report  TrainReport `json:"report"`
}

// MarshalBinary 序列化模型参数，用于持久化快照
func (m *Model) MarshalBinary() ([]byte, error) {
	return json.Marshal(snapshot{
		Version: snapshotVersion,
		ItemIDs: m.itemIDs,
		Layers:  m.layers,
		Report:  m.report,
	})
}

// UnmarshalModel 从快照恢复模型，并检查各层维度首尾相接
func UnmarshalModel(data []byte) (*Model, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode model snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported model snapshot version %d", s.Version)
	}
	if len(s.Layers) != 3 {
		return nil, errors.New("model snapshot must have 3 layers")
	}
	n := len(s.ItemIDs)
	for i, l := range s.Layers {
		if !l.valid() {
			return nil, fmt.Errorf("model snapshot layer %d is malformed", i)
		}
	}
	if s.Layers[0].In != n {
		return nil, &models.ShapeMismatchError{What: "input layer", Expected: n, Actual: s.Layers[0].In}
	}
	if s.Layers[1].In != s.Layers[0].Out || s.Layers[2].In != s.Layers[1].Out {
		return nil, errors.New("model snapshot layers do not chain")
	}
	if s.Layers[2].Out != n {
		return nil, &models.ShapeMismatchError{What: "output layer", Expected: n, Actual: s.Layers[2].Out}
	}

	m := newModel(s.ItemIDs, s.Layers)
	m.report = s.Report
	return m, nil
}
