package affinity

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"flic_feed/models"
)

// Config 训练超参数
type Config struct {
	Hidden1      int
	Hidden2      int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Corruption   float64 // 训练时输入随机置零的比例（去噪）
	Seed         uint64
}

// DefaultConfig 默认超参数
func DefaultConfig() Config {
	return Config{
		Hidden1:      128,
		Hidden2:      64,
		Epochs:       10,
		BatchSize:    32,
		LearningRate: 0.001,
		Corruption:   0.2,
		Seed:         42,
	}
}

// Interactions 二值交互矩阵，行是用户，列是物品，1 表示历史正向互动
type Interactions struct {
	UserIDs []string
	ItemIDs []string
	Matrix  [][]float64
}

// NewInteractions 由互动记录构建矩阵，用户和物品按 id 排序保证结果确定
func NewInteractions(records []models.Interaction) *Interactions {
	users := map[string]int{}
	items := map[string]int{}
	for _, r := range records {
		users[r.UserID] = 0
		items[r.PostID] = 0
	}
	userIDs := sortedKeys(users)
	itemIDs := sortedKeys(items)
	for i, id := range userIDs {
		users[id] = i
	}
	for i, id := range itemIDs {
		items[id] = i
	}

	matrix := make([][]float64, len(userIDs))
	for i := range matrix {
		matrix[i] = make([]float64, len(itemIDs))
	}
	for _, r := range records {
		matrix[users[r.UserID]][items[r.PostID]] = 1
	}
	return &Interactions{UserIDs: userIDs, ItemIDs: itemIDs, Matrix: matrix}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate 检查矩阵非空、每行长度等于物品数、取值只有 0 和 1
func (in *Interactions) Validate() error {
	if in == nil || len(in.Matrix) == 0 {
		return errors.New("interaction matrix is empty")
	}
	if len(in.ItemIDs) == 0 {
		return errors.New("interaction matrix has no items")
	}
	if len(in.UserIDs) > 0 && len(in.UserIDs) != len(in.Matrix) {
		return &models.ShapeMismatchError{What: "user rows", Expected: len(in.UserIDs), Actual: len(in.Matrix)}
	}
	seen := make(map[string]struct{}, len(in.ItemIDs))
	for _, id := range in.ItemIDs {
		if _, dup := seen[id]; dup {
			return errors.New("duplicate item id " + id)
		}
		seen[id] = struct{}{}
	}
	for _, row := range in.Matrix {
		if len(row) != len(in.ItemIDs) {
			return &models.ShapeMismatchError{What: "row items", Expected: len(in.ItemIDs), Actual: len(row)}
		}
		for _, v := range row {
			if v != 0 && v != 1 {
				return errors.New("interaction matrix must be binary")
			}
		}
	}
	return nil
}

// grads 与层参数同形的梯度累加器，wd 是 w 的矩阵视图
type grads struct {
	w  [][]float64
	wd []*mat.Dense
	b  [][]float64
}

func newGrads(layers []*layer) *grads {
	g := &grads{
		w:  make([][]float64, len(layers)),
		wd: make([]*mat.Dense, len(layers)),
		b:  make([][]float64, len(layers)),
	}
	for i, l := range layers {
		g.w[i] = make([]float64, len(l.W))
		g.wd[i] = mat.NewDense(l.Out, l.In, g.w[i])
		g.b[i] = make([]float64, len(l.B))
	}
	return g
}

func (g *grads) zero() {
	for i := range g.w {
		clear(g.w[i])
		clear(g.b[i])
	}
}

func (g *grads) scale(f float64) {
	for i := range g.w {
		floats.Scale(f, g.w[i])
		floats.Scale(f, g.b[i])
	}
}

// adam 优化器状态
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  *grads
}

func newAdam(layers []*layer, lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7, m: newGrads(layers), v: newGrads(layers)}
}

func (a *adam) step(layers []*layer, g *grads) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	update := func(p, grad, m, v []float64) {
		for i := range p {
			m[i] = a.beta1*m[i] + (1-a.beta1)*grad[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*grad[i]*grad[i]
			p[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
		}
	}
	for i, l := range layers {
		update(l.W, g.w[i], a.m.w[i], a.v.w[i])
		update(l.B, g.b[i], a.m.b[i], a.v.b[i])
	}
}

// accumulate gW += dz ⊗ x, gB += dz
func accumulate(l *layer, gw *mat.Dense, gb, dz, x []float64) {
	gw.RankOne(gw, 1, mat.NewVecDense(l.Out, dz), mat.NewVecDense(l.In, x))
	floats.Add(gb, dz)
}

// backprop dx = Wᵀ·dz
func backprop(l *layer, dz, dx []float64) {
	mat.NewVecDense(l.In, dx).MulVec(l.w.T(), mat.NewVecDense(l.Out, dz))
}

func reluMask(z, d []float64) {
	for i, v := range z {
		if v <= 0 {
			d[i] = 0
		}
	}
}

const lossEps = 1e-7

// bce 平均二元交叉熵
func bce(y, t []float64) float64 {
	var loss float64
	for i := range y {
		p := math.Min(math.Max(y[i], lossEps), 1-lossEps)
		loss -= t[i]*math.Log(p) + (1-t[i])*math.Log(1-p)
	}
	return loss / float64(len(y))
}

// workspace 反向传播的缓冲区
type workspace struct {
	dz3, da2, da1 []float64
}

func (m *Model) backward(x, target []float64, act *activations, g *grads, ws *workspace) {
	n := float64(len(target))
	for o := range ws.dz3 {
		ws.dz3[o] = (act.y[o] - target[o]) / n
	}
	accumulate(m.layers[2], g.wd[2], g.b[2], ws.dz3, act.a2)

	backprop(m.layers[2], ws.dz3, ws.da2)
	reluMask(act.z2, ws.da2)
	accumulate(m.layers[1], g.wd[1], g.b[1], ws.da2, act.a1)

	backprop(m.layers[1], ws.da2, ws.da1)
	reluMask(act.z1, ws.da1)
	accumulate(m.layers[0], g.wd[0], g.b[0], ws.da1, x)
}

// Train 在交互矩阵上训练新模型。相同的 Config.Seed 与数据得到相同的参数。
// 每个 mini-batch 之前检查 ctx，取消时返回 ctx.Err()。
func Train(ctx context.Context, cfg Config, data *Interactions) (*Model, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if cfg.Hidden1 <= 0 || cfg.Hidden2 <= 0 || cfg.Epochs <= 0 || cfg.BatchSize <= 0 || cfg.LearningRate <= 0 {
		return nil, errors.New("invalid training config")
	}

	start := time.Now()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	n := len(data.ItemIDs)
	itemIDs := make([]string, n)
	copy(itemIDs, data.ItemIDs)
	m := newModel(itemIDs, []*layer{
		newLayer(n, cfg.Hidden1, rng),
		newLayer(cfg.Hidden1, cfg.Hidden2, rng),
		newLayer(cfg.Hidden2, n, rng),
	})

	opt := newAdam(m.layers, cfg.LearningRate)
	g := newGrads(m.layers)
	act := m.newActivations()
	ws := &workspace{
		dz3: make([]float64, n),
		da2: make([]float64, cfg.Hidden2),
		da1: make([]float64, cfg.Hidden1),
	}
	input := make([]float64, n)

	users := len(data.Matrix)
	order := make([]int, users)
	for i := range order {
		order[i] = i
	}

	var loss float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(users, func(i, j int) { order[i], order[j] = order[j], order[i] })
		var epochLoss float64
		for lo := 0; lo < users; lo += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			hi := min(lo+cfg.BatchSize, users)
			g.zero()
			for _, u := range order[lo:hi] {
				target := data.Matrix[u]
				for i, v := range target {
					if cfg.Corruption > 0 && rng.Float64() < cfg.Corruption {
						input[i] = 0
					} else {
						input[i] = v
					}
				}
				m.forward(input, act)
				epochLoss += bce(act.y, target)
				m.backward(input, target, act, g, ws)
			}
			g.scale(1 / float64(hi-lo))
			opt.step(m.layers, g)
		}
		loss = epochLoss / float64(users)
	}

	m.report = TrainReport{
		Users:     users,
		Items:     n,
		Epochs:    cfg.Epochs,
		FinalLoss: loss,
		Duration:  time.Since(start),
		TrainedAt: time.Now(),
	}
	return m, nil
}
