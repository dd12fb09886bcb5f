package track

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxDisappeared 身份连续未匹配超过该帧数后被注销
const DefaultMaxDisappeared = 30

// Point 二维坐标，像素单位
type Point struct {
	X, Y float64
}

// Dist 欧氏距离
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Identity 被跟踪的实体
type Identity struct {
	ID              int
	Position        Point
	FramesUnmatched int
}

// Tracker 基于质心的多目标跟踪器
//
// 每帧调用一次 Update，使用贪心最近邻匹配维持身份连续性。
// 非并发安全，由唯一的 pipeline 实例顺序调用。
type Tracker struct {
	nextID         int
	order          []int // 注册顺序，决定距离矩阵的行顺序
	objects        map[int]*Identity
	maxDisappeared int
	maxDistance    float64
}

// NewTracker 创建跟踪器
// maxDistance 为单帧内允许匹配的最大位移
func NewTracker(maxDisappeared int, maxDistance float64) *Tracker {
	if maxDisappeared < 0 {
		maxDisappeared = DefaultMaxDisappeared
	}
	return &Tracker{
		objects:        make(map[int]*Identity),
		maxDisappeared: maxDisappeared,
		maxDistance:    maxDistance,
	}
}

// Update 输入本帧全部质心（顺序任意，可为空），返回当前存活身份的位置
func (t *Tracker) Update(points []Point) map[int]Point {
	if len(points) == 0 {
		for _, id := range t.ids() {
			t.miss(id)
		}
		return t.positions()
	}

	if len(t.objects) == 0 {
		for _, p := range points {
			t.register(p)
		}
		return t.positions()
	}

	ids := t.ids()
	d := t.distances(ids, points)

	// 按每行最小距离升序处理，距离更近的配对优先占用
	rows := make([]int, len(ids))
	mins := make([]float64, len(ids))
	cols := make([]int, len(ids))
	for i := range ids {
		rows[i] = i
		row := d.RawRowView(i)
		cols[i] = floats.MinIdx(row)
		mins[i] = row[cols[i]]
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return mins[rows[a]] < mins[rows[b]]
	})

	usedRows := make([]bool, len(ids))
	usedCols := make([]bool, len(points))
	for _, row := range rows {
		col := cols[row]
		if usedRows[row] || usedCols[col] {
			continue
		}
		if d.At(row, col) > t.maxDistance {
			continue
		}
		obj := t.objects[ids[row]]
		obj.Position = points[col]
		obj.FramesUnmatched = 0
		usedRows[row] = true
		usedCols[col] = true
	}

	for col, used := range usedCols {
		if !used {
			t.register(points[col])
		}
	}
	for row, used := range usedRows {
		if !used {
			t.miss(ids[row])
		}
	}
	return t.positions()
}

// Nearest 返回距离 p 最近的存活身份，不受 maxDistance 限制
func (t *Tracker) Nearest(p Point) (int, bool) {
	return Nearest(p, t.positions())
}

// Nearest 在给定的身份位置集合中查找最近者，距离相同时取较小 id
func Nearest(p Point, objects map[int]Point) (int, bool) {
	best, bestDist := -1, math.Inf(1)
	for id, pos := range objects {
		dist := p.Dist(pos)
		if dist < bestDist || (dist == bestDist && id < best) {
			best, bestDist = id, dist
		}
	}
	return best, best >= 0
}

// Len 存活身份数量
func (t *Tracker) Len() int {
	return len(t.objects)
}

// Identities 按注册顺序返回身份快照
func (t *Tracker) Identities() []Identity {
	out := make([]Identity, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.objects[id])
	}
	return out
}

func (t *Tracker) register(p Point) {
	id := t.nextID
	t.nextID++
	t.objects[id] = &Identity{ID: id, Position: p}
	t.order = append(t.order, id)
}

func (t *Tracker) deregister(id int) {
	delete(t.objects, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

func (t *Tracker) miss(id int) {
	obj := t.objects[id]
	obj.FramesUnmatched++
	if obj.FramesUnmatched > t.maxDisappeared {
		t.deregister(id)
	}
}

// ids 复制当前注册顺序，遍历期间允许注销
func (t *Tracker) ids() []int {
	return append([]int(nil), t.order...)
}

func (t *Tracker) distances(ids []int, points []Point) *mat.Dense {
	d := mat.NewDense(len(ids), len(points), nil)
	for i, id := range ids {
		pos := t.objects[id].Position
		for j, p := range points {
			d.Set(i, j, pos.Dist(p))
		}
	}
	return d
}

func (t *Tracker) positions() map[int]Point {
	out := make(map[int]Point, len(t.objects))
	for id, obj := range t.objects {
		out[id] = obj.Position
	}
	return out
}
