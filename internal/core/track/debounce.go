package track

// Box 像素坐标边界框 (x1,y1)-(x2,y2)
type Box struct {
	X1, Y1, X2, Y2 int
}

// Center 边界框中点
func (b Box) Center() Point {
	return Point{X: float64(b.X1+b.X2) / 2, Y: float64(b.Y1+b.Y2) / 2}
}

// DebounceEntry 某个空间键的连续计数状态
type DebounceEntry struct {
	Count   int
	LastBox Box
	seen    bool
}

// Debouncer 确认过滤器，同一个键连续出现 threshold 帧后才放行一次
//
// 每帧对每个观测调用 Admit，全部观测处理完后调用一次 Sweep。
// 本帧未再次出现的键立即清零，不保留部分计数。
type Debouncer[K comparable] struct {
	threshold int
	entries   map[K]*DebounceEntry
}

// NewDebouncer threshold 小于 1 时按 1 处理，即每次观测都放行
func NewDebouncer[K comparable](threshold int) *Debouncer[K] {
	return &Debouncer[K]{
		threshold: max(threshold, 1),
		entries:   make(map[K]*DebounceEntry),
	}
}

// Admit 返回 true 表示本次观测达到阈值，应作为确认检测输出
func (d *Debouncer[K]) Admit(key K, box Box) bool {
	e, ok := d.entries[key]
	if !ok {
		e = &DebounceEntry{}
		d.entries[key] = e
	}
	e.seen = true
	if e.Count < d.threshold-1 {
		e.Count++
		return false
	}
	e.Count = 0
	e.LastBox = box
	return true
}

// Sweep 帧结束时清理计数为 0 或本帧未出现的键
func (d *Debouncer[K]) Sweep() {
	for key, e := range d.entries {
		if e.Count == 0 || !e.seen {
			delete(d.entries, key)
			continue
		}
		e.seen = false
	}
}

// Len 当前待确认的键数量
func (d *Debouncer[K]) Len() int {
	return len(d.entries)
}

// Entry 返回键的当前状态，仅用于诊断
func (d *Debouncer[K]) Entry(key K) (DebounceEntry, bool) {
	e, ok := d.entries[key]
	if !ok {
		return DebounceEntry{}, false
	}
	return *e, true
}
