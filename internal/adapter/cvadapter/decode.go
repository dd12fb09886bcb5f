// Package cvadapter 使用 OpenCV DNN 在本机运行 Darknet YOLO 模型
//
// 检测器实现需要 gocv 构建标签，解码逻辑不依赖 OpenCV。
package cvadapter

import (
	"image"
	"math"
)

// decodeRow 解析一行 YOLO 输出 [cx, cy, w, h, objectness, class scores...]
// 坐标为相对输入的归一化值，按原图尺寸还原为像素框
func decodeRow(row []float32, width, height int, threshold float32) (classID int, score float32, rect image.Rectangle, ok bool) {
	if len(row) <= 5 {
		return 0, 0, image.Rectangle{}, false
	}
	classID = -1
	for i, s := range row[5:] {
		if s > score {
			score, classID = s, i
		}
	}
	if classID < 0 || score < threshold {
		return 0, 0, image.Rectangle{}, false
	}

	cx, cy := row[0]*float32(width), row[1]*float32(height)
	w, h := row[2]*float32(width), row[3]*float32(height)
	rect = image.Rect(round(cx-w/2), round(cy-h/2), round(cx+w/2), round(cy+h/2)).
		Intersect(image.Rect(0, 0, width, height))
	if rect.Empty() {
		return 0, 0, image.Rectangle{}, false
	}
	return classID, score, rect, true
}

// candidates 各输出层解码后的候选框，合并后统一做 NMS
type candidates struct {
	rects   []image.Rectangle
	scores  []float32
	classes []int
}

// addRows 解码一个输出层，data 为按行连续存放的 rows*cols 个值
func (c *candidates) addRows(data []float32, cols, width, height int, threshold float32) {
	if cols <= 0 {
		return
	}
	for i := 0; i+cols <= len(data); i += cols {
		classID, score, rect, ok := decodeRow(data[i:i+cols], width, height, threshold)
		if !ok {
			continue
		}
		c.rects = append(c.rects, rect)
		c.scores = append(c.scores, score)
		c.classes = append(c.classes, classID)
	}
}

// outputLayerNames 由未连接输出层的序号（从 1 开始）取层名
func outputLayerNames(layers []string, ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id >= 1 && id <= len(layers) {
			out = append(out, layers[id-1])
		}
	}
	return out
}

func round(v float32) int {
	return int(math.Round(float64(v)))
}
