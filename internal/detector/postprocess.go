package detector

import (
	"github.com/moneyocr/moneyocr/internal/utils"
)

// componentBox is a connected component of the binarized probability map.
type componentBox struct {
	minX, minY int
	maxX, maxY int
	score      float64
}

// quad returns the component's axis-aligned quadrilateral scaled by sx, sy,
// in clockwise order starting at the top-left corner.
func (c componentBox) quad(sx, sy float64) []utils.Point {
	x1 := float64(c.minX) * sx
	y1 := float64(c.minY) * sy
	x2 := float64(c.maxX+1) * sx
	y2 := float64(c.maxY+1) * sy
	return []utils.Point{{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2}}
}

// probabilityMapToBoxes binarizes the probability map at cfg.ProbThresh,
// groups foreground pixels into 4-connected components and keeps components
// whose mean probability reaches cfg.BoxThresh and whose sides are at least
// cfg.MinRegionPx pixels.
func probabilityMapToBoxes(probMap []float32, w, h int, cfg Config) []componentBox {
	if len(probMap) < w*h || w <= 0 || h <= 0 {
		return nil
	}

	visited := make([]bool, w*h)
	var boxes []componentBox

	// Scratch queue for the flood fill, reused across components.
	queue := make([]int, 0, 256)

	for start := range w * h {
		if visited[start] || probMap[start] < cfg.ProbThresh {
			continue
		}

		box := componentBox{minX: w, minY: h, maxX: -1, maxY: -1}
		var sum float64
		var count int

		queue = queue[:0]
		queue = append(queue, start)
		visited[start] = true

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			x, y := idx%w, idx/w
			sum += float64(probMap[idx])
			count++
			if x < box.minX {
				box.minX = x
			}
			if y < box.minY {
				box.minY = y
			}
			if x > box.maxX {
				box.maxX = x
			}
			if y > box.maxY {
				box.maxY = y
			}

			for _, n := range [4]int{idx - 1, idx + 1, idx - w, idx + w} {
				if n < 0 || n >= w*h || visited[n] {
					continue
				}
				// Row wrap guard for horizontal neighbors.
				if (n == idx-1 && x == 0) || (n == idx+1 && x == w-1) {
					continue
				}
				if probMap[n] >= cfg.ProbThresh {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}

		if count == 0 {
			continue
		}
		box.score = sum / float64(count)
		if box.score < float64(cfg.BoxThresh) {
			continue
		}
		if box.maxX-box.minX+1 < cfg.MinRegionPx || box.maxY-box.minY+1 < cfg.MinRegionPx {
			continue
		}
		boxes = append(boxes, box)
	}

	return boxes
}
