package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const geometricConfidence = 0.6

// GeometricDetector reconstructs row/column table structure from
// positioned word tokens by coordinate clustering. It is stateless and
// safe for concurrent use.
type GeometricDetector struct {
	xTolerance float64
	minRows    int
	minCols    int
	logger     *zap.Logger
}

// NewGeometricDetector creates a detector with the given tolerances
func NewGeometricDetector(cfg Config, logger *zap.Logger) *GeometricDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalized()
	return &GeometricDetector{
		xTolerance: cfg.XTolerance,
		minRows:    cfg.MinTableRows,
		minCols:    cfg.MinTableCols,
		logger:     logger,
	}
}

// gridCell is a run of adjacent words on one line merged into a single
// cell candidate
type gridCell struct {
	text string
	x0   float64
	y0   float64
	x1   float64
	y1   float64
}

// DetectTables reconstructs at most one table from the page's words.
// Returns nil when there is no input or the acceptance filter rejects
// the candidate grid.
func (d *GeometricDetector) DetectTables(words []Word, pageNumber int) []Table {
	if len(words) == 0 {
		return nil
	}

	lines := d.bucketByLine(words)
	cells := make([][]gridCell, 0, len(lines))
	for _, line := range lines {
		merged := d.mergeLineCells(line)
		if len(merged) > 0 {
			cells = append(cells, merged)
		}
	}
	if len(cells) == 0 {
		return nil
	}

	columns := d.clusterColumns(cells)
	if len(columns) == 0 {
		return nil
	}

	rows := d.assignRows(cells, columns)
	if !d.accept(rows, len(columns)) {
		d.logger.Debug("grid candidate rejected",
			zap.Int("page_number", pageNumber),
			zap.Int("rows", len(rows)),
			zap.Int("columns", len(columns)))
		return nil
	}

	table := Table{
		TableID: fmt.Sprintf("geometric_p%d", pageNumber),
		Name:    fmt.Sprintf("Page %d grid", pageNumber),
		Region: TableRegion{
			PageNumber:      pageNumber,
			BoundingBox:     cellUnion(cells),
			DetectionMethod: MethodGeometricGrid,
		},
		Header:  HeaderInfo{Cells: rows[0], RowIndex: 0},
		Columns: rows[0],
		Rows:    rows,
		Metadata: TableMetadata{
			DetectionMethod: MethodGeometricGrid,
			CellCount:       len(rows) * len(columns),
			Confidence:      geometricConfidence,
		},
	}

	return []Table{table}
}

// bucketByLine groups words by their line identifier and sorts each
// line left to right, returning lines in ascending LineID order
func (d *GeometricDetector) bucketByLine(words []Word) [][]Word {
	byLine := make(map[int][]Word)
	for _, w := range words {
		byLine[w.LineID] = append(byLine[w.LineID], w)
	}

	ids := make([]int, 0, len(byLine))
	for id := range byLine {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	lines := make([][]Word, 0, len(ids))
	for _, id := range ids {
		line := byLine[id]
		sort.Slice(line, func(i, j int) bool {
			return line[i].X0 < line[j].X0
		})
		lines = append(lines, line)
	}
	return lines
}

// mergeLineCells merges adjacent words into cells when the horizontal
// gap between them is within the x tolerance
func (d *GeometricDetector) mergeLineCells(line []Word) []gridCell {
	var cells []gridCell
	var cur *gridCell

	for _, w := range line {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		if cur != nil && w.X0-cur.x1 <= d.xTolerance {
			cur.text += " " + w.Text
			cur.x1 = math.Max(cur.x1, w.X1)
			cur.y0 = math.Min(cur.y0, w.Y0)
			cur.y1 = math.Max(cur.y1, w.Y1)
			continue
		}
		if cur != nil {
			cells = append(cells, *cur)
		}
		cur = &gridCell{text: w.Text, x0: w.X0, y0: w.Y0, x1: w.X1, y1: w.Y1}
	}
	if cur != nil {
		cells = append(cells, *cur)
	}
	return cells
}

// clusterColumns clusters the left edge of every cell into column
// positions. Clustering is single-link against the cluster's last
// member with a tolerance of twice the x tolerance; each cluster is
// represented by the median of its members.
func (d *GeometricDetector) clusterColumns(lines [][]gridCell) []float64 {
	var xs []float64
	for _, line := range lines {
		for _, c := range line {
			xs = append(xs, c.x0)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	sort.Float64s(xs)

	tolerance := 2 * d.xTolerance
	var columns []float64
	cluster := []float64{xs[0]}

	for _, v := range xs[1:] {
		if v-cluster[len(cluster)-1] <= tolerance {
			cluster = append(cluster, v)
			continue
		}
		columns = append(columns, median(cluster))
		cluster = []float64{v}
	}
	columns = append(columns, median(cluster))

	return columns
}

// assignRows maps every cell to its nearest column position and builds
// one row vector per line, joining collisions with a space and
// dropping rows that end up entirely empty
func (d *GeometricDetector) assignRows(lines [][]gridCell, columns []float64) [][]string {
	rows := make([][]string, 0, len(lines))

	for _, line := range lines {
		row := make([]string, len(columns))
		for _, c := range line {
			idx := nearestColumn(columns, c.x0)
			if row[idx] == "" {
				row[idx] = c.text
			} else {
				row[idx] += " " + c.text
			}
		}
		if rowEmpty(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// accept applies the acceptance filter: enough rows, enough columns,
// and enough rows that are dense across the full column span. The
// density requirement rejects sparse incidental alignments.
func (d *GeometricDetector) accept(rows [][]string, columnCount int) bool {
	if len(rows) < d.minRows || columnCount < d.minCols {
		return false
	}

	required := d.minRows - 1
	if required < 2 {
		required = 2
	}

	dense := 0
	for _, row := range rows {
		filled := 0
		for _, cell := range row {
			if cell != "" {
				filled++
			}
		}
		if filled >= d.minCols {
			dense++
		}
	}
	return dense >= required
}

func nearestColumn(columns []float64, x float64) int {
	best := 0
	bestDist := math.Abs(x - columns[0])
	for i := 1; i < len(columns); i++ {
		if dist := math.Abs(x - columns[i]); dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func cellUnion(lines [][]gridCell) Rectangle {
	first := true
	var x0, y0, x1, y1 float64
	for _, line := range lines {
		for _, c := range line {
			if first {
				x0, y0, x1, y1 = c.x0, c.y0, c.x1, c.y1
				first = false
				continue
			}
			x0 = math.Min(x0, c.x0)
			y0 = math.Min(y0, c.y0)
			x1 = math.Max(x1, c.x1)
			y1 = math.Max(y1, c.y1)
		}
	}
	return Rectangle{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}
