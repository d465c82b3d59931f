package boxes

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/panicle/internal/geometry"
)

// significantDigits is the precision of every value in a label record.
const significantDigits = 6

// Label is one line of a label file: a class index followed by four
// (center form) or eight (corner form) coordinates normalized by the image
// size. Detector output may carry a trailing confidence.
type Label struct {
	Class         int
	Values        []float64
	Confidence    float64
	HasConfidence bool
}

// String formats the label the way it is written to disk.
func (l Label) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(l.Class))
	for _, v := range l.Values {
		sb.WriteByte(' ')
		sb.WriteString(formatValue(v))
	}
	if l.HasConfidence {
		sb.WriteByte(' ')
		sb.WriteString(formatValue(l.Confidence))
	}
	return sb.String()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', significantDigits, 64)
}

// Encoder converts boxes into labels normalized by one image's size.
type Encoder struct {
	ClassIndex  int
	ImageWidth  int
	ImageHeight int
}

func (e Encoder) validate() error {
	if e.ImageWidth <= 0 || e.ImageHeight <= 0 {
		return fmt.Errorf("%w: image size %dx%d", geometry.ErrInvalidBox, e.ImageWidth, e.ImageHeight)
	}
	return nil
}

// EncodeHorizontal writes one center-form label per junction point with the
// fixed box size w x h.
func (e Encoder) EncodeHorizontal(points []geometry.Point, w, h float64) ([]Label, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	if !(w > 0) || !(h > 0) {
		return nil, fmt.Errorf("%w: box size %gx%g", geometry.ErrInvalidBox, w, h)
	}
	W, H := float64(e.ImageWidth), float64(e.ImageHeight)
	out := make([]Label, len(points))
	for i, p := range points {
		out[i] = Label{Class: e.ClassIndex, Values: []float64{p.X / W, p.Y / H, w / W, h / H}}
	}
	return out, nil
}

// EncodeAxisAligned writes one center-form label per box.
func (e Encoder) EncodeAxisAligned(boxes []geometry.AxisAlignedBox) ([]Label, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	W, H := float64(e.ImageWidth), float64(e.ImageHeight)
	out := make([]Label, len(boxes))
	for i, b := range boxes {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("box %d: %w", i, err)
		}
		out[i] = Label{Class: e.ClassIndex, Values: []float64{b.CX / W, b.CY / H, b.W / W, b.H / H}}
	}
	return out, nil
}

// EncodeOriented writes one corner-form label per rotated box, with the
// corners ordered by OrderCorners.
func (e Encoder) EncodeOriented(boxes []geometry.OrientedBox) ([]Label, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	W, H := float64(e.ImageWidth), float64(e.ImageHeight)
	out := make([]Label, len(boxes))
	for i, b := range boxes {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("box %d: %w", i, err)
		}
		corners := OrderCorners(geometry.RectCorners(b))
		values := make([]float64, 0, 8)
		for _, c := range corners {
			values = append(values, c.X/W, c.Y/H)
		}
		out[i] = Label{Class: e.ClassIndex, Values: values}
	}
	return out, nil
}

// OrderCorners applies the point-based ordering rule to corners in
// RectCorners order (P0 leftmost, P1 topmost). With l1 = P1.x-P0.x and
// l2 = P0.y-P1.y the result starts at P1 when l1 <= l2 and at P0 otherwise,
// clockwise in both cases.
func OrderCorners(c [4]geometry.Point) [4]geometry.Point {
	l1 := c[1].X - c[0].X
	l2 := c[0].Y - c[1].Y
	if l1 <= l2 {
		return [4]geometry.Point{c[1], c[2], c[3], c[0]}
	}
	return c
}

// WriteLabels writes one label per line.
func WriteLabels(w io.Writer, labels []Label) error {
	bw := bufio.NewWriter(w)
	for _, l := range labels {
		if _, err := bw.WriteString(l.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseLabels reads a label file. Blank lines are skipped; any other line
// must hold a class index and 4 or 8 values, optionally followed by a
// confidence.
func ParseLabels(r io.Reader) ([]Label, error) {
	var out []Label
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		l, err := parseLabel(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, l)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseLabel(fields []string) (Label, error) {
	class, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, fmt.Errorf("%w: class index %q", geometry.ErrInvalidBox, fields[0])
	}
	values := make([]float64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Label{}, fmt.Errorf("%w: value %q", geometry.ErrInvalidBox, f)
		}
		values = append(values, v)
	}
	l := Label{Class: class}
	switch len(values) {
	case 4, 8:
	case 5, 9:
		l.Confidence = values[len(values)-1]
		l.HasConfidence = true
		values = values[:len(values)-1]
	default:
		return Label{}, fmt.Errorf("%w: expected 4 or 8 coordinates, got %d", geometry.ErrInvalidBox, len(values))
	}
	l.Values = values
	return l, nil
}

// AxisAligned rebuilds the pixel-space box of a label. Corner-form labels are
// reduced to their bounding box.
func (l Label) AxisAligned(imageWidth, imageHeight int) (geometry.AxisAlignedBox, error) {
	W, H := float64(imageWidth), float64(imageHeight)
	switch len(l.Values) {
	case 4:
		return geometry.NewAxisAlignedBox(l.Values[0]*W, l.Values[1]*H, l.Values[2]*W, l.Values[3]*H)
	case 8:
		poly, err := l.Polygon(imageWidth, imageHeight)
		if err != nil {
			return geometry.AxisAlignedBox{}, err
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, p := range poly {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
		return geometry.BoxFromCorners(minX, minY, maxX, maxY)
	}
	return geometry.AxisAlignedBox{}, fmt.Errorf("%w: %d values", geometry.ErrInvalidBox, len(l.Values))
}

// Polygon rebuilds the pixel-space corners of a label. Center-form labels
// yield their four axis-aligned corners.
func (l Label) Polygon(imageWidth, imageHeight int) ([]geometry.Point, error) {
	W, H := float64(imageWidth), float64(imageHeight)
	switch len(l.Values) {
	case 8:
		poly := make([]geometry.Point, 4)
		for i := range poly {
			poly[i] = geometry.Pt(l.Values[2*i]*W, l.Values[2*i+1]*H)
		}
		if geometry.PolygonArea(poly) == 0 {
			return nil, fmt.Errorf("%w: zero-area polygon", geometry.ErrInvalidBox)
		}
		return poly, nil
	case 4:
		b, err := l.AxisAligned(imageWidth, imageHeight)
		if err != nil {
			return nil, err
		}
		return b.Polygon(), nil
	}
	return nil, fmt.Errorf("%w: %d values", geometry.ErrInvalidBox, len(l.Values))
}
