// Package geom computes page and page-item geometry from IDML's
// GeometricBounds and ItemTransform attributes using arbitrary-precision
// decimal arithmetic, so coordinates round-trip without binary
// floating-point drift.
package geom

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dimelords/idmlsplice/internal/ioerr"
)

// Bounds is a page or item's coordinate box, matching the field names
// InDesign scripting exposes: (x1,y1) top-left, (x2,y2) bottom-right.
type Bounds struct {
	X1, Y1, X2, Y2 decimal.Decimal
}

// Transform is the 2D affine matrix IDML stores as six space-separated
// decimals in ItemTransform: "a b c d tx ty".
type Transform struct {
	A, B, C, D, TX, TY decimal.Decimal
}

// IdentityTransform returns the transform with no translation or rotation.
func IdentityTransform() Transform {
	one := decimal.NewFromInt(1)
	zero := decimal.Zero
	return Transform{A: one, B: zero, C: zero, D: one, TX: zero, TY: zero}
}

// ParseBounds parses a GeometricBounds attribute value, "y1 x1 y2 x2" (IDML
// stores bounds in top/left/bottom/right order with Y before X).
func ParseBounds(s string) (Bounds, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return Bounds{}, ioerr.Errorf("geom", "parse bounds", s, ioerr.KindMalformedPackage, "expected 4 fields, got %d", len(fields))
	}
	y1, err := decimal.NewFromString(fields[0])
	if err != nil {
		return Bounds{}, ioerr.New("geom", "parse bounds", s, ioerr.KindMalformedPackage, err)
	}
	x1, err := decimal.NewFromString(fields[1])
	if err != nil {
		return Bounds{}, ioerr.New("geom", "parse bounds", s, ioerr.KindMalformedPackage, err)
	}
	y2, err := decimal.NewFromString(fields[2])
	if err != nil {
		return Bounds{}, ioerr.New("geom", "parse bounds", s, ioerr.KindMalformedPackage, err)
	}
	x2, err := decimal.NewFromString(fields[3])
	if err != nil {
		return Bounds{}, ioerr.New("geom", "parse bounds", s, ioerr.KindMalformedPackage, err)
	}
	return Bounds{X1: x1, Y1: y1, X2: x2, Y2: y2}, nil
}

// String renders Bounds back to the IDML "y1 x1 y2 x2" attribute form.
func (b Bounds) String() string {
	return b.Y1.String() + " " + b.X1.String() + " " + b.Y2.String() + " " + b.X2.String()
}

// ParseTransform parses an ItemTransform attribute value, "a b c d tx ty".
func ParseTransform(s string) (Transform, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return Transform{}, ioerr.Errorf("geom", "parse transform", s, ioerr.KindMalformedPackage, "expected 6 fields, got %d", len(fields))
	}
	vals := make([]decimal.Decimal, 6)
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return Transform{}, ioerr.New("geom", "parse transform", s, ioerr.KindMalformedPackage, err)
		}
		vals[i] = d
	}
	return Transform{A: vals[0], B: vals[1], C: vals[2], D: vals[3], TX: vals[4], TY: vals[5]}, nil
}

// String renders Transform back to the IDML "a b c d tx ty" attribute form.
func (t Transform) String() string {
	return t.A.String() + " " + t.B.String() + " " + t.C.String() + " " + t.D.String() + " " + t.TX.String() + " " + t.TY.String()
}

// Coordinates combines an item's own GeometricBounds with its ItemTransform
// translation to produce the absolute x1,y1,x2,y2 box used for page-item
// membership tests and reported coordinates.
func Coordinates(bounds Bounds, transform Transform) Bounds {
	return Bounds{
		X1: bounds.X1.Add(transform.TX),
		Y1: bounds.Y1.Add(transform.TY),
		X2: bounds.X2.Add(transform.TX),
		Y2: bounds.Y2.Add(transform.TY),
	}
}

// IsRecto reports whether a box with the given x1 lies on the recto
// (right-hand) side of the spread, per §4.3's "x1 >= 0" rule.
func IsRecto(x1 decimal.Decimal) bool {
	return x1.GreaterThanOrEqual(decimal.Zero)
}

// Contains reports whether inner's box falls within outer's box, used to
// assign page items to the page that geometrically encloses them.
func Contains(outer, inner Bounds) bool {
	return inner.X1.GreaterThanOrEqual(outer.X1) &&
		inner.Y1.GreaterThanOrEqual(outer.Y1) &&
		inner.X2.LessThanOrEqual(outer.X2) &&
		inner.Y2.LessThanOrEqual(outer.Y2)
}

// OffsetX returns a copy of b translated along X by dx, used when relocating
// a donor page to keep recto/verso x1 sign correct.
func (b Bounds) OffsetX(dx decimal.Decimal) Bounds {
	return Bounds{X1: b.X1.Add(dx), Y1: b.Y1, X2: b.X2.Add(dx), Y2: b.Y2}
}

// OffsetX returns a copy of t with its translation component shifted by dx.
func (t Transform) OffsetX(dx decimal.Decimal) Transform {
	return Transform{A: t.A, B: t.B, C: t.C, D: t.D, TX: t.TX.Add(dx), TY: t.TY}
}
