// Package lineitem holds the rows of a multi-line sale or purchase form.
package lineitem

import (
	"errors"
	"fmt"
	"math"

	"github.com/fitcompany/console/internal/mask"
)

// DefaultMaxLines bounds a collection when no explicit maximum is given.
const DefaultMaxLines = 200

var (
	ErrIndexOutOfRange = errors.New("line index out of range")
	ErrTooManyLines    = errors.New("too many lines")
)

// Catalog resolves the unit price of a catalog item.
type Catalog interface {
	UnitPrice(referenceID int64) (price int64, ok bool)
}

// CatalogFunc adapts a plain function to Catalog.
type CatalogFunc func(referenceID int64) (int64, bool)

// UnitPrice implements Catalog.
func (f CatalogFunc) UnitPrice(referenceID int64) (int64, bool) {
	return f(referenceID)
}

// LineItem is one row: the selected product, the masked quantity and the
// unit price copied from the catalog at selection time.
type LineItem struct {
	ReferenceID *int64
	Quantity    mask.State
	UnitPrice   int64
}

// HasReference reports whether a product is selected.
func (l LineItem) HasReference() bool {
	return l.ReferenceID != nil
}

// Item is a stored line used to rebuild a collection for editing.
type Item struct {
	ReferenceID int64
	Quantity    int64
	UnitPrice   int64
}

// SelectResult describes what SelectReference did.
type SelectResult struct {
	// Duplicate is set when the reference was already used by another line;
	// the line was reverted to no selection.
	Duplicate bool
	// Found is false when the catalog had no price for the reference.
	Found     bool
	UnitPrice int64
}

// Collection is an ordered, bounded list of line items. It is not safe for
// concurrent use; callers serialize access per form.
type Collection struct {
	lines    []LineItem
	max      int
	quantity mask.Field
}

// New creates an empty collection. max <= 0 selects DefaultMaxLines and a
// zero quantity field selects the default "cantidad" field.
func New(max int, quantity mask.Field) *Collection {
	if max <= 0 {
		max = DefaultMaxLines
	}
	if quantity.MaxDigits <= 0 {
		quantity = mask.DefaultFields()[mask.FieldCantidad]
	}
	return &Collection{max: max, quantity: quantity}
}

// Max returns the line limit.
func (c *Collection) Max() int { return c.max }

// Len returns the number of lines.
func (c *Collection) Len() int { return len(c.lines) }

// QuantityField returns the field used to mask quantities.
func (c *Collection) QuantityField() mask.Field { return c.quantity }

// Lines returns a copy of the lines in row order.
func (c *Collection) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	for i, l := range c.lines {
		out[i] = l
		if l.ReferenceID != nil {
			id := *l.ReferenceID
			out[i].ReferenceID = &id
		}
	}
	return out
}

// Line returns the line at i.
func (c *Collection) Line(i int) (LineItem, error) {
	if err := c.check(i); err != nil {
		return LineItem{}, err
	}
	return c.Lines()[i], nil
}

// AddLine appends an empty line. It is a no-op returning false once the
// collection holds Max lines.
func (c *Collection) AddLine() bool {
	if len(c.lines) >= c.max {
		return false
	}
	c.lines = append(c.lines, LineItem{})
	return true
}

// RemoveLine deletes the line at i.
func (c *Collection) RemoveLine(i int) error {
	if err := c.check(i); err != nil {
		return err
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

// SelectReference picks referenceID for line i. If another line already holds
// it, line i is reverted to no selection with a zero price and the result is
// flagged Duplicate; this is not an error. A non-positive id clears the line.
func (c *Collection) SelectReference(i int, referenceID int64, catalog Catalog) (SelectResult, error) {
	if err := c.check(i); err != nil {
		return SelectResult{}, err
	}
	if referenceID <= 0 {
		c.clear(i)
		return SelectResult{}, nil
	}
	if c.IsReferenceTaken(referenceID, i) {
		c.clear(i)
		return SelectResult{Duplicate: true}, nil
	}

	var price int64
	found := false
	if catalog != nil {
		price, found = catalog.UnitPrice(referenceID)
	}
	if !found || price < 0 {
		price = 0
	}

	id := referenceID
	c.lines[i].ReferenceID = &id
	c.lines[i].UnitPrice = price
	return SelectResult{Found: found, UnitPrice: price}, nil
}

// ClearReference empties the selection of line i.
func (c *Collection) ClearReference(i int) error {
	if err := c.check(i); err != nil {
		return err
	}
	c.clear(i)
	return nil
}

func (c *Collection) clear(i int) {
	c.lines[i].ReferenceID = nil
	c.lines[i].UnitPrice = 0
}

// SetQuantity masks raw text into the quantity of line i and returns the new state.
func (c *Collection) SetQuantity(i int, raw string) (mask.State, error) {
	if err := c.check(i); err != nil {
		return mask.State{}, err
	}
	s := c.quantity.OnChange(raw)
	c.lines[i].Quantity = s
	return s, nil
}

// IsReferenceTaken reports whether any line other than excludingIndex holds referenceID.
func (c *Collection) IsReferenceTaken(referenceID int64, excludingIndex int) bool {
	for idx, l := range c.lines {
		if idx == excludingIndex || l.ReferenceID == nil {
			continue
		}
		if *l.ReferenceID == referenceID {
			return true
		}
	}
	return false
}

// TakenReferences returns the references held by lines other than excludingIndex,
// which a picker renders as disabled options.
func (c *Collection) TakenReferences(excludingIndex int) []int64 {
	var out []int64
	for idx, l := range c.lines {
		if idx == excludingIndex || l.ReferenceID == nil {
			continue
		}
		out = append(out, *l.ReferenceID)
	}
	return out
}

// Subtotal is quantity times unit price for line i; zero when the quantity is
// absent or i is out of range.
func (c *Collection) Subtotal(i int) int64 {
	if i < 0 || i >= len(c.lines) {
		return 0
	}
	l := c.lines[i]
	qty, ok := l.Quantity.Value()
	if !ok {
		return 0
	}
	return mulSat(qty, l.UnitPrice)
}

// Total sums every subtotal.
func (c *Collection) Total() int64 {
	var total int64
	for i := range c.lines {
		total = addSat(total, c.Subtotal(i))
	}
	return total
}

// Reset drops every line and leaves a single empty one, the state of a fresh form.
func (c *Collection) Reset() {
	c.lines = c.lines[:0]
	c.AddLine()
}

// Load replaces the lines with stored items, masking each quantity.
func (c *Collection) Load(items []Item) error {
	if len(items) > c.max {
		return fmt.Errorf("load %d items: %w", len(items), ErrTooManyLines)
	}
	lines := make([]LineItem, 0, len(items))
	for _, it := range items {
		var l LineItem
		if it.ReferenceID > 0 {
			id := it.ReferenceID
			l.ReferenceID = &id
		}
		l.Quantity = mask.FromInt(it.Quantity, c.quantity.MaxDigits)
		if it.UnitPrice > 0 {
			l.UnitPrice = it.UnitPrice
		}
		lines = append(lines, l)
	}
	c.lines = lines
	return nil
}

func (c *Collection) check(i int) error {
	if i < 0 || i >= len(c.lines) {
		return fmt.Errorf("line %d of %d: %w", i, len(c.lines), ErrIndexOutOfRange)
	}
	return nil
}

// mulSat and addSat saturate at MaxInt64; amounts are non-negative.
func mulSat(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func addSat(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
