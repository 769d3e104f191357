package debug

import (
	"slices"
	"sync"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
	"github.com/dshills/keystorm-debug/internal/integration/debug/models"
)

// Watches is an ordered list of watch expressions and the variable tree of
// their latest values. Each expression is one root row whose position is
// stable across re-evaluation.
type Watches struct {
	mu          sync.RWMutex
	expressions []string
	holder      *models.VariablesHolder
}

// NewWatches returns an empty watch list.
func NewWatches() *Watches {
	return &Watches{holder: models.NewVariablesHolder()}
}

// Holder returns the tree of watch values.
func (w *Watches) Holder() *models.VariablesHolder {
	return w.holder
}

// Add appends expression. It returns false for an empty or known expression.
func (w *Watches) Add(expression string) bool {
	if expression == "" {
		return false
	}
	w.mu.Lock()
	if slices.Contains(w.expressions, expression) {
		w.mu.Unlock()
		return false
	}
	w.expressions = append(w.expressions, expression)
	w.mu.Unlock()

	w.holder.UpsertRootChild(dap.Variable{Name: expression})
	return true
}

// Remove drops expression and its row.
func (w *Watches) Remove(expression string) bool {
	w.mu.Lock()
	i := slices.Index(w.expressions, expression)
	if i < 0 {
		w.mu.Unlock()
		return false
	}
	w.expressions = slices.Delete(w.expressions, i, i+1)
	w.mu.Unlock()

	w.holder.RemoveRootChild(expression)
	return true
}

// Expressions returns a copy of the list.
func (w *Watches) Expressions() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.expressions)
}

// Has reports whether expression is watched.
func (w *Watches) Has(expression string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Contains(w.expressions, expression)
}

// SetResult stores the value of expression. A nil result, from a failed
// evaluation, leaves the row with an empty value.
func (w *Watches) SetResult(expression string, result *dap.EvaluateInfo) {
	if !w.Has(expression) {
		return
	}
	if result == nil {
		w.holder.UpsertRootChild(dap.Variable{Name: expression})
		return
	}
	w.holder.UpsertRootChild(result.AsVariable(expression))
}

// Reset empties every value but keeps the expressions.
func (w *Watches) Reset() {
	for _, expr := range w.Expressions() {
		w.holder.UpsertRootChild(dap.Variable{Name: expr})
	}
}
