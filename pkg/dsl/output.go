package dsl

import (
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// OutputBuilder configures the output step just added. Builder methods continue the macro.
type OutputBuilder struct {
	*Builder
	index int
}

func (o *OutputBuilder) update(fn func(*domain.Output)) *OutputBuilder {
	st := o.steps[o.index].(domain.Output)
	fn(&st)
	o.steps[o.index] = st
	return o
}

// Within sets the timeout.
func (o *OutputBuilder) Within(d time.Duration) *OutputBuilder {
	return o.update(func(st *domain.Output) { st.Timeout = d })
}

// FullLine requires a whole trimmed line to equal the expected text.
func (o *OutputBuilder) FullLine() *OutputBuilder {
	return o.update(func(st *domain.Output) { st.Mode = domain.MatchFullLine })
}

// OnSuccess sets what happens when the expected text arrives.
func (o *OutputBuilder) OnSuccess(out domain.Outcome) *OutputBuilder {
	return o.update(func(st *domain.Output) { st.OnSuccess = out })
}

// OnFail sets what happens on timeout.
func (o *OutputBuilder) OnFail(out domain.Outcome) *OutputBuilder {
	return o.update(func(st *domain.Output) { st.OnFail = out })
}
