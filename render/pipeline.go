package render

// Pass draws one layer of a frame.
type Pass interface {
	Draw(f *Frame)
}

// Pipeline runs its passes in the order they were added. Later passes paint
// over earlier ones.
type Pipeline struct {
	passes []Pass
}

func NewPipeline(passes ...Pass) *Pipeline {
	p := &Pipeline{}
	for _, pass := range passes {
		p.Add(pass)
	}
	return p
}

// Add appends pass. A nil pass is ignored.
func (p *Pipeline) Add(pass Pass) {
	if pass == nil {
		return
	}
	p.passes = append(p.passes, pass)
}

func (p *Pipeline) Draw(f *Frame) {
	for _, pass := range p.passes {
		pass.Draw(f)
	}
}

// Len reports how many passes will run.
func (p *Pipeline) Len() int {
	return len(p.passes)
}
