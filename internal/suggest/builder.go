package suggest

// Builder collects suggestions for the input from Start to end of line.
type Builder struct {
	input  string
	start  int
	result []Suggestion
}

func NewBuilder(input string, start int) *Builder {
	start = min(max(start, 0), len(input))
	return &Builder{input: input, start: start}
}

func (b *Builder) Input() string {
	return b.input
}

func (b *Builder) Start() int {
	return b.start
}

// Remaining is the partially typed text the suggestions complete.
func (b *Builder) Remaining() string {
	return b.input[b.start:]
}

// Suggest records text as a replacement for Remaining. Text equal to what
// is already typed is ignored.
func (b *Builder) Suggest(text string) *Builder {
	if text == b.Remaining() {
		return b
	}
	b.result = append(b.result, Suggestion{
		Range: Range{Start: b.start, End: len(b.input)},
		Text:  text,
	})
	return b
}

// CreateOffset returns an empty builder over the same input at a new start.
func (b *Builder) CreateOffset(start int) *Builder {
	return NewBuilder(b.input, start)
}

func (b *Builder) Build() Suggestions {
	return Create(b.input, b.result)
}

// Future completes with Build.
func (b *Builder) Future() *Future {
	return Completed(b.Build())
}
