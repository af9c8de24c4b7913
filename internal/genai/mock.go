package genai

// Mock is the no-op generation backend. It always reports "no completion",
// which downstream stages turn into their documented sentinel values. Useful
// for running the pipeline without any model configured.
type Mock struct{}

// NewMock creates the mock backend.
func NewMock() *Mock { return &Mock{} }

// Name returns the identifier of this backend.
func (m *Mock) Name() string { return "mock" }

// Complete returns no completion.
func (m *Mock) Complete(prompt string) (string, error) { return "", nil }
