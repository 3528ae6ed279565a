// Package filetest verifies that content written to arbitrary io.Writers
// matches golden files under testdata/.
//
// Register a target with Add, hand its Writer to the code under test, and
// call Assert once all writes happened. Passing the "-update" flag to
// "go test" regenerates the golden files instead of comparing.
package filetest

import (
	"bytes"
	"io"
	"os"
	"testing"
	"unicode"

	"github.com/sebdah/goldie/v2"
)

// New wraps goldie.New into a *Tester that can track multiple write targets
// for one test.
func New(t *testing.T, opts ...goldie.Option) *Tester { //nolint:thelper
	return &Tester{G: goldie.New(t, opts...), T: t}
}

// Tester verifies that the bytes written to its registered targets match
// the corresponding golden files.
type Tester struct {
	G *goldie.Goldie
	T *testing.T

	targets []*Target
}

// Add registers a new golden file target, conventionally named after the
// test plus an extension describing the content. Targets registered with
// the same name are verified independently against the same file.
func (g *Tester) Add(name string) *Target {
	target := &Target{name: name}
	g.targets = append(g.targets, target)
	return target
}

// Assert verifies all targets against their golden files, in registration
// order, each in its own sub-test.
func (g *Tester) Assert() {
	for _, target := range g.targets {
		content := target.buf.Bytes()
		for _, filter := range target.filters {
			content = filter(content)
		}

		name := target.name
		g.T.Run(name, func(t *testing.T) {
			g.G.Assert(t, name, content)
		})
	}
}

// Target buffers the writes destined for one golden file.
type Target struct {
	name    string
	buf     bytes.Buffer
	filters []Filter
}

// Filter transforms buffered content before comparison; similar to an UNIX
// pipe.
type Filter func([]byte) []byte

// Filter appends a content filter to the target. Filters run in the order
// they were added.
func (b *Target) Filter(filter Filter) *Target {
	b.filters = append(b.filters, filter)
	return b
}

// Writer returns the io.Writer the code under test shall write to.
func (b *Target) Writer() io.Writer { return &b.buf }

// Stdout is an os.Stdout wrapper that removes trailing whitespace from
// every line written through it. Example output is matched against comment
// text, and gofmt strips trailing spaces from comments, so content with
// significant trailing whitespace can never match without this.
//
//nolint:gochecknoglobals
var Stdout io.Writer = trimmingStdout{}

type trimmingStdout struct{}

func (trimmingStdout) Write(p []byte) (int, error) {
	lines := bytes.Split(p, []byte{'\n'})
	for i := range lines {
		lines[i] = bytes.TrimRightFunc(lines[i], unicode.IsSpace)
	}
	if _, err := os.Stdout.Write(bytes.Join(lines, []byte{'\n'})); err != nil {
		return 0, err
	}
	return len(p), nil
}
