//go:build !sdl

package sdlpad

import (
	"errors"

	"github.com/san-kum/robomower/internal/input"
)

// ErrNotBuilt is returned by Open when the binary was built without the sdl
// tag.
var ErrNotBuilt = errors.New("sdlpad: built without sdl support (use -tags sdl)")

type Pad struct {
	state *input.State
}

func New(index int) *Pad {
	return &Pad{state: input.NewState()}
}

func (p *Pad) Open() error            { return ErrNotBuilt }
func (p *Pad) Name() string           { return "" }
func (p *Pad) Poll() []input.Event    { return nil }
func (p *Pad) Axis(index int) float64 { return p.state.Axis(index) }
func (p *Pad) Button(index int) bool  { return p.state.Button(index) }
func (p *Pad) Close() error           { return nil }
