package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/theo/internal/event"
	"github.com/roach88/theo/internal/suite"
)

// Events writes every event as one JSON object per line.
type Events struct {
	enc *json.Encoder
}

type eventLine struct {
	Event event.Kind   `json:"event"`
	Suite *suite.Suite `json:"suite,omitempty"`
	Test  *suite.Test  `json:"test,omitempty"`
}

// NewEvents creates a JSON-lines reporter writing to w.
func NewEvents(w io.Writer) *Events {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Events{enc: enc}
}

func (r *Events) Handle(e event.Event) error {
	if err := r.enc.Encode(eventLine{Event: e.Kind, Suite: e.Suite, Test: e.Test}); err != nil {
		return fmt.Errorf("write %s event: %w", e.Kind, err)
	}
	return nil
}
